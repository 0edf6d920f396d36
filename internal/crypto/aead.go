package crypto

import (
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// AEADKeySize is the ChaCha20-Poly1305 key length.
	AEADKeySize = chacha20poly1305.KeySize
	// AEADNonceSize is the ChaCha20-Poly1305 nonce length.
	AEADNonceSize = chacha20poly1305.NonceSize
)

// Seal encrypts plaintext with ChaCha20-Poly1305 under key/nonce, binding ad.
func Seal(key, nonce, plaintext, ad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, ad), nil
}

// Open decrypts a Seal output. A MAC mismatch surfaces as an error from the
// underlying AEAD.
func Open(key, nonce, ciphertext, ad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, ad)
}
