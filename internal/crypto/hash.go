package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeyedHash returns HMAC-SHA256(key, data).
func KeyedHash(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// Hash returns SHA-256(data).
func Hash(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// Expand derives outLen bytes from secret using HKDF-SHA256 with the given
// info label.
func Expand(secret, info []byte, outLen int) []byte {
	r := hkdf.New(sha256.New, secret, nil, info)
	out := make([]byte, outLen)
	_, _ = io.ReadFull(r, out)
	return out
}

// Fingerprint returns a short hex fingerprint of a public key.
//
// It hashes with SHA-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:10])
}
