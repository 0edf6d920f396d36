package keypackage

import (
	"fmt"
	"time"

	"meshvox/internal/crypto"
	"meshvox/internal/domain"
)

const (
	// Version is the protocol version stamped into every KeyPackage.
	Version uint16 = 0x0100
	// SuiteX25519ChaCha20 is the only cipher suite currently supported:
	// X25519 init keys, ChaCha20-Poly1305 AEAD, HMAC-SHA256 key schedule.
	SuiteX25519ChaCha20 uint16 = 0x0001

	// Lifetime is the validity window granted to a fresh KeyPackage.
	Lifetime = 30 * 24 * time.Hour
)

// Generate builds a KeyPackage for the given credential: a fresh init key
// pair, a Lifetime validity window starting now, and a signature by the
// owner's long-term identity key over the canonical payload. The init private
// key is held in the returned package and never serialized.
func Generate(identitySecret domain.Ed25519Private, credential domain.Credential, now time.Time) (domain.KeyPackage, error) {
	initPriv, initPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.KeyPackage{}, fmt.Errorf("generate init key: %w", err)
	}

	kp := domain.KeyPackage{
		Version:      Version,
		CipherSuite:  SuiteX25519ChaCha20,
		InitKey:      initPub,
		Credential:   credential,
		Capabilities: []uint16{SuiteX25519ChaCha20},
		NotBefore:    now.Unix(),
		NotAfter:     now.Add(Lifetime).Unix(),
		InitPriv:     initPriv,
	}
	kp.Signature = crypto.SignEd25519(identitySecret, MarshalPayload(kp))
	return kp, nil
}

// Validate checks a KeyPackage against the local clock. It returns nil on
// success or a domain.ErrValidation-kind error naming the first failed check.
func Validate(kp domain.KeyPackage, now time.Time) error {
	if kp.Version != Version {
		return fmt.Errorf("%w: version 0x%04x, want 0x%04x", domain.ErrValidation, kp.Version, Version)
	}
	if kp.CipherSuite != SuiteX25519ChaCha20 {
		return fmt.Errorf("%w: unsupported cipher suite 0x%04x", domain.ErrValidation, kp.CipherSuite)
	}
	ts := now.Unix()
	if ts < kp.NotBefore || ts > kp.NotAfter {
		return fmt.Errorf("%w: lifetime window [%d, %d] excludes %d", domain.ErrValidation, kp.NotBefore, kp.NotAfter, ts)
	}
	if !crypto.VerifyEd25519(kp.Credential.IdentityKey, MarshalPayload(kp), kp.Signature) {
		return fmt.Errorf("%w: bad signature", domain.ErrValidation)
	}
	return nil
}

// Hash returns the SHA-256 hash identifying a KeyPackage on the wire: the
// canonical payload followed by the signature. Welcome messages address their
// recipient by this value.
func Hash(kp domain.KeyPackage) []byte {
	return crypto.Hash(append(MarshalPayload(kp), kp.Signature...))
}
