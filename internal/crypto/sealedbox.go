package crypto

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/nacl/box"

	"meshvox/internal/domain"
)

// ErrBoxOpen is returned when an anonymous sealed box fails to open.
var ErrBoxOpen = errors.New("sealed box open failed")

// SealBox encrypts msg to the recipient's X25519 public key using an
// anonymous sealed box. Only the holder of the matching private key can open
// it; the sender is not authenticated.
func SealBox(recipient domain.X25519Public, msg []byte) ([]byte, error) {
	pub := [32]byte(recipient)
	return box.SealAnonymous(nil, msg, &pub, rand.Reader)
}

// OpenBox opens a SealBox output with the recipient's key pair.
func OpenBox(recipientPub domain.X25519Public, recipientPriv domain.X25519Private, ct []byte) ([]byte, error) {
	pub := [32]byte(recipientPub)
	priv := [32]byte(recipientPriv)
	msg, ok := box.OpenAnonymous(nil, ct, &pub, &priv)
	if !ok {
		return nil, ErrBoxOpen
	}
	return msg, nil
}
