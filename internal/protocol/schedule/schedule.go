package schedule

import (
	"encoding/binary"

	"meshvox/internal/crypto"
	"meshvox/internal/domain"
	"meshvox/internal/util/memzero"
)

// SecretSize is the length of every derived secret.
const SecretSize = 32

// Derivation labels. Distinct ASCII labels keep the secrets independent.
var (
	labelApplication  = []byte("application")
	labelHandshake    = []byte("handshake")
	labelSenderData   = []byte("sender data")
	labelConfirmation = []byte("confirmation")
	labelEpoch        = []byte("epoch")
	labelEncryption   = []byte("encryption")
)

// EpochSecrets is the derived secret hierarchy for one epoch.
type EpochSecrets struct {
	Application     []byte
	Handshake       []byte
	SenderData      []byte
	ConfirmationTag []byte
}

// Wipe zeroes all secret material. The confirmation tag is public and left
// intact.
func (s *EpochSecrets) Wipe() {
	memzero.ZeroAll(s.Application, s.Handshake, s.SenderData)
}

// Context returns the key-schedule binding context: groupId ‖ epoch (8-byte
// big-endian).
func Context(groupID domain.GroupID, epoch int64) []byte {
	ctx := make([]byte, 0, len(groupID)+8)
	ctx = append(ctx, groupID.Slice()...)
	var e [8]byte
	binary.BigEndian.PutUint64(e[:], uint64(epoch))
	return append(ctx, e[:]...)
}

// Derive expands an epoch secret into the working secrets for the given group
// and epoch.
func Derive(epochSecret []byte, groupID domain.GroupID, epoch int64) EpochSecrets {
	ctx := Context(groupID, epoch)
	confirmKey := crypto.KeyedHash(epochSecret, labeled(labelConfirmation, ctx))
	tag := crypto.Hash(append(confirmKey, ctx...))
	memzero.Zero(confirmKey)

	return EpochSecrets{
		Application:     crypto.KeyedHash(epochSecret, labeled(labelApplication, ctx)),
		Handshake:       crypto.KeyedHash(epochSecret, labeled(labelHandshake, ctx)),
		SenderData:      crypto.KeyedHash(epochSecret, labeled(labelSenderData, ctx)),
		ConfirmationTag: tag,
	}
}

func labeled(label, ctx []byte) []byte {
	out := make([]byte, 0, len(label)+len(ctx))
	out = append(out, label...)
	return append(out, ctx...)
}

// NextEpochSecret ratchets the epoch secret forward, binding the result to
// exactly what was committed. commitContext is the canonical serialization of
// the proposal batch; any difference in the batch yields a different secret.
func NextEpochSecret(current, commitContext []byte) []byte {
	ikm := crypto.Hash(append(append([]byte(nil), current...), commitContext...))
	out := crypto.Expand(ikm, labelEpoch, SecretSize)
	memzero.Zero(ikm)
	return out
}

// MessageKeyNonce derives the AEAD key and nonce for one message generation
// from the epoch's application secret. Generations must never be reused for
// encryption; the caller owns the monotonic counter.
func MessageKeyNonce(secret []byte, generation uint64) (key, nonce []byte) {
	info := make([]byte, 0, len(labelEncryption)+8)
	info = append(info, labelEncryption...)
	var g [8]byte
	binary.BigEndian.PutUint64(g[:], generation)
	info = append(info, g[:]...)

	okm := crypto.Expand(secret, info, crypto.AEADKeySize+crypto.AEADNonceSize)
	return okm[:crypto.AEADKeySize], okm[crypto.AEADKeySize:]
}
