package group

import (
	"context"
	"fmt"

	"meshvox/internal/crypto"
	"meshvox/internal/domain"
	"meshvox/internal/protocol/schedule"
	"meshvox/internal/protocol/wire"
	"meshvox/internal/util/memzero"
)

// EncryptMessage encrypts an application payload for the group under the
// current epoch's application secret. Each call consumes one message
// generation; the derived key and nonce are wiped before returning.
func (m *Manager) EncryptMessage(ctx context.Context, groupID domain.GroupID, plaintext []byte) (domain.Ciphertext, error) {
	s, err := m.session(groupID)
	if err != nil {
		return domain.Ciphertext{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.st
	if st.terminal {
		return domain.Ciphertext{}, fmt.Errorf("%w: session closed", domain.ErrState)
	}

	generation := st.generation
	key, nonce := schedule.MessageKeyNonce(st.secrets.Application, generation)
	defer memzero.ZeroAll(key, nonce)

	envelope := wire.MarshalContent(wire.Content{
		GroupID:     groupID,
		Epoch:       st.epoch,
		Sender:      st.myLeaf,
		ContentType: domain.ContentApplication,
		Payload:     plaintext,
	})
	aad := wire.AAD(groupID, st.epoch, domain.ContentApplication)

	sealed, err := crypto.Seal(key, nonce, envelope, aad)
	if err != nil {
		return domain.Ciphertext{}, fmt.Errorf("seal message: %w", err)
	}
	st.generation++

	return domain.Ciphertext{
		GroupID:     groupID,
		Epoch:       st.epoch,
		ContentType: domain.ContentApplication,
		Generation:  generation,
		Payload:     sealed,
	}, nil
}

// DecryptMessage opens a Ciphertext and resolves the sender's credential
// from the local tree. A stale or future epoch on the wire message is logged
// and the decrypt still attempted; a MAC mismatch is a security error.
func (m *Manager) DecryptMessage(ctx context.Context, ct domain.Ciphertext) (domain.DecryptedMessage, error) {
	s, err := m.session(ct.GroupID)
	if err != nil {
		return domain.DecryptedMessage{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.st
	if st.terminal {
		return domain.DecryptedMessage{}, fmt.Errorf("%w: session closed", domain.ErrState)
	}

	if ct.Epoch != st.epoch {
		// Policy: tolerate slight epoch skew rather than refuse outright.
		// Keys are bound to our current epoch, so a genuinely stale message
		// will fail authentication below.
		m.log.WarnContext(ctx, "ciphertext epoch differs from session",
			"group", crypto.Fingerprint(ct.GroupID.Slice()),
			"ciphertext_epoch", ct.Epoch,
			"session_epoch", st.epoch)
	}

	key, nonce := schedule.MessageKeyNonce(st.secrets.Application, ct.Generation)
	defer memzero.ZeroAll(key, nonce)

	aad := wire.AAD(ct.GroupID, ct.Epoch, ct.ContentType)
	envelope, err := crypto.Open(key, nonce, ct.Payload, aad)
	if err != nil {
		return domain.DecryptedMessage{}, fmt.Errorf("%w: message authentication failed: %v", domain.ErrSecurity, err)
	}

	content, err := wire.UnmarshalContent(envelope)
	if err != nil {
		return domain.DecryptedMessage{}, err
	}
	if content.GroupID != ct.GroupID {
		return domain.DecryptedMessage{}, fmt.Errorf("%w: envelope group mismatch", domain.ErrSecurity)
	}

	msg := domain.DecryptedMessage{
		GroupID:   ct.GroupID,
		Sender:    content.Sender,
		Plaintext: content.Payload,
	}
	if leaf, ok := st.tree.Leaf(content.Sender); ok {
		msg.SenderName = leaf.Credential.Name
	}
	return msg, nil
}
