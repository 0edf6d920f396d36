// Package wire implements the binary framings shared by all members. The
// layouts are fixed for interop; every integer is big-endian.
package wire

import (
	"encoding/binary"
	"fmt"

	"meshvox/internal/domain"
	"meshvox/internal/protocol/keypackage"
)

// Content is the pre-encryption envelope carried inside every Ciphertext.
//
// Layout: groupId:32 | epoch:i64 | sender:u32 | contentType:u8 |
// payloadLen:u32 | payload.
type Content struct {
	GroupID     domain.GroupID
	Epoch       int64
	Sender      uint32
	ContentType domain.ContentType
	Payload     []byte
}

// MarshalContent serializes a content envelope.
func MarshalContent(c Content) []byte {
	out := make([]byte, 0, 32+8+4+1+4+len(c.Payload))
	out = append(out, c.GroupID.Slice()...)
	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], uint64(c.Epoch))
	out = append(out, u64[:]...)
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], c.Sender)
	out = append(out, u32[:]...)
	out = append(out, byte(c.ContentType))
	binary.BigEndian.PutUint32(u32[:], uint32(len(c.Payload)))
	out = append(out, u32[:]...)
	return append(out, c.Payload...)
}

// UnmarshalContent parses a MarshalContent output. An unrecognized content
// type is rejected outright rather than being coerced to a default.
func UnmarshalContent(data []byte) (Content, error) {
	const header = 32 + 8 + 4 + 1 + 4
	if len(data) < header {
		return Content{}, fmt.Errorf("%w: truncated content envelope", domain.ErrValidation)
	}
	var c Content
	copy(c.GroupID[:], data[:32])
	c.Epoch = int64(binary.BigEndian.Uint64(data[32:40]))
	c.Sender = binary.BigEndian.Uint32(data[40:44])
	c.ContentType = domain.ContentType(data[44])
	n := binary.BigEndian.Uint32(data[45:49])
	if uint32(len(data)-header) != n {
		return Content{}, fmt.Errorf("%w: content payload length mismatch", domain.ErrValidation)
	}
	switch c.ContentType {
	case domain.ContentApplication, domain.ContentProposal, domain.ContentCommit:
	default:
		return Content{}, fmt.Errorf("%w: unknown content type %d", domain.ErrValidation, c.ContentType)
	}
	// make, not append: an empty payload must stay a non-nil empty slice so
	// an encrypted empty message round-trips byte-exactly.
	c.Payload = make([]byte, n)
	copy(c.Payload, data[header:])
	return c, nil
}

// AAD builds the associated data binding an AEAD frame to its group, epoch
// and content type: groupId:32 | epoch:i64 | contentType:u8.
func AAD(groupID domain.GroupID, epoch int64, ct domain.ContentType) []byte {
	out := make([]byte, 0, 32+8+1)
	out = append(out, groupID.Slice()...)
	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], uint64(epoch))
	out = append(out, u64[:]...)
	return append(out, byte(ct))
}

// MarshalProposal serializes one proposal: type:u8 | sender:u32 |
// payloadLen:u32 | payload. Add and Update payloads are the full serialized
// KeyPackage; Remove payloads are the target leaf index.
func MarshalProposal(p domain.Proposal) []byte {
	var payload []byte
	switch p.Type {
	case domain.ProposalAdd, domain.ProposalUpdate:
		if p.KeyPackage != nil {
			payload = keypackage.Marshal(*p.KeyPackage)
		}
	case domain.ProposalRemove:
		var u32 [4]byte
		binary.BigEndian.PutUint32(u32[:], p.Removed)
		payload = u32[:]
	}

	out := make([]byte, 0, 1+4+4+len(payload))
	out = append(out, byte(p.Type))
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], p.Sender)
	out = append(out, u32[:]...)
	binary.BigEndian.PutUint32(u32[:], uint32(len(payload)))
	out = append(out, u32[:]...)
	return append(out, payload...)
}

// CommitContext serializes a proposal batch for the next-epoch derivation.
// The full batch is bound, so flipping any byte of any proposal changes the
// derived epoch secret and breaks confirmation on every honest member.
func CommitContext(proposals []domain.Proposal) []byte {
	var out []byte
	for _, p := range proposals {
		out = append(out, MarshalProposal(p)...)
	}
	return out
}
