// Package schedule derives the per-epoch secret hierarchy.
//
// # Overview
//
// Every epoch has one opaque 32-byte epoch secret. The schedule expands it
// into the working secrets for that epoch, each bound to the group and epoch
// through a shared context:
//
//	context            = groupId(32) ‖ epoch(i64 BE)
//	applicationSecret  = HMAC-SHA256(epochSecret, "application" ‖ context)
//	handshakeSecret    = HMAC-SHA256(epochSecret, "handshake" ‖ context)
//	senderDataSecret   = HMAC-SHA256(epochSecret, "sender data" ‖ context)
//	confirmationTag    = SHA-256(HMAC-SHA256(epochSecret, "confirmation" ‖ context) ‖ context)
//
// The confirmation tag is a binding value every member recomputes from the
// negotiated epoch secret to authenticate that a Commit was accepted
// identically on all sides.
//
// Epoch secrets form a one-way chain: the next secret is derived from a hash
// of the current secret and the serialized proposal batch, so compromise of
// epoch N reveals nothing about epoch N-1 (forward secrecy), and two members
// applying different proposal sets diverge and fail confirmation-tag
// comparison (tamper detection).
//
// Application message keys are generation-indexed: each increment of the
// sender's counter yields a fresh key/nonce pair with no per-message state
// beyond the counter itself.
package schedule
