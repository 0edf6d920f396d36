// Package group implements the authoritative per-group session engine:
// group creation and joining, the proposal/commit epoch machine, and
// application message encryption.
//
// # Overview
//
// A Manager owns every live group session. Each session tracks one epoch at
// a time: the membership tree, the epoch secret and its derived schedule,
// the local leaf index and the message generation counter. A successful
// Commit or ProcessCommit replaces the session state wholesale and wipes the
// superseded secrets; readers observe either the old epoch or the new one in
// full, never a mix.
//
// Sessions are locked individually, so operations on unrelated groups
// proceed concurrently. The session map itself is guarded by a read-write
// lock taken only to look up, insert or drop a session.
//
// The engine performs no network I/O and no persistence. Serialized
// Commit/Welcome/Ciphertext values are returned to the caller for delivery,
// and state changes are reported through the optional Notifier.
package group
