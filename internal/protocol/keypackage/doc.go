// Package keypackage builds and validates signed, time-bounded pre-key
// bundles that let a member be added to a group without being online.
//
// # Overview
//
// A KeyPackage carries a fresh X25519 init key, the owner's credential
// (display name + long-term Ed25519 identity key) and a validity window,
// signed by the identity key over the canonical payload serialization.
// Others validate the package before adding the member; the init key is
// consumed once when a Welcome seals the epoch secret to it.
//
// # Wire layout
//
// The canonical payload is, all integers big-endian:
//
//	version:u16 | cipherSuite:u16 | initKeyLen:u32 | initKey |
//	nameLen:u32 | name(UTF-8) | identityKeyLen:u32 | identityKey |
//	notBefore:i64 | notAfter:i64
//
// The full serialized package appends sigLen:u32 | signature.
//
// # Errors
//
// Validate rejects with a domain.ErrValidation-kind error on version
// mismatch, unsupported cipher suite, an out-of-window clock, or a bad
// signature. Checks are independent and short-circuit on first failure.
package keypackage
