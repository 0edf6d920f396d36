// Package crypto exposes the minimal primitives used by the engine.
//
// Contents
//
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519)
//   - X25519 key generation with RFC 7748 clamping (GenerateX25519)
//   - ChaCha20-Poly1305 AEAD framing (Seal, Open)
//   - HMAC-SHA256 keyed hashing and HKDF expansion (KeyedHash, Expand)
//   - Anonymous sealed boxes for epoch-secret delivery (SealBox, OpenBox)
//   - Random bytes (RandomBytes) and short public-key fingerprints
//     (Fingerprint)
//
// # Notes
//
// All functions are pure and stateless, operating over the fixed-size array
// types defined in internal/domain to avoid accidental reallocations. Callers
// should treat returned secrets as sensitive and rely on memzero when
// practical to reduce lifetime in memory.
package crypto
