package domain

// Credential binds a member's display name to their long-term identity key.
// Immutable once created.
type Credential struct {
	Name        string        `json:"name"`
	IdentityKey Ed25519Public `json:"identity_key"`
}

// KeyPackage is a signed, time-bounded pre-key bundle that lets a member be
// added to a group without being online. The signature covers the canonical
// payload serialization (see protocol/keypackage).
//
// InitPriv is held locally by the owner and is never serialized or
// transmitted; it opens the sealed epoch secret in a Welcome.
type KeyPackage struct {
	Version      uint16       `json:"version"`
	CipherSuite  uint16       `json:"cipher_suite"`
	InitKey      X25519Public `json:"init_key"`
	Credential   Credential   `json:"credential"`
	Capabilities []uint16     `json:"capabilities,omitempty"`
	NotBefore    int64        `json:"not_before"`
	NotAfter     int64        `json:"not_after"`
	Signature    []byte       `json:"signature"`

	InitPriv X25519Private `json:"-"`
}
