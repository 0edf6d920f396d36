package domain

// ContentType tags the payload carried inside an encrypted envelope.
type ContentType uint8

const (
	ContentApplication ContentType = 1
	ContentProposal    ContentType = 2
	ContentCommit      ContentType = 3
)

// ProposalType distinguishes pending group-change intents.
type ProposalType uint8

const (
	ProposalAdd    ProposalType = 1
	ProposalRemove ProposalType = 2
	ProposalUpdate ProposalType = 3
)

// Proposal is a pending request to change group membership. Add and Update
// carry a KeyPackage; Remove carries the target leaf index.
type Proposal struct {
	Type       ProposalType `json:"type"`
	Sender     uint32       `json:"sender"`
	KeyPackage *KeyPackage  `json:"key_package,omitempty"`
	Removed    uint32       `json:"removed,omitempty"`
}

// Commit is the epoch-advancing transaction: a batch of proposals plus the
// confirmation tag every member must be able to recompute. Produced by one
// member, applied by all others in strict epoch order.
type Commit struct {
	GroupID         GroupID    `json:"group_id"`
	Epoch           int64      `json:"epoch"`
	Proposals       []Proposal `json:"proposals"`
	Committer       uint32     `json:"committer"`
	ConfirmationTag []byte     `json:"confirmation_tag"`
}

// Welcome bootstraps a newly added member: the epoch secret sealed to the
// recipient's init key, addressed by the hash of their KeyPackage. LeafIndex
// tells the recipient which tree position it was assigned, so it can detect
// its own later removal; TreeSize is the slot count of the committed tree,
// so the recipient's partial view assigns the same indices to future Adds.
type Welcome struct {
	GroupID         GroupID `json:"group_id"`
	Epoch           int64   `json:"epoch"`
	LeafIndex       uint32  `json:"leaf_index"`
	TreeSize        uint32  `json:"tree_size"`
	RecipientHash   []byte  `json:"recipient_hash"`
	SealedSecret    []byte  `json:"sealed_secret"`
	ConfirmationTag []byte  `json:"confirmation_tag"`
}

// Ciphertext is the wire form of an encrypted message. Payload is the AEAD
// output over the serialized content envelope; Generation indexes the message
// key it was encrypted under.
type Ciphertext struct {
	GroupID     GroupID     `json:"group_id"`
	Epoch       int64       `json:"epoch"`
	ContentType ContentType `json:"content_type"`
	Generation  uint64      `json:"generation"`
	Payload     []byte      `json:"payload"`
}

// DecryptedMessage is what the engine hands back after opening a Ciphertext:
// the plaintext plus the sender's resolved credential.
type DecryptedMessage struct {
	GroupID    GroupID `json:"group_id"`
	Sender     uint32  `json:"sender"`
	SenderName string  `json:"sender_name"`
	Plaintext  []byte  `json:"plaintext"`
}
