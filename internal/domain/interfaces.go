package domain

import "context"

// UpdateKind classifies a group state transition reported to observers.
type UpdateKind uint8

const (
	UpdateCreated UpdateKind = iota + 1
	UpdateJoined
	UpdateCommitted
	UpdateRemoved
	UpdateLeft
)

// GroupUpdate notifies UI/presence collaborators of a state change. It carries
// no secret material.
type GroupUpdate struct {
	GroupID GroupID
	Epoch   int64
	Kind    UpdateKind
	Members int
}

// Notifier receives group state change notifications. Implementations must not
// call back into the engine from the notification path.
type Notifier interface {
	GroupChanged(update GroupUpdate)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(update GroupUpdate)

// GroupChanged calls f.
func (f NotifierFunc) GroupChanged(update GroupUpdate) { f(update) }

// GroupService is the engine surface the transport and UI layers consume.
// All methods are safe for concurrent use. Serialized Commit/Welcome/
// Ciphertext values are handed to the caller for delivery; the engine itself
// never touches the network.
type GroupService interface {
	CreateGroup(ctx context.Context, groupID GroupID, creator KeyPackage, members []KeyPackage) ([]Welcome, error)
	JoinGroup(ctx context.Context, welcome Welcome, own KeyPackage) error
	Commit(ctx context.Context, groupID GroupID, proposals []Proposal) (Commit, []Welcome, error)
	ProcessCommit(ctx context.Context, commit Commit) error
	LeaveGroup(ctx context.Context, groupID GroupID) (Proposal, error)

	EncryptMessage(ctx context.Context, groupID GroupID, plaintext []byte) (Ciphertext, error)
	DecryptMessage(ctx context.Context, ct Ciphertext) (DecryptedMessage, error)
}
