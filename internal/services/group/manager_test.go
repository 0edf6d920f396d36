package group_test

import (
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"meshvox/internal/crypto"
	"meshvox/internal/domain"
	"meshvox/internal/protocol/keypackage"
	"meshvox/internal/services/group"
)

// newMember builds one participant: a manager plus a signed key package.
func newMember(t *testing.T, name string) (*group.Manager, domain.KeyPackage) {
	t.Helper()
	identPriv, identPub, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	kp, err := keypackage.Generate(identPriv, domain.Credential{Name: name, IdentityKey: identPub}, time.Now())
	require.NoError(t, err)
	mgr := group.NewManager(group.Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return mgr, kp
}

func newGroupID(t *testing.T) domain.GroupID {
	t.Helper()
	var id domain.GroupID
	_, err := rand.Read(id[:])
	require.NoError(t, err)
	return id
}

func TestCreateGroup(t *testing.T) {
	ctx := context.Background()
	carol, carolKP := newMember(t, "carol")
	_, aliceKP := newMember(t, "alice")
	_, bobKP := newMember(t, "bob")
	gid := newGroupID(t)

	welcomes, err := carol.CreateGroup(ctx, gid, carolKP, []domain.KeyPackage{aliceKP, bobKP})
	require.NoError(t, err)
	require.Len(t, welcomes, 2)

	require.Equal(t, int64(0), welcomes[0].Epoch)
	require.Equal(t, uint32(1), welcomes[0].LeafIndex)
	require.Equal(t, uint32(2), welcomes[1].LeafIndex)
	require.Equal(t, keypackage.Hash(aliceKP), welcomes[0].RecipientHash)
	require.Equal(t, keypackage.Hash(bobKP), welcomes[1].RecipientHash)

	// Creating the same group twice is a state error.
	_, err = carol.CreateGroup(ctx, gid, carolKP, nil)
	require.ErrorIs(t, err, domain.ErrState)
}

func TestCreateGroup_RejectsExpiredKeyPackage(t *testing.T) {
	ctx := context.Background()
	carol, carolKP := newMember(t, "carol")

	identPriv, identPub, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	stale, err := keypackage.Generate(identPriv,
		domain.Credential{Name: "late", IdentityKey: identPub},
		time.Now().Add(-2*keypackage.Lifetime))
	require.NoError(t, err)

	_, err = carol.CreateGroup(ctx, newGroupID(t), carolKP, []domain.KeyPackage{stale})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateGroup_Capacity(t *testing.T) {
	ctx := context.Background()
	_, aliceKP := newMember(t, "alice")
	_, bobKP := newMember(t, "bob")

	_, carolKP := newMember(t, "carol")
	small := group.NewManager(group.Config{
		MaxGroupSize: 2,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	_, err := small.CreateGroup(ctx, newGroupID(t), carolKP, []domain.KeyPackage{aliceKP, bobKP})
	require.ErrorIs(t, err, domain.ErrCapacity)
}

func TestJoinGroup_RejectsForgedWelcome(t *testing.T) {
	ctx := context.Background()
	carol, carolKP := newMember(t, "carol")
	alice, aliceKP := newMember(t, "alice")
	_, bobKP := newMember(t, "bob")
	gid := newGroupID(t)

	welcomes, err := carol.CreateGroup(ctx, gid, carolKP, []domain.KeyPackage{aliceKP, bobKP})
	require.NoError(t, err)

	// Welcome addressed to someone else.
	err = alice.JoinGroup(ctx, welcomes[1], aliceKP)
	require.ErrorIs(t, err, domain.ErrSecurity)

	// Tampered confirmation tag.
	forged := welcomes[0]
	forged.ConfirmationTag = append([]byte(nil), forged.ConfirmationTag...)
	forged.ConfirmationTag[0] ^= 0x01
	err = alice.JoinGroup(ctx, forged, aliceKP)
	require.ErrorIs(t, err, domain.ErrSecurity)

	// Tampered sealed secret.
	forged = welcomes[0]
	forged.SealedSecret = append([]byte(nil), forged.SealedSecret...)
	forged.SealedSecret[3] ^= 0x01
	err = alice.JoinGroup(ctx, forged, aliceKP)
	require.ErrorIs(t, err, domain.ErrSecurity)

	// The genuine Welcome still works.
	require.NoError(t, alice.JoinGroup(ctx, welcomes[0], aliceKP))
}

// TestRemoveScenario walks the reference lifecycle: carol creates a group
// with alice and bob, alice joins, bob is removed at epoch 1, and bob's
// stale epoch-0 secrets cannot open post-removal traffic.
func TestRemoveScenario(t *testing.T) {
	ctx := context.Background()
	carol, carolKP := newMember(t, "carol")
	alice, aliceKP := newMember(t, "alice")
	bob, bobKP := newMember(t, "bob")
	gid := newGroupID(t)

	welcomes, err := carol.CreateGroup(ctx, gid, carolKP, []domain.KeyPackage{aliceKP, bobKP})
	require.NoError(t, err)
	require.NoError(t, alice.JoinGroup(ctx, welcomes[0], aliceKP))
	require.NoError(t, bob.JoinGroup(ctx, welcomes[1], bobKP))

	// Epoch 0 messages flow to everyone.
	ct, err := carol.EncryptMessage(ctx, gid, []byte("hello"))
	require.NoError(t, err)
	msg, err := bob.DecryptMessage(ctx, ct)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), msg.Plaintext)

	// Remove bob (leaf 2).
	commit, commitWelcomes, err := carol.Commit(ctx, gid, []domain.Proposal{
		{Type: domain.ProposalRemove, Sender: 0, Removed: 2},
	})
	require.NoError(t, err)
	require.Empty(t, commitWelcomes)
	require.Equal(t, int64(1), commit.Epoch)
	require.NoError(t, alice.ProcessCommit(ctx, commit))

	// Bob still holds epoch-0 secrets; they are useless at epoch 1.
	ct, err = carol.EncryptMessage(ctx, gid, []byte("after removal"))
	require.NoError(t, err)
	_, err = alice.DecryptMessage(ctx, ct)
	require.NoError(t, err)
	_, err = bob.DecryptMessage(ctx, ct)
	require.ErrorIs(t, err, domain.ErrSecurity)

	// When bob finally sees the commit, the removal is terminal.
	err = bob.ProcessCommit(ctx, commit)
	require.ErrorIs(t, err, domain.ErrRemoved)
	require.True(t, domain.RemovedFromGroup(err))

	// The session is gone.
	_, err = bob.EncryptMessage(ctx, gid, []byte("x"))
	require.ErrorIs(t, err, domain.ErrState)
}

func TestProcessCommit_EpochSequencing(t *testing.T) {
	ctx := context.Background()
	carol, carolKP := newMember(t, "carol")
	alice, aliceKP := newMember(t, "alice")
	_, bobKP := newMember(t, "bob")
	gid := newGroupID(t)

	welcomes, err := carol.CreateGroup(ctx, gid, carolKP, []domain.KeyPackage{aliceKP, bobKP})
	require.NoError(t, err)
	require.NoError(t, alice.JoinGroup(ctx, welcomes[0], aliceKP))

	commit, _, err := carol.Commit(ctx, gid, []domain.Proposal{
		{Type: domain.ProposalRemove, Sender: 0, Removed: 2},
	})
	require.NoError(t, err)
	require.NoError(t, alice.ProcessCommit(ctx, commit))

	// Replay is rejected.
	err = alice.ProcessCommit(ctx, commit)
	require.ErrorIs(t, err, domain.ErrState)

	// Gaps are rejected.
	future := commit
	future.Epoch = 5
	err = alice.ProcessCommit(ctx, future)
	require.ErrorIs(t, err, domain.ErrState)
}

func TestProcessCommit_TamperDetection(t *testing.T) {
	ctx := context.Background()
	carol, carolKP := newMember(t, "carol")
	alice, aliceKP := newMember(t, "alice")
	gid := newGroupID(t)

	welcomes, err := carol.CreateGroup(ctx, gid, carolKP, []domain.KeyPackage{aliceKP})
	require.NoError(t, err)
	require.NoError(t, alice.JoinGroup(ctx, welcomes[0], aliceKP))

	_, daveKP := newMember(t, "dave")
	commit, _, err := carol.Commit(ctx, gid, []domain.Proposal{
		{Type: domain.ProposalAdd, Sender: 0, KeyPackage: &daveKP},
	})
	require.NoError(t, err)

	// Flip a byte of the proposal batch: the derived epoch secret changes
	// and the committer's confirmation tag no longer matches.
	tampered := commit
	tampered.Proposals = append([]domain.Proposal(nil), commit.Proposals...)
	tampered.Proposals[0].Sender = 7
	err = alice.ProcessCommit(ctx, tampered)
	require.ErrorIs(t, err, domain.ErrSecurity)

	// The untouched commit still applies.
	require.NoError(t, alice.ProcessCommit(ctx, commit))
}

func TestCommit_AddMemberAndWelcome(t *testing.T) {
	ctx := context.Background()
	carol, carolKP := newMember(t, "carol")
	dave, daveKP := newMember(t, "dave")
	gid := newGroupID(t)

	_, err := carol.CreateGroup(ctx, gid, carolKP, nil)
	require.NoError(t, err)

	commit, welcomes, err := carol.Commit(ctx, gid, []domain.Proposal{
		{Type: domain.ProposalAdd, Sender: 0, KeyPackage: &daveKP},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), commit.Epoch)
	require.Len(t, welcomes, 1)
	require.Equal(t, uint32(1), welcomes[0].LeafIndex)

	require.NoError(t, dave.JoinGroup(ctx, welcomes[0], daveKP))

	// Messages flow between the creator and the added member at epoch 1.
	ct, err := carol.EncryptMessage(ctx, gid, []byte("welcome dave"))
	require.NoError(t, err)
	msg, err := dave.DecryptMessage(ctx, ct)
	require.NoError(t, err)
	require.Equal(t, []byte("welcome dave"), msg.Plaintext)
	// Dave's view is partial until Commits fill it in, so carol's
	// credential is not yet resolvable.
	require.Empty(t, msg.SenderName)

	// Carol has the full tree and resolves dave's credential.
	ct, err = dave.EncryptMessage(ctx, gid, []byte("thanks"))
	require.NoError(t, err)
	msg, err = carol.DecryptMessage(ctx, ct)
	require.NoError(t, err)
	require.Equal(t, "dave", msg.SenderName)
}

func TestCommit_RejectsOwnRemoval(t *testing.T) {
	ctx := context.Background()
	carol, carolKP := newMember(t, "carol")
	gid := newGroupID(t)

	_, err := carol.CreateGroup(ctx, gid, carolKP, nil)
	require.NoError(t, err)

	_, _, err = carol.Commit(ctx, gid, []domain.Proposal{
		{Type: domain.ProposalRemove, Sender: 0, Removed: 0},
	})
	require.ErrorIs(t, err, domain.ErrState)
}

func TestCommit_CapacityCeiling(t *testing.T) {
	ctx := context.Background()
	_, carolKP := newMember(t, "carol")
	_, aliceKP := newMember(t, "alice")
	_, daveKP := newMember(t, "dave")

	small := group.NewManager(group.Config{
		MaxGroupSize: 2,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	gid := newGroupID(t)
	_, err := small.CreateGroup(ctx, gid, carolKP, []domain.KeyPackage{aliceKP})
	require.NoError(t, err)

	_, _, err = small.Commit(ctx, gid, []domain.Proposal{
		{Type: domain.ProposalAdd, Sender: 0, KeyPackage: &daveKP},
	})
	require.ErrorIs(t, err, domain.ErrCapacity)
}

func TestProcessCommit_CapacityCeiling(t *testing.T) {
	ctx := context.Background()
	carol, carolKP := newMember(t, "carol")

	// Alice enforces a smaller ceiling than the committer does.
	identPriv, identPub, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	aliceKP, err := keypackage.Generate(identPriv,
		domain.Credential{Name: "alice", IdentityKey: identPub}, time.Now())
	require.NoError(t, err)
	alice := group.NewManager(group.Config{
		MaxGroupSize: 2,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	gid := newGroupID(t)
	welcomes, err := carol.CreateGroup(ctx, gid, carolKP, []domain.KeyPackage{aliceKP})
	require.NoError(t, err)
	require.NoError(t, alice.JoinGroup(ctx, welcomes[0], aliceKP))

	_, daveKP := newMember(t, "dave")
	commit, _, err := carol.Commit(ctx, gid, []domain.Proposal{
		{Type: domain.ProposalAdd, Sender: 0, KeyPackage: &daveKP},
	})
	require.NoError(t, err)
	require.NoError(t, alice.ProcessCommit(ctx, commit))

	// The next Add would push alice's view past her ceiling; a misbehaving
	// committer must not be able to inflate membership on the receive path.
	_, erinKP := newMember(t, "erin")
	commit, _, err = carol.Commit(ctx, gid, []domain.Proposal{
		{Type: domain.ProposalAdd, Sender: 0, KeyPackage: &erinKP},
	})
	require.NoError(t, err)
	err = alice.ProcessCommit(ctx, commit)
	require.ErrorIs(t, err, domain.ErrCapacity)
}

func TestUpdateProposal(t *testing.T) {
	ctx := context.Background()
	carol, carolKP := newMember(t, "carol")
	alice, aliceKP := newMember(t, "alice")
	gid := newGroupID(t)

	welcomes, err := carol.CreateGroup(ctx, gid, carolKP, []domain.KeyPackage{aliceKP})
	require.NoError(t, err)
	require.NoError(t, alice.JoinGroup(ctx, welcomes[0], aliceKP))

	// Alice rotates her leaf material; carol commits the update.
	identPriv, identPub, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	freshKP, err := keypackage.Generate(identPriv,
		domain.Credential{Name: "alice", IdentityKey: identPub}, time.Now())
	require.NoError(t, err)

	commit, _, err := carol.Commit(ctx, gid, []domain.Proposal{
		{Type: domain.ProposalUpdate, Sender: 1, KeyPackage: &freshKP},
	})
	require.NoError(t, err)
	require.NoError(t, alice.ProcessCommit(ctx, commit))

	// Messaging still works across the rotated epoch.
	ct, err := alice.EncryptMessage(ctx, gid, []byte("rotated"))
	require.NoError(t, err)
	msg, err := carol.DecryptMessage(ctx, ct)
	require.NoError(t, err)
	require.Equal(t, []byte("rotated"), msg.Plaintext)
	require.Equal(t, "alice", msg.SenderName)
}

func TestLeaveGroup(t *testing.T) {
	ctx := context.Background()
	carol, carolKP := newMember(t, "carol")
	alice, aliceKP := newMember(t, "alice")
	gid := newGroupID(t)

	welcomes, err := carol.CreateGroup(ctx, gid, carolKP, []domain.KeyPackage{aliceKP})
	require.NoError(t, err)
	require.NoError(t, alice.JoinGroup(ctx, welcomes[0], aliceKP))

	proposal, err := alice.LeaveGroup(ctx, gid)
	require.NoError(t, err)
	require.Equal(t, domain.ProposalRemove, proposal.Type)
	require.Equal(t, uint32(1), proposal.Removed)

	// Local state is cleared immediately.
	_, err = alice.EncryptMessage(ctx, gid, []byte("x"))
	require.ErrorIs(t, err, domain.ErrState)

	// The rest of the group commits the departure.
	commit, _, err := carol.Commit(ctx, gid, []domain.Proposal{proposal})
	require.NoError(t, err)
	require.Equal(t, int64(1), commit.Epoch)
}

func TestNotifier(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	var kinds []domain.UpdateKind
	notifier := domain.NotifierFunc(func(u domain.GroupUpdate) {
		mu.Lock()
		kinds = append(kinds, u.Kind)
		mu.Unlock()
	})

	identPriv, identPub, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	carolKP, err := keypackage.Generate(identPriv,
		domain.Credential{Name: "carol", IdentityKey: identPub}, time.Now())
	require.NoError(t, err)

	carol := group.NewManager(group.Config{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Notifier: notifier,
	})
	gid := newGroupID(t)
	_, err = carol.CreateGroup(ctx, gid, carolKP, nil)
	require.NoError(t, err)

	_, daveKP := newMember(t, "dave")
	_, _, err = carol.Commit(ctx, gid, []domain.Proposal{
		{Type: domain.ProposalAdd, Sender: 0, KeyPackage: &daveKP},
	})
	require.NoError(t, err)

	_, err = carol.LeaveGroup(ctx, gid)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []domain.UpdateKind{
		domain.UpdateCreated,
		domain.UpdateCommitted,
		domain.UpdateLeft,
	}, kinds)
}
