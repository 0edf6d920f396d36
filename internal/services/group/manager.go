package group

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"meshvox/internal/crypto"
	"meshvox/internal/domain"
	"meshvox/internal/protocol/keypackage"
	"meshvox/internal/protocol/schedule"
	"meshvox/internal/protocol/tree"
	"meshvox/internal/protocol/wire"
	"meshvox/internal/util/memzero"
)

// MaxGroupSize is the hard ceiling on active members per group.
const MaxGroupSize = 50_000

// Config holds runtime wiring options for building a Manager.
type Config struct {
	MaxGroupSize int             // 0 means MaxGroupSize
	Logger       *slog.Logger    // nil means slog.Default()
	Notifier     domain.Notifier // optional state-change observer
	Now          func() time.Time
}

// Manager owns all group sessions. Safe for concurrent use; unrelated groups
// never block each other.
type Manager struct {
	maxSize  int
	log      *slog.Logger
	notifier domain.Notifier
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[domain.GroupID]*session
}

// NewManager constructs a Manager from cfg.
func NewManager(cfg Config) *Manager {
	if cfg.MaxGroupSize <= 0 {
		cfg.MaxGroupSize = MaxGroupSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		maxSize:  cfg.MaxGroupSize,
		log:      cfg.Logger,
		notifier: cfg.Notifier,
		now:      cfg.Now,
		sessions: make(map[domain.GroupID]*session),
	}
}

// CreateGroup starts a new group at epoch 0 with the creator at leaf 0 and
// each initial member at the following leaves. It returns one Welcome per
// initial member, each sealing the epoch-0 secret to that member's init key.
func (m *Manager) CreateGroup(ctx context.Context, groupID domain.GroupID, creator domain.KeyPackage, members []domain.KeyPackage) ([]domain.Welcome, error) {
	now := m.now()
	if err := keypackage.Validate(creator, now); err != nil {
		return nil, fmt.Errorf("creator key package: %w", err)
	}
	for i, kp := range members {
		if err := keypackage.Validate(kp, now); err != nil {
			return nil, fmt.Errorf("member %d key package: %w", i, err)
		}
	}
	if 1+len(members) > m.maxSize {
		return nil, fmt.Errorf("%w: %d members exceeds maximum %d", domain.ErrCapacity, 1+len(members), m.maxSize)
	}

	t := tree.New()
	myLeaf := t.AddLeaf(creator.InitKey, creator.Credential)
	for _, kp := range members {
		t.AddLeaf(kp.InitKey, kp.Credential)
	}

	epochSecret, err := crypto.RandomBytes(schedule.SecretSize)
	if err != nil {
		return nil, fmt.Errorf("epoch secret: %w", err)
	}
	secrets := schedule.Derive(epochSecret, groupID, 0)

	welcomes := make([]domain.Welcome, 0, len(members))
	for i, kp := range members {
		sealed, err := crypto.SealBox(kp.InitKey, epochSecret)
		if err != nil {
			secrets.Wipe()
			memzero.Zero(epochSecret)
			return nil, fmt.Errorf("seal welcome: %w", err)
		}
		welcomes = append(welcomes, domain.Welcome{
			GroupID:         groupID,
			Epoch:           0,
			LeafIndex:       uint32(i + 1),
			TreeSize:        uint32(t.Size()),
			RecipientHash:   keypackage.Hash(kp),
			SealedSecret:    sealed,
			ConfirmationTag: secrets.ConfirmationTag,
		})
	}

	st := &state{
		groupID:     groupID,
		epoch:       0,
		tree:        t,
		epochSecret: epochSecret,
		secrets:     secrets,
		myLeaf:      myLeaf,
		ownKP:       creator,
		ownHash:     keypackage.Hash(creator),
	}

	m.mu.Lock()
	if _, exists := m.sessions[groupID]; exists {
		m.mu.Unlock()
		st.wipe()
		return nil, fmt.Errorf("%w: group already exists", domain.ErrState)
	}
	m.sessions[groupID] = &session{st: st}
	m.mu.Unlock()

	m.log.DebugContext(ctx, "group created",
		"group", crypto.Fingerprint(groupID.Slice()),
		"members", 1+len(members))
	m.notify(domain.GroupUpdate{GroupID: groupID, Epoch: 0, Kind: domain.UpdateCreated, Members: 1 + len(members)})
	return welcomes, nil
}

// JoinGroup bootstraps a session from a Welcome addressed to own. The sealed
// epoch secret is opened with the local init key and the re-derived
// confirmation tag must match the one the Welcome carries; any mismatch means
// the Welcome was tampered with or forged.
//
// The joined session starts with an empty tree. Full membership is learned
// from subsequent Commits.
func (m *Manager) JoinGroup(ctx context.Context, welcome domain.Welcome, own domain.KeyPackage) error {
	ownHash := keypackage.Hash(own)
	if subtle.ConstantTimeCompare(welcome.RecipientHash, ownHash) != 1 {
		return fmt.Errorf("%w: welcome not addressed to this key package", domain.ErrSecurity)
	}

	epochSecret, err := crypto.OpenBox(own.InitKey, own.InitPriv, welcome.SealedSecret)
	if err != nil {
		return fmt.Errorf("%w: open welcome secret: %v", domain.ErrSecurity, err)
	}

	secrets := schedule.Derive(epochSecret, welcome.GroupID, welcome.Epoch)
	if subtle.ConstantTimeCompare(secrets.ConfirmationTag, welcome.ConfirmationTag) != 1 {
		secrets.Wipe()
		memzero.Zero(epochSecret)
		return fmt.Errorf("%w: welcome confirmation tag mismatch", domain.ErrSecurity)
	}

	// We know our own position and the committed slot count from the
	// Welcome; everything else fills in as Commits arrive.
	t := tree.New()
	t.Grow(welcome.TreeSize)
	t.PlaceLeaf(welcome.LeafIndex, own.InitKey, own.Credential)

	st := &state{
		groupID:     welcome.GroupID,
		epoch:       welcome.Epoch,
		tree:        t,
		epochSecret: epochSecret,
		secrets:     secrets,
		myLeaf:      welcome.LeafIndex,
		ownKP:       own,
		ownHash:     ownHash,
	}

	m.mu.Lock()
	if _, exists := m.sessions[welcome.GroupID]; exists {
		m.mu.Unlock()
		st.wipe()
		return fmt.Errorf("%w: already a member of this group", domain.ErrState)
	}
	m.sessions[welcome.GroupID] = &session{st: st}
	m.mu.Unlock()

	m.log.DebugContext(ctx, "joined group",
		"group", crypto.Fingerprint(welcome.GroupID.Slice()),
		"epoch", welcome.Epoch)
	m.notify(domain.GroupUpdate{GroupID: welcome.GroupID, Epoch: welcome.Epoch, Kind: domain.UpdateJoined})
	return nil
}

// Commit applies a proposal batch to the local group, advancing it one epoch.
// It returns the Commit to broadcast plus one Welcome per added member. The
// session state is replaced atomically and the previous epoch's secrets are
// wiped before the call returns.
//
// A Remove targeting the local leaf is rejected; LeaveGroup is the sanctioned
// path out.
func (m *Manager) Commit(ctx context.Context, groupID domain.GroupID, proposals []domain.Proposal) (domain.Commit, []domain.Welcome, error) {
	s, err := m.session(groupID)
	if err != nil {
		return domain.Commit{}, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.st
	if st.terminal {
		return domain.Commit{}, nil, fmt.Errorf("%w: session closed", domain.ErrState)
	}
	for _, p := range proposals {
		if p.Type == domain.ProposalRemove && p.Removed == st.myLeaf {
			return domain.Commit{}, nil, fmt.Errorf("%w: cannot commit own removal, use LeaveGroup", domain.ErrState)
		}
	}

	nextTree, added, err := applyProposals(st.tree, proposals, m.now(), false)
	if err != nil {
		return domain.Commit{}, nil, err
	}
	if nextTree.ActiveCount() > m.maxSize {
		return domain.Commit{}, nil, fmt.Errorf("%w: %d members exceeds maximum %d", domain.ErrCapacity, nextTree.ActiveCount(), m.maxSize)
	}

	nextEpoch := st.epoch + 1
	nextSecret := schedule.NextEpochSecret(st.epochSecret, wire.CommitContext(proposals))
	nextSecrets := schedule.Derive(nextSecret, groupID, nextEpoch)

	welcomes := make([]domain.Welcome, 0, len(added))
	for _, a := range added {
		sealed, err := crypto.SealBox(a.kp.InitKey, nextSecret)
		if err != nil {
			nextSecrets.Wipe()
			memzero.Zero(nextSecret)
			return domain.Commit{}, nil, fmt.Errorf("seal welcome: %w", err)
		}
		welcomes = append(welcomes, domain.Welcome{
			GroupID:         groupID,
			Epoch:           nextEpoch,
			LeafIndex:       a.leaf,
			TreeSize:        uint32(nextTree.Size()),
			RecipientHash:   keypackage.Hash(a.kp),
			SealedSecret:    sealed,
			ConfirmationTag: nextSecrets.ConfirmationTag,
		})
	}

	commit := domain.Commit{
		GroupID:         groupID,
		Epoch:           nextEpoch,
		Proposals:       proposals,
		Committer:       st.myLeaf,
		ConfirmationTag: nextSecrets.ConfirmationTag,
	}

	next := &state{
		groupID:     groupID,
		epoch:       nextEpoch,
		tree:        nextTree,
		epochSecret: nextSecret,
		secrets:     nextSecrets,
		myLeaf:      st.myLeaf,
		ownKP:       st.ownKP,
		ownHash:     st.ownHash,
	}
	s.st = next
	memzero.Zero(st.epochSecret)
	st.secrets.Wipe()

	m.log.DebugContext(ctx, "committed",
		"group", crypto.Fingerprint(groupID.Slice()),
		"epoch", nextEpoch,
		"proposals", len(proposals))
	m.notify(domain.GroupUpdate{GroupID: groupID, Epoch: nextEpoch, Kind: domain.UpdateCommitted, Members: nextTree.ActiveCount()})
	return commit, welcomes, nil
}

// ProcessCommit applies another member's Commit. The Commit must target
// exactly the next epoch; gaps and replays are rejected. The locally derived
// confirmation tag must match the one the committer published, proving both
// sides applied the identical proposal batch.
//
// If the local leaf is absent from the resulting tree, the session is torn
// down and ErrRemoved is returned; this is terminal and not retryable.
func (m *Manager) ProcessCommit(ctx context.Context, commit domain.Commit) error {
	s, err := m.session(commit.GroupID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	st := s.st
	if st.terminal {
		s.mu.Unlock()
		return fmt.Errorf("%w: session closed", domain.ErrState)
	}
	if commit.Epoch != st.epoch+1 {
		s.mu.Unlock()
		return fmt.Errorf("%w: commit epoch %d, expected %d", domain.ErrState, commit.Epoch, st.epoch+1)
	}

	nextTree, _, err := applyProposals(st.tree, commit.Proposals, m.now(), true)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if nextTree.ActiveCount() > m.maxSize {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d members exceeds maximum %d", domain.ErrCapacity, nextTree.ActiveCount(), m.maxSize)
	}

	nextSecret := schedule.NextEpochSecret(st.epochSecret, wire.CommitContext(commit.Proposals))
	nextSecrets := schedule.Derive(nextSecret, commit.GroupID, commit.Epoch)
	if subtle.ConstantTimeCompare(nextSecrets.ConfirmationTag, commit.ConfirmationTag) != 1 {
		nextSecrets.Wipe()
		memzero.Zero(nextSecret)
		s.mu.Unlock()
		return fmt.Errorf("%w: confirmation tag mismatch at epoch %d", domain.ErrSecurity, commit.Epoch)
	}

	next := &state{
		groupID:     commit.GroupID,
		epoch:       commit.Epoch,
		tree:        nextTree,
		epochSecret: nextSecret,
		secrets:     nextSecrets,
		myLeaf:      st.myLeaf,
		ownKP:       st.ownKP,
		ownHash:     st.ownHash,
	}

	if _, ok := nextTree.Leaf(next.myLeaf); !ok {
		// We were removed. Tear everything down before reporting.
		next.wipe()
		st.wipe()
		st.terminal = true
		s.mu.Unlock()
		m.drop(commit.GroupID, s)
		m.log.InfoContext(ctx, "removed from group",
			"group", crypto.Fingerprint(commit.GroupID.Slice()),
			"epoch", commit.Epoch)
		m.notify(domain.GroupUpdate{GroupID: commit.GroupID, Epoch: commit.Epoch, Kind: domain.UpdateRemoved})
		return domain.ErrRemoved
	}

	s.st = next
	memzero.Zero(st.epochSecret)
	st.secrets.Wipe()
	s.mu.Unlock()

	m.log.DebugContext(ctx, "processed commit",
		"group", crypto.Fingerprint(commit.GroupID.Slice()),
		"epoch", commit.Epoch,
		"proposals", len(commit.Proposals))
	m.notify(domain.GroupUpdate{GroupID: commit.GroupID, Epoch: commit.Epoch, Kind: domain.UpdateCommitted, Members: nextTree.ActiveCount()})
	return nil
}

// LeaveGroup produces a self-Remove proposal for the caller to broadcast and
// immediately clears local state. The exit is optimistic: removal becomes
// authoritative only once the remaining members commit the proposal.
func (m *Manager) LeaveGroup(ctx context.Context, groupID domain.GroupID) (domain.Proposal, error) {
	s, err := m.session(groupID)
	if err != nil {
		return domain.Proposal{}, err
	}

	s.mu.Lock()
	st := s.st
	if st.terminal {
		s.mu.Unlock()
		return domain.Proposal{}, fmt.Errorf("%w: session closed", domain.ErrState)
	}
	proposal := domain.Proposal{
		Type:    domain.ProposalRemove,
		Sender:  st.myLeaf,
		Removed: st.myLeaf,
	}
	epoch := st.epoch
	st.wipe()
	st.terminal = true
	s.mu.Unlock()
	m.drop(groupID, s)

	m.log.DebugContext(ctx, "left group", "group", crypto.Fingerprint(groupID.Slice()))
	m.notify(domain.GroupUpdate{GroupID: groupID, Epoch: epoch, Kind: domain.UpdateLeft})
	return proposal, nil
}

// session looks up a live session by group id.
func (m *Manager) session(groupID domain.GroupID) (*session, error) {
	m.mu.RLock()
	s, ok := m.sessions[groupID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: not a member of this group", domain.ErrState)
	}
	return s, nil
}

// drop removes a torn-down session from the map if it is still the one
// registered under the id.
func (m *Manager) drop(groupID domain.GroupID, s *session) {
	m.mu.Lock()
	if m.sessions[groupID] == s {
		delete(m.sessions, groupID)
	}
	m.mu.Unlock()
}

func (m *Manager) notify(u domain.GroupUpdate) {
	if m.notifier != nil {
		m.notifier.GroupChanged(u)
	}
}

// Compile-time assertion that Manager implements domain.GroupService.
var _ domain.GroupService = (*Manager)(nil)
