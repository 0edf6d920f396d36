package group

import (
	"fmt"
	"sync"
	"time"

	"meshvox/internal/domain"
	"meshvox/internal/protocol/keypackage"
	"meshvox/internal/protocol/schedule"
	"meshvox/internal/protocol/tree"
	"meshvox/internal/util/memzero"
)

// session wraps one group's state behind its own lock. The state pointer is
// swapped wholesale on epoch transitions, so a lock holder always sees one
// epoch in full.
type session struct {
	mu sync.Mutex
	st *state
}

// state is the per-epoch session record. Only the message generation counter
// is mutated after publication, and only by the session lock holder.
type state struct {
	groupID     domain.GroupID
	epoch       int64
	tree        *tree.Tree
	epochSecret []byte
	secrets     schedule.EpochSecrets

	myLeaf  uint32
	ownKP   domain.KeyPackage
	ownHash []byte

	generation uint64
	terminal   bool
}

// wipe zeroes all secret material held by the state.
func (st *state) wipe() {
	memzero.Zero(st.epochSecret)
	st.secrets.Wipe()
	memzero.Zero(st.ownKP.InitPriv[:])
}

type addedMember struct {
	kp   domain.KeyPackage
	leaf uint32
}

// applyProposals clones the base tree and applies the batch in input order,
// returning the new tree plus the KeyPackages of added members paired with
// their assigned leaves. now is used for KeyPackage validation.
//
// In lenient mode a Remove of an index the local view has never seen is
// tombstoned rather than rejected; members bootstrapped from a Welcome hold
// only a partial view of the tree and must still track the committed shape.
func applyProposals(base *tree.Tree, proposals []domain.Proposal, now time.Time, lenient bool) (*tree.Tree, []addedMember, error) {
	next := base.Clone()
	var added []addedMember

	for _, p := range proposals {
		switch p.Type {
		case domain.ProposalAdd:
			if p.KeyPackage == nil {
				return nil, nil, fmt.Errorf("%w: add proposal without key package", domain.ErrValidation)
			}
			if err := keypackage.Validate(*p.KeyPackage, now); err != nil {
				return nil, nil, err
			}
			idx := next.AddLeaf(p.KeyPackage.InitKey, p.KeyPackage.Credential)
			added = append(added, addedMember{kp: *p.KeyPackage, leaf: idx})

		case domain.ProposalRemove:
			if lenient {
				next.Tombstone(p.Removed)
				break
			}
			if err := next.RemoveLeaf(p.Removed); err != nil {
				return nil, nil, err
			}

		case domain.ProposalUpdate:
			if p.KeyPackage == nil {
				return nil, nil, fmt.Errorf("%w: update proposal without key package", domain.ErrValidation)
			}
			if err := keypackage.Validate(*p.KeyPackage, now); err != nil {
				return nil, nil, err
			}
			if lenient {
				next.PlaceLeaf(p.Sender, p.KeyPackage.InitKey, p.KeyPackage.Credential)
				break
			}
			if err := next.UpdateLeaf(p.Sender, p.KeyPackage.InitKey, p.KeyPackage.Credential); err != nil {
				return nil, nil, err
			}

		default:
			return nil, nil, fmt.Errorf("%w: unknown proposal type %d", domain.ErrValidation, p.Type)
		}
	}
	return next, added, nil
}
