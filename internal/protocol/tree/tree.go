// Package tree implements the simplified ratchet tree: a flat, ordered list
// of optional member leaves addressed by stable integer index.
//
// Removal tombstones a slot rather than compacting, so indices assigned to
// other members never change. Epoch transitions mutate a Clone, never the
// live tree, until the Commit is accepted.
package tree

import (
	"fmt"

	"meshvox/internal/domain"
)

// Leaf is one occupied tree position.
type Leaf struct {
	Index      uint32              `json:"index"`
	InitKey    domain.X25519Public `json:"init_key"`
	Credential domain.Credential   `json:"credential"`
}

// Tree is the membership snapshot for one epoch. Nil entries are tombstones.
type Tree struct {
	leaves []*Leaf
}

// New returns an empty tree.
func New() *Tree { return &Tree{} }

// AddLeaf appends a member and returns the assigned index (the prior length,
// tombstones included).
func (t *Tree) AddLeaf(initKey domain.X25519Public, cred domain.Credential) uint32 {
	idx := uint32(len(t.leaves))
	t.leaves = append(t.leaves, &Leaf{Index: idx, InitKey: initKey, Credential: cred})
	return idx
}

// RemoveLeaf tombstones the slot at index. Indices of other members are never
// renumbered.
func (t *Tree) RemoveLeaf(index uint32) error {
	if int(index) >= len(t.leaves) || t.leaves[index] == nil {
		return fmt.Errorf("%w: no leaf at index %d", domain.ErrState, index)
	}
	t.leaves[index] = nil
	return nil
}

// PlaceLeaf sets a member at a specific index, growing the tree with
// tombstones as needed. Used when bootstrapping a partial view from a
// Welcome, where the joiner knows its assigned index but not the full
// membership.
func (t *Tree) PlaceLeaf(index uint32, initKey domain.X25519Public, cred domain.Credential) {
	for uint32(len(t.leaves)) <= index {
		t.leaves = append(t.leaves, nil)
	}
	t.leaves[index] = &Leaf{Index: index, InitKey: initKey, Credential: cred}
}

// Grow pads the tree with tombstones up to size slots. It never shrinks.
// A Welcome recipient grows to the committed tree size so that indices it
// assigns to later Adds line up with everyone else's.
func (t *Tree) Grow(size uint32) {
	for uint32(len(t.leaves)) < size {
		t.leaves = append(t.leaves, nil)
	}
}

// Tombstone nils the slot at index, growing the tree as needed. Unlike
// RemoveLeaf it tolerates indices the local view has never seen, which a
// member holding a partial Welcome-bootstrapped view routinely encounters.
func (t *Tree) Tombstone(index uint32) {
	for uint32(len(t.leaves)) <= index {
		t.leaves = append(t.leaves, nil)
	}
	t.leaves[index] = nil
}

// UpdateLeaf replaces the member material at index in place.
func (t *Tree) UpdateLeaf(index uint32, initKey domain.X25519Public, cred domain.Credential) error {
	if int(index) >= len(t.leaves) || t.leaves[index] == nil {
		return fmt.Errorf("%w: no leaf at index %d", domain.ErrState, index)
	}
	t.leaves[index] = &Leaf{Index: index, InitKey: initKey, Credential: cred}
	return nil
}

// Leaf returns the leaf at index, or false if the slot is out of range or
// tombstoned.
func (t *Tree) Leaf(index uint32) (Leaf, bool) {
	if int(index) >= len(t.leaves) || t.leaves[index] == nil {
		return Leaf{}, false
	}
	return *t.leaves[index], true
}

// Size returns the number of slots, tombstones included.
func (t *Tree) Size() int { return len(t.leaves) }

// ActiveCount returns the number of occupied leaves.
func (t *Tree) ActiveCount() int {
	n := 0
	for _, l := range t.leaves {
		if l != nil {
			n++
		}
	}
	return n
}

// Clone returns a structurally independent copy for use as the basis of a new
// epoch's tree. Mutating the clone never affects the original.
func (t *Tree) Clone() *Tree {
	out := &Tree{leaves: make([]*Leaf, len(t.leaves))}
	for i, l := range t.leaves {
		if l == nil {
			continue
		}
		cp := *l
		out.leaves[i] = &cp
	}
	return out
}
