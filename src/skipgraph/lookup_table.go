package skipgraph

import (
	"strconv"

	cm "github.com/mosaicnetworks/skipgraph/src/common"
)

// LookupTable holds the left and right neighbors of one node at every level
// from 0 to L. Neighbors are copies of the other nodes' identities.
type LookupTable struct {
	left  []*Identity
	right []*Identity
}

// NewLookupTable creates an empty table with levels+1 levels.
func NewLookupTable(levels int) *LookupTable {
	if levels < 0 {
		levels = 0
	}
	return &LookupTable{
		left:  make([]*Identity, levels+1),
		right: make([]*Identity, levels+1),
	}
}

// Levels returns L, the highest valid level.
func (t *LookupTable) Levels() int {
	return len(t.left) - 1
}

// Left returns the left neighbor at level, or nil if there is none.
func (t *LookupTable) Left(level int) (*Identity, error) {
	if err := t.checkLevel(level); err != nil {
		return nil, err
	}
	return t.left[level], nil
}

// Right returns the right neighbor at level, or nil if there is none.
func (t *LookupTable) Right(level int) (*Identity, error) {
	if err := t.checkLevel(level); err != nil {
		return nil, err
	}
	return t.right[level], nil
}

// SetLeft overwrites the left neighbor at level. A nil id clears it.
func (t *LookupTable) SetLeft(level int, id *Identity) error {
	if err := t.checkLevel(level); err != nil {
		return err
	}
	t.left[level] = copyIdentity(id)
	return nil
}

// SetRight overwrites the right neighbor at level. A nil id clears it.
func (t *LookupTable) SetRight(level int, id *Identity) error {
	if err := t.checkLevel(level); err != nil {
		return err
	}
	t.right[level] = copyIdentity(id)
	return nil
}

// Copy returns a deep copy of the table.
func (t *LookupTable) Copy() *LookupTable {
	c := NewLookupTable(t.Levels())
	for l := range t.left {
		c.left[l] = copyIdentity(t.left[l])
		c.right[l] = copyIdentity(t.right[l])
	}
	return c
}

// References reports whether numID appears anywhere in the table.
func (t *LookupTable) References(numID int64) bool {
	for l := range t.left {
		if t.left[l] != nil && t.left[l].NumID == numID {
			return true
		}
		if t.right[l] != nil && t.right[l].NumID == numID {
			return true
		}
	}
	return false
}

// Entries exposes the table as two slices indexed by level, for encoding.
func (t *LookupTable) Entries() (left []*Identity, right []*Identity) {
	c := t.Copy()
	return c.left, c.right
}

// LookupTableFromEntries is the reverse of Entries. The slices must have the
// same length.
func LookupTableFromEntries(left, right []*Identity) *LookupTable {
	if len(left) == 0 {
		return NewLookupTable(0)
	}
	t := NewLookupTable(len(left) - 1)
	for l := range t.left {
		t.left[l] = copyIdentity(left[l])
		if l < len(right) {
			t.right[l] = copyIdentity(right[l])
		}
	}
	return t
}

func (t *LookupTable) checkLevel(level int) error {
	if level < 0 || level >= len(t.left) {
		return cm.NewErr("LookupTable", cm.OutOfRange, strconv.Itoa(level))
	}
	return nil
}

func copyIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
