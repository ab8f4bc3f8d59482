package skipgraph

import (
	"fmt"
	"sort"
)

// CheckInvariants verifies a set of tables against the population they were
// built from: neighbor symmetry, prefix monotonicity, numeric order at level
// 0, and the absence of references to identities outside the population.
func CheckInvariants(ids []Identity, tables map[int64]*LookupTable) error {
	if len(ids) != len(tables) {
		return fmt.Errorf("%d identities but %d tables", len(ids), len(tables))
	}

	sorted := make([]Identity, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].NumID < sorted[j].NumID })

	live := make(map[int64]Identity, len(sorted))
	for _, id := range sorted {
		live[id.NumID] = id
	}

	for i, id := range sorted {
		t, ok := tables[id.NumID]
		if !ok {
			return fmt.Errorf("no table for %d", id.NumID)
		}

		for level := 0; level <= t.Levels(); level++ {
			right, _ := t.Right(level)
			left, _ := t.Left(level)

			if right != nil {
				other, ok := live[right.NumID]
				if !ok {
					return fmt.Errorf("%d references %d at level %d, which is not live", id.NumID, right.NumID, level)
				}
				if right.NumID <= id.NumID {
					return fmt.Errorf("%d has right neighbor %d at level %d, out of order", id.NumID, right.NumID, level)
				}
				back, _ := tables[right.NumID].Left(level)
				if back == nil || back.NumID != id.NumID {
					return fmt.Errorf("%d.right(%d) = %d but its left is %v", id.NumID, level, right.NumID, back)
				}
				if cb := CommonBits(id.NameID, other.NameID); cb < level {
					return fmt.Errorf("%d and %d share %d bits but are linked at level %d", id.NumID, other.NumID, cb, level)
				}
			}

			if left != nil {
				if _, ok := live[left.NumID]; !ok {
					return fmt.Errorf("%d references %d at level %d, which is not live", id.NumID, left.NumID, level)
				}
				fwd, _ := tables[left.NumID].Right(level)
				if fwd == nil || fwd.NumID != id.NumID {
					return fmt.Errorf("%d.left(%d) = %d but its right is %v", id.NumID, level, left.NumID, fwd)
				}
			}
		}

		right0, _ := t.Right(0)
		if i+1 < len(sorted) {
			if right0 == nil || right0.NumID != sorted[i+1].NumID {
				return fmt.Errorf("%d should be followed by %d at level 0", id.NumID, sorted[i+1].NumID)
			}
		} else if right0 != nil {
			return fmt.Errorf("last identity %d has a right neighbor", id.NumID)
		}
	}

	return nil
}
