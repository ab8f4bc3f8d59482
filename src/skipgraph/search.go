package skipgraph

import (
	"strconv"

	cm "github.com/mosaicnetworks/skipgraph/src/common"
)

// SearchByNumID returns the identity whose NumID is target. The search starts
// at the lowest identity of the population.
func (e *Engine) SearchByNumID(target int64) (Identity, error) {
	e.RLock()
	defer e.RUnlock()

	if len(e.nodes) == 0 {
		return Identity{}, cm.NewErr("Engine", cm.NotFound, strconv.FormatInt(target, 10))
	}

	return e.searchByNumID(e.nodes[0], target)
}

// SearchByNumIDFrom is SearchByNumID with an explicit entry node.
func (e *Engine) SearchByNumIDFrom(start int64, target int64) (Identity, error) {
	e.RLock()
	defer e.RUnlock()

	pos, ok := e.index[start]
	if !ok {
		return Identity{}, cm.NewErr("Engine", cm.NotFound, strconv.FormatInt(start, 10))
	}

	return e.searchByNumID(e.nodes[pos], target)
}

func (e *Engine) searchByNumID(start Identity, target int64) (Identity, error) {
	cur := start
	level := e.topLevel(cur.NumID)

	for level >= 0 {
		if cur.NumID == target {
			return cur, nil
		}

		t := e.tables[cur.NumID]

		if target > cur.NumID {
			if next := t.right[level]; next != nil && next.NumID <= target {
				cur = e.nodes[e.index[next.NumID]]
				continue
			}
		} else {
			if next := t.left[level]; next != nil && next.NumID >= target {
				cur = e.nodes[e.index[next.NumID]]
				continue
			}
		}

		level--
	}

	if cur.NumID == target {
		return cur, nil
	}

	return Identity{}, cm.NewErr("Engine", cm.NotFound, strconv.FormatInt(target, 10))
}

// topLevel is the highest level at which numID has a neighbor, 0 if it has
// none.
func (e *Engine) topLevel(numID int64) int {
	t := e.tables[numID]
	for l := e.levels; l > 0; l-- {
		if t.left[l] != nil || t.right[l] != nil {
			return l
		}
	}
	return 0
}

// SearchByNameID returns the identity with the longest prefix in common with
// target. Ties go to the lowest NumID.
func (e *Engine) SearchByNameID(target string) (Identity, error) {
	e.RLock()
	defer e.RUnlock()

	if len(e.nodes) == 0 {
		return Identity{}, cm.NewErr("Engine", cm.NotFound, target)
	}

	res, _ := e.searchByNameID(target)
	return res, nil
}

// searchByNameID keeps cur as the lowest identity sharing best bits with
// target. Every identity sharing more bits sits to the right of cur in its
// level-best list, so the first one met along that list becomes the new cur.
func (e *Engine) searchByNameID(target string) (Identity, int) {
	cur := e.nodes[0]
	best := CommonBits(cur.NameID, target)

	for best < len(target) && best <= e.levels {
		improved := false
		for next := e.tables[cur.NumID].right[best]; next != nil; next = e.tables[next.NumID].right[best] {
			if cb := CommonBits(next.NameID, target); cb > best {
				cur = e.nodes[e.index[next.NumID]]
				best = cb
				improved = true
				break
			}
		}
		if !improved {
			break
		}
	}

	return cur, best
}

// GetNodesWithNameID returns every identity whose NameID is exactly name, in
// ascending NumID order.
func (e *Engine) GetNodesWithNameID(name string) []Identity {
	e.RLock()
	defer e.RUnlock()

	res := []Identity{}

	if len(e.nodes) == 0 || len(name) > e.levels {
		return res
	}

	first, best := e.searchByNameID(name)
	if best < len(name) {
		return res
	}

	level := len(name)
	for cur := &first; cur != nil; cur = e.tables[cur.NumID].right[level] {
		if cur.NameID == name {
			res = append(res, e.nodes[e.index[cur.NumID]])
		}
	}

	return res
}
