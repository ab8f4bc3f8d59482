// Package localnet contains a deliberately naive, in-memory skip graph. It
// implements skipgraph.Graph with linear scans and computes lookup tables
// straight from their definition, so that the efficient engine can be checked
// against it. It is not meant to serve traffic.
package localnet

import (
	"strconv"

	cm "github.com/mosaicnetworks/skipgraph/src/common"
	"github.com/mosaicnetworks/skipgraph/src/skipgraph"
	"github.com/sirupsen/logrus"
)

// LocalGraph is a brute-force skip graph.
type LocalGraph struct {
	nodes  []skipgraph.Identity
	levels int
	latest *skipgraph.Identity
	logger *logrus.Entry
}

// NewLocalGraph creates a LocalGraph with an initial population.
func NewLocalGraph(nodes []skipgraph.Identity, levels int, logger *logrus.Entry) *LocalGraph {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	g := &LocalGraph{
		levels: levels,
		logger: logger.WithField("graph", "local"),
	}
	for _, n := range nodes {
		g.nodes = append(g.nodes, n)
	}
	g.sort()
	return g
}

// insertion sort, on purpose
func (g *LocalGraph) sort() {
	for i := 1; i < len(g.nodes); i++ {
		for j := i; j > 0 && g.nodes[j].NumID < g.nodes[j-1].NumID; j-- {
			g.nodes[j], g.nodes[j-1] = g.nodes[j-1], g.nodes[j]
		}
	}
}

// Insert implements skipgraph.Graph.
func (g *LocalGraph) Insert(id skipgraph.Identity) error {
	g.logger.WithFields(logrus.Fields{
		"num_id":  id.NumID,
		"name_id": id.NameID,
	}).Debug("Inserting node")

	if err := skipgraph.ValidateNameID(id.NameID, g.levels); err != nil {
		return err
	}
	for _, n := range g.nodes {
		if n.NumID == id.NumID {
			return cm.NewErr("LocalGraph", cm.DuplicateID, strconv.FormatInt(id.NumID, 10))
		}
	}

	g.nodes = append(g.nodes, id)
	g.sort()
	g.latest = &id
	return nil
}

// Delete implements skipgraph.Graph.
func (g *LocalGraph) Delete(numID int64) error {
	g.logger.WithField("num_id", numID).Debug("Deleting node")

	index := -1
	for i, n := range g.nodes {
		if n.NumID == numID {
			index = i
			break
		}
	}

	if index == -1 {
		g.logger.WithField("num_id", numID).Error("Deleting a non-existing node")
		return cm.NewErr("LocalGraph", cm.NotFound, strconv.FormatInt(numID, 10))
	}

	g.nodes = append(g.nodes[:index], g.nodes[index+1:]...)
	return nil
}

// SearchByNumID implements skipgraph.Graph.
func (g *LocalGraph) SearchByNumID(target int64) (skipgraph.Identity, error) {
	for _, n := range g.nodes {
		if n.NumID == target {
			return n, nil
		}
	}
	return skipgraph.Identity{}, cm.NewErr("LocalGraph", cm.NotFound, strconv.FormatInt(target, 10))
}

// SearchByNameID implements skipgraph.Graph.
func (g *LocalGraph) SearchByNameID(target string) (skipgraph.Identity, error) {
	if len(g.nodes) == 0 {
		return skipgraph.Identity{}, cm.NewErr("LocalGraph", cm.NotFound, target)
	}

	index := 0
	best := -1
	for i, n := range g.nodes {
		if cb := skipgraph.CommonBits(n.NameID, target); cb > best {
			best = cb
			index = i
		}
	}
	return g.nodes[index], nil
}

// GetNodesWithNameID implements skipgraph.Graph.
func (g *LocalGraph) GetNodesWithNameID(name string) []skipgraph.Identity {
	res := []skipgraph.Identity{}
	for _, n := range g.nodes {
		if n.NameID == name {
			res = append(res, n)
		}
	}
	return res
}

// LatestInsertion implements skipgraph.Graph.
func (g *LocalGraph) LatestInsertion() (skipgraph.Identity, bool) {
	if g.latest == nil {
		return skipgraph.Identity{}, false
	}
	return *g.latest, true
}

// Size implements skipgraph.Graph.
func (g *LocalGraph) Size() int {
	return len(g.nodes)
}

// Tables computes every lookup table from the definition: the neighbor of
// node i at level k, on either side, is the closest node sharing at least k
// bits with it. Each side and each level is scanned independently.
func (g *LocalGraph) Tables() map[int64]*skipgraph.LookupTable {
	tables := make(map[int64]*skipgraph.LookupTable, len(g.nodes))
	for i := range g.nodes {
		t := skipgraph.NewLookupTable(g.levels)
		for level := 0; level <= g.levels; level++ {
			for j := i + 1; j < len(g.nodes); j++ {
				if skipgraph.CommonBits(g.nodes[i].NameID, g.nodes[j].NameID) >= level {
					right := g.nodes[j]
					t.SetRight(level, &right)
					break
				}
			}
			for j := i - 1; j >= 0; j-- {
				if skipgraph.CommonBits(g.nodes[i].NameID, g.nodes[j].NameID) >= level {
					left := g.nodes[j]
					t.SetLeft(level, &left)
					break
				}
			}
		}
		tables[g.nodes[i].NumID] = t
	}
	return tables
}
