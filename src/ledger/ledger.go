// Package ledger is a hash-chained log of blocks indexed by a skip graph.
//
// Each appended block becomes an identity of the graph, keyed by its index and
// named after the hash of its predecessor. The predecessor of a new block is
// the latest insertion of the graph. Pruning a block removes it from the graph
// only; the chain of hashes is unaffected.
package ledger

import (
	"strconv"
	"sync"

	cm "github.com/mosaicnetworks/skipgraph/src/common"
	"github.com/mosaicnetworks/skipgraph/src/skipgraph"
	"github.com/sirupsen/logrus"
)

// GenesisHash is the PrevHash of the first block.
var GenesisHash = make([]byte, 32)

// Ledger appends blocks to a skip graph engine.
type Ledger struct {
	sync.Mutex

	graph  *skipgraph.Engine
	owner  skipgraph.Identity
	blocks map[int64]*Block
	logger *logrus.Entry
}

// NewLedger ...
func NewLedger(graph *skipgraph.Engine, owner skipgraph.Identity, logger *logrus.Entry) *Ledger {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &Ledger{
		graph:  graph,
		owner:  owner,
		blocks: make(map[int64]*Block),
		logger: logger,
	}
}

// Append creates the block following the latest insertion of the graph and
// inserts it.
func (l *Ledger) Append(payload []byte) (*Block, error) {
	l.Lock()
	defer l.Unlock()

	index := int64(0)
	prevHash := GenesisHash

	if latest, ok := l.graph.LatestInsertion(); ok {
		prev, err := l.predecessor(latest)
		if err != nil {
			return nil, err
		}
		hash, err := prev.Hash()
		if err != nil {
			return nil, err
		}
		index = prev.Index + 1
		prevHash = hash
	}

	block := NewBlock(index, prevHash, l.owner, payload)

	if err := l.graph.Insert(block.Identity(l.graph.Levels())); err != nil {
		return nil, err
	}
	l.blocks[index] = block

	l.logger.WithFields(logrus.Fields{
		"index":     index,
		"prev_hash": cm.EncodeToString(prevHash),
	}).Debug("Appended block")

	return block, nil
}

// predecessor resolves the block behind the latest insertion of the graph. A
// pruned tip is no longer in the graph but the chain still continues from it;
// any other identity found at that index is not one of ours.
func (l *Ledger) predecessor(latest skipgraph.Identity) (*Block, error) {
	key := strconv.FormatInt(latest.NumID, 10)

	id, err := l.graph.SearchByNumID(latest.NumID)
	if err != nil && !cm.Is(err, cm.NotFound) {
		return nil, err
	}

	prev, ok := l.blocks[latest.NumID]
	if !ok {
		return nil, cm.NewErr("Ledger", cm.NotFound, key)
	}

	if err == nil && id != prev.Identity(l.graph.Levels()) {
		l.logger.WithField("identity", id).Error("Foreign identity at the head of the ledger")
		return nil, cm.NewErr("Ledger", cm.NotFound, key)
	}

	return prev, nil
}

// Prune removes a block from the graph.
func (l *Ledger) Prune(index int64) error {
	l.Lock()
	defer l.Unlock()

	return l.graph.Delete(index)
}

// Block returns a block that is still in the graph.
func (l *Ledger) Block(index int64) (*Block, error) {
	l.Lock()
	defer l.Unlock()

	if _, err := l.graph.SearchByNumID(index); err != nil {
		return nil, err
	}
	block, ok := l.blocks[index]
	if !ok {
		return nil, cm.NewErr("Ledger", cm.NotFound, strconv.FormatInt(index, 10))
	}
	return block, nil
}

// Successors returns the live blocks whose predecessor hash starts with the
// same bits as the hash of block index.
func (l *Ledger) Successors(index int64) ([]*Block, error) {
	l.Lock()
	defer l.Unlock()

	block, ok := l.blocks[index]
	if !ok {
		return nil, cm.NewErr("Ledger", cm.NotFound, strconv.FormatInt(index, 10))
	}
	hash, err := block.Hash()
	if err != nil {
		return nil, err
	}

	name := skipgraph.NameIDFromBytes(hash, l.graph.Levels())
	res := []*Block{}
	for _, id := range l.graph.GetNodesWithNameID(name) {
		if b, ok := l.blocks[id.NumID]; ok {
			res = append(res, b)
		}
	}
	return res, nil
}
