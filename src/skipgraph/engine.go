package skipgraph

import (
	"sort"
	"strconv"
	"sync"

	cm "github.com/mosaicnetworks/skipgraph/src/common"
	"github.com/sirupsen/logrus"
)

// Graph is the set of operations a skip graph offers over its population. It
// is implemented by Engine and by the brute-force reference in the localnet
// package.
type Graph interface {
	Insert(id Identity) error
	Delete(numID int64) error
	SearchByNumID(target int64) (Identity, error)
	SearchByNameID(target string) (Identity, error)
	GetNodesWithNameID(name string) []Identity
	LatestInsertion() (Identity, bool)
	Size() int
}

// Engine owns a population of identities and the lookup table of each of
// them. All methods are safe for concurrent use; mutations and reads are
// serialized by a single lock.
type Engine struct {
	sync.RWMutex

	levels int
	nodes  []Identity     //sorted by NumID
	index  map[int64]int  //NumID => position in nodes
	tables map[int64]*LookupTable
	latest *Identity

	store  Store
	logger *logrus.Entry
}

// NewEngine creates an Engine with tables of levels+1 levels. The population
// is bootstrapped from the store, which may be empty. A nil store defaults to
// an InmemStore.
func NewEngine(levels int, store Store, logger *logrus.Entry) (*Engine, error) {
	if levels < 0 {
		return nil, cm.NewErr("Engine", cm.OutOfRange, strconv.Itoa(levels))
	}

	if store == nil {
		store = NewInmemStore()
	}

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	e := &Engine{
		levels: levels,
		store:  store,
		logger: logger,
	}

	if err := e.bootstrap(); err != nil {
		return nil, err
	}

	return e, nil
}

func (e *Engine) bootstrap() error {
	ids, err := e.store.Identities()
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := ValidateNameID(id.NameID, e.levels); err != nil {
			return err
		}
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i].NumID < ids[j].NumID })
	e.nodes = ids

	latest, ok, err := e.store.Latest()
	if err != nil {
		return err
	}
	if ok {
		e.latest = &latest
	}

	e.rebuild()

	if len(ids) > 0 {
		e.logger.WithField("size", len(ids)).Debug("Bootstrapped population from store")
	}

	return nil
}

// Levels returns L.
func (e *Engine) Levels() int {
	return e.levels
}

// Store returns the backing store.
func (e *Engine) Store() Store {
	return e.store
}

// Insert adds an identity to the population, records it as the latest
// insertion and rebuilds the tables.
func (e *Engine) Insert(id Identity) error {
	if err := ValidateNameID(id.NameID, e.levels); err != nil {
		return err
	}

	e.Lock()
	defer e.Unlock()

	if _, ok := e.index[id.NumID]; ok {
		return cm.NewErr("Engine", cm.DuplicateID, strconv.FormatInt(id.NumID, 10))
	}

	if err := e.store.SetIdentity(id); err != nil {
		return err
	}
	if err := e.store.SetLatest(id); err != nil {
		return err
	}

	pos := sort.Search(len(e.nodes), func(i int) bool { return e.nodes[i].NumID > id.NumID })
	e.nodes = append(e.nodes, Identity{})
	copy(e.nodes[pos+1:], e.nodes[pos:])
	e.nodes[pos] = id

	latest := id
	e.latest = &latest

	e.rebuild()

	e.logger.WithFields(logrus.Fields{
		"num_id":  id.NumID,
		"name_id": id.NameID,
		"size":    len(e.nodes),
	}).Debug("Inserted identity")

	return nil
}

// Delete removes an identity from the population and rebuilds the tables.
// The latest-insertion marker is left untouched.
func (e *Engine) Delete(numID int64) error {
	e.Lock()
	defer e.Unlock()

	pos, ok := e.index[numID]
	if !ok {
		e.logger.WithField("num_id", numID).Debug("Deleting unknown identity")
		return cm.NewErr("Engine", cm.NotFound, strconv.FormatInt(numID, 10))
	}

	if err := e.store.DeleteIdentity(numID); err != nil {
		return err
	}

	e.nodes = append(e.nodes[:pos], e.nodes[pos+1:]...)

	e.rebuild()

	e.logger.WithFields(logrus.Fields{
		"num_id": numID,
		"size":   len(e.nodes),
	}).Debug("Deleted identity")

	return nil
}

// LatestInsertion returns the most recently inserted identity.
func (e *Engine) LatestInsertion() (Identity, bool) {
	e.RLock()
	defer e.RUnlock()
	if e.latest == nil {
		return Identity{}, false
	}
	return *e.latest, true
}

// Size returns the number of identities in the population.
func (e *Engine) Size() int {
	e.RLock()
	defer e.RUnlock()
	return len(e.nodes)
}

// Identities returns the population in ascending NumID order.
func (e *Engine) Identities() []Identity {
	e.RLock()
	defer e.RUnlock()
	res := make([]Identity, len(e.nodes))
	copy(res, e.nodes)
	return res
}

// Table returns a copy of the lookup table of numID.
func (e *Engine) Table(numID int64) (*LookupTable, error) {
	e.RLock()
	defer e.RUnlock()
	t, ok := e.tables[numID]
	if !ok {
		return nil, cm.NewErr("Engine", cm.NotFound, strconv.FormatInt(numID, 10))
	}
	return t.Copy(), nil
}

// Tables returns a copy of every lookup table, by NumID.
func (e *Engine) Tables() map[int64]*LookupTable {
	e.RLock()
	defer e.RUnlock()
	res := make(map[int64]*LookupTable, len(e.tables))
	for id, t := range e.tables {
		res[id] = t.Copy()
	}
	return res
}

// rebuild recomputes every table from the sorted population. The caller holds
// the write lock.
func (e *Engine) rebuild() {
	e.index = make(map[int64]int, len(e.nodes))
	for i, n := range e.nodes {
		e.index[n.NumID] = i
	}
	e.tables = buildTables(e.nodes, e.levels)
}

// buildTables links a population sorted by NumID. For every node the scan
// cursor only moves forward across levels: the first node sharing k bits is
// never before the first node sharing k-1 bits. Left links are only written
// when the matching right link is.
func buildTables(nodes []Identity, levels int) map[int64]*LookupTable {
	tables := make(map[int64]*LookupTable, len(nodes))
	for _, n := range nodes {
		tables[n.NumID] = NewLookupTable(levels)
	}

	for i := range nodes {
		j := i + 1
		for level := 0; level <= levels; level++ {
			for j < len(nodes) && CommonBits(nodes[i].NameID, nodes[j].NameID) < level {
				j++
			}
			if j >= len(nodes) {
				break
			}
			tables[nodes[i].NumID].right[level] = copyIdentity(&nodes[j])
			tables[nodes[j].NumID].left[level] = copyIdentity(&nodes[i])
		}
	}

	return tables
}
