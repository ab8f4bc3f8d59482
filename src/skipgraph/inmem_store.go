package skipgraph

import (
	"strconv"
	"sync"

	cm "github.com/mosaicnetworks/skipgraph/src/common"
)

// InmemStore implements the Store interface with a map. Nothing survives the
// process.
type InmemStore struct {
	sync.RWMutex
	identities map[int64]Identity
	latest     *Identity
}

// NewInmemStore ...
func NewInmemStore() *InmemStore {
	return &InmemStore{
		identities: make(map[int64]Identity),
	}
}

// SetIdentity implements the Store interface.
func (s *InmemStore) SetIdentity(id Identity) error {
	s.Lock()
	defer s.Unlock()
	s.identities[id.NumID] = id
	return nil
}

// DeleteIdentity implements the Store interface.
func (s *InmemStore) DeleteIdentity(numID int64) error {
	s.Lock()
	defer s.Unlock()
	if _, ok := s.identities[numID]; !ok {
		return cm.NewErr("Identity", cm.NotFound, strconv.FormatInt(numID, 10))
	}
	delete(s.identities, numID)
	return nil
}

// Identities implements the Store interface.
func (s *InmemStore) Identities() ([]Identity, error) {
	s.RLock()
	defer s.RUnlock()
	res := make([]Identity, 0, len(s.identities))
	for _, id := range s.identities {
		res = append(res, id)
	}
	return res, nil
}

// SetLatest implements the Store interface.
func (s *InmemStore) SetLatest(id Identity) error {
	s.Lock()
	defer s.Unlock()
	s.latest = &id
	return nil
}

// Latest implements the Store interface.
func (s *InmemStore) Latest() (Identity, bool, error) {
	s.RLock()
	defer s.RUnlock()
	if s.latest == nil {
		return Identity{}, false, nil
	}
	return *s.latest, true, nil
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}

// StorePath implements the Store interface.
func (s *InmemStore) StorePath() string {
	return ""
}
