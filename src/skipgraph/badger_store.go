package skipgraph

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dgraph-io/badger"
	cm "github.com/mosaicnetworks/skipgraph/src/common"
)

const (
	identityPrefix = "identity"
	latestKey      = "latest"
)

// BadgerStore implements the Store interface on top of a badger database.
type BadgerStore struct {
	db           *badger.DB
	path         string
	needBoostrap bool
}

// NewBadgerStore creates a brand new Store with a new database.
func NewBadgerStore(path string) (*BadgerStore, error) {
	handle, err := openBadger(path)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{
		db:   handle,
		path: path,
	}, nil
}

// LoadBadgerStore opens a Store from an existing database.
func LoadBadgerStore(path string) (*BadgerStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	handle, err := openBadger(path)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{
		db:           handle,
		path:         path,
		needBoostrap: true,
	}, nil
}

// LoadOrCreateBadgerStore loads the database at path if there is one, and
// creates it otherwise.
func LoadOrCreateBadgerStore(path string) (*BadgerStore, error) {
	store, err := LoadBadgerStore(path)
	if err != nil {
		store, err = NewBadgerStore(path)
		if err != nil {
			return nil, err
		}
	}
	return store, nil
}

func openBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	return badger.Open(opts)
}

//==============================================================================
//Keys

// identityKey zero-pads the sign-shifted id so that badger iterates in
// numeric order.
func identityKey(numID int64) []byte {
	return []byte(fmt.Sprintf("%s_%020d", identityPrefix, uint64(numID)^(1<<63)))
}

//==============================================================================
//Implement the Store interface

// SetIdentity implements the Store interface.
func (s *BadgerStore) SetIdentity(id Identity) error {
	val, err := id.Marshal()
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(identityKey(id.NumID), val)
	})
}

// DeleteIdentity implements the Store interface.
func (s *BadgerStore) DeleteIdentity(numID int64) error {
	key := identityKey(numID)
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	return mapError(err, "Identity", strconv.FormatInt(numID, 10))
}

// Identities implements the Store interface.
func (s *BadgerStore) Identities() ([]Identity, error) {
	res := []Identity{}
	prefix := []byte(identityPrefix + "_")
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var id Identity
			if err := id.Unmarshal(val); err != nil {
				return err
			}
			res = append(res, id)
		}
		return nil
	})
	return res, err
}

// SetLatest implements the Store interface.
func (s *BadgerStore) SetLatest(id Identity) error {
	val, err := id.Marshal()
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(latestKey), val)
	})
}

// Latest implements the Store interface.
func (s *BadgerStore) Latest() (Identity, bool, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(latestKey))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if isDBKeyNotFound(err) {
		return Identity{}, false, nil
	}
	if err != nil {
		return Identity{}, false, err
	}
	var id Identity
	if err := id.Unmarshal(val); err != nil {
		return Identity{}, false, err
	}
	return id, true, nil
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// StorePath implements the Store interface.
func (s *BadgerStore) StorePath() string {
	return s.path
}

// NeedBoostrap reports whether the store was loaded from an existing
// database.
func (s *BadgerStore) NeedBoostrap() bool {
	return s.needBoostrap
}

func isDBKeyNotFound(err error) bool {
	return err == badger.ErrKeyNotFound
}

func mapError(err error, name, key string) error {
	if err != nil {
		if isDBKeyNotFound(err) {
			return cm.NewErr(name, cm.NotFound, key)
		}
	}
	return err
}
