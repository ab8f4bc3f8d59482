package skipgraph

// Store is an interface for backend stores of a graph population.
type Store interface {
	// SetIdentity inserts or overwrites an identity.
	SetIdentity(id Identity) error
	// DeleteIdentity removes an identity by numeric id.
	DeleteIdentity(numID int64) error
	// Identities returns the whole population, in no particular order.
	Identities() ([]Identity, error)
	// SetLatest records the most recent insertion.
	SetLatest(id Identity) error
	// Latest returns the most recent insertion, if any.
	Latest() (Identity, bool, error)
	// Close closes the underlying database.
	Close() error
	// StorePath returns the filepath of the underlying database.
	StorePath() string
}
