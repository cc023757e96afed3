package store

// Entry is one write of a commit batch.
type Entry struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// Backend is the durable key-value layer under the store. Commit must be
// atomic: either every entry lands or none does.
type Backend interface {
	// Get returns the value of key or an errors.NotFound error.
	Get(key []byte) ([]byte, error)

	// Commit applies a batch atomically.
	Commit(entries []Entry) error

	// ForEach visits every entry in key order.
	ForEach(fn func(key, value []byte) error) error

	Close() error
}

// Key prefixes. Other packages may keep their own records in the backend
// under prefixes not listed here.
const (
	prefixObject = 'o'
	prefixNextID = 'n'
)

func objectKey(id []byte) []byte {
	return append([]byte{prefixObject}, id...)
}

func nextIDKey(space, typ uint8) []byte {
	return []byte{prefixNextID, space, typ}
}
