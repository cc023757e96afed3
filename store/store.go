// Package store is the chain object store. All mutations happen inside
// nested undo sessions: a session records every object created, the
// pre-image of every object modified and every object removed while it is
// open, so that dropping it restores the prior state exactly.
//
// The live object set is held in memory. Only the outermost session's
// commit writes to the Backend, in one atomic batch, and fires change
// notifications.
//
// A Store is not safe for concurrent use. Concurrent readers use
// ReadCommitted, which reads the Backend.
package store

import (
	"sort"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"github.com/rs/zerolog"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/types"
)

// DefaultMaxHistory is the default number of committed sessions kept for
// PopCommitted.
const DefaultMaxHistory = 1024

// Options configure a Store.
type Options struct {
	Logger zerolog.Logger
	// MaxHistory bounds the committed sessions that can be popped.
	MaxHistory int
}

type Store struct {
	backend    Backend
	logger     zerolog.Logger
	objects    map[types.ObjectKind]map[uint64]types.Object
	nextIDs    map[types.ObjectKind]uint64
	indexes    map[string]*index
	byKind     map[types.ObjectKind][]*index
	stack      []*Session
	history    []*frame
	maxHistory int
	listeners  []ChangeListener
}

// Open loads every object persisted in backend.
func Open(backend Backend, opts Options) (*Store, error) {
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = DefaultMaxHistory
	}
	s := &Store{
		backend:    backend,
		logger:     opts.Logger,
		objects:    map[types.ObjectKind]map[uint64]types.Object{},
		nextIDs:    map[types.ObjectKind]uint64{},
		indexes:    map[string]*index{},
		byKind:     map[types.ObjectKind][]*index{},
		maxHistory: opts.MaxHistory,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	var n int
	err := s.backend.ForEach(func(key, value []byte) error {
		if len(key) == 0 {
			return nil
		}
		switch key[0] {
		case prefixObject:
			id, ok := types.ObjectIDFromKey(key[1:])
			if !ok {
				return errors.Fatal.WithFormat("corrupt object key %x", key)
			}
			obj, err := decodeObject(id.Kind(), value)
			if err != nil {
				return errors.Fatal.WithFormat("load %v: %w", id, err)
			}
			s.insert(obj)
			n++
		case prefixNextID:
			if len(key) != 3 {
				return errors.Fatal.WithFormat("corrupt counter key %x", key)
			}
			var next uint64
			if err := cramberry.Unmarshal(value, &next); err != nil {
				return errors.Fatal.WithFormat("load counter %x: %w", key, err)
			}
			s.nextIDs[types.ObjectKind{Space: key[1], Type: key[2]}] = next
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug().Int("objects", n).Msg("Store loaded")
	return nil
}

// Backend returns the persistence layer.
func (s *Store) Backend() Backend { return s.backend }

// Depth returns the number of open sessions.
func (s *Store) Depth() int { return len(s.stack) }

// Subscribe registers l for change notifications.
func (s *Store) Subscribe(l ChangeListener) { s.listeners = append(s.listeners, l) }

// Get returns the live object with the given id. Callers must not mutate
// it except through Modify.
func (s *Store) Get(id types.ObjectID) (types.Object, error) {
	if obj, ok := s.objects[id.Kind()][id.Instance]; ok {
		return obj, nil
	}
	return nil, errors.NotFound.WithFormat("object %v not found", id)
}

// Has reports whether id exists.
func (s *Store) Has(id types.ObjectID) bool {
	_, ok := s.objects[id.Kind()][id.Instance]
	return ok
}

// NextID returns the id the next object of kind k will get.
func (s *Store) NextID(k types.ObjectKind) types.ObjectID {
	return types.NewObjectID(k, s.nextIDs[k])
}

// Scan visits every object of kind k in instance order until fn returns
// false.
func (s *Store) Scan(k types.ObjectKind, fn func(types.Object) bool) {
	m := s.objects[k]
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		obj, ok := m[id]
		if !ok {
			continue
		}
		if !fn(obj) {
			return
		}
	}
}

// Count returns the number of live objects of kind k.
func (s *Store) Count(k types.ObjectKind) int { return len(s.objects[k]) }

// ReadCommitted decodes the persisted version of id. It is safe to call
// concurrently with mutations.
func (s *Store) ReadCommitted(id types.ObjectID) (types.Object, error) {
	data, err := s.backend.Get(objectKey(id.Key()))
	if err != nil {
		return nil, err
	}
	return decodeObject(id.Kind(), data)
}

// ReadCommittedRaw returns the persisted encoding of id.
func (s *Store) ReadCommittedRaw(id types.ObjectID) ([]byte, error) {
	return s.backend.Get(objectKey(id.Key()))
}

// ForEachCommitted visits every persisted object encoding in id order.
func (s *Store) ForEachCommitted(fn func(id types.ObjectID, data []byte) error) error {
	return s.backend.ForEach(func(key, value []byte) error {
		if len(key) == 0 || key[0] != prefixObject {
			return nil
		}
		id, ok := types.ObjectIDFromKey(key[1:])
		if !ok {
			return errors.Fatal.WithFormat("corrupt object key %x", key)
		}
		return fn(id, value)
	})
}

// Import replaces the whole object set. No session may be open.
func (s *Store) Import(objects []types.Object) error {
	if len(s.stack) > 0 {
		return errors.Precondition.With("cannot import while a session is open")
	}
	var entries []Entry
	err := s.backend.ForEach(func(key, _ []byte) error {
		if len(key) > 0 && (key[0] == prefixObject || key[0] == prefixNextID) {
			entries = append(entries, Entry{Key: key, Delete: true})
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.objects = map[types.ObjectKind]map[uint64]types.Object{}
	s.nextIDs = map[types.ObjectKind]uint64{}
	for _, idx := range s.indexes {
		idx.reset()
	}
	s.history = nil
	for _, obj := range objects {
		data, err := cramberry.Marshal(obj)
		if err != nil {
			return errors.Internal.WithFormat("encode %v: %w", obj.GetID(), err)
		}
		entries = append(entries, Entry{Key: objectKey(obj.GetID().Key()), Value: data})
		s.insert(obj)
		id := obj.GetID()
		if id.Instance >= s.nextIDs[id.Kind()] {
			s.nextIDs[id.Kind()] = id.Instance + 1
		}
	}
	for k, next := range s.nextIDs {
		entries = append(entries, counterEntry(k, next))
	}
	return s.backend.Commit(entries)
}

func counterEntry(k types.ObjectKind, next uint64) Entry {
	data, err := cramberry.Marshal(next)
	if err != nil {
		panic(err) // a uint64 always encodes
	}
	return Entry{Key: nextIDKey(k.Space, k.Type), Value: data}
}

func (s *Store) insert(obj types.Object) {
	id := obj.GetID()
	m, ok := s.objects[id.Kind()]
	if !ok {
		m = map[uint64]types.Object{}
		s.objects[id.Kind()] = m
	}
	m[id.Instance] = obj
	for _, idx := range s.byKind[id.Kind()] {
		idx.add(obj)
	}
}

func (s *Store) erase(id types.ObjectID) {
	obj, ok := s.objects[id.Kind()][id.Instance]
	if !ok {
		return
	}
	for _, idx := range s.byKind[id.Kind()] {
		idx.remove(obj)
	}
	delete(s.objects[id.Kind()], id.Instance)
}

func (s *Store) top() *frame {
	if len(s.stack) == 0 {
		panic("store: mutation outside of an undo session")
	}
	return s.stack[len(s.stack)-1].frame
}

func encodeObject(obj types.Object) []byte {
	data, err := cramberry.Marshal(obj)
	if err != nil {
		panic(errors.Internal.WithFormat("encode %v: %w", obj.GetID(), err))
	}
	return data
}

// DecodeObject decodes a persisted encoding of id, as produced by
// ForEachCommitted.
func DecodeObject(id types.ObjectID, data []byte) (types.Object, error) {
	obj, err := decodeObject(id.Kind(), data)
	if err != nil {
		return nil, errors.BadRequest.WithFormat("decode %v: %w", id, err)
	}
	if obj.GetID() != id {
		return nil, errors.BadRequest.WithFormat("object %v encoded under %v", obj.GetID(), id)
	}
	return obj, nil
}

func decodeObject(k types.ObjectKind, data []byte) (types.Object, error) {
	obj, ok := types.NewObject(k)
	if !ok {
		return nil, errors.NotSupported.WithFormat("unknown object kind %v", k)
	}
	if err := cramberry.Unmarshal(data, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func cloneObject(obj types.Object) types.Object {
	out, err := decodeObject(obj.Kind(), encodeObject(obj))
	if err != nil {
		panic(errors.Internal.WithFormat("clone %v: %w", obj.GetID(), err))
	}
	return out
}
