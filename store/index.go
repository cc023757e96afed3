package store

import (
	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/types"
)

// KeyFunc derives the secondary key of an object. Objects for which it
// returns false are not indexed.
type KeyFunc func(types.Object) (string, bool)

// index is a unique secondary index over one object kind.
type index struct {
	name string
	key  KeyFunc
	ids  map[string]types.ObjectID
}

func (x *index) reset() { x.ids = map[string]types.ObjectID{} }

func (x *index) add(obj types.Object) {
	if k, ok := x.key(obj); ok {
		x.ids[k] = obj.GetID()
	}
}

func (x *index) remove(obj types.Object) {
	if k, ok := x.key(obj); ok && x.ids[k] == obj.GetID() {
		delete(x.ids, k)
	}
}

func (x *index) conflict(obj types.Object) error {
	k, ok := x.key(obj)
	if !ok {
		return nil
	}
	if id, ok := x.ids[k]; ok && id != obj.GetID() {
		return errors.Precondition.WithFormat("%s index: %q already used by %v", x.name, k, id)
	}
	return nil
}

// AddIndex registers a unique secondary index over kind k and indexes
// the objects already loaded.
func (s *Store) AddIndex(name string, k types.ObjectKind, key KeyFunc) {
	if _, ok := s.indexes[name]; ok {
		panic("store: index " + name + " registered twice")
	}
	x := &index{name: name, key: key}
	x.reset()
	s.indexes[name] = x
	s.byKind[k] = append(s.byKind[k], x)
	for _, obj := range s.objects[k] {
		x.add(obj)
	}
}

// Lookup finds an object through a secondary index.
func (s *Store) Lookup(name, key string) (types.Object, bool) {
	x, ok := s.indexes[name]
	if !ok {
		panic("store: unknown index " + name)
	}
	id, ok := x.ids[key]
	if !ok {
		return nil, false
	}
	obj, ok := s.objects[id.Kind()][id.Instance]
	return obj, ok
}
