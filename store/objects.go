package store

import (
	"reflect"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/types"
)

// Load returns the live object id as a T.
func Load[T types.Object](s *Store, id types.ObjectID) (T, error) {
	var zero T
	obj, err := s.Get(id)
	if err != nil {
		return zero, err
	}
	v, ok := obj.(T)
	if !ok {
		return zero, errors.Internal.WithFormat("object %v is %T, not %T", id, obj, zero)
	}
	return v, nil
}

// Find is Load without the error.
func Find[T types.Object](s *Store, id types.ObjectID) (T, bool) {
	v, err := Load[T](s, id)
	return v, err == nil
}

// LookupAs finds an object through a secondary index as a T.
func LookupAs[T types.Object](s *Store, index, key string) (T, bool) {
	var zero T
	obj, ok := s.Lookup(index, key)
	if !ok {
		return zero, false
	}
	v, ok := obj.(T)
	return v, ok
}

// All returns every object of kind k in instance order.
func All[T types.Object](s *Store, k types.ObjectKind) []T {
	var out []T
	s.Scan(k, func(obj types.Object) bool {
		if v, ok := obj.(T); ok {
			out = append(out, v)
		}
		return true
	})
	return out
}

// Create assigns obj the next id of its kind and inserts it.
func Create[T types.Object](s *Store, obj T) (T, error) {
	f := s.top()
	k := obj.Kind()
	next := s.nextIDs[k]
	obj.SetID(types.NewObjectID(k, next))
	for _, idx := range s.byKind[k] {
		if err := idx.conflict(obj); err != nil {
			return obj, err
		}
	}
	f.onCreate(obj.GetID(), next)
	s.nextIDs[k] = next + 1
	s.insert(obj)
	return obj, nil
}

// Modify applies fn to obj, recording its pre-image first. If fn breaks a
// unique index the change is reverted and an error returned.
func Modify[T types.Object](s *Store, obj T, fn func(T)) error {
	f := s.top()
	id := obj.GetID()
	live, ok := s.objects[id.Kind()][id.Instance]
	if !ok || live != types.Object(obj) {
		return errors.Internal.WithFormat("modify of %v which is not live", id)
	}

	idx := s.byKind[id.Kind()]
	var pre types.Object
	if len(idx) > 0 {
		pre = cloneObject(obj)
	}
	f.onModify(obj)
	for _, x := range idx {
		x.remove(obj)
	}
	fn(obj)
	if obj.GetID() != id {
		panic("store: modify must not change the object id")
	}
	for _, x := range idx {
		if err := x.conflict(obj); err != nil {
			reflect.ValueOf(obj).Elem().Set(reflect.ValueOf(pre).Elem())
			for _, x := range idx {
				x.add(obj)
			}
			return err
		}
	}
	for _, x := range idx {
		x.add(obj)
	}
	return nil
}

// Remove deletes the object id.
func Remove(s *Store, id types.ObjectID) error {
	f := s.top()
	obj, err := s.Get(id)
	if err != nil {
		return err
	}
	f.onRemove(obj)
	s.erase(id)
	return nil
}
