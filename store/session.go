package store

import (
	"sort"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/types"
)

// frame is the undo record of one session.
type frame struct {
	// Pre-images of objects that existed when the frame opened.
	oldValues map[types.ObjectID]types.Object
	newIDs    map[types.ObjectID]struct{}
	removed   map[types.ObjectID]types.Object
	// Counters as they were before the frame first created an object of
	// the kind.
	oldNextIDs map[types.ObjectKind]uint64
	raw        []Entry
}

func newFrame() *frame {
	return &frame{
		oldValues:  map[types.ObjectID]types.Object{},
		newIDs:     map[types.ObjectID]struct{}{},
		removed:    map[types.ObjectID]types.Object{},
		oldNextIDs: map[types.ObjectKind]uint64{},
	}
}

func (f *frame) onCreate(id types.ObjectID, prevNext uint64) {
	if _, ok := f.oldNextIDs[id.Kind()]; !ok {
		f.oldNextIDs[id.Kind()] = prevNext
	}
	f.newIDs[id] = struct{}{}
}

func (f *frame) onModify(obj types.Object) {
	id := obj.GetID()
	if _, ok := f.newIDs[id]; ok {
		return
	}
	if _, ok := f.oldValues[id]; ok {
		return
	}
	f.oldValues[id] = cloneObject(obj)
}

func (f *frame) onRemove(obj types.Object) {
	id := obj.GetID()
	if _, ok := f.newIDs[id]; ok {
		delete(f.newIDs, id)
		return
	}
	if old, ok := f.oldValues[id]; ok {
		f.removed[id] = old
		delete(f.oldValues, id)
		return
	}
	if _, ok := f.removed[id]; !ok {
		f.removed[id] = obj
	}
}

// squash folds child into f.
func (f *frame) squash(child *frame) {
	for id, old := range child.oldValues {
		if _, ok := f.newIDs[id]; ok {
			continue
		}
		if _, ok := f.oldValues[id]; ok {
			continue
		}
		f.oldValues[id] = old
	}
	for id := range child.newIDs {
		f.newIDs[id] = struct{}{}
	}
	for id, old := range child.removed {
		if _, ok := f.newIDs[id]; ok {
			delete(f.newIDs, id)
			continue
		}
		if prev, ok := f.oldValues[id]; ok {
			f.removed[id] = prev
			delete(f.oldValues, id)
			continue
		}
		f.removed[id] = old
	}
	for k, next := range child.oldNextIDs {
		if _, ok := f.oldNextIDs[k]; !ok {
			f.oldNextIDs[k] = next
		}
	}
	f.raw = append(f.raw, child.raw...)
}

// revert restores the store to the state before the frame opened.
func (s *Store) revert(f *frame) {
	for _, id := range sortedIDs(f.newIDs) {
		s.erase(id)
	}
	for _, id := range sortedKeys(f.oldValues) {
		s.erase(id)
		s.insert(f.oldValues[id])
	}
	for _, id := range sortedKeys(f.removed) {
		s.insert(f.removed[id])
	}
	for k, next := range f.oldNextIDs {
		s.nextIDs[k] = next
	}
}

// Session is one open undo frame. A session that is neither committed
// nor merged must be undone; WithSession guarantees it.
type Session struct {
	store *Store
	frame *frame
	done  bool
}

// StartSession opens a session nested inside the current one, if any.
func (s *Store) StartSession() *Session {
	ss := &Session{store: s, frame: newFrame()}
	s.stack = append(s.stack, ss)
	sessionDepth.Set(float64(len(s.stack)))
	return ss
}

// Done reports whether the session was committed, merged or undone.
func (ss *Session) Done() bool { return ss.done }

func (ss *Session) position() (int, error) {
	if ss.done {
		return 0, errors.Precondition.With("session already closed")
	}
	st := ss.store.stack
	for i := len(st) - 1; i >= 0; i-- {
		if st[i] == ss {
			if i != len(st)-1 {
				return i, errors.Precondition.With("session has open children")
			}
			return i, nil
		}
	}
	return 0, errors.Internal.With("session not on the stack")
}

func (ss *Session) pop() {
	st := ss.store.stack
	ss.store.stack = st[:len(st)-1]
	ss.done = true
	sessionDepth.Set(float64(len(ss.store.stack)))
}

// Undo reverts every change made since the session opened, undoing any
// children still open first. Undoing a closed session is a no-op.
func (ss *Session) Undo() {
	if ss.done {
		return
	}
	s := ss.store
	for len(s.stack) > 0 {
		top := s.stack[len(s.stack)-1]
		s.revert(top.frame)
		top.pop()
		if top == ss {
			return
		}
	}
}

// Merge folds the session into its parent. The changes stay revertible
// by the parent. Merging the outermost session commits it.
func (ss *Session) Merge() error {
	i, err := ss.position()
	if err != nil {
		return err
	}
	if i == 0 {
		return ss.Commit()
	}
	ss.store.stack[i-1].frame.squash(ss.frame)
	ss.pop()
	return nil
}

// Commit makes the session's changes permanent. For a nested session it
// is the same as Merge. The outermost commit writes one batch to the
// backend, records the frame for PopCommitted and notifies listeners.
// If the write fails the session stays open.
func (ss *Session) Commit() error {
	i, err := ss.position()
	if err != nil {
		return err
	}
	if i > 0 {
		return ss.Merge()
	}

	s := ss.store
	changes := s.changes(ss.frame)
	if err := s.backend.Commit(s.batch(ss.frame)); err != nil {
		return err
	}
	ss.pop()

	s.history = append(s.history, ss.frame)
	if len(s.history) > s.maxHistory {
		s.history = s.history[len(s.history)-s.maxHistory:]
	}
	s.notify(changes)
	return nil
}

// Stage adds a raw backend write to the session. It lands with the
// outermost commit and is dropped by Undo.
func (ss *Session) Stage(e Entry) {
	ss.frame.raw = append(ss.frame.raw, e)
}

// Changes describes what the session has changed so far.
func (ss *Session) Changes() Changes { return ss.store.changes(ss.frame) }

// WithSession runs fn inside a new session. The session is undone when
// fn returns an error, panics, or returns without committing or merging
// it.
func WithSession(s *Store, fn func(*Session) error) (err error) {
	ss := s.StartSession()
	defer func() {
		if !ss.done {
			ss.Undo()
		}
	}()
	return fn(ss)
}

// CommittedDepth returns the number of commits PopCommitted can revert.
func (s *Store) CommittedDepth() int { return len(s.history) }

// PopCommitted reverts the most recent outermost commit and persists the
// reverted state together with extra.
func (s *Store) PopCommitted(extra ...Entry) error {
	if len(s.stack) > 0 {
		return errors.Precondition.With("cannot pop while a session is open")
	}
	if len(s.history) == 0 {
		return errors.Precondition.With("no committed session to pop")
	}
	f := s.history[len(s.history)-1]

	// The inverse frame: what was created is now removed and so on.
	inv := newFrame()
	for id := range f.newIDs {
		if obj, ok := s.objects[id.Kind()][id.Instance]; ok {
			inv.removed[id] = obj
		}
	}
	for id := range f.oldValues {
		inv.oldValues[id] = nil
	}
	for id := range f.removed {
		inv.newIDs[id] = struct{}{}
	}

	s.revert(f)
	for id := range inv.oldValues {
		inv.oldValues[id] = s.objects[id.Kind()][id.Instance]
	}
	for k := range f.oldNextIDs {
		inv.oldNextIDs[k] = s.nextIDs[k]
	}
	inv.raw = extra

	// inv now lists the restored state as changed and the popped objects
	// as removed, which is exactly the batch to write.
	if err := s.backend.Commit(s.batch(inv)); err != nil {
		return err
	}
	s.history = s.history[:len(s.history)-1]
	s.notify(s.changes(inv))
	return nil
}

func (s *Store) batch(f *frame) []Entry {
	var entries []Entry
	for _, id := range sortedIDs(f.newIDs) {
		if obj, ok := s.objects[id.Kind()][id.Instance]; ok {
			entries = append(entries, Entry{Key: objectKey(id.Key()), Value: encodeObject(obj)})
		}
	}
	for _, id := range sortedKeys(f.oldValues) {
		if obj, ok := s.objects[id.Kind()][id.Instance]; ok {
			entries = append(entries, Entry{Key: objectKey(id.Key()), Value: encodeObject(obj)})
		}
	}
	for _, id := range sortedKeys(f.removed) {
		entries = append(entries, Entry{Key: objectKey(id.Key()), Delete: true})
	}
	kinds := make([]types.ObjectKind, 0, len(f.oldNextIDs))
	for k := range f.oldNextIDs {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		return types.NewObjectID(kinds[i], 0).Less(types.NewObjectID(kinds[j], 0))
	})
	for _, k := range kinds {
		entries = append(entries, counterEntry(k, s.nextIDs[k]))
	}
	return append(entries, f.raw...)
}

func sortedIDs(m map[types.ObjectID]struct{}) []types.ObjectID {
	ids := make([]types.ObjectID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

func sortedKeys(m map[types.ObjectID]types.Object) []types.ObjectID {
	ids := make([]types.ObjectID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}
