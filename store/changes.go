package store

import (
	"sort"

	"github.com/blockberries/ledger/types"
)

// Changes is the change notification of one outermost commit.
type Changes struct {
	New     []types.ObjectID
	Changed []types.ObjectID
	Removed []types.Object
	// Impacted holds every account touched by the objects above, sorted.
	Impacted []types.AccountID
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return len(c.New) == 0 && len(c.Changed) == 0 && len(c.Removed) == 0
}

// ChangeListener receives change notifications after the backend write
// succeeded.
type ChangeListener func(Changes)

func (s *Store) changes(f *frame) Changes {
	var c Changes
	impacted := map[types.AccountID]struct{}{}
	collect := func(obj types.Object) {
		if ia, ok := obj.(types.ImpactedAccounter); ok {
			for _, a := range ia.ImpactedAccounts() {
				impacted[a] = struct{}{}
			}
		}
	}

	for _, id := range sortedIDs(f.newIDs) {
		if obj, ok := s.objects[id.Kind()][id.Instance]; ok {
			c.New = append(c.New, id)
			collect(obj)
		}
	}
	for _, id := range sortedKeys(f.oldValues) {
		if obj, ok := s.objects[id.Kind()][id.Instance]; ok {
			c.Changed = append(c.Changed, id)
			collect(obj)
		}
	}
	for _, id := range sortedKeys(f.removed) {
		obj := f.removed[id]
		c.Removed = append(c.Removed, obj)
		collect(obj)
	}

	for a := range impacted {
		c.Impacted = append(c.Impacted, a)
	}
	sort.Slice(c.Impacted, func(i, j int) bool { return c.Impacted[i] < c.Impacted[j] })
	return c
}

func (s *Store) notify(c Changes) {
	if c.Empty() {
		return
	}
	for _, l := range s.listeners {
		l(c)
	}
}
