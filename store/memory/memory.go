// Package memory is an in-memory store backend.
package memory

import (
	"bytes"
	"sort"
	"sync"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/store"
)

type Database struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

var _ store.Backend = (*Database)(nil)

func New() *Database {
	return &Database{entries: map[string][]byte{}}
}

func (d *Database) Get(key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.entries[string(key)]
	if !ok {
		return nil, errors.NotFound.WithFormat("key %x not found", key)
	}
	return bytes.Clone(v), nil
}

func (d *Database) Commit(entries []store.Entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range entries {
		if e.Delete {
			delete(d.entries, string(e.Key))
		} else {
			d.entries[string(e.Key)] = bytes.Clone(e.Value)
		}
	}
	return nil
}

func (d *Database) ForEach(fn func(key, value []byte) error) error {
	d.mu.RLock()
	keys := make([]string, 0, len(d.entries))
	for k := range d.entries {
		keys = append(keys, k)
	}
	d.mu.RUnlock()
	sort.Strings(keys)

	for _, k := range keys {
		d.mu.RLock()
		v, ok := d.entries[k]
		d.mu.RUnlock()
		if !ok {
			continue
		}
		if err := fn([]byte(k), bytes.Clone(v)); err != nil {
			return err
		}
	}
	return nil
}

func (d *Database) Close() error { return nil }
