// Package leveldb is a store backend on goleveldb.
package leveldb

import (
	"os"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/store"
)

type Database struct {
	opts
	leveldb *leveldb.DB
}

type opts struct {
	sync bool
}

type Option func(*opts) error

// WithSync makes every commit fsync before returning.
func WithSync(sync bool) Option {
	return func(o *opts) error {
		o.sync = sync
		return nil
	}
}

var _ store.Backend = (*Database)(nil)

func OpenFile(filepath string, o ...Option) (*Database, error) {
	// Make sure all directories exist
	err := os.MkdirAll(filepath, 0700)
	if err != nil {
		return nil, errors.Internal.WithFormat("create %q: %w", filepath, err)
	}

	db, err := leveldb.OpenFile(filepath, nil)
	if err != nil {
		return nil, errors.Internal.WithFormat("open %q: %w", filepath, err)
	}

	d := new(Database)
	d.leveldb = db
	for _, o := range o {
		err = o(&d.opts)
		if err != nil {
			return nil, errors.Internal.Wrap(err)
		}
	}

	return d, nil
}

func (d *Database) Get(key []byte) ([]byte, error) {
	v, err := d.leveldb.Get(key, nil)
	switch {
	case err == nil:
		return v, nil
	case errors.Is(err, leveldb.ErrNotFound):
		return nil, errors.NotFound.WithFormat("key %x not found", key)
	default:
		return nil, errors.Internal.Wrap(err)
	}
}

func (d *Database) Commit(entries []store.Entry) error {
	batch := new(leveldb.Batch)
	for _, e := range entries {
		if e.Delete {
			batch.Delete(e.Key)
		} else {
			batch.Put(e.Key, e.Value)
		}
	}

	err := d.leveldb.Write(batch, &opt.WriteOptions{Sync: d.sync})
	if err != nil {
		return errors.Fatal.WithFormat("write batch: %w", err)
	}
	return nil
}

func (d *Database) ForEach(fn func(key, value []byte) error) error {
	snap, err := d.leveldb.GetSnapshot()
	if err != nil {
		return errors.Internal.Wrap(err)
	}
	defer snap.Release()

	it := snap.NewIterator(nil, nil)
	defer it.Release()
	for it.Next() {
		key := make([]byte, len(it.Key()))
		copy(key, it.Key())
		value := make([]byte, len(it.Value()))
		copy(value, it.Value())
		err = fn(key, value)
		if err != nil {
			return err
		}
	}
	return it.Error()
}

// Close the underlying database
func (d *Database) Close() error {
	return d.leveldb.Close()
}
