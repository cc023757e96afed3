package chain

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/types"
)

// DefaultForkCacheSize is the number of recent blocks the fork index
// keeps in memory.
const DefaultForkCacheSize = 1024

// forkIndex remembers recently applied blocks by id, including the block
// currently being applied.
type forkIndex struct {
	blocks *lru.Cache[types.BlockID, *types.SignedBlock]
}

func newForkIndex(size int) (*forkIndex, error) {
	if size <= 0 {
		size = DefaultForkCacheSize
	}
	c, err := lru.New[types.BlockID, *types.SignedBlock](size)
	if err != nil {
		return nil, errors.BadRequest.WithFormat("fork index: %w", err)
	}
	return &forkIndex{blocks: c}, nil
}

func (f *forkIndex) add(id types.BlockID, b *types.SignedBlock) { f.blocks.Add(id, b) }

func (f *forkIndex) remove(id types.BlockID) { f.blocks.Remove(id) }

func (f *forkIndex) get(id types.BlockID) (*types.SignedBlock, bool) { return f.blocks.Get(id) }

// FetchBlock returns a recent block by id, falling back to the block log.
func (c *Chain) FetchBlock(id types.BlockID) (*types.SignedBlock, error) {
	if b, ok := c.forks.get(id); ok {
		return b, nil
	}
	b, err := c.ReadBlock(id.Num())
	if err != nil {
		return nil, err
	}
	got, err := b.ID()
	if err != nil {
		return nil, err
	}
	if got != id {
		return nil, errors.NotFound.WithFormat("block %v is not on the applied chain", id)
	}
	return b, nil
}
