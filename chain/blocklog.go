package chain

import (
	"encoding/binary"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"github.com/golang/snappy"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

// Applied blocks are kept in the store backend next to the objects, under
// their own key prefix, so a block lands in the same batch as the state
// it produced.
const (
	prefixBlock   = 'b'
	prefixAppHash = 'h'
)

func blockKey(num uint32) []byte {
	k := make([]byte, 5)
	k[0] = prefixBlock
	binary.BigEndian.PutUint32(k[1:], num)
	return k
}

func appHashKey(num uint32) []byte {
	k := blockKey(num)
	k[0] = prefixAppHash
	return k
}

func encodeBlock(b *types.SignedBlock) ([]byte, error) {
	data, err := cramberry.Marshal(b)
	if err != nil {
		return nil, errors.Internal.WithFormat("encode block %d: %w", b.Num(), err)
	}
	return snappy.Encode(nil, data), nil
}

func decodeBlock(num uint32, data []byte) (*types.SignedBlock, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, errors.Fatal.WithFormat("corrupt block %d: %w", num, err)
	}
	b := new(types.SignedBlock)
	if err := cramberry.Unmarshal(raw, b); err != nil {
		return nil, errors.Fatal.WithFormat("corrupt block %d: %w", num, err)
	}
	return b, nil
}

// stageBlock adds the block to the writes of the block session.
func stageBlock(ss *store.Session, b *types.SignedBlock) error {
	data, err := encodeBlock(b)
	if err != nil {
		return err
	}
	ss.Stage(store.Entry{Key: blockKey(b.Num()), Value: data})
	return nil
}

// ReadBlock returns the committed block num from the block log.
func (c *Chain) ReadBlock(num uint32) (*types.SignedBlock, error) {
	data, err := c.store.Backend().Get(blockKey(num))
	if err != nil {
		return nil, err
	}
	return decodeBlock(num, data)
}

// AppHash returns the state fingerprint recorded for the head block, or
// the zero hash before the first block.
func (c *Chain) AppHash() (types.AppHash, error) {
	var h types.AppHash
	num := c.Head().Height
	if num == 0 {
		return h, nil
	}
	data, err := c.store.Backend().Get(appHashKey(uint32(num)))
	if err != nil {
		return h, err
	}
	if len(data) != len(h) {
		return h, errors.Fatal.WithFormat("corrupt app hash of block %d", num)
	}
	copy(h[:], data)
	return h, nil
}

// ImportState replaces the whole state with objects restored from a
// snapshot whose head block has app hash h. Blocks before that head are
// not in the block log and cannot be popped.
func (c *Chain) ImportState(objects []types.Object, h types.AppHash) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.guard.load(); !s.settled() {
		return errors.Precondition.WithFormat("cannot import state in state %v", s)
	}
	c.stashPending()
	c.stashed = nil
	if err := c.store.Import(objects); err != nil {
		return err
	}
	dgp := store.DynamicGlobals(c.store)
	if err := c.store.Backend().Commit([]store.Entry{{Key: appHashKey(dgp.HeadBlockNumber), Value: h[:]}}); err != nil {
		return err
	}
	headBlock.Set(float64(dgp.HeadBlockNumber))
	c.logger.Info().Uint32("block_num", dgp.HeadBlockNumber).Stringer("block_id", dgp.HeadBlockID).Int("objects", len(objects)).Msg("State imported")
	return nil
}
