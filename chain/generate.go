package chain

import (
	"context"
	"time"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/sandbox"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

// GenerateBlock authors a block at time when for witness out of txs,
// applied in order. Transactions that fail are left out. Inclusion stops
// once the next transaction would push the block over the maximum block
// size or the block run time budget is spent. The state is left as it
// was; the block still has to be pushed.
func (c *Chain) GenerateBlock(ctx context.Context, when types.TimePoint, witness types.WitnessID, txs []types.SignedTransaction) (*types.SignedBlock, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.guard.load(); !s.settled() {
		return nil, errors.Precondition.WithFormat("cannot generate a block in state %v", s)
	}
	c.stashPending()
	defer c.cfg.Scope(types.ExecutionConfig{Mode: types.ModeAuthoring})()

	dgp := store.DynamicGlobals(c.store)
	p := store.Parameters(c.store)
	if when <= dgp.Time {
		return nil, errors.Precondition.WithFormat("block time %v is not after head time %v", when, dgp.Time)
	}
	if !c.store.Has(witness.ObjectID()) {
		return nil, errors.NotFound.WithFormat("witness %v does not exist", witness)
	}

	b := &types.SignedBlock{Header: types.BlockHeader{
		Previous:  dgp.HeadBlockID,
		Timestamp: when,
		Witness:   witness,
	}}
	size, err := types.PackSize(b)
	if err != nil {
		return nil, errors.Internal.Wrap(err)
	}
	// Room for the merkle root and the producer signature.
	size += 128

	ss := c.store.StartSession()
	defer ss.Undo()
	c.opIndex = 0
	budget := sandbox.BlockBudget(p)
	var runTime time.Duration
	for i := range txs {
		if err := ctx.Err(); err != nil {
			return nil, errors.Timeout.Wrap(err)
		}
		inner := c.store.StartSession()
		start := c.opIndex
		ptx := types.ProcessedTransaction{Signed: txs[i]}
		if _, err := c.applyTransaction(ctx, &ptx); err != nil {
			inner.Undo()
			c.opIndex = start
			trxDropped.WithLabelValues(errors.Code(err).String()).Inc()
			c.logger.Warn().Err(err).Int("index", i).Msg("Transaction dropped from block")
			continue
		}
		n, err := types.PackSize(&ptx)
		if err != nil {
			inner.Undo()
			return nil, errors.Internal.Wrap(err)
		}
		// Leave room for the length prefix of the entry.
		n += 8
		spent := time.Duration(ptx.RunningTime()) * time.Microsecond
		if size+n > uint64(p.MaximumBlockSize) || runTime+spent > budget {
			inner.Undo()
			c.opIndex = start
			break
		}
		if err := inner.Merge(); err != nil {
			return nil, err
		}
		size += n
		runTime += spent
		b.Transactions = append(b.Transactions, ptx)
	}

	root, err := b.MerkleRoot()
	if err != nil {
		return nil, errors.Internal.Wrap(err)
	}
	b.Header.TransactionMerkleRoot = root
	c.logger.Debug().Uint32("block_num", b.Num()).Int("transactions", len(b.Transactions)).Int("offered", len(txs)).Msg("Block generated")
	return b, nil
}
