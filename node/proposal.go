package node

import (
	"context"
	"fmt"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

// ---------------------------------------------------------------------------
// ProposalControl
// ---------------------------------------------------------------------------

// BuildProposal authors the next block out of the pending pool followed
// by the mempool transactions the pool does not hold yet. The pending
// pool is refilled afterwards.
func (app *App) BuildProposal(ctx context.Context, pctx types.ProposalContext) (types.BuiltProposal, error) {
	if head := app.Committed(); pctx.Height != 0 && pctx.Height != head.Height+1 {
		return types.BuiltProposal{}, errors.Precondition.WithFormat("cannot build block %d on head %d", pctx.Height, head.Height)
	}

	seen := map[types.TransactionID]bool{}
	var txs []types.SignedTransaction
	var size uint64
	add := func(tx types.SignedTransaction, n uint64) {
		id, err := tx.ID()
		if err != nil || seen[id] {
			return
		}
		if pctx.MaxTxBytes > 0 && size+n > pctx.MaxTxBytes {
			return
		}
		seen[id] = true
		size += n
		txs = append(txs, tx)
	}
	for _, ptx := range app.chain.PendingTransactions() {
		n, err := types.PackSize(&ptx.Signed)
		if err != nil {
			continue
		}
		add(ptx.Signed, n)
	}
	for i, raw := range pctx.MempoolTxs {
		tx, err := types.DecodeTx(raw)
		if err != nil {
			app.logger.Debug().Err(err).Int("index", i).Msg("Undecodable mempool transaction ignored")
			continue
		}
		add(tx, uint64(len(raw)))
	}

	b, err := app.chain.GenerateBlock(ctx, pctx.Time, pctx.Witness, txs)
	// GenerateBlock set the pending pool aside.
	app.sched.Restore(ctx, nil, app.chain.ClearPending())
	if err != nil {
		return types.BuiltProposal{}, err
	}
	proposals.WithLabelValues("built").Inc()
	return types.BuiltProposal{Block: *b}, nil
}

// VerifyProposal checks that the block links to the committed head, is
// later than it, names a registered witness entitled to the slot and
// carries the merkle root of its transactions. Transactions are not
// applied.
func (app *App) VerifyProposal(_ context.Context, proposal types.ReceivedProposal) (types.ProposalVerdict, error) {
	reason, err := app.verify(&proposal.Block)
	if err != nil {
		return types.ProposalVerdict{}, err
	}
	if reason != "" {
		proposals.WithLabelValues("rejected").Inc()
		return types.ProposalVerdict{Accept: false, RejectReason: reason}, nil
	}
	proposals.WithLabelValues("accepted").Inc()
	return types.ProposalVerdict{Accept: true}, nil
}

func (app *App) verify(b *types.SignedBlock) (string, error) {
	app.mu.RLock()
	defer app.mu.RUnlock()

	h := &b.Header
	if h.Previous != app.committed.ID {
		return fmt.Sprintf("block links to %v, head is %v", h.Previous, app.committed.ID), nil
	}

	var headTime types.TimePoint
	var known bool
	var maxSize uint32
	app.chain.View(func(s *store.Store) {
		known = s.Has(h.Witness.ObjectID())
		// A block in flight would have moved the head already.
		if dgp := store.DynamicGlobals(s); dgp.HeadBlockID == app.committed.ID {
			headTime = dgp.Time
		}
		maxSize = store.Parameters(s).MaximumBlockSize
	})
	if headTime != 0 && h.Timestamp <= headTime {
		return fmt.Sprintf("block time %v is not after head time %v", h.Timestamp, headTime), nil
	}
	if !known {
		return fmt.Sprintf("unknown witness %v", h.Witness), nil
	}
	if app.schedule != nil {
		want, err := app.schedule.ScheduledWitness(h.Timestamp)
		if err != nil {
			return "", errors.Internal.WithFormat("witness schedule: %w", err)
		}
		if want != h.Witness {
			return fmt.Sprintf("slot at %v belongs to %v, not %v", h.Timestamp, want, h.Witness), nil
		}
	}
	root, err := b.MerkleRoot()
	if err != nil {
		return "", errors.Internal.Wrap(err)
	}
	if root != h.TransactionMerkleRoot {
		return fmt.Sprintf("merkle root %v does not match transactions (%v)", h.TransactionMerkleRoot, root), nil
	}
	if size, err := types.PackSize(b); err == nil && size > uint64(maxSize) {
		return fmt.Sprintf("block is %d bytes, limit %d", size, maxSize), nil
	}
	return "", nil
}

// ProduceBlock authors a block for witness at when and commits it, as a
// single producer does when no engine drives the node.
func (app *App) ProduceBlock(ctx context.Context, when types.TimePoint, witness types.WitnessID) (types.BlockOutcome, error) {
	built, err := app.BuildProposal(ctx, types.ProposalContext{Time: when, Witness: witness})
	if err != nil {
		return types.BlockOutcome{}, err
	}
	out, err := app.ExecuteBlock(ctx, types.FinalizedBlock{Block: built.Block})
	if err != nil {
		return types.BlockOutcome{}, err
	}
	if _, err := app.Commit(ctx); err != nil {
		app.chain.Abort()
		return types.BlockOutcome{}, err
	}
	return out, nil
}
