// Package chain applies blocks to the object store.
//
// A block moves through Validating, Applying and Finalizing inside one
// undo session. ApplyBlock leaves that session open so the caller decides
// whether the block is kept: Commit persists it together with the block
// log entry, Abort rolls the store back to the previous head. Between
// blocks, transactions received from the network are applied to a
// pending session that every block operation sets aside first.
package chain

import (
	"context"
	"encoding/hex"
	"sync"

	"github.com/rs/zerolog"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/evaluator"
	"github.com/blockberries/ledger/sandbox"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

// IndexTransactionID finds dedupe records by transaction id.
const IndexTransactionID = "transaction/id"

type Options struct {
	Logger  zerolog.Logger
	ChainID string
	// Verifier checks transaction signatures. Without one signatures are
	// not checked and no keys reach the evaluators.
	Verifier ledger.SignatureVerifier
	// Schedule names the producer of each slot. Without one any
	// registered witness may produce.
	Schedule     ledger.WitnessSchedule
	Auth         ledger.AuthorityOracle
	Scripts      ledger.ScriptEngine
	Confidential ledger.ConfidentialVerifier
	Supervisor   *sandbox.Supervisor
	// ForkCacheSize bounds the recent blocks kept in memory.
	ForkCacheSize int
}

// AppliedFunc is called after a block is committed.
type AppliedFunc func(b *types.SignedBlock, out types.BlockOutcome)

// Chain is the block applicator. Its methods are safe for concurrent use
// but apply one block or transaction at a time.
type Chain struct {
	mu         sync.Mutex
	store      *store.Store
	dispatcher *evaluator.Dispatcher
	logger     zerolog.Logger
	chainID    string
	verifier   ledger.SignatureVerifier
	schedule   ledger.WitnessSchedule
	forks      *forkIndex
	guard      guard
	cfg        types.ExecutionConfig
	applied    []AppliedFunc

	// The block in flight between ApplyBlock and Commit or Abort.
	block     *store.Session
	candidate *types.SignedBlock
	blockID   types.BlockID
	outcome   types.BlockOutcome

	pending    *store.Session
	pendingTxs []types.ProcessedTransaction
	// Pending transactions set aside by a block operation.
	stashed []types.ProcessedTransaction

	opIndex uint32
}

// New returns a chain over s and registers the indexes the evaluators
// and the applicator need. The store must not have them already.
func New(s *store.Store, opts Options) (*Chain, error) {
	forks, err := newForkIndex(opts.ForkCacheSize)
	if err != nil {
		return nil, err
	}
	evaluator.RegisterIndexes(s)
	s.AddIndex(IndexTransactionID, types.TransactionKind, func(o types.Object) (string, bool) {
		id := o.(*types.TransactionObject).TrxID
		return hex.EncodeToString(id[:]), true
	})
	return &Chain{
		store: s,
		dispatcher: evaluator.New(s, evaluator.Options{
			Logger:       opts.Logger,
			Auth:         opts.Auth,
			Scripts:      opts.Scripts,
			Confidential: opts.Confidential,
			Supervisor:   opts.Supervisor,
		}),
		logger:   opts.Logger,
		chainID:  opts.ChainID,
		verifier: opts.Verifier,
		schedule: opts.Schedule,
		forks:    forks,
	}, nil
}

// Store returns the object store the chain writes to.
func (c *Chain) Store() *store.Store { return c.store }

// Dispatcher returns the operation dispatcher.
func (c *Chain) Dispatcher() *evaluator.Dispatcher { return c.dispatcher }

// ChainID returns the id transactions are signed for.
func (c *Chain) ChainID() string { return c.chainID }

// State returns the applicator state.
func (c *Chain) State() State { return c.guard.load() }

// OnApplied registers fn to be called after every committed block.
func (c *Chain) OnApplied(fn AppliedFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applied = append(c.applied, fn)
}

// Head returns the current head block. While a block is in flight it is
// that block.
func (c *Chain) Head() types.BlockRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	dgp := store.DynamicGlobals(c.store)
	return types.BlockRef{Height: uint64(dgp.HeadBlockNumber), ID: dgp.HeadBlockID}
}

// HeadTime returns the timestamp of the head block.
func (c *Chain) HeadTime() types.TimePoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return store.HeadTime(c.store)
}

// View calls fn with the chain locked so it reads a consistent state,
// including the pending pool. fn must not modify the store.
func (c *Chain) View(fn func(s *store.Store)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.store)
}

// CurrentOpIndex returns the number of operations applied so far in the
// block being applied or produced.
func (c *Chain) CurrentOpIndex() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opIndex
}

// PushBlock applies b and commits it.
func (c *Chain) PushBlock(ctx context.Context, b *types.SignedBlock, skip types.SkipFlags) (types.BlockOutcome, error) {
	out, err := c.ApplyBlock(ctx, b, skip)
	if err != nil {
		return out, err
	}
	if err := c.Commit(); err != nil {
		c.Abort()
		return types.BlockOutcome{}, err
	}
	return out, nil
}

// ApplyBlock validates and applies b without persisting it. Every
// transaction of b must apply; a failure aborts the block and the head
// stays where it was. On success the block stays in flight until Commit
// or Abort.
func (c *Chain) ApplyBlock(ctx context.Context, b *types.SignedBlock, skip types.SkipFlags) (types.BlockOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard.begin(); err != nil {
		return types.BlockOutcome{}, err
	}
	c.stashPending()
	defer c.cfg.Scope(types.ExecutionConfig{Mode: types.ModeReplay, Skip: skip})()

	out, err := c.applyBlock(ctx, b)
	if err != nil {
		c.logger.Error().Err(err).Uint32("block_num", b.Num()).Stringer("state", c.guard.load()).Msg("Block aborted")
		c.abort()
		return types.BlockOutcome{}, err
	}
	return out, nil
}

func (c *Chain) applyBlock(ctx context.Context, b *types.SignedBlock) (types.BlockOutcome, error) {
	id, err := c.validateBlock(b)
	if err != nil {
		return types.BlockOutcome{}, err
	}
	c.forks.add(id, b)
	c.candidate, c.blockID = b, id

	if err := c.guard.advance(StateValidating, StateApplying); err != nil {
		return types.BlockOutcome{}, err
	}
	c.block = c.store.StartSession()
	c.opIndex = 0
	out := types.BlockOutcome{BlockID: id}
	for i := range b.Transactions {
		ptx := &b.Transactions[i]
		events, err := c.applyTransaction(ctx, ptx)
		if err != nil {
			return types.BlockOutcome{}, errors.Fatal.WithFormat("block %d transaction %d: %w", b.Num(), i, err)
		}
		trxID, _ := ptx.ID()
		out.TxOutcomes = append(out.TxOutcomes, types.TxOutcome{
			Index:   uint32(i),
			Data:    trxID[:],
			Events:  events,
			Results: ptx.OperationResults,
		})
	}

	if err := c.guard.advance(StateApplying, StateFinalizing); err != nil {
		return types.BlockOutcome{}, err
	}
	events, update, err := c.finalize(ctx, b, id)
	if err != nil {
		return types.BlockOutcome{}, err
	}
	if err := stageBlock(c.block, b); err != nil {
		return types.BlockOutcome{}, err
	}
	out.BlockEvents = events
	out.ParamsUpdate = update
	if out.AppHash, err = c.appHash(b.Header.Previous, id, c.block.Changes()); err != nil {
		return types.BlockOutcome{}, err
	}
	c.block.Stage(store.Entry{Key: appHashKey(b.Num()), Value: out.AppHash[:]})
	c.outcome = out
	return out, nil
}

// validateBlock checks the header of b against the head and returns the
// id of b.
func (c *Chain) validateBlock(b *types.SignedBlock) (types.BlockID, error) {
	dgp := store.DynamicGlobals(c.store)
	h := &b.Header
	if h.Previous != dgp.HeadBlockID {
		return types.BlockID{}, errors.Fatal.WithFormat("block %d links to %v, head is %v", b.Num(), h.Previous, dgp.HeadBlockID)
	}
	if h.Timestamp <= dgp.Time {
		return types.BlockID{}, errors.Fatal.WithFormat("block %d at %v is not after head time %v", b.Num(), h.Timestamp, dgp.Time)
	}
	if !c.store.Has(h.Witness.ObjectID()) {
		return types.BlockID{}, errors.Fatal.WithFormat("block %d names unknown witness %v", b.Num(), h.Witness)
	}
	if c.schedule != nil && !c.cfg.Skip.Has(types.SkipWitnessScheduleCheck) {
		want, err := c.schedule.ScheduledWitness(h.Timestamp)
		if err != nil {
			return types.BlockID{}, errors.Fatal.WithFormat("witness schedule: %w", err)
		}
		if want != h.Witness {
			return types.BlockID{}, errors.Fatal.WithFormat("block %d produced by %v, slot belongs to %v", b.Num(), h.Witness, want)
		}
	}
	if !c.cfg.Skip.Has(types.SkipMerkleCheck) {
		root, err := b.MerkleRoot()
		if err != nil {
			return types.BlockID{}, errors.Fatal.Wrap(err)
		}
		if root != h.TransactionMerkleRoot {
			return types.BlockID{}, errors.Fatal.WithFormat("block %d merkle root %v, computed %v", b.Num(), h.TransactionMerkleRoot, root)
		}
	}
	if !c.cfg.Skip.Has(types.SkipBlockSizeCheck) {
		size, err := types.PackSize(b)
		if err != nil {
			return types.BlockID{}, errors.Fatal.Wrap(err)
		}
		if limit := store.Parameters(c.store).MaximumBlockSize; size > uint64(limit) {
			return types.BlockID{}, errors.Fatal.WithFormat("block %d is %d bytes, limit %d", b.Num(), size, limit)
		}
	}
	id, err := b.ID()
	if err != nil {
		return types.BlockID{}, errors.Fatal.Wrap(err)
	}
	return id, nil
}

// Commit persists the block in flight and notifies subscribers. If the
// write fails the block stays in flight.
func (c *Chain) Commit() error {
	c.mu.Lock()
	if s := c.guard.load(); s != StateFinalizing || c.block == nil {
		c.mu.Unlock()
		return errors.Precondition.WithFormat("no applied block to commit (state %v)", s)
	}
	if err := c.block.Commit(); err != nil {
		c.mu.Unlock()
		return err
	}
	b, out := c.candidate, c.outcome
	c.block, c.candidate, c.outcome = nil, nil, types.BlockOutcome{}
	_ = c.guard.finish(StateCommitted)
	listeners := c.applied
	c.mu.Unlock()

	blocksApplied.Inc()
	headBlock.Set(float64(b.Num()))
	c.logger.Info().Uint32("block_num", b.Num()).Stringer("block_id", out.BlockID).Int("transactions", len(b.Transactions)).Msg("Block applied")
	for _, fn := range listeners {
		fn(b, out)
	}
	return nil
}

// Abort rolls back the block in flight, if any.
func (c *Chain) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.guard.load().settled() {
		return
	}
	c.abort()
}

func (c *Chain) abort() {
	if c.block != nil {
		c.block.Undo()
		c.block = nil
	}
	if c.candidate != nil {
		c.forks.remove(c.blockID)
	}
	c.candidate, c.outcome = nil, types.BlockOutcome{}
	_ = c.guard.finish(StateAborted)
	blocksAborted.Inc()
}

// PopBlock reverts the head block and returns its transactions. Only
// blocks committed since the store was opened can be popped.
func (c *Chain) PopBlock() ([]types.ProcessedTransaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.guard.load(); !s.settled() {
		return nil, errors.Precondition.WithFormat("cannot pop a block in state %v", s)
	}
	c.stashPending()

	dgp := store.DynamicGlobals(c.store)
	if dgp.HeadBlockNumber == 0 {
		return nil, errors.Precondition.With("no block to pop")
	}
	num, id := dgp.HeadBlockNumber, dgp.HeadBlockID
	b, err := c.FetchBlock(id)
	if err != nil {
		return nil, err
	}
	if err := c.store.PopCommitted(
		store.Entry{Key: blockKey(num), Delete: true},
		store.Entry{Key: appHashKey(num), Delete: true},
	); err != nil {
		return nil, err
	}
	c.forks.remove(id)
	headBlock.Set(float64(num - 1))
	c.logger.Info().Uint32("block_num", num).Stringer("block_id", id).Msg("Block popped")
	return b.Transactions, nil
}
