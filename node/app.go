// Package node implements the ledger node behind the lifecycle boundary.
//
// App wires the block applicator, the pending pool scheduler and the
// change publisher together and implements every capability the engine
// may discover at handshake: proposal control, state sync and
// simulation. Blocks handed to ExecuteBlock stay in flight until Commit
// persists them; queries always read the last committed state.
package node

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/chain"
	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/genesis"
	"github.com/blockberries/ledger/sandbox"
	"github.com/blockberries/ledger/scheduler"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

// Compile-time interface checks.
var (
	_ ledger.Lifecycle       = (*App)(nil)
	_ ledger.ProposalControl = (*App)(nil)
	_ ledger.StateSync       = (*App)(nil)
	_ ledger.Simulator       = (*App)(nil)
	_ ledger.Application     = (*App)(nil)
)

// Notifier receives every committed block. The notify package provides
// the broker-backed implementation.
type Notifier interface {
	PublishBlock(ctx context.Context, b *types.SignedBlock, out types.BlockOutcome) error
	PublishChanges(ctx context.Context, height uint64, id types.BlockID, ch store.Changes) error
}

type Options struct {
	Logger       zerolog.Logger
	ChainID      string
	Verifier     ledger.SignatureVerifier
	Schedule     ledger.WitnessSchedule
	Auth         ledger.AuthorityOracle
	Scripts      ledger.ScriptEngine
	Confidential ledger.ConfidentialVerifier
	Supervisor   *sandbox.Supervisor
	// Notifier is optional.
	Notifier Notifier
	// ForkCacheSize bounds the recent blocks kept in memory.
	ForkCacheSize int
	// Skip is applied to every block handed to ExecuteBlock.
	Skip types.SkipFlags
}

// App is the ledger node.
type App struct {
	// mu orders commits and imports against readers of committed state.
	mu        sync.RWMutex
	store     *store.Store
	chain     *chain.Chain
	sched     *scheduler.Scheduler
	logger    zerolog.Logger
	notifier  Notifier
	schedule  ledger.WitnessSchedule
	skip      types.SkipFlags
	committed types.BlockRef
	snap      *snapshot

	// Filled by the chain and store callbacks during Commit.
	cbMu      sync.Mutex
	lastBlock *types.SignedBlock
	lastOut   types.BlockOutcome
	changes   store.Changes
}

// New returns a node over s. The store may be empty, in which case the
// genesis document passed to Handshake initializes it.
func New(s *store.Store, opts Options) (*App, error) {
	c, err := chain.New(s, chain.Options{
		Logger:        opts.Logger,
		ChainID:       opts.ChainID,
		Verifier:      opts.Verifier,
		Schedule:      opts.Schedule,
		Auth:          opts.Auth,
		Scripts:       opts.Scripts,
		Confidential:  opts.Confidential,
		Supervisor:    opts.Supervisor,
		ForkCacheSize: opts.ForkCacheSize,
	})
	if err != nil {
		return nil, err
	}
	app := &App{
		store:    s,
		chain:    c,
		sched:    scheduler.New(c, scheduler.Options{Logger: opts.Logger}),
		logger:   opts.Logger,
		notifier: opts.Notifier,
		schedule: opts.Schedule,
		skip:     opts.Skip,
	}
	c.OnApplied(func(b *types.SignedBlock, out types.BlockOutcome) {
		app.cbMu.Lock()
		defer app.cbMu.Unlock()
		app.lastBlock, app.lastOut = b, out
	})
	s.Subscribe(func(ch store.Changes) {
		app.cbMu.Lock()
		defer app.cbMu.Unlock()
		app.changes = ch
	})
	return app, nil
}

// Chain returns the block applicator.
func (app *App) Chain() *chain.Chain { return app.chain }

// Committed returns the last committed head.
func (app *App) Committed() types.BlockRef {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.committed
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func (app *App) Handshake(_ context.Context, req types.HandshakeRequest) (types.HandshakeResponse, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	caps := types.CapProposalControl | types.CapStateSync | types.CapSimulation

	var initialized bool
	app.chain.View(func(s *store.Store) { initialized = s.Has(types.GlobalPropertyID) })
	if !initialized {
		if req.Genesis == nil {
			return types.HandshakeResponse{}, errors.BadRequest.With("node has no state and no genesis document was given")
		}
		if id := app.chain.ChainID(); id != "" && req.Genesis.ChainID != id {
			return types.HandshakeResponse{}, errors.BadRequest.WithFormat("genesis is for chain %q, node runs %q", req.Genesis.ChainID, id)
		}
		if err := genesis.Init(app.store, *req.Genesis, app.logger); err != nil {
			return types.HandshakeResponse{}, err
		}
		app.clearCallbacks()
		app.committed = app.chain.Head()
		h := types.AppHash{}
		return types.HandshakeResponse{
			AppHash:      &h,
			Capabilities: caps,
		}, nil
	}

	head := app.chain.Head()
	h, err := app.chain.AppHash()
	if err != nil {
		return types.HandshakeResponse{}, err
	}
	app.committed = head
	if req.LastCommitted != nil && *req.LastCommitted != head {
		app.logger.Warn().Uint64("engine_height", req.LastCommitted.Height).Uint64("node_height", head.Height).Msg("Engine and node disagree on the last committed block")
	}
	app.logger.Info().Uint64("height", head.Height).Stringer("block_id", head.ID).Msg("Handshake")
	return types.HandshakeResponse{
		LastBlock:    &head,
		AppHash:      &h,
		Capabilities: caps,
	}, nil
}

func (app *App) CheckTx(ctx context.Context, tx types.Tx, mctx types.MempoolContext) (types.GateVerdict, error) {
	signed, err := types.DecodeTx(tx)
	if err != nil {
		checked.WithLabelValues(errors.BadRequest.String()).Inc()
		return types.GateVerdict{Code: uint32(errors.BadRequest), Info: err.Error()}, nil
	}
	if mctx == types.MempoolRevalidation {
		if ptx, ok := app.pending(&signed); ok {
			checked.WithLabelValues(errors.OK.String()).Inc()
			return verdict(&signed, ptx), nil
		}
	}
	ptx, err := app.chain.PushTransaction(ctx, signed)
	if err != nil {
		code := errors.Code(err)
		checked.WithLabelValues(code.String()).Inc()
		return types.GateVerdict{Code: uint32(code), Info: err.Error()}, nil
	}
	checked.WithLabelValues(errors.OK.String()).Inc()
	return verdict(&signed, ptx), nil
}

// pending finds tx in the pending pool.
func (app *App) pending(tx *types.SignedTransaction) (types.ProcessedTransaction, bool) {
	id, err := tx.ID()
	if err != nil {
		return types.ProcessedTransaction{}, false
	}
	for _, ptx := range app.chain.PendingTransactions() {
		if pid, err := ptx.Signed.ID(); err == nil && pid == id {
			return ptx, true
		}
	}
	return types.ProcessedTransaction{}, false
}

// verdict accepts tx, prioritized by the core fee it paid.
func verdict(tx *types.SignedTransaction, ptx types.ProcessedTransaction) types.GateVerdict {
	var v types.GateVerdict
	for _, res := range ptx.OperationResults {
		for _, f := range res.Fees {
			if f.AssetID == types.CoreAsset {
				v.Priority += f.Amount
			}
		}
	}
	if ops, err := tx.Transaction.Decoded(); err == nil && len(ops) > 0 {
		v.Sender = ops[0].FeePayer().String()
	}
	return v
}

// ExecuteBlock applies the block. A fatal failure is reported as a
// ledger.HaltError.
func (app *App) ExecuteBlock(ctx context.Context, block types.FinalizedBlock) (types.BlockOutcome, error) {
	out, err := app.chain.ApplyBlock(ctx, &block.Block, app.skip)
	return out, ledger.HaltOnFatal(block.Height(), err)
}

func (app *App) Commit(ctx context.Context) (types.CommitResult, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	if err := app.chain.Commit(); err != nil {
		return types.CommitResult{}, err
	}
	app.committed = app.chain.Head()
	app.snap = nil

	app.cbMu.Lock()
	b, out, ch := app.lastBlock, app.lastOut, app.changes
	app.cbMu.Unlock()
	app.clearCallbacks()
	if app.notifier != nil && b != nil {
		app.publish(ctx, b, out, ch)
	}

	report := app.sched.Restore(ctx, nil, app.chain.ClearPending())
	app.logger.Debug().Uint64("height", app.committed.Height).Int("restored", report.Restored).Int("reinjected", report.Reinjected).Msg("Pending pool refilled")

	var lib uint32
	app.chain.View(func(s *store.Store) { lib = store.DynamicGlobals(s).LastIrreversibleBlockNum })
	return types.CommitResult{RetainHeight: uint64(lib)}, nil
}

// publish sends the notices of a committed block. Broker failures do not
// undo the commit; they are logged.
func (app *App) publish(ctx context.Context, b *types.SignedBlock, out types.BlockOutcome, ch store.Changes) {
	if err := app.notifier.PublishBlock(ctx, b, out); err != nil {
		app.logger.Warn().Err(err).Uint32("block_num", b.Num()).Msg("Block notice not published")
	}
	if err := app.notifier.PublishChanges(ctx, uint64(b.Num()), out.BlockID, ch); err != nil {
		app.logger.Warn().Err(err).Uint32("block_num", b.Num()).Msg("Change notice not published")
	}
}

func (app *App) clearCallbacks() {
	app.cbMu.Lock()
	defer app.cbMu.Unlock()
	app.lastBlock, app.lastOut, app.changes = nil, types.BlockOutcome{}, store.Changes{}
}

// PopBlock reverts the head block and refills the pending pool with its
// transactions followed by those that were pending.
func (app *App) PopBlock(ctx context.Context) (scheduler.Report, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	popped, err := app.chain.PopBlock()
	if err != nil {
		return scheduler.Report{}, err
	}
	app.committed = app.chain.Head()
	app.snap = nil
	app.clearCallbacks()
	return app.sched.Restore(ctx, popped, app.chain.ClearPending()), nil
}

// ---------------------------------------------------------------------------
// Simulator
// ---------------------------------------------------------------------------

func (app *App) Simulate(ctx context.Context, tx types.Tx) (types.TxOutcome, error) {
	signed, err := types.DecodeTx(tx)
	if err != nil {
		return types.TxOutcome{Code: uint32(errors.BadRequest), Info: err.Error()}, nil
	}
	id, err := signed.ID()
	if err != nil {
		return types.TxOutcome{Code: uint32(errors.BadRequest), Info: err.Error()}, nil
	}
	ptx, events, err := app.chain.DryRun(ctx, signed)
	if err != nil {
		return types.TxOutcome{Code: uint32(errors.Code(err)), Info: err.Error(), Data: id[:]}, nil
	}
	return types.TxOutcome{
		Data:    id[:],
		Events:  events,
		Results: ptx.OperationResults,
	}, nil
}
