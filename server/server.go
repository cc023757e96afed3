package server

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/types"
)

type Options struct {
	Logger zerolog.Logger
}

// Server wraps a ledger node with lifecycle enforcement and capability
// routing. The consensus engine talks to the node only through it.
type Server struct {
	app    ledger.Lifecycle
	guard  *LifecycleGuard
	caps   types.Capabilities
	logger zerolog.Logger

	// Optional interfaces (nil if not supported).
	proposalCtl ledger.ProposalControl
	stateSync   ledger.StateSync
	simulator   ledger.Simulator

	// Held between ExecuteBlock and Commit.
	mu          sync.Mutex
	lastOutcome *types.BlockOutcome
	lastHeight  uint64
}

var _ ledger.Connection = (*Server)(nil)

// New creates a Server wrapping app.
func New(app ledger.Lifecycle, opts Options) *Server {
	s := &Server{
		app:    app,
		guard:  NewLifecycleGuard(),
		logger: opts.Logger,
	}
	// Validated against the declared capabilities at handshake.
	s.proposalCtl, _ = app.(ledger.ProposalControl)
	s.stateSync, _ = app.(ledger.StateSync)
	s.simulator, _ = app.(ledger.Simulator)
	return s
}

// Handshake performs the startup handshake, validates the declared
// capabilities and moves the guard to Ready.
func (s *Server) Handshake(ctx context.Context, req types.HandshakeRequest) (types.HandshakeResponse, error) {
	s.guard.AcquireHandshake()

	resp, err := s.app.Handshake(ctx, req)
	if err != nil {
		s.guard.FailHandshake()
		return resp, err
	}
	if err := s.discoverCapabilities(resp.Capabilities); err != nil {
		s.guard.FailHandshake()
		return resp, err
	}

	s.caps = resp.Capabilities
	s.guard.CompleteHandshake()
	calls.WithLabelValues("handshake").Inc()
	s.logger.Info().Stringer("capabilities", s.caps).Msg("Handshake complete")
	return resp, nil
}

// CheckTx gate-checks a transaction for the pending pool. Safe for
// concurrent use.
func (s *Server) CheckTx(ctx context.Context, tx types.Tx, mctx types.MempoolContext) (types.GateVerdict, error) {
	s.guard.CheckConcurrent()
	calls.WithLabelValues("check_tx").Inc()
	return s.app.CheckTx(ctx, tx, mctx)
}

// ExecuteBlock applies a finalized block.
func (s *Server) ExecuteBlock(ctx context.Context, block types.FinalizedBlock) (types.BlockOutcome, error) {
	s.guard.AcquireExecute()

	outcome, err := s.app.ExecuteBlock(ctx, block)
	if err != nil {
		s.guard.FailExecute()
		return outcome, err
	}

	s.mu.Lock()
	s.lastOutcome = &outcome
	s.lastHeight = block.Height()
	s.mu.Unlock()

	s.guard.CompleteExecute()
	calls.WithLabelValues("execute_block").Inc()
	return outcome, nil
}

// Commit persists the block of the last ExecuteBlock.
func (s *Server) Commit(ctx context.Context) (types.CommitResult, error) {
	s.guard.AcquireCommit()

	result, err := s.app.Commit(ctx)

	s.mu.Lock()
	height := s.lastHeight
	s.lastOutcome = nil
	s.mu.Unlock()

	s.guard.CompleteCommit()
	calls.WithLabelValues("commit").Inc()
	if err != nil {
		s.logger.Error().Err(err).Uint64("height", height).Msg("Commit failed")
	}
	return result, err
}

// Query reads committed state. Safe for concurrent use.
func (s *Server) Query(ctx context.Context, req types.StateQuery) (types.StateQueryResult, error) {
	s.guard.CheckConcurrent()
	calls.WithLabelValues("query").Inc()
	return s.app.Query(ctx, req)
}

// Capabilities returns the declared capabilities. Only valid after
// Handshake completes.
func (s *Server) Capabilities() types.Capabilities {
	return s.caps
}

// --- Capability-gated optional methods ---

// BuildProposal delegates to ProposalControl if supported.
func (s *Server) BuildProposal(ctx context.Context, pctx types.ProposalContext) (types.BuiltProposal, error) {
	if s.proposalCtl == nil {
		return types.BuiltProposal{}, errors.NotSupported.With("ProposalControl not supported")
	}
	s.guard.CheckConcurrent()
	calls.WithLabelValues("build_proposal").Inc()
	return s.proposalCtl.BuildProposal(ctx, pctx)
}

// VerifyProposal delegates to ProposalControl if supported. Without it
// every proposal is accepted.
func (s *Server) VerifyProposal(ctx context.Context, prop types.ReceivedProposal) (types.ProposalVerdict, error) {
	if s.proposalCtl == nil {
		return types.ProposalVerdict{Accept: true}, nil
	}
	s.guard.CheckConcurrent()
	calls.WithLabelValues("verify_proposal").Inc()
	return s.proposalCtl.VerifyProposal(ctx, prop)
}

// AvailableSnapshots delegates to StateSync if supported.
func (s *Server) AvailableSnapshots(ctx context.Context) ([]types.SnapshotDescriptor, error) {
	if s.stateSync == nil {
		return nil, errors.NotSupported.With("StateSync not supported")
	}
	return s.stateSync.AvailableSnapshots(ctx)
}

// ExportSnapshot delegates to StateSync if supported.
func (s *Server) ExportSnapshot(ctx context.Context, height uint64, format uint32) (<-chan types.SnapshotChunk, *types.SnapshotDescriptor, error) {
	if s.stateSync == nil {
		return nil, nil, errors.NotSupported.With("StateSync not supported")
	}
	return s.stateSync.ExportSnapshot(ctx, height, format)
}

// ImportSnapshot delegates to StateSync if supported.
func (s *Server) ImportSnapshot(ctx context.Context, desc types.SnapshotDescriptor, chunks <-chan types.SnapshotChunk) (types.ImportResult, error) {
	if s.stateSync == nil {
		return types.ImportResult{}, errors.NotSupported.With("StateSync not supported")
	}
	return s.stateSync.ImportSnapshot(ctx, desc, chunks)
}

// Simulate delegates to Simulator if supported. Safe for concurrent use.
func (s *Server) Simulate(ctx context.Context, tx types.Tx) (types.TxOutcome, error) {
	if s.simulator == nil {
		return types.TxOutcome{}, errors.NotSupported.With("Simulator not supported")
	}
	s.guard.CheckConcurrent()
	calls.WithLabelValues("simulate").Inc()
	return s.simulator.Simulate(ctx, tx)
}

// AsProposalControl returns the ProposalControl interface or nil.
func (s *Server) AsProposalControl() ledger.ProposalControl {
	if s.caps.Has(types.CapProposalControl) {
		return s
	}
	return nil
}

// AsStateSync returns the StateSync interface or nil.
func (s *Server) AsStateSync() ledger.StateSync {
	if s.caps.Has(types.CapStateSync) {
		return s
	}
	return nil
}

// AsSimulator returns the Simulator interface or nil.
func (s *Server) AsSimulator() ledger.Simulator {
	if s.caps.Has(types.CapSimulation) {
		return s
	}
	return nil
}

// LastOutcome returns the outcome of the block between ExecuteBlock and
// Commit, or nil.
func (s *Server) LastOutcome() *types.BlockOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOutcome
}

// State returns the lifecycle state name.
func (s *Server) State() string { return s.guard.State() }

// Close is a no-op for the server wrapper.
func (s *Server) Close() error { return nil }

// discoverCapabilities checks the declared capabilities against the
// interfaces the node implements.
func (s *Server) discoverCapabilities(declared types.Capabilities) error {
	has := map[types.Capabilities]bool{
		types.CapProposalControl: s.proposalCtl != nil,
		types.CapStateSync:       s.stateSync != nil,
		types.CapSimulation:      s.simulator != nil,
	}
	for _, c := range []types.Capabilities{types.CapProposalControl, types.CapStateSync, types.CapSimulation} {
		switch {
		case declared.Has(c) && !has[c]:
			return errors.BadRequest.WithFormat("node declared %v but does not implement it", c)
		case !declared.Has(c) && has[c]:
			s.logger.Warn().Stringer("capability", c).Msg("Node implements a capability it did not declare; it will not be used")
		}
	}
	return nil
}
