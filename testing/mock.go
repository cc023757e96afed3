// Package ledgertest provides test utilities for code that drives a
// ledger node: a configurable mock, a harness around the lifecycle
// guard and a compliance suite for block-authoring nodes.
package ledgertest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/types"
)

// Compile-time check that MockApp satisfies all interfaces.
var (
	_ ledger.Lifecycle       = (*MockApp)(nil)
	_ ledger.ProposalControl = (*MockApp)(nil)
	_ ledger.StateSync       = (*MockApp)(nil)
	_ ledger.Simulator       = (*MockApp)(nil)
)

// MockApp is a configurable mock node for engine testing.
// All methods are configurable via function fields. Unconfigured
// methods return sensible zero-value defaults.
//
// MockApp implements all optional interfaces so it can be used to
// test capability discovery. Control which capabilities are declared
// via the DeclaredCapabilities field.
type MockApp struct {
	mu sync.Mutex

	// DeclaredCapabilities controls the bitfield returned at handshake.
	DeclaredCapabilities types.Capabilities

	// Configurable handlers. If nil, defaults are used.
	HandshakeFn          func(context.Context, types.HandshakeRequest) (types.HandshakeResponse, error)
	CheckTxFn            func(context.Context, types.Tx, types.MempoolContext) (types.GateVerdict, error)
	ExecuteBlockFn       func(context.Context, types.FinalizedBlock) (types.BlockOutcome, error)
	CommitFn             func(context.Context) (types.CommitResult, error)
	QueryFn              func(context.Context, types.StateQuery) (types.StateQueryResult, error)
	BuildProposalFn      func(context.Context, types.ProposalContext) (types.BuiltProposal, error)
	VerifyProposalFn     func(context.Context, types.ReceivedProposal) (types.ProposalVerdict, error)
	AvailableSnapshotsFn func(context.Context) ([]types.SnapshotDescriptor, error)
	ExportSnapshotFn     func(context.Context, uint64, uint32) (<-chan types.SnapshotChunk, *types.SnapshotDescriptor, error)
	ImportSnapshotFn     func(context.Context, types.SnapshotDescriptor, <-chan types.SnapshotChunk) (types.ImportResult, error)
	SimulateFn           func(context.Context, types.Tx) (types.TxOutcome, error)

	// Call counters (atomic for concurrent access).
	HandshakeCalls    atomic.Int64
	CheckTxCalls      atomic.Int64
	ExecuteBlockCalls atomic.Int64
	CommitCalls       atomic.Int64
	QueryCalls        atomic.Int64

	executed []types.BlockID
}

// Executed returns the ids of the blocks the default ExecuteBlock saw.
func (m *MockApp) Executed() []types.BlockID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.BlockID(nil), m.executed...)
}

func (m *MockApp) Handshake(ctx context.Context, req types.HandshakeRequest) (types.HandshakeResponse, error) {
	m.HandshakeCalls.Add(1)
	if m.HandshakeFn != nil {
		return m.HandshakeFn(ctx, req)
	}
	return types.HandshakeResponse{
		Capabilities: m.DeclaredCapabilities,
	}, nil
}

func (m *MockApp) CheckTx(ctx context.Context, tx types.Tx, mctx types.MempoolContext) (types.GateVerdict, error) {
	m.CheckTxCalls.Add(1)
	if m.CheckTxFn != nil {
		return m.CheckTxFn(ctx, tx, mctx)
	}
	return types.GateVerdict{Code: 0}, nil
}

func (m *MockApp) ExecuteBlock(ctx context.Context, block types.FinalizedBlock) (types.BlockOutcome, error) {
	m.ExecuteBlockCalls.Add(1)
	if m.ExecuteBlockFn != nil {
		return m.ExecuteBlockFn(ctx, block)
	}
	outcomes := make([]types.TxOutcome, len(block.Block.Transactions))
	for i := range block.Block.Transactions {
		outcomes[i] = types.TxOutcome{Index: uint32(i)}
	}
	id, err := block.Block.ID()
	if err != nil {
		return types.BlockOutcome{}, err
	}
	m.mu.Lock()
	m.executed = append(m.executed, id)
	m.mu.Unlock()
	return types.BlockOutcome{
		TxOutcomes: outcomes,
		AppHash:    types.AppHash{0x01},
		BlockID:    id,
	}, nil
}

func (m *MockApp) Commit(ctx context.Context) (types.CommitResult, error) {
	m.CommitCalls.Add(1)
	if m.CommitFn != nil {
		return m.CommitFn(ctx)
	}
	return types.CommitResult{}, nil
}

func (m *MockApp) Query(ctx context.Context, req types.StateQuery) (types.StateQueryResult, error) {
	m.QueryCalls.Add(1)
	if m.QueryFn != nil {
		return m.QueryFn(ctx, req)
	}
	return types.StateQueryResult{}, nil
}

func (m *MockApp) BuildProposal(ctx context.Context, pctx types.ProposalContext) (types.BuiltProposal, error) {
	if m.BuildProposalFn != nil {
		return m.BuildProposalFn(ctx, pctx)
	}
	return types.BuiltProposal{Block: types.SignedBlock{
		Header: types.BlockHeader{Timestamp: pctx.Time, Witness: pctx.Witness},
	}}, nil
}

func (m *MockApp) VerifyProposal(ctx context.Context, prop types.ReceivedProposal) (types.ProposalVerdict, error) {
	if m.VerifyProposalFn != nil {
		return m.VerifyProposalFn(ctx, prop)
	}
	return types.ProposalVerdict{Accept: true}, nil
}

func (m *MockApp) AvailableSnapshots(ctx context.Context) ([]types.SnapshotDescriptor, error) {
	if m.AvailableSnapshotsFn != nil {
		return m.AvailableSnapshotsFn(ctx)
	}
	return nil, nil
}

func (m *MockApp) ExportSnapshot(ctx context.Context, height uint64, format uint32) (<-chan types.SnapshotChunk, *types.SnapshotDescriptor, error) {
	if m.ExportSnapshotFn != nil {
		return m.ExportSnapshotFn(ctx, height, format)
	}
	ch := make(chan types.SnapshotChunk)
	close(ch)
	return ch, &types.SnapshotDescriptor{Height: height, Format: format}, nil
}

func (m *MockApp) ImportSnapshot(ctx context.Context, desc types.SnapshotDescriptor, chunks <-chan types.SnapshotChunk) (types.ImportResult, error) {
	if m.ImportSnapshotFn != nil {
		return m.ImportSnapshotFn(ctx, desc, chunks)
	}
	for range chunks {
	}
	ah := types.AppHash{0x01}
	return types.ImportResult{Status: types.ImportOK, AppHash: &ah}, nil
}

func (m *MockApp) Simulate(ctx context.Context, tx types.Tx) (types.TxOutcome, error) {
	if m.SimulateFn != nil {
		return m.SimulateFn(ctx, tx)
	}
	return types.TxOutcome{Code: 0}, nil
}
