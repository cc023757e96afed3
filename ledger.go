// Package ledger defines the boundary between the consensus engine and
// the ledger node: the lifecycle the engine drives, the optional
// capabilities discovered at handshake, and the collaborators the
// evaluation core consumes (authority and signature oracles, witness
// schedule, script engine, clock).
//
// The core [Lifecycle] interface is required. All other interfaces
// are optional capabilities discovered via Go type assertion at
// handshake time.
package ledger

import (
	"context"

	"github.com/blockberries/ledger/types"
)

// Lifecycle is the core interface every ledger node implements.
//
// The engine guarantees the following call order:
//  1. Handshake is called exactly once, before anything else.
//  2. ExecuteBlock(h) is called exactly once per committed height h.
//  3. Commit is called exactly once after each ExecuteBlock.
//  4. CheckTx, Query may be called concurrently at any time after Handshake.
type Lifecycle interface {
	// Handshake is called once on every startup (cold start or restart).
	//
	// The engine communicates the last block it committed. If LastCommitted
	// is nil, this is a fresh genesis and Genesis will be populated.
	//
	// The node returns its own view of its state so the engine can
	// detect and recover from any divergence.
	Handshake(ctx context.Context, req types.HandshakeRequest) (types.HandshakeResponse, error)

	// CheckTx gate-checks a transaction before it enters the pending pool.
	//
	// The context parameter distinguishes first-seen transactions from
	// re-validations after a block switch.
	//
	// This method MUST be safe for concurrent use.
	CheckTx(ctx context.Context, tx types.Tx, mctx types.MempoolContext) (types.GateVerdict, error)

	// ExecuteBlock applies a finalized block produced by a witness,
	// reproducing its recorded operation results.
	//
	// This method MUST NOT persist state to disk; Commit does that.
	// Replaying identical block bytes from an identical state must
	// produce the same AppHash and block id.
	ExecuteBlock(ctx context.Context, block types.FinalizedBlock) (types.BlockOutcome, error)

	// Commit persists all state changes from the last ExecuteBlock to
	// durable storage and fires change notifications.
	//
	// Called exactly once after each ExecuteBlock. Must be crash-safe:
	// either all changes land, or none do (atomic persistence).
	Commit(ctx context.Context) (types.CommitResult, error)

	// Query reads committed state.
	//
	// This method MUST be safe for concurrent use, including concurrent
	// with ExecuteBlock (reads see the last committed state).
	Query(ctx context.Context, req types.StateQuery) (types.StateQueryResult, error)
}

// ProposalControl lets the node author blocks when its witness is
// scheduled. Authoring runs every operation under the execution
// sandbox and records the results into the block.
//
// Declared via: types.CapProposalControl in HandshakeResponse.Capabilities
type ProposalControl interface {
	// BuildProposal authors the next block from the pending pool and the
	// supplied mempool transactions.
	BuildProposal(ctx context.Context, pctx types.ProposalContext) (types.BuiltProposal, error)

	// VerifyProposal checks block linkage, timestamp and producer
	// without applying transactions.
	//
	// This method MUST be deterministic.
	VerifyProposal(ctx context.Context, proposal types.ReceivedProposal) (types.ProposalVerdict, error)
}

// StateSync enables snapshot-based state synchronization for fast node
// bootstrapping.
//
// Declared via: types.CapStateSync in HandshakeResponse.Capabilities
type StateSync interface {
	// AvailableSnapshots lists snapshots the node can export.
	AvailableSnapshots(ctx context.Context) ([]types.SnapshotDescriptor, error)

	// ExportSnapshot exports a snapshot as a pull-based stream of chunks.
	//
	// The returned channel yields chunks in order. The channel is closed
	// after the last chunk.
	ExportSnapshot(ctx context.Context, height uint64, format uint32) (<-chan types.SnapshotChunk, *types.SnapshotDescriptor, error)

	// ImportSnapshot imports a snapshot from a push-based stream of chunks
	// and returns the resulting AppHash.
	ImportSnapshot(ctx context.Context, descriptor types.SnapshotDescriptor, chunks <-chan types.SnapshotChunk) (types.ImportResult, error)
}

// Simulator provides a dedicated path for dry-run execution.
//
// Declared via: types.CapSimulation in HandshakeResponse.Capabilities
type Simulator interface {
	// Simulate dry-runs a transaction against current committed state
	// without persisting any changes.
	//
	// This method MUST be safe for concurrent use.
	Simulate(ctx context.Context, tx types.Tx) (types.TxOutcome, error)
}

// Application embeds every node interface.
type Application interface {
	Lifecycle
	ProposalControl
	StateSync
	Simulator
}

// Connection represents a transport-agnostic connection to a ledger
// node. Both gRPC clients and in-process adapters implement this.
type Connection interface {
	Lifecycle

	// Capabilities returns the capabilities discovered at handshake.
	// Must only be called after Handshake completes.
	Capabilities() types.Capabilities

	// AsProposalControl returns the ProposalControl interface if
	// available, or nil if the node does not support it.
	AsProposalControl() ProposalControl

	// AsStateSync returns the StateSync interface if available.
	AsStateSync() StateSync

	// AsSimulator returns the Simulator interface if available.
	AsSimulator() Simulator

	// Close terminates the connection.
	Close() error
}
