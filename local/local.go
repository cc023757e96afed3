// Package local provides an in-process ledger connection.
//
// The node runs in the same binary as the engine driving it. Calls go
// through a server.Server for lifecycle enforcement and capability
// discovery, with no serialization.
package local

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/server"
	"github.com/blockberries/ledger/types"
)

// Compile-time interface check.
var _ ledger.Connection = (*Connection)(nil)

// Connection wraps a local Lifecycle implementation.
type Connection struct {
	srv *server.Server
}

// NewConnection wraps app.
func NewConnection(app ledger.Lifecycle, logger zerolog.Logger) *Connection {
	return &Connection{srv: server.New(app, server.Options{Logger: logger})}
}

func (c *Connection) Handshake(ctx context.Context, req types.HandshakeRequest) (types.HandshakeResponse, error) {
	return c.srv.Handshake(ctx, req)
}

func (c *Connection) CheckTx(ctx context.Context, tx types.Tx, mctx types.MempoolContext) (types.GateVerdict, error) {
	return c.srv.CheckTx(ctx, tx, mctx)
}

func (c *Connection) ExecuteBlock(ctx context.Context, block types.FinalizedBlock) (types.BlockOutcome, error) {
	return c.srv.ExecuteBlock(ctx, block)
}

func (c *Connection) Commit(ctx context.Context) (types.CommitResult, error) {
	return c.srv.Commit(ctx)
}

func (c *Connection) Query(ctx context.Context, req types.StateQuery) (types.StateQueryResult, error) {
	return c.srv.Query(ctx, req)
}

func (c *Connection) Capabilities() types.Capabilities {
	return c.srv.Capabilities()
}

func (c *Connection) AsProposalControl() ledger.ProposalControl {
	return c.srv.AsProposalControl()
}

func (c *Connection) AsStateSync() ledger.StateSync {
	return c.srv.AsStateSync()
}

func (c *Connection) AsSimulator() ledger.Simulator {
	return c.srv.AsSimulator()
}

func (c *Connection) Close() error { return nil }

// Server returns the underlying server.
func (c *Connection) Server() *server.Server {
	return c.srv
}

// Produce authors the block described by pctx, then executes and
// commits it. It stands in for the consensus engine on a chain with a
// single producer.
func (c *Connection) Produce(ctx context.Context, pctx types.ProposalContext) (types.BlockOutcome, error) {
	pc := c.srv.AsProposalControl()
	if pc == nil {
		return types.BlockOutcome{}, errors.NotSupported.With("node cannot author blocks")
	}
	built, err := pc.BuildProposal(ctx, pctx)
	if err != nil {
		return types.BlockOutcome{}, err
	}
	outcome, err := c.srv.ExecuteBlock(ctx, types.FinalizedBlock{Block: built.Block})
	if err != nil {
		return types.BlockOutcome{}, err
	}
	if _, err := c.srv.Commit(ctx); err != nil {
		return types.BlockOutcome{}, err
	}
	return outcome, nil
}
