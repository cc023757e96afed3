package ledgergrpc

import (
	"context"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/server"
	"github.com/blockberries/ledger/types"
)

// Compile-time interface check.
var _ ledger.Connection = (*Client)(nil)

// Client is a ledger.Connection to a remote node.
type Client struct {
	cc    *grpc.ClientConn
	caps  types.Capabilities
	guard *server.LifecycleGuard
}

// Dial connects to a remote node.
func Dial(ctx context.Context, addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.ForceCodec(CramberryCodec{}),
	))
	cc, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, errors.Internal.WithFormat("dial %s: %w", addr, err)
	}
	return &Client{
		cc:    cc,
		guard: server.NewLifecycleGuard(),
	}, nil
}

func (c *Client) Close() error {
	return c.cc.Close()
}

// invoke calls method and restores the errors.Status of a failure.
func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	var trailer metadata.MD
	err := c.cc.Invoke(ctx, fullMethod(method), req, resp, grpc.Trailer(&trailer))
	return fromRPC(err, trailer)
}

// --- Lifecycle ---

func (c *Client) Handshake(ctx context.Context, req types.HandshakeRequest) (types.HandshakeResponse, error) {
	c.guard.AcquireHandshake()

	resp := new(types.HandshakeResponse)
	if err := c.invoke(ctx, "Handshake", &req, resp); err != nil {
		c.guard.FailHandshake()
		return types.HandshakeResponse{}, err
	}

	c.caps = resp.Capabilities
	c.guard.CompleteHandshake()
	return *resp, nil
}

func (c *Client) CheckTx(ctx context.Context, tx types.Tx, mctx types.MempoolContext) (types.GateVerdict, error) {
	c.guard.CheckConcurrent()

	resp := new(types.GateVerdict)
	if err := c.invoke(ctx, "CheckTx", &CheckTxRequest{Tx: tx, Context: mctx}, resp); err != nil {
		return types.GateVerdict{}, err
	}
	return *resp, nil
}

func (c *Client) ExecuteBlock(ctx context.Context, block types.FinalizedBlock) (types.BlockOutcome, error) {
	c.guard.AcquireExecute()

	resp := new(types.BlockOutcome)
	if err := c.invoke(ctx, "ExecuteBlock", &block, resp); err != nil {
		c.guard.FailExecute()
		return types.BlockOutcome{}, err
	}

	c.guard.CompleteExecute()
	return *resp, nil
}

func (c *Client) Commit(ctx context.Context) (types.CommitResult, error) {
	c.guard.AcquireCommit()
	defer c.guard.CompleteCommit()

	resp := new(types.CommitResult)
	if err := c.invoke(ctx, "Commit", &CommitRequest{}, resp); err != nil {
		return types.CommitResult{}, err
	}
	return *resp, nil
}

func (c *Client) Query(ctx context.Context, req types.StateQuery) (types.StateQueryResult, error) {
	c.guard.CheckConcurrent()

	resp := new(types.StateQueryResult)
	if err := c.invoke(ctx, "Query", &req, resp); err != nil {
		return types.StateQueryResult{}, err
	}
	return *resp, nil
}

// --- Capability Accessors ---

func (c *Client) Capabilities() types.Capabilities { return c.caps }

func (c *Client) AsProposalControl() ledger.ProposalControl {
	if c.caps.Has(types.CapProposalControl) {
		return &clientProposalControl{c}
	}
	return nil
}

func (c *Client) AsStateSync() ledger.StateSync {
	if c.caps.Has(types.CapStateSync) {
		return &clientStateSync{c}
	}
	return nil
}

func (c *Client) AsSimulator() ledger.Simulator {
	if c.caps.Has(types.CapSimulation) {
		return &clientSimulator{c}
	}
	return nil
}

// --- ProposalControl wrapper ---

type clientProposalControl struct{ c *Client }

func (w *clientProposalControl) BuildProposal(ctx context.Context, pctx types.ProposalContext) (types.BuiltProposal, error) {
	resp := new(types.BuiltProposal)
	if err := w.c.invoke(ctx, "BuildProposal", &pctx, resp); err != nil {
		return types.BuiltProposal{}, err
	}
	return *resp, nil
}

func (w *clientProposalControl) VerifyProposal(ctx context.Context, prop types.ReceivedProposal) (types.ProposalVerdict, error) {
	resp := new(types.ProposalVerdict)
	if err := w.c.invoke(ctx, "VerifyProposal", &prop, resp); err != nil {
		return types.ProposalVerdict{}, err
	}
	return *resp, nil
}

// --- StateSync wrapper ---

type clientStateSync struct{ c *Client }

func (w *clientStateSync) AvailableSnapshots(ctx context.Context) ([]types.SnapshotDescriptor, error) {
	resp := new(AvailableSnapshotsResponse)
	if err := w.c.invoke(ctx, "AvailableSnapshots", &AvailableSnapshotsRequest{}, resp); err != nil {
		return nil, err
	}
	return resp.Snapshots, nil
}

func (w *clientStateSync) ExportSnapshot(ctx context.Context, height uint64, format uint32) (<-chan types.SnapshotChunk, *types.SnapshotDescriptor, error) {
	stream, err := w.c.cc.NewStream(ctx, &grpc.StreamDesc{
		StreamName:    "ExportSnapshot",
		ServerStreams: true,
	}, fullMethod("ExportSnapshot"))
	if err != nil {
		return nil, nil, fromRPC(err, nil)
	}
	if err := stream.SendMsg(&ExportSnapshotRequest{Height: height, Format: format}); err != nil {
		return nil, nil, fromRPC(err, stream.Trailer())
	}
	if err := stream.CloseSend(); err != nil {
		return nil, nil, fromRPC(err, stream.Trailer())
	}

	// The descriptor comes first.
	first := new(SnapshotMessage)
	if err := stream.RecvMsg(first); err != nil {
		return nil, nil, fromRPC(err, stream.Trailer())
	}
	if first.Descriptor == nil {
		return nil, nil, errors.BadRequest.With("export stream did not start with a descriptor")
	}

	ch := make(chan types.SnapshotChunk)
	go func() {
		defer close(ch)
		for {
			msg := new(SnapshotMessage)
			if err := stream.RecvMsg(msg); err != nil {
				return
			}
			if msg.Chunk == nil {
				continue
			}
			select {
			case ch <- *msg.Chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, first.Descriptor, nil
}

func (w *clientStateSync) ImportSnapshot(ctx context.Context, desc types.SnapshotDescriptor, chunks <-chan types.SnapshotChunk) (types.ImportResult, error) {
	stream, err := w.c.cc.NewStream(ctx, &grpc.StreamDesc{
		StreamName:    "ImportSnapshot",
		ClientStreams: true,
	}, fullMethod("ImportSnapshot"))
	if err != nil {
		return types.ImportResult{}, fromRPC(err, nil)
	}

	if err := stream.SendMsg(&SnapshotMessage{Descriptor: &desc}); err != nil {
		return types.ImportResult{}, w.streamErr(stream, err)
	}
	for chunk := range chunks {
		chunk := chunk
		if err := stream.SendMsg(&SnapshotMessage{Chunk: &chunk}); err != nil {
			return types.ImportResult{}, w.streamErr(stream, err)
		}
	}
	if err := stream.CloseSend(); err != nil {
		return types.ImportResult{}, w.streamErr(stream, err)
	}

	result := new(types.ImportResult)
	if err := stream.RecvMsg(result); err != nil {
		return types.ImportResult{}, fromRPC(err, stream.Trailer())
	}
	return *result, nil
}

// streamErr resolves a send failure. An io.EOF from SendMsg means the
// server ended the stream; its status comes from RecvMsg.
func (w *clientStateSync) streamErr(stream grpc.ClientStream, err error) error {
	if err == io.EOF {
		err = stream.RecvMsg(new(types.ImportResult))
	}
	return fromRPC(err, stream.Trailer())
}

// --- Simulator wrapper ---

type clientSimulator struct{ c *Client }

func (w *clientSimulator) Simulate(ctx context.Context, tx types.Tx) (types.TxOutcome, error) {
	resp := new(types.TxOutcome)
	if err := w.c.invoke(ctx, "Simulate", &SimulateRequest{Tx: tx}, resp); err != nil {
		return types.TxOutcome{}, err
	}
	return *resp, nil
}
