package ledgergrpc

import (
	"context"
	"io"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/server"
	"github.com/blockberries/ledger/types"
)

// Compile-time interface check.
var _ LedgerServiceServer = (*GRPCServer)(nil)

// GRPCServer serves a ledger node over gRPC. Calls go through a
// server.Server, which enforces the lifecycle order.
type GRPCServer struct {
	srv    *server.Server
	logger zerolog.Logger
}

// NewGRPCServer wraps app.
func NewGRPCServer(app ledger.Lifecycle, logger zerolog.Logger) *GRPCServer {
	return &GRPCServer{
		srv:    server.New(app, server.Options{Logger: logger}),
		logger: logger,
	}
}

// WrapServer serves srv, sharing its lifecycle guard with whatever
// else drives it in process.
func WrapServer(srv *server.Server, logger zerolog.Logger) *GRPCServer {
	return &GRPCServer{srv: srv, logger: logger}
}

// ServerOptions returns the options every grpc.Server hosting the
// service needs.
func ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(unaryStatus),
		grpc.ChainStreamInterceptor(streamStatus),
	}
}

// Register adds the service to gs.
func (s *GRPCServer) Register(gs *grpc.Server) {
	RegisterLedgerServiceServer(gs, s)
}

// Serve serves on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener, opts ...grpc.ServerOption) error {
	gs := grpc.NewServer(append(ServerOptions(), opts...)...)
	s.Register(gs)
	go func() {
		<-ctx.Done()
		gs.GracefulStop()
	}()
	s.logger.Info().Stringer("address", lis.Addr()).Msg("Serving gRPC")
	if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return errors.Internal.WithFormat("grpc serve: %w", err)
	}
	return nil
}

// Server returns the lifecycle wrapper.
func (s *GRPCServer) Server() *server.Server {
	return s.srv
}

// --- Lifecycle RPCs ---

func (s *GRPCServer) Handshake(ctx context.Context, req *types.HandshakeRequest) (*types.HandshakeResponse, error) {
	resp, err := s.srv.Handshake(ctx, *req)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *GRPCServer) CheckTx(ctx context.Context, req *CheckTxRequest) (*types.GateVerdict, error) {
	verdict, err := s.srv.CheckTx(ctx, req.Tx, req.Context)
	if err != nil {
		return nil, err
	}
	return &verdict, nil
}

func (s *GRPCServer) ExecuteBlock(ctx context.Context, block *types.FinalizedBlock) (*types.BlockOutcome, error) {
	outcome, err := s.srv.ExecuteBlock(ctx, *block)
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

func (s *GRPCServer) Commit(ctx context.Context, _ *CommitRequest) (*types.CommitResult, error) {
	result, err := s.srv.Commit(ctx)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *GRPCServer) Query(ctx context.Context, req *types.StateQuery) (*types.StateQueryResult, error) {
	result, err := s.srv.Query(ctx, *req)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// --- ProposalControl RPCs ---

func (s *GRPCServer) BuildProposal(ctx context.Context, pctx *types.ProposalContext) (*types.BuiltProposal, error) {
	proposal, err := s.srv.BuildProposal(ctx, *pctx)
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

func (s *GRPCServer) VerifyProposal(ctx context.Context, prop *types.ReceivedProposal) (*types.ProposalVerdict, error) {
	verdict, err := s.srv.VerifyProposal(ctx, *prop)
	if err != nil {
		return nil, err
	}
	return &verdict, nil
}

// --- StateSync RPCs ---

func (s *GRPCServer) AvailableSnapshots(ctx context.Context, _ *AvailableSnapshotsRequest) (*AvailableSnapshotsResponse, error) {
	snaps, err := s.srv.AvailableSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	return &AvailableSnapshotsResponse{Snapshots: snaps}, nil
}

func (s *GRPCServer) ExportSnapshot(req *ExportSnapshotRequest, stream grpc.ServerStream) error {
	ch, desc, err := s.srv.ExportSnapshot(stream.Context(), req.Height, req.Format)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&SnapshotMessage{Descriptor: desc}); err != nil {
		return err
	}
	for chunk := range ch {
		chunk := chunk
		if err := stream.SendMsg(&SnapshotMessage{Chunk: &chunk}); err != nil {
			return err
		}
	}
	return nil
}

func (s *GRPCServer) ImportSnapshot(stream grpc.ServerStream) error {
	first := new(SnapshotMessage)
	if err := stream.RecvMsg(first); err != nil {
		return err
	}
	if first.Descriptor == nil {
		return errors.BadRequest.With("first ImportSnapshot message must carry the descriptor")
	}

	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()
	chunks := make(chan types.SnapshotChunk)
	go func() {
		defer close(chunks)
		for {
			msg := new(SnapshotMessage)
			if err := stream.RecvMsg(msg); err != nil {
				if err != io.EOF {
					s.logger.Warn().Err(err).Msg("Snapshot stream broke off")
				}
				return
			}
			if msg.Chunk == nil {
				continue
			}
			select {
			case chunks <- *msg.Chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	result, err := s.srv.ImportSnapshot(ctx, *first.Descriptor, chunks)
	if err != nil {
		return err
	}
	return stream.SendMsg(&result)
}

// --- Simulator RPC ---

func (s *GRPCServer) Simulate(ctx context.Context, req *SimulateRequest) (*types.TxOutcome, error) {
	outcome, err := s.srv.Simulate(ctx, req.Tx)
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}
