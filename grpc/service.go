package ledgergrpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/blockberries/ledger/types"
)

const serviceName = "ledger.v1.LedgerService"

// LedgerServiceServer is the server side of the ledger gRPC service.
type LedgerServiceServer interface {
	Handshake(context.Context, *types.HandshakeRequest) (*types.HandshakeResponse, error)
	CheckTx(context.Context, *CheckTxRequest) (*types.GateVerdict, error)
	ExecuteBlock(context.Context, *types.FinalizedBlock) (*types.BlockOutcome, error)
	Commit(context.Context, *CommitRequest) (*types.CommitResult, error)
	Query(context.Context, *types.StateQuery) (*types.StateQueryResult, error)
	BuildProposal(context.Context, *types.ProposalContext) (*types.BuiltProposal, error)
	VerifyProposal(context.Context, *types.ReceivedProposal) (*types.ProposalVerdict, error)
	AvailableSnapshots(context.Context, *AvailableSnapshotsRequest) (*AvailableSnapshotsResponse, error)
	ExportSnapshot(*ExportSnapshotRequest, grpc.ServerStream) error
	ImportSnapshot(grpc.ServerStream) error
	Simulate(context.Context, *SimulateRequest) (*types.TxOutcome, error)
}

// RegisterLedgerServiceServer registers srv on s.
func RegisterLedgerServiceServer(s *grpc.Server, srv LedgerServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

// unary builds the handler of a unary method out of its server method.
func unary[Req, Resp any](method string, call func(LedgerServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServiceServer), ctx, req.(*Req))
		}
		if interceptor == nil {
			return handler(ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		return interceptor(ctx, req, info, handler)
	}
}

func handlerExportSnapshot(srv any, stream grpc.ServerStream) error {
	req := new(ExportSnapshotRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(LedgerServiceServer).ExportSnapshot(req, stream)
}

func handlerImportSnapshot(srv any, stream grpc.ServerStream) error {
	return srv.(LedgerServiceServer).ImportSnapshot(stream)
}

// serviceDesc is written by hand; there is no generated code.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Handshake", Handler: unary("Handshake", LedgerServiceServer.Handshake)},
		{MethodName: "CheckTx", Handler: unary("CheckTx", LedgerServiceServer.CheckTx)},
		{MethodName: "ExecuteBlock", Handler: unary("ExecuteBlock", LedgerServiceServer.ExecuteBlock)},
		{MethodName: "Commit", Handler: unary("Commit", LedgerServiceServer.Commit)},
		{MethodName: "Query", Handler: unary("Query", LedgerServiceServer.Query)},
		{MethodName: "BuildProposal", Handler: unary("BuildProposal", LedgerServiceServer.BuildProposal)},
		{MethodName: "VerifyProposal", Handler: unary("VerifyProposal", LedgerServiceServer.VerifyProposal)},
		{MethodName: "AvailableSnapshots", Handler: unary("AvailableSnapshots", LedgerServiceServer.AvailableSnapshots)},
		{MethodName: "Simulate", Handler: unary("Simulate", LedgerServiceServer.Simulate)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ExportSnapshot",
			Handler:       handlerExportSnapshot,
			ServerStreams: true,
		},
		{
			StreamName:    "ImportSnapshot",
			Handler:       handlerImportSnapshot,
			ClientStreams: true,
		},
	},
	Metadata: "ledger/v1/service.cram",
}
