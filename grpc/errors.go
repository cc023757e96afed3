package ledgergrpc

import (
	"context"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/blockberries/ledger/errors"
)

// statusTrailer carries the errors.Status of a failed call.
const statusTrailer = "ledger-status"

var grpcCodes = map[errors.Status]codes.Code{
	errors.BadRequest:          codes.InvalidArgument,
	errors.Unauthorized:        codes.PermissionDenied,
	errors.InsufficientBalance: codes.FailedPrecondition,
	errors.NotFound:            codes.NotFound,
	errors.NotSupported:        codes.Unimplemented,
	errors.Timeout:             codes.DeadlineExceeded,
	errors.Consistency:         codes.Aborted,
	errors.Expired:             codes.FailedPrecondition,
	errors.Precondition:        codes.FailedPrecondition,
	errors.FeeCeiling:          codes.ResourceExhausted,
	errors.Duplicate:           codes.AlreadyExists,
}

// toRPC turns err into a grpc status error along with the trailer that
// preserves its errors.Status.
func toRPC(err error) (metadata.MD, error) {
	if err == nil {
		return nil, nil
	}
	code := errors.Code(err)
	c, ok := grpcCodes[code]
	if !ok {
		c = codes.Internal
	}
	md := metadata.Pairs(statusTrailer, strconv.FormatUint(uint64(code), 10))
	return md, status.Error(c, err.Error())
}

// fromRPC restores the errors.Status of a failed call from its trailer.
func fromRPC(err error, trailer metadata.MD) error {
	if err == nil {
		return nil
	}
	msg := status.Convert(err).Message()
	if v := trailer.Get(statusTrailer); len(v) > 0 {
		if n, perr := strconv.ParseUint(v[0], 10, 64); perr == nil {
			return errors.Status(n).With(msg)
		}
	}
	switch status.Code(err) {
	case codes.DeadlineExceeded, codes.Canceled:
		return errors.Timeout.With(msg)
	case codes.Unimplemented:
		return errors.NotSupported.With(msg)
	default:
		return errors.Internal.WithFormat("rpc: %w", err)
	}
}

func unaryStatus(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		var md metadata.MD
		md, err = toRPC(err)
		_ = grpc.SetTrailer(ctx, md)
	}
	return resp, err
}

func streamStatus(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	err := handler(srv, ss)
	if err != nil {
		var md metadata.MD
		md, err = toRPC(err)
		ss.SetTrailer(md)
	}
	return err
}
