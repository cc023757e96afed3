// Package ledgergrpc is the gRPC transport of the node lifecycle.
//
// No protobuf code generation is involved: the wire types of the types
// package travel as cramberry payloads through a codec registered with
// grpc. Errors keep their status across the wire in the ledger-status
// trailer.
package ledgergrpc

import (
	"github.com/blockberries/cramberry/pkg/cramberry"
	"google.golang.org/grpc/encoding"

	"github.com/blockberries/ledger/errors"
)

const codecName = "cramberry"

// CramberryCodec implements grpc/encoding.Codec with cramberry.
type CramberryCodec struct{}

func (CramberryCodec) Marshal(v any) ([]byte, error) {
	data, err := cramberry.Marshal(v)
	if err != nil {
		return nil, errors.Internal.WithFormat("cramberry marshal: %w", err)
	}
	return data, nil
}

func (CramberryCodec) Unmarshal(data []byte, v any) error {
	if err := cramberry.Unmarshal(data, v); err != nil {
		return errors.BadRequest.WithFormat("cramberry unmarshal: %w", err)
	}
	return nil
}

func (CramberryCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(CramberryCodec{})
}
