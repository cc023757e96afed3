// Package types defines the chain data model of the ledger node:
// object ids, assets, operations, results, transactions, blocks and
// chain parameters, plus the wire types of the node lifecycle.
//
// These are plain Go structs with cramberry struct tags for
// deterministic binary serialization. Transport concerns
// (gRPC codec registration) are handled in the transport packages.
package types

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// Hash is a 32-byte cryptographic hash.
type Hash [32]byte

// String returns the hex form of the hash.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// IsZero reports whether the hash is all zeroes.
func (h Hash) IsZero() bool { return h == Hash{} }

// AppHash is a deterministic fingerprint of the node state after
// a block has been applied.
type AppHash [32]byte

// Tx is a cramberry-encoded SignedTransaction as it travels through
// the lifecycle boundary.
type Tx []byte

// QueryPath is a structured key for state queries
// (e.g., "/object/1.2.5", "/balance").
type QueryPath string

// BlockRef identifies a point in the chain.
type BlockRef struct {
	Height uint64  `cramberry:"1"`
	ID     BlockID `cramberry:"2"`
}

// Digest hashes the cramberry encoding of v.
func Digest(v any) (Hash, error) {
	data, err := cramberry.Marshal(v)
	if err != nil {
		return Hash{}, err
	}
	return sha256.Sum256(data), nil
}

// PackSize returns the size of the cramberry encoding of v.
func PackSize(v any) (uint64, error) {
	data, err := cramberry.Marshal(v)
	if err != nil {
		return 0, err
	}
	return uint64(len(data)), nil
}
