package types

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // block ids are 20 bytes on this chain
)

// BlockID is the 20-byte block identifier. Its first four bytes hold the
// big-endian block number.
type BlockID [20]byte

// Num returns the block number embedded in the id.
func (id BlockID) Num() uint32 { return binary.BigEndian.Uint32(id[:4]) }

func (id BlockID) String() string { return hex.EncodeToString(id[:]) }

// IsZero reports whether the id is the genesis parent.
func (id BlockID) IsZero() bool { return id == BlockID{} }

// BlockHeader is the signed part of a block.
type BlockHeader struct {
	Previous              BlockID   `cramberry:"1"`
	Timestamp             TimePoint `cramberry:"2"`
	Witness               WitnessID `cramberry:"3"`
	TransactionMerkleRoot Hash      `cramberry:"4"`
}

// Num returns the number of the block this header belongs to.
func (h *BlockHeader) Num() uint32 { return h.Previous.Num() + 1 }

// ID derives the block id from the header digest.
func (h *BlockHeader) ID() (BlockID, error) {
	d, err := Digest(h)
	if err != nil {
		return BlockID{}, fmt.Errorf("digest header: %w", err)
	}
	r := ripemd160.New()
	r.Write(d[:])
	var id BlockID
	copy(id[:], r.Sum(nil))
	binary.BigEndian.PutUint32(id[:4], h.Num())
	return id, nil
}

// SignedBlock is a header, the producer signature and the processed
// transactions in application order.
type SignedBlock struct {
	Header           BlockHeader            `cramberry:"1"`
	WitnessSignature []byte                 `cramberry:"2"`
	Transactions     []ProcessedTransaction `cramberry:"3"`
}

// ID returns the id of the block.
func (b *SignedBlock) ID() (BlockID, error) { return b.Header.ID() }

// Num returns the number of the block.
func (b *SignedBlock) Num() uint32 { return b.Header.Num() }

// MerkleRoot computes the transaction merkle root. Leaves are digests of
// the processed transactions; an odd node is promoted unchanged.
func (b *SignedBlock) MerkleRoot() (Hash, error) {
	if len(b.Transactions) == 0 {
		return Hash{}, nil
	}
	level := make([]Hash, len(b.Transactions))
	for i := range b.Transactions {
		d, err := Digest(&b.Transactions[i])
		if err != nil {
			return Hash{}, fmt.Errorf("digest transaction %d: %w", i, err)
		}
		level[i] = d
	}
	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			var buf [64]byte
			copy(buf[:32], level[i][:])
			copy(buf[32:], level[i+1][:])
			next = append(next, sha256.Sum256(buf[:]))
		}
		level = next
	}
	return level[0], nil
}
