package types

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Share-supply and percentage constants.
const (
	MaxShareSupply      int64 = 1_000_000_000_000_000
	BlockchainPrecision int64 = 100_000
	Percent100          int64 = 10_000
	Percent1            int64 = 100
)

// Asset is an amount of one asset type.
type Asset struct {
	Amount  int64   `cramberry:"1"`
	AssetID AssetID `cramberry:"2"`
}

// NewAsset builds an Asset.
func NewAsset(amount int64, id AssetID) Asset { return Asset{Amount: amount, AssetID: id} }

// Neg returns the negated amount.
func (a Asset) Neg() Asset { return Asset{Amount: -a.Amount, AssetID: a.AssetID} }

func (a Asset) String() string { return fmt.Sprintf("%d %s", a.Amount, a.AssetID) }

// Price is the ratio Base/Quote between two assets.
type Price struct {
	Base  Asset `cramberry:"1"`
	Quote Asset `cramberry:"2"`
}

// IsNull reports whether the price is unset.
func (p Price) IsNull() bool { return p.Base.Amount == 0 && p.Quote.Amount == 0 }

// Validate checks that both sides are positive and name different assets.
func (p Price) Validate() error {
	if p.Base.Amount <= 0 || p.Quote.Amount <= 0 {
		return fmt.Errorf("price sides must be positive")
	}
	if p.Base.AssetID == p.Quote.AssetID {
		return fmt.Errorf("price must relate two different assets")
	}
	return nil
}

// Multiply converts a across the price. The product is taken in 256-bit
// space before the division and the result must fit the share supply.
func (p Price) Multiply(a Asset) (Asset, error) {
	if a.Amount < 0 {
		return Asset{}, fmt.Errorf("cannot convert negative amount %d", a.Amount)
	}
	var num, den int64
	var out AssetID
	switch a.AssetID {
	case p.Base.AssetID:
		num, den, out = p.Quote.Amount, p.Base.Amount, p.Quote.AssetID
	case p.Quote.AssetID:
		num, den, out = p.Base.Amount, p.Quote.Amount, p.Base.AssetID
	default:
		return Asset{}, fmt.Errorf("asset %s does not match price %s/%s", a.AssetID, p.Base.AssetID, p.Quote.AssetID)
	}
	if den <= 0 || num < 0 {
		return Asset{}, fmt.Errorf("invalid price")
	}
	r, err := MulDiv(uint64(a.Amount), uint64(num), uint64(den))
	if err != nil {
		return Asset{}, err
	}
	return Asset{Amount: r, AssetID: out}, nil
}

// MulDiv computes a*b/c with a wide intermediate and checks that the
// result does not exceed MaxShareSupply.
func MulDiv(a, b, c uint64) (int64, error) {
	if c == 0 {
		return 0, fmt.Errorf("division by zero")
	}
	x := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	x.Div(x, uint256.NewInt(c))
	if !x.IsUint64() || x.Uint64() > uint64(MaxShareSupply) {
		return 0, fmt.Errorf("result %s exceeds max share supply", x.Dec())
	}
	return int64(x.Uint64()), nil
}

// LockedAsset is one entry of an account's asset lock table.
type LockedAsset struct {
	AssetID AssetID `cramberry:"1"`
	Amount  int64   `cramberry:"2"`
}
