package types

import "github.com/holiman/uint256"

// Uint128 is an unsigned 128-bit counter in its wire form. Arithmetic
// goes through uint256.Int.
type Uint128 struct {
	Hi uint64 `cramberry:"1"`
	Lo uint64 `cramberry:"2"`
}

// Uint128From converts v. Bits above 128 are dropped.
func Uint128From(v *uint256.Int) Uint128 {
	return Uint128{Hi: v[1], Lo: v[0]}
}

// Uint128FromUint64 widens v.
func Uint128FromUint64(v uint64) Uint128 { return Uint128{Lo: v} }

// Int returns the value as a uint256.Int.
func (u Uint128) Int() *uint256.Int {
	return &uint256.Int{u.Lo, u.Hi, 0, 0}
}

// IsZero reports whether the value is zero.
func (u Uint128) IsZero() bool { return u.Hi == 0 && u.Lo == 0 }

func (u Uint128) String() string { return u.Int().Dec() }
