package types

// PublicKey is a compressed public key as produced by the signature
// oracle. The core never interprets it.
type PublicKey []byte

// AccountWeight is one account entry of an authority.
type AccountWeight struct {
	Account AccountID `cramberry:"1"`
	Weight  uint16    `cramberry:"2"`
}

// KeyWeight is one key entry of an authority.
type KeyWeight struct {
	Key    PublicKey `cramberry:"1"`
	Weight uint16    `cramberry:"2"`
}

// Authority is a weighted threshold over accounts and keys.
type Authority struct {
	WeightThreshold uint32          `cramberry:"1"`
	AccountAuths    []AccountWeight `cramberry:"2"`
	KeyAuths        []KeyWeight     `cramberry:"3"`
}

// IsImpossible reports whether the threshold exceeds the total weight.
func (a Authority) IsImpossible() bool {
	var total uint64
	for _, w := range a.AccountAuths {
		total += uint64(w.Weight)
	}
	for _, w := range a.KeyAuths {
		total += uint64(w.Weight)
	}
	return total < uint64(a.WeightThreshold)
}

// TopHoldersAuthority hands an authority to the top holders of an asset.
type TopHoldersAuthority struct {
	Asset         AssetID `cramberry:"1"`
	NumTopHolders uint8   `cramberry:"2"`
}

// Top-N control flags on an account.
const (
	TopNControlOwner  uint8 = 1
	TopNControlActive uint8 = 2
)

// RequiredAuthorities lists the accounts whose authority a transaction
// must satisfy.
type RequiredAuthorities struct {
	Active []AccountID `cramberry:"1"`
	Owner  []AccountID `cramberry:"2"`
}
