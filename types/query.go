package types

// Query paths served by the node.
const (
	QueryObject     QueryPath = "/object"
	QueryBalance    QueryPath = "/balance"
	QueryAccount    QueryPath = "/account"
	QueryParameters QueryPath = "/parameters"
	QueryHead       QueryPath = "/head"
)

// StateQuery is a request to read committed state.
type StateQuery struct {
	Path QueryPath `cramberry:"1"`
	Data []byte    `cramberry:"2"`
	// Height to query at. Nil = latest committed state. Only the latest
	// state is retained.
	Height *uint64 `cramberry:"3"`
}

// StateQueryResult is the node's response to a state query.
type StateQueryResult struct {
	Code   uint32 `cramberry:"1"`
	Key    []byte `cramberry:"2"`
	Value  []byte `cramberry:"3"`
	Height uint64 `cramberry:"4"`
	Info   string `cramberry:"5"`
}

// BalanceQuery selects one balance row.
type BalanceQuery struct {
	Account AccountID `cramberry:"1"`
	Asset   AssetID   `cramberry:"2"`
}
