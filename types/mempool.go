package types

// MempoolContext tells the node whether a transaction is being seen
// for the first time or is being re-validated.
type MempoolContext uint8

const (
	// MempoolFirstSeen indicates the transaction was just received.
	MempoolFirstSeen MempoolContext = 1
	// MempoolRevalidation indicates the transaction is being
	// re-checked after a block switch restored the pending pool.
	MempoolRevalidation MempoolContext = 2
)

// GateVerdict is the node's decision on whether a transaction should
// be admitted to the mempool.
type GateVerdict struct {
	// 0 = accepted into the pending pool. Otherwise an errors status code.
	Code uint32 `cramberry:"1"`
	// Rejection reason (debugging only, non-deterministic).
	Info string `cramberry:"2"`
	// Priority for ordering within the mempool. Higher = first. The
	// node uses the total core fee paid.
	Priority int64 `cramberry:"3"`
	// Fee payer of the first operation, for same-sender sequencing.
	Sender string `cramberry:"4"`
}

// Accepted returns true if the transaction was admitted.
func (v GateVerdict) Accepted() bool { return v.Code == 0 }
