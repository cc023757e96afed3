package types

// ProposalContext is provided to the node when its witness is scheduled
// to produce the next block.
type ProposalContext struct {
	Height  uint64    `cramberry:"1"`
	Time    TimePoint `cramberry:"2"`
	Witness WitnessID `cramberry:"3"`
	// Transactions from the engine mempool, pre-sorted by priority.
	MempoolTxs []Tx `cramberry:"4"`
	// Maximum total bytes for the block. 0 = chain parameter.
	MaxTxBytes uint64 `cramberry:"5"`
}

// BuiltProposal is the block authored by the node, with every
// operation result recorded.
type BuiltProposal struct {
	Block SignedBlock `cramberry:"1"`
}

// ReceivedProposal is a block produced by another witness for
// verification.
type ReceivedProposal struct {
	Block SignedBlock `cramberry:"1"`
}

// ProposalVerdict is the node's decision on a received proposal.
type ProposalVerdict struct {
	// Accept is true if the proposal is structurally valid.
	Accept bool `cramberry:"1"`
	// Reason for rejection (only set when Accept is false).
	RejectReason string `cramberry:"2"`
}
