package types

// TxOutcome is the result of applying a single transaction.
type TxOutcome struct {
	// Position of this tx in the block (0-indexed).
	Index uint32 `cramberry:"1"`
	// Status code of the errors package. 0 = success.
	Code uint32 `cramberry:"2"`
	// Human-readable result info (non-deterministic, for debugging).
	Info string `cramberry:"3"`
	// Transaction id.
	Data []byte `cramberry:"4"`
	// Events emitted by this transaction.
	Events []Event `cramberry:"5"`
	// Recorded result of each operation.
	Results []OperationResult `cramberry:"6"`
}

// OK returns true if the transaction applied successfully.
func (t TxOutcome) OK() bool { return t.Code == 0 }

// BlockOutcome is the output of applying a finalized block.
type BlockOutcome struct {
	// Per-transaction results, in block order.
	TxOutcomes []TxOutcome `cramberry:"1"`
	// Block-level events (maintenance, crontab state changes, etc.).
	BlockEvents []Event `cramberry:"2"`
	// State fingerprint after this block.
	AppHash AppHash `cramberry:"3"`
	// Id of the applied block.
	BlockID BlockID `cramberry:"4"`
	// Parameters activated by a maintenance pass in this block. Nil = no change.
	ParamsUpdate *ChainParameters `cramberry:"5"`
}

// FinalizedBlock is a decided block delivered to the node for
// application. Recorded operation results travel inside the block.
type FinalizedBlock struct {
	Block SignedBlock `cramberry:"1"`
}

// Height returns the block number.
func (f *FinalizedBlock) Height() uint64 { return uint64(f.Block.Num()) }

// CommitResult is returned after the node persists state to disk.
type CommitResult struct {
	// Minimum height the node still needs to pop blocks. The engine may
	// prune blocks below this. 0 = no pruning preference.
	RetainHeight uint64 `cramberry:"1"`
}
