package evaluator

import "github.com/blockberries/ledger/types"

// ExecutionContext is the state one operation is evaluated under. The
// block applicator builds one per transaction and advances OpIndex as it
// walks the operations.
type ExecutionContext struct {
	// Config is the node's execution configuration. A nil Config means
	// authoring with nothing skipped.
	Config *types.ExecutionConfig
	// Keys were recovered from the signatures of the enclosing
	// transaction.
	Keys []types.PublicKey
	// Trx is the transaction being applied. In replay it carries the
	// results recorded by the producer.
	Trx     *types.ProcessedTransaction
	OpIndex int
	// AgreedTask is set while applying a reinjected proposal or crontab.
	AgreedTask *types.AgreedTask
}

// Mode returns the run mode of the context.
func (ec *ExecutionContext) Mode() types.RunMode {
	if ec == nil || ec.Config == nil {
		return types.ModeAuthoring
	}
	return ec.Config.Mode
}

// Skips reports whether every flag of f is set.
func (ec *ExecutionContext) Skips(f types.SkipFlags) bool {
	if ec == nil || ec.Config == nil {
		return false
	}
	return ec.Config.Skip.Has(f)
}

// Recorded returns the producer's result for the current operation while
// replaying a block.
func (ec *ExecutionContext) Recorded() (*types.OperationResult, bool) {
	if ec.Mode() != types.ModeReplay || ec.Trx == nil {
		return nil, false
	}
	if ec.OpIndex < 0 || ec.OpIndex >= len(ec.Trx.OperationResults) {
		return nil, false
	}
	return &ec.Trx.OperationResults[ec.OpIndex], true
}
