package evaluator

import (
	"context"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/fee"
	"github.com/blockberries/ledger/types"
)

type transferEvaluator struct {
	d  *Dispatcher
	op *types.TransferOperation
}

func (e *transferEvaluator) evaluate(_ context.Context, _ *ExecutionContext, c *fee.Charge) error {
	op := e.op
	if err := e.d.requireAccounts(op.From, op.To); err != nil {
		return err
	}
	asset, err := e.d.asset(op.Amount.AssetID)
	if err != nil {
		return err
	}
	if err := e.d.authorize(op.From, asset); err != nil {
		return err
	}
	if err := e.d.authorize(op.To, asset); err != nil {
		return err
	}
	if asset.Options.Flags&types.TransferRestricted != 0 && op.From != asset.Issuer && op.To != asset.Issuer {
		return errors.Unauthorized.WithFormat("%s may only be transferred to or from its issuer", asset.Symbol)
	}
	return e.d.requireSpendable(op.From, op.Amount, c)
}

func (e *transferEvaluator) apply(context.Context, *ExecutionContext, *fee.Charge) (types.OperationResult, error) {
	if err := e.d.ledger.AdjustBalance(e.op.From, e.op.Amount.Neg(), false); err != nil {
		return types.OperationResult{}, err
	}
	if err := e.d.ledger.AdjustBalance(e.op.To, e.op.Amount, false); err != nil {
		return types.OperationResult{}, err
	}
	return types.VoidResult(), nil
}
