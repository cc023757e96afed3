package evaluator

import (
	"context"

	"github.com/blockberries/ledger/balance"
	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/fee"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

type vestingCreateEvaluator struct {
	d  *Dispatcher
	op *types.VestingBalanceCreateOperation
}

func (e *vestingCreateEvaluator) evaluate(_ context.Context, _ *ExecutionContext, c *fee.Charge) error {
	op := e.op
	if err := e.d.requireAccounts(op.Creator, op.Owner); err != nil {
		return err
	}
	asset, err := e.d.asset(op.Amount.AssetID)
	if err != nil {
		return err
	}
	if err := e.d.authorize(op.Creator, asset); err != nil {
		return err
	}
	if err := e.d.authorize(op.Owner, asset); err != nil {
		return err
	}
	return e.d.requireSpendable(op.Creator, op.Amount, c)
}

func (e *vestingCreateEvaluator) apply(context.Context, *ExecutionContext, *fee.Charge) (types.OperationResult, error) {
	vb, err := e.d.ledger.CreateVestingBalance(e.op.Creator, e.op.Owner, e.op.Amount, e.op.Policy)
	if err != nil {
		return types.OperationResult{}, err
	}
	return types.ObjectIDResult(vb.ID), nil
}

type vestingWithdrawEvaluator struct {
	d  *Dispatcher
	op *types.VestingBalanceWithdrawOperation
}

func (e *vestingWithdrawEvaluator) evaluate(context.Context, *ExecutionContext, *fee.Charge) error {
	op := e.op
	vb, err := store.Load[*types.VestingBalanceObject](e.d.store, op.VestingBalance.ObjectID())
	if err != nil {
		return err
	}
	if vb.Owner != op.Owner {
		return errors.Unauthorized.WithFormat("vesting balance %v is owned by %v", vb.ID, vb.Owner)
	}
	if vb.Balance.AssetID != op.Amount.AssetID {
		return errors.BadRequest.WithFormat("vesting balance %v holds %v, not %v", vb.ID, vb.Balance.AssetID, op.Amount.AssetID)
	}
	allowed := balance.AllowedWithdraw(vb, e.d.headTime())
	if allowed.Amount < op.Amount.Amount {
		return errors.InsufficientBalance.WithFormat("vesting balance %v allows %d, %d requested", vb.ID, allowed.Amount, op.Amount.Amount)
	}
	return nil
}

func (e *vestingWithdrawEvaluator) apply(context.Context, *ExecutionContext, *fee.Charge) (types.OperationResult, error) {
	if err := e.d.ledger.WithdrawVesting(e.op.VestingBalance, e.op.Owner, e.op.Amount); err != nil {
		return types.OperationResult{}, err
	}
	return types.VoidResult(), nil
}
