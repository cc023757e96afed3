package evaluator

import (
	"context"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/fee"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

type witnessCreateEvaluator struct {
	d  *Dispatcher
	op *types.WitnessCreateOperation
}

func (e *witnessCreateEvaluator) evaluate(context.Context, *ExecutionContext, *fee.Charge) error {
	acct, err := e.d.account(e.op.WitnessAccount)
	if err != nil {
		return err
	}
	if !acct.IsLifetimeMember() {
		return errors.Precondition.WithFormat("witness account %s is not a lifetime member", acct.Name)
	}
	var exists bool
	e.d.store.Scan(types.WitnessKind, func(o types.Object) bool {
		exists = o.(*types.WitnessObject).WitnessAccount == acct.AccountID()
		return !exists
	})
	if exists {
		return errors.Precondition.WithFormat("%s is already a witness", acct.Name)
	}
	return nil
}

func (e *witnessCreateEvaluator) apply(context.Context, *ExecutionContext, *fee.Charge) (types.OperationResult, error) {
	wit, err := store.Create(e.d.store, &types.WitnessObject{
		WitnessAccount: e.op.WitnessAccount,
		SigningKey:     e.op.BlockSigningKey,
		URL:            e.op.URL,
	})
	if err != nil {
		return types.OperationResult{}, err
	}
	return types.ObjectIDResult(wit.ID), nil
}

type witnessUpdateEvaluator struct {
	d   *Dispatcher
	op  *types.WitnessUpdateOperation
	wit *types.WitnessObject
}

func (e *witnessUpdateEvaluator) evaluate(context.Context, *ExecutionContext, *fee.Charge) error {
	wit, err := store.Load[*types.WitnessObject](e.d.store, e.op.Witness.ObjectID())
	if err != nil {
		return err
	}
	if wit.WitnessAccount != e.op.WitnessAccount {
		return errors.Unauthorized.WithFormat("witness %v belongs to %v", wit.ID, wit.WitnessAccount)
	}
	e.wit = wit
	return nil
}

func (e *witnessUpdateEvaluator) apply(context.Context, *ExecutionContext, *fee.Charge) (types.OperationResult, error) {
	err := store.Modify(e.d.store, e.wit, func(w *types.WitnessObject) {
		if e.op.NewURL != nil {
			w.URL = *e.op.NewURL
		}
		if len(e.op.NewSigningKey) > 0 {
			w.SigningKey = e.op.NewSigningKey
		}
	})
	return types.VoidResult(), err
}

// parametersEvaluator stages new chain parameters. They take effect at
// the next maintenance.
type parametersEvaluator struct {
	d  *Dispatcher
	op *types.CommitteeUpdateParametersOperation
}

func (e *parametersEvaluator) evaluate(_ context.Context, ec *ExecutionContext, _ *fee.Charge) error {
	if ec == nil || ec.AgreedTask == nil {
		return errors.Unauthorized.With("chain parameters may only change through an approved proposal")
	}
	return nil
}

func (e *parametersEvaluator) apply(context.Context, *ExecutionContext, *fee.Charge) (types.OperationResult, error) {
	next := e.op.NewParameters
	err := store.Modify(e.d.store, store.GlobalProperties(e.d.store), func(g *types.GlobalPropertyObject) {
		g.PendingParameters = &next
	})
	return types.VoidResult(), err
}
