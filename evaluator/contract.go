package evaluator

import (
	"context"
	"slices"
	"time"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/fee"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

type contractCreateEvaluator struct {
	d  *Dispatcher
	op *types.ContractCreateOperation
}

func (e *contractCreateEvaluator) evaluate(context.Context, *ExecutionContext, *fee.Charge) error {
	if err := e.d.requireAccounts(e.op.Owner); err != nil {
		return err
	}
	if _, taken := e.d.store.Lookup(IndexContractName, e.op.Name); taken {
		return errors.Precondition.WithFormat("contract name %q is taken", e.op.Name)
	}
	return nil
}

func (e *contractCreateEvaluator) apply(context.Context, *ExecutionContext, *fee.Charge) (types.OperationResult, error) {
	version, err := types.Digest(e.op.Code)
	if err != nil {
		return types.OperationResult{}, errors.Internal.Wrap(err)
	}
	contract, err := store.Create(e.d.store, &types.ContractObject{
		Owner:                  e.op.Owner,
		Name:                   e.op.Name,
		Code:                   e.op.Code,
		ContractAuthority:      e.op.ContractAuthority,
		CurrentVersion:         version,
		CreationDate:           e.d.headTime(),
		UserInvokeSharePercent: 100,
	})
	if err != nil {
		return types.OperationResult{}, err
	}
	return types.ObjectIDResult(contract.ID), nil
}

type reviseContractEvaluator struct {
	d        *Dispatcher
	op       *types.ReviseContractOperation
	contract *types.ContractObject
}

func (e *reviseContractEvaluator) evaluate(context.Context, *ExecutionContext, *fee.Charge) error {
	contract, err := store.Load[*types.ContractObject](e.d.store, e.op.ContractID.ObjectID())
	if err != nil {
		return err
	}
	if contract.Owner != e.op.Reviser {
		return errors.Unauthorized.WithFormat("contract %s is owned by %v", contract.Name, contract.Owner)
	}
	e.contract = contract
	return nil
}

func (e *reviseContractEvaluator) apply(context.Context, *ExecutionContext, *fee.Charge) (types.OperationResult, error) {
	version, err := types.Digest(e.op.Code)
	if err != nil {
		return types.OperationResult{}, errors.Internal.Wrap(err)
	}
	err = store.Modify(e.d.store, e.contract, func(c *types.ContractObject) {
		c.Code = e.op.Code
		c.CurrentVersion = version
	})
	return types.VoidResult(), err
}

// callContractEvaluator runs a contract function through the script
// engine and applies the effects it reports. The call is priced after
// the fact from the data it touched and the time it ran.
type callContractEvaluator struct {
	d        *Dispatcher
	op       *types.CallContractFunctionOperation
	contract *types.ContractObject
}

func (e *callContractEvaluator) evaluate(context.Context, *ExecutionContext, *fee.Charge) error {
	if e.d.scripts == nil {
		return errors.NotSupported.With("no script engine is configured")
	}
	if err := e.d.requireAccounts(e.op.Caller); err != nil {
		return err
	}
	contract, err := store.Load[*types.ContractObject](e.d.store, e.op.ContractID.ObjectID())
	if err != nil {
		return err
	}
	e.contract = contract
	return nil
}

func (e *callContractEvaluator) apply(ctx context.Context, ec *ExecutionContext, _ *fee.Charge) (types.OperationResult, error) {
	snapshot := *e.contract
	snapshot.Data = slices.Clone(e.contract.Data)
	call := ledger.ScriptCall{
		Contract: snapshot,
		Caller:   e.op.Caller,
		Function: e.op.FunctionName,
		Args:     e.op.Args,
		Replay:   ec.Mode() == types.ModeReplay,
	}

	start := time.Now()
	out, err := e.d.scripts.Run(ctx, call)
	if err != nil {
		if ctx.Err() != nil {
			return types.OperationResult{}, errors.Timeout.WithFormat("contract %s: %w", snapshot.Name, ctx.Err())
		}
		return types.OperationResult{}, errors.Precondition.WithFormat("contract %s.%s: %w", snapshot.Name, e.op.FunctionName, err)
	}
	elapsed := time.Since(start)

	if err := e.applyEffects(out.Affecteds); err != nil {
		return types.OperationResult{}, err
	}
	if out.Data != nil {
		err := store.Modify(e.d.store, e.contract, func(c *types.ContractObject) { c.Data = out.Data })
		if err != nil {
			return types.OperationResult{}, err
		}
	}

	res := types.ContractCallResult(types.ContractResult{
		ContractID:        e.op.ContractID,
		ContractAffecteds: out.Affecteds,
		ExistedPV:         len(snapshot.Data) > 0,
		ProcessValue:      out.ProcessValue,
		RelevantDataSize:  out.RelevantDataSize,
	})
	if rec, ok := ec.Recorded(); ok {
		if !rec.Contract.SameEffects(res.Contract) {
			return types.OperationResult{}, errors.Consistency.WithFormat("contract %s replayed with effects differing from the block", snapshot.Name)
		}
		res.RealRunningTime = rec.RealRunningTime
	} else {
		res.RealRunningTime = uint64(max(elapsed.Microseconds(), 1))
	}
	return res, nil
}

// applyEffects moves the balances a script reported. Transfers between
// accounts must cancel out per asset; a script cannot mint or burn.
func (e *callContractEvaluator) applyEffects(affecteds []types.ContractAffected) error {
	net := map[types.AssetID]int64{}
	l := e.d.ledger
	for _, a := range affecteds {
		var err error
		switch a.Kind {
		case types.AffectedBalance:
			net[a.Amount.AssetID] += a.Amount.Amount
			err = l.AdjustBalance(a.Account, a.Amount, false)
		case types.AffectedLock:
			err = l.AdjustLock(a.Account, a.Amount)
		case types.AffectedSpendLocked:
			net[a.Amount.AssetID] -= a.Amount.Amount
			err = l.SpendLocked(a.Account, a.Amount)
		}
		if err != nil {
			return err
		}
	}
	for asset, n := range net {
		if n != 0 {
			return errors.Consistency.WithFormat("contract %s changed the supply of %v by %d", e.contract.Name, asset, n)
		}
	}
	return nil
}

func (e *callContractEvaluator) settle(_ *ExecutionContext, c *fee.Charge, res *types.OperationResult) error {
	if err := e.d.meter.ContractSurcharge(c, e.contract, res.Contract, res.RealRunningTime); err != nil {
		return err
	}
	return e.d.meter.PayFee(c, res)
}
