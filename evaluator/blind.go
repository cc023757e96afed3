package evaluator

import (
	"context"
	"encoding/hex"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/fee"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

// Confidential transfers keep their amounts in commitments. The public
// side moves value between balances and the asset's confidential supply,
// and every fee goes to the accumulator of its transfer kind.

// verifyConfidential hands op and the inputs it spends to the proof
// verifier.
func (d *Dispatcher) verifyConfidential(op types.Operation, inputs []*types.BlindedBalanceObject) error {
	if d.confidential == nil {
		return errors.NotSupported.WithFormat("%v needs a confidential proof verifier", op.Type())
	}
	if err := d.confidential.VerifyConfidential(op, inputs); err != nil {
		return errors.Unauthorized.WithFormat("confidential proof: %w", err)
	}
	return nil
}

// blindInputs resolves the commitments spent by an operation. Each must
// be unspent, of asset, and listed once.
func (d *Dispatcher) blindInputs(commitments [][]byte, asset types.AssetID) ([]*types.BlindedBalanceObject, error) {
	seen := map[string]bool{}
	out := make([]*types.BlindedBalanceObject, 0, len(commitments))
	for _, c := range commitments {
		key := hex.EncodeToString(c)
		if seen[key] {
			return nil, errors.BadRequest.WithFormat("commitment %s spent twice", key)
		}
		seen[key] = true
		obj, ok := d.store.Lookup(IndexCommitment, key)
		if !ok {
			return nil, errors.NotFound.WithFormat("unknown commitment %s", key)
		}
		bb := obj.(*types.BlindedBalanceObject)
		if bb.AssetID != asset {
			return nil, errors.BadRequest.WithFormat("commitment %s holds %v, not %v", key, bb.AssetID, asset)
		}
		out = append(out, bb)
	}
	return out, nil
}

// checkBlindOutputs checks that the accounts named by the output owners
// exist and that no commitment is already in use.
func (d *Dispatcher) checkBlindOutputs(outputs []types.BlindOutput, spent []*types.BlindedBalanceObject) error {
	seen := map[string]bool{}
	for _, in := range spent {
		seen[hex.EncodeToString(in.Commitment)] = false
	}
	for i, out := range outputs {
		for _, a := range out.Owner.AccountAuths {
			if err := d.requireAccounts(a.Account); err != nil {
				return err
			}
		}
		key := hex.EncodeToString(out.Commitment)
		if seen[key] {
			return errors.BadRequest.WithFormat("output %d repeats commitment %s", i, key)
		}
		if _, spentHere := seen[key]; !spentHere {
			if _, ok := d.store.Lookup(IndexCommitment, key); ok {
				return errors.Duplicate.WithFormat("output %d commitment %s already exists", i, key)
			}
		}
		seen[key] = true
	}
	return nil
}

func (d *Dispatcher) spendBlind(inputs []*types.BlindedBalanceObject) error {
	for _, in := range inputs {
		if err := store.Remove(d.store, in.ID); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) createBlind(asset types.AssetID, outputs []types.BlindOutput) error {
	for _, out := range outputs {
		_, err := store.Create(d.store, &types.BlindedBalanceObject{
			Commitment: out.Commitment,
			AssetID:    asset,
			Owner:      out.Owner,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// adjustConfidentialSupply moves delta of asset into the confidential
// supply, which may never go negative.
func (d *Dispatcher) adjustConfidentialSupply(asset types.AssetID, delta int64) error {
	dyn, err := d.ledger.DynamicData(asset)
	if err != nil {
		return err
	}
	if dyn.ConfidentialSupply+delta < 0 {
		return errors.Consistency.WithFormat("confidential supply of %v is %d, cannot release %d", asset, dyn.ConfidentialSupply, -delta)
	}
	return store.Modify(d.store, dyn, func(o *types.AssetDynamicDataObject) {
		o.ConfidentialSupply += delta
	})
}

type transferToBlindEvaluator struct {
	d  *Dispatcher
	op *types.TransferToBlindOperation
}

func (e *transferToBlindEvaluator) evaluate(_ context.Context, _ *ExecutionContext, c *fee.Charge) error {
	op := e.op
	if err := e.d.requireAccounts(op.From); err != nil {
		return err
	}
	asset, err := e.d.asset(op.Amount.AssetID)
	if err != nil {
		return err
	}
	switch flags := asset.Options.Flags; {
	case flags&types.DisableConfidential != 0:
		return errors.Unauthorized.WithFormat("%s does not allow confidential transfers", asset.Symbol)
	case flags&types.TransferRestricted != 0:
		return errors.Unauthorized.WithFormat("%s is transfer restricted", asset.Symbol)
	case flags&types.WhiteList != 0:
		return errors.Unauthorized.WithFormat("%s is white listed", asset.Symbol)
	}
	if err := e.d.authorize(op.From, asset); err != nil {
		return err
	}
	if err := e.d.checkBlindOutputs(op.Outputs, nil); err != nil {
		return err
	}
	if err := e.d.requireSpendable(op.From, op.Amount, c); err != nil {
		return err
	}
	return e.d.verifyConfidential(op, nil)
}

func (e *transferToBlindEvaluator) apply(context.Context, *ExecutionContext, *fee.Charge) (types.OperationResult, error) {
	op := e.op
	if err := e.d.ledger.AdjustBalance(op.From, op.Amount.Neg(), false); err != nil {
		return types.OperationResult{}, err
	}
	if err := e.d.adjustConfidentialSupply(op.Amount.AssetID, op.Amount.Amount); err != nil {
		return types.OperationResult{}, err
	}
	return types.VoidResult(), e.d.createBlind(op.Amount.AssetID, op.Outputs)
}

func (e *transferToBlindEvaluator) settle(_ *ExecutionContext, c *fee.Charge, res *types.OperationResult) error {
	return e.d.meter.PayFBAFee(c, types.FBATransferToBlind, res)
}

type blindTransferEvaluator struct {
	d      *Dispatcher
	op     *types.BlindTransferOperation
	inputs []*types.BlindedBalanceObject
}

func (e *blindTransferEvaluator) evaluate(context.Context, *ExecutionContext, *fee.Charge) error {
	op := e.op
	if _, err := e.d.asset(op.Fee.AssetID); err != nil {
		return err
	}
	inputs, err := e.d.blindInputs(op.Inputs, op.Fee.AssetID)
	if err != nil {
		return err
	}
	if err := e.d.checkBlindOutputs(op.Outputs, inputs); err != nil {
		return err
	}
	e.inputs = inputs
	return e.d.verifyConfidential(op, inputs)
}

// apply releases the fee from the confidential supply to the temporary
// account, which then pays it.
func (e *blindTransferEvaluator) apply(context.Context, *ExecutionContext, *fee.Charge) (types.OperationResult, error) {
	op := e.op
	if err := e.d.adjustConfidentialSupply(op.Fee.AssetID, -op.Fee.Amount); err != nil {
		return types.OperationResult{}, err
	}
	if err := e.d.ledger.AdjustBalance(types.TempAccount, op.Fee, false); err != nil {
		return types.OperationResult{}, err
	}
	if err := e.d.spendBlind(e.inputs); err != nil {
		return types.OperationResult{}, err
	}
	return types.VoidResult(), e.d.createBlind(op.Fee.AssetID, op.Outputs)
}

func (e *blindTransferEvaluator) settle(_ *ExecutionContext, c *fee.Charge, res *types.OperationResult) error {
	return e.d.meter.PayFBAFee(c, types.FBABlindTransfer, res)
}

type transferFromBlindEvaluator struct {
	d      *Dispatcher
	op     *types.TransferFromBlindOperation
	inputs []*types.BlindedBalanceObject
}

func (e *transferFromBlindEvaluator) evaluate(context.Context, *ExecutionContext, *fee.Charge) error {
	op := e.op
	if op.Amount.AssetID != op.Fee.AssetID {
		return errors.BadRequest.WithFormat("amount in %v but fee in %v", op.Amount.AssetID, op.Fee.AssetID)
	}
	if err := e.d.requireAccounts(op.To); err != nil {
		return err
	}
	asset, err := e.d.asset(op.Amount.AssetID)
	if err != nil {
		return err
	}
	if err := e.d.authorize(op.To, asset); err != nil {
		return err
	}
	inputs, err := e.d.blindInputs(op.Inputs, op.Amount.AssetID)
	if err != nil {
		return err
	}
	e.inputs = inputs
	return e.d.verifyConfidential(op, inputs)
}

func (e *transferFromBlindEvaluator) apply(context.Context, *ExecutionContext, *fee.Charge) (types.OperationResult, error) {
	op := e.op
	if err := e.d.adjustConfidentialSupply(op.Amount.AssetID, -(op.Amount.Amount + op.Fee.Amount)); err != nil {
		return types.OperationResult{}, err
	}
	if err := e.d.ledger.AdjustBalance(types.TempAccount, op.Fee, false); err != nil {
		return types.OperationResult{}, err
	}
	if err := e.d.ledger.AdjustBalance(op.To, op.Amount, false); err != nil {
		return types.OperationResult{}, err
	}
	return types.VoidResult(), e.d.spendBlind(e.inputs)
}

func (e *transferFromBlindEvaluator) settle(_ *ExecutionContext, c *fee.Charge, res *types.OperationResult) error {
	return e.d.meter.PayFBAFee(c, types.FBATransferFromBlind, res)
}
