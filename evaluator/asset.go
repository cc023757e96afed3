package evaluator

import (
	"context"
	"strings"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/fee"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

type assetCreateEvaluator struct {
	d  *Dispatcher
	op *types.AssetCreateOperation
}

func (e *assetCreateEvaluator) evaluate(context.Context, *ExecutionContext, *fee.Charge) error {
	op := e.op
	if err := e.d.requireAccounts(op.Issuer); err != nil {
		return err
	}
	if op.BitassetOptions != nil {
		return errors.NotSupported.WithFormat("market issued asset %s needs the market engine", op.Symbol)
	}
	if _, ok := e.d.store.Lookup(IndexAssetSymbol, op.Symbol); ok {
		return errors.Precondition.WithFormat("asset symbol %s is taken", op.Symbol)
	}

	// A dotted symbol is a sub-asset; only the issuer of the prefix may
	// create it.
	if i := strings.IndexByte(op.Symbol, '.'); i > 0 {
		parent, ok := store.LookupAs[*types.AssetObject](e.d.store, IndexAssetSymbol, op.Symbol[:i])
		if !ok {
			return errors.NotFound.WithFormat("parent asset %s does not exist", op.Symbol[:i])
		}
		if parent.Issuer != op.Issuer {
			return errors.Unauthorized.WithFormat("only the issuer of %s may create %s", parent.Symbol, op.Symbol)
		}
	}
	return nil
}

func (e *assetCreateEvaluator) apply(context.Context, *ExecutionContext, *fee.Charge) (types.OperationResult, error) {
	op := e.op
	dyn, err := store.Create(e.d.store, &types.AssetDynamicDataObject{})
	if err != nil {
		return types.OperationResult{}, err
	}

	// The non-core side of the exchange rate names the asset being
	// created.
	id := types.AssetID(e.d.store.NextID(types.AssetKind).Instance)
	opts := op.CommonOptions
	if opts.CoreExchangeRate.Base.AssetID != types.CoreAsset {
		opts.CoreExchangeRate.Base.AssetID = id
	} else {
		opts.CoreExchangeRate.Quote.AssetID = id
	}

	asset, err := store.Create(e.d.store, &types.AssetObject{
		Symbol:             op.Symbol,
		Precision:          op.Precision,
		Issuer:             op.Issuer,
		Options:            opts,
		DynamicAssetDataID: types.AssetDynamicDataID(dyn.ID.Instance),
	})
	if err != nil {
		return types.OperationResult{}, err
	}
	return types.ObjectIDResult(asset.ID), nil
}

type assetIssueEvaluator struct {
	d   *Dispatcher
	op  *types.AssetIssueOperation
	dyn *types.AssetDynamicDataObject
}

func (e *assetIssueEvaluator) evaluate(context.Context, *ExecutionContext, *fee.Charge) error {
	op := e.op
	asset, err := e.d.asset(op.AssetToIssue.AssetID)
	if err != nil {
		return err
	}
	if asset.Issuer != op.Issuer {
		return errors.Unauthorized.WithFormat("only the issuer may issue %s", asset.Symbol)
	}
	if asset.IsMarketIssued() {
		return errors.Precondition.WithFormat("%s is market issued", asset.Symbol)
	}
	if err := e.d.requireAccounts(op.IssueToAccount); err != nil {
		return err
	}
	if err := e.d.authorize(op.IssueToAccount, asset); err != nil {
		return err
	}
	dyn, err := e.d.ledger.DynamicData(asset.AssetID())
	if err != nil {
		return err
	}
	if dyn.CurrentSupply > asset.Options.MaxSupply-op.AssetToIssue.Amount {
		return errors.Precondition.WithFormat("issuing %d %s would exceed the max supply %d", op.AssetToIssue.Amount, asset.Symbol, asset.Options.MaxSupply)
	}
	e.dyn = dyn
	return nil
}

func (e *assetIssueEvaluator) apply(context.Context, *ExecutionContext, *fee.Charge) (types.OperationResult, error) {
	if err := e.d.ledger.AdjustBalance(e.op.IssueToAccount, e.op.AssetToIssue, false); err != nil {
		return types.OperationResult{}, err
	}
	err := store.Modify(e.d.store, e.dyn, func(d *types.AssetDynamicDataObject) {
		d.CurrentSupply += e.op.AssetToIssue.Amount
	})
	return types.VoidResult(), err
}

type assetReserveEvaluator struct {
	d   *Dispatcher
	op  *types.AssetReserveOperation
	dyn *types.AssetDynamicDataObject
}

func (e *assetReserveEvaluator) evaluate(_ context.Context, _ *ExecutionContext, c *fee.Charge) error {
	op := e.op
	asset, err := e.d.asset(op.AmountToReserve.AssetID)
	if err != nil {
		return err
	}
	if asset.IsMarketIssued() {
		return errors.Precondition.WithFormat("%s is market issued and cannot be reserved", asset.Symbol)
	}
	if err := e.d.authorize(op.Payer, asset); err != nil {
		return err
	}
	if err := e.d.requireSpendable(op.Payer, op.AmountToReserve, c); err != nil {
		return err
	}
	e.dyn, err = e.d.ledger.DynamicData(asset.AssetID())
	return err
}

func (e *assetReserveEvaluator) apply(context.Context, *ExecutionContext, *fee.Charge) (types.OperationResult, error) {
	if err := e.d.ledger.AdjustBalance(e.op.Payer, e.op.AmountToReserve.Neg(), false); err != nil {
		return types.OperationResult{}, err
	}
	err := store.Modify(e.d.store, e.dyn, func(d *types.AssetDynamicDataObject) {
		d.CurrentSupply -= e.op.AmountToReserve.Amount
	})
	return types.VoidResult(), err
}

type assetFundFeePoolEvaluator struct {
	d   *Dispatcher
	op  *types.AssetFundFeePoolOperation
	dyn *types.AssetDynamicDataObject
}

func (e *assetFundFeePoolEvaluator) evaluate(_ context.Context, _ *ExecutionContext, c *fee.Charge) error {
	dyn, err := e.d.ledger.DynamicData(e.op.AssetID)
	if err != nil {
		return err
	}
	e.dyn = dyn
	return e.d.requireSpendable(e.op.FromAccount, types.NewAsset(e.op.Amount, types.CoreAsset), c)
}

func (e *assetFundFeePoolEvaluator) apply(context.Context, *ExecutionContext, *fee.Charge) (types.OperationResult, error) {
	amount := types.NewAsset(e.op.Amount, types.CoreAsset)
	if err := e.d.ledger.AdjustBalance(e.op.FromAccount, amount.Neg(), false); err != nil {
		return types.OperationResult{}, err
	}
	err := store.Modify(e.d.store, e.dyn, func(d *types.AssetDynamicDataObject) {
		d.FeePool += e.op.Amount
	})
	return types.VoidResult(), err
}

type assetClaimFeesEvaluator struct {
	d   *Dispatcher
	op  *types.AssetClaimFeesOperation
	dyn *types.AssetDynamicDataObject
}

func (e *assetClaimFeesEvaluator) evaluate(context.Context, *ExecutionContext, *fee.Charge) error {
	op := e.op
	asset, err := e.d.asset(op.AmountToClaim.AssetID)
	if err != nil {
		return err
	}
	if asset.Issuer != op.Issuer {
		return errors.Unauthorized.WithFormat("only the issuer may claim the fees of %s", asset.Symbol)
	}
	dyn, err := e.d.ledger.DynamicData(asset.AssetID())
	if err != nil {
		return err
	}
	if dyn.AccumulatedFees < op.AmountToClaim.Amount {
		return errors.InsufficientBalance.WithFormat("%s has accumulated %d in fees, %d claimed", asset.Symbol, dyn.AccumulatedFees, op.AmountToClaim.Amount)
	}
	e.dyn = dyn
	return nil
}

func (e *assetClaimFeesEvaluator) apply(context.Context, *ExecutionContext, *fee.Charge) (types.OperationResult, error) {
	err := store.Modify(e.d.store, e.dyn, func(d *types.AssetDynamicDataObject) {
		d.AccumulatedFees -= e.op.AmountToClaim.Amount
	})
	if err != nil {
		return types.OperationResult{}, err
	}
	if err := e.d.ledger.AdjustBalance(e.op.Issuer, e.op.AmountToClaim, false); err != nil {
		return types.OperationResult{}, err
	}
	return types.VoidResult(), nil
}
