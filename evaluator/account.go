package evaluator

import (
	"context"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/fee"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

// LifetimeReferrerPercentOfFee is the cut of a new account's fees paid to
// its lifetime referrer.
const LifetimeReferrerPercentOfFee = 30 * types.Percent1

// authorityAccounts returns the accounts named by the given authorities.
func authorityAccounts(auths ...*types.Authority) []types.AccountID {
	var out []types.AccountID
	for _, a := range auths {
		if a == nil {
			continue
		}
		for _, w := range a.AccountAuths {
			out = append(out, w.Account)
		}
	}
	return out
}

type accountCreateEvaluator struct {
	d        *Dispatcher
	op       *types.AccountCreateOperation
	referrer *types.AccountObject
}

func (e *accountCreateEvaluator) evaluate(context.Context, *ExecutionContext, *fee.Charge) error {
	op := e.op
	if err := e.d.requireAccounts(op.Registrar); err != nil {
		return err
	}
	referrer, err := e.d.account(op.Referrer)
	if err != nil {
		return err
	}
	if !referrer.IsLifetimeMember() {
		return errors.Precondition.WithFormat("referrer %s is not a lifetime member", referrer.Name)
	}
	e.referrer = referrer

	if _, ok := e.d.store.Lookup(IndexAccountName, op.Name); ok {
		return errors.Precondition.WithFormat("account name %q is taken", op.Name)
	}
	if err := e.d.requireAccounts(authorityAccounts(&op.Owner, &op.Active)...); err != nil {
		return err
	}
	for _, sa := range []*types.TopHoldersAuthority{op.OwnerSpecialAuthority, op.ActiveSpecialAuthority} {
		if sa == nil {
			continue
		}
		if _, err := e.d.asset(sa.Asset); err != nil {
			return err
		}
	}

	if bb := op.BuybackOptions; bb != nil {
		asset, err := e.d.asset(bb.AssetToBuy)
		if err != nil {
			return err
		}
		if asset.Issuer != op.Registrar {
			return errors.Unauthorized.WithFormat("only the issuer of %s may create its buyback account", asset.Symbol)
		}
		if asset.BuybackAccount != nil {
			return errors.Precondition.WithFormat("%s already has a buyback account", asset.Symbol)
		}
		if asset.IsMarketIssued() {
			return errors.Precondition.WithFormat("%s is market issued", asset.Symbol)
		}
	}
	return nil
}

func (e *accountCreateEvaluator) apply(context.Context, *ExecutionContext, *fee.Charge) (types.OperationResult, error) {
	op := e.op
	id := types.AccountID(e.d.store.NextID(types.AccountKind).Instance)
	stats, err := store.Create(e.d.store, &types.AccountStatisticsObject{Owner: id})
	if err != nil {
		return types.OperationResult{}, err
	}

	lifetime := e.referrer.LifetimeReferrer
	if e.referrer.IsLifetimeMember() {
		lifetime = e.referrer.AccountID()
	}
	acct, err := store.Create(e.d.store, &types.AccountObject{
		Name:                          op.Name,
		Registrar:                     op.Registrar,
		Referrer:                      op.Referrer,
		LifetimeReferrer:              lifetime,
		NetworkFeePercentage:          e.d.params().NetworkPercentOfFee,
		LifetimeReferrerFeePercentage: uint16(LifetimeReferrerPercentOfFee),
		ReferrerRewardsPercentage:     op.ReferrerPercent,
		Owner:                         op.Owner,
		Active:                        op.Active,
		Options:                       op.Options,
		Statistics:                    types.AccountStatisticsID(stats.ID.Instance),
		OwnerSpecialAuthority:         op.OwnerSpecialAuthority,
		ActiveSpecialAuthority:        op.ActiveSpecialAuthority,
	})
	if err != nil {
		return types.OperationResult{}, err
	}

	if bb := op.BuybackOptions; bb != nil {
		asset, err := e.d.asset(bb.AssetToBuy)
		if err != nil {
			return types.OperationResult{}, err
		}
		err = store.Modify(e.d.store, asset, func(a *types.AssetObject) {
			buyer := acct.AccountID()
			a.BuybackAccount = &buyer
		})
		if err != nil {
			return types.OperationResult{}, err
		}
	}
	return types.ObjectIDResult(acct.ID), nil
}

type accountUpdateEvaluator struct {
	d    *Dispatcher
	op   *types.AccountUpdateOperation
	acct *types.AccountObject
}

func (e *accountUpdateEvaluator) evaluate(context.Context, *ExecutionContext, *fee.Charge) error {
	acct, err := e.d.account(e.op.Account)
	if err != nil {
		return err
	}
	e.acct = acct
	return e.d.requireAccounts(authorityAccounts(e.op.Owner, e.op.Active)...)
}

func (e *accountUpdateEvaluator) apply(context.Context, *ExecutionContext, *fee.Charge) (types.OperationResult, error) {
	op := e.op
	err := store.Modify(e.d.store, e.acct, func(a *types.AccountObject) {
		if op.Owner != nil {
			a.Owner = *op.Owner
		}
		if op.Active != nil {
			a.Active = *op.Active
		}
		if op.NewOptions != nil {
			a.Options = *op.NewOptions
		}
	})
	return types.VoidResult(), err
}

type accountUpgradeEvaluator struct {
	d    *Dispatcher
	op   *types.AccountUpgradeOperation
	acct *types.AccountObject
}

func (e *accountUpgradeEvaluator) evaluate(context.Context, *ExecutionContext, *fee.Charge) error {
	acct, err := e.d.account(e.op.AccountToUpgrade)
	if err != nil {
		return err
	}
	if !e.op.UpgradeToLifetimeMember {
		return errors.NotSupported.With("annual membership is not supported")
	}
	if acct.IsLifetimeMember() {
		return errors.Precondition.WithFormat("%s is already a lifetime member", acct.Name)
	}
	e.acct = acct
	return nil
}

func (e *accountUpgradeEvaluator) apply(context.Context, *ExecutionContext, *fee.Charge) (types.OperationResult, error) {
	network := e.d.params().NetworkPercentOfFee
	err := store.Modify(e.d.store, e.acct, func(a *types.AccountObject) {
		a.MembershipExpiration = types.MaxTimePoint
		a.Referrer = a.AccountID()
		a.Registrar = a.AccountID()
		a.LifetimeReferrer = a.AccountID()
		a.NetworkFeePercentage = network
		a.LifetimeReferrerFeePercentage = uint16(types.Percent100) - network
	})
	return types.VoidResult(), err
}
