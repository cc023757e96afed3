package balance

import (
	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

// AuditSupply checks that, for every asset, the amounts held anywhere in
// the state add up to the recorded current supply, and that no account
// locks more than it holds.
func AuditSupply(s *store.Store) error {
	held := map[types.AssetID]int64{}

	for _, b := range store.All[*types.AccountBalanceObject](s, types.AccountBalanceKind) {
		held[b.AssetType] += b.Balance
	}
	for _, vb := range store.All[*types.VestingBalanceObject](s, types.VestingBalanceKind) {
		held[vb.Balance.AssetID] += vb.Balance.Amount
	}
	for _, st := range store.All[*types.AccountStatisticsObject](s, types.AccountStatisticsKind) {
		held[types.CoreAsset] += st.PendingFees + st.PendingVestedFees
	}
	for _, fba := range store.All[*types.FBAAccumulatorObject](s, types.FBAAccumulatorKind) {
		held[types.CoreAsset] += fba.AccumulatedFBAFees
	}
	if dgp, ok := store.Find[*types.DynamicGlobalPropertyObject](s, types.DynamicGlobalPropertyID); ok {
		held[types.CoreAsset] += dgp.WitnessBudget
	}

	for _, a := range store.All[*types.AssetObject](s, types.AssetKind) {
		dyn, err := store.Load[*types.AssetDynamicDataObject](s, a.DynamicAssetDataID.ObjectID())
		if err != nil {
			return err
		}
		held[a.AssetID()] += dyn.AccumulatedFees + dyn.ConfidentialSupply
		held[types.CoreAsset] += dyn.FeePool
	}

	for _, a := range store.All[*types.AssetObject](s, types.AssetKind) {
		dyn, _ := store.Load[*types.AssetDynamicDataObject](s, a.DynamicAssetDataID.ObjectID())
		if got := held[a.AssetID()]; got != dyn.CurrentSupply {
			return errors.Consistency.WithFormat("asset %s (%v): %d held, supply %d", a.Symbol, a.AssetID(), got, dyn.CurrentSupply)
		}
	}

	rows := map[[2]uint64]int64{}
	for _, b := range store.All[*types.AccountBalanceObject](s, types.AccountBalanceKind) {
		rows[[2]uint64{uint64(b.Owner), uint64(b.AssetType)}] = b.Balance
	}
	for _, acct := range store.All[*types.AccountObject](s, types.AccountKind) {
		for _, l := range acct.Locked {
			bal := rows[[2]uint64{uint64(acct.AccountID()), uint64(l.AssetID)}]
			if l.Amount < 0 || l.Amount > bal {
				return errors.Consistency.WithFormat("account %v locks %d of %v but holds %d", acct.AccountID(), l.Amount, l.AssetID, bal)
			}
		}
	}
	return nil
}
