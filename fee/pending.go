package fee

import (
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

// ProcessPendingFees pays out the fees accrued on every account since the
// last maintenance. The network cut goes to the core asset's accumulated
// fees; the rest is split between the lifetime referrer, the referrer and
// the registrar as cashback. Fees over the vesting threshold vest, the
// others are paid out already vested.
func (m *Meter) ProcessPendingFees() error {
	for _, stats := range store.All[*types.AccountStatisticsObject](m.store, types.AccountStatisticsKind) {
		if stats.PendingFees == 0 && stats.PendingVestedFees == 0 {
			continue
		}
		acct, err := store.Load[*types.AccountObject](m.store, stats.Owner.ObjectID())
		if err != nil {
			return err
		}
		if err := m.payOut(acct, stats.PendingFees, true); err != nil {
			return err
		}
		if err := m.payOut(acct, stats.PendingVestedFees, false); err != nil {
			return err
		}
		err = store.Modify(m.store, stats, func(s *types.AccountStatisticsObject) {
			s.LifetimeFeesPaid += s.PendingFees + s.PendingVestedFees
			s.PendingFees = 0
			s.PendingVestedFees = 0
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Meter) payOut(acct *types.AccountObject, total int64, requireVesting bool) error {
	if total == 0 {
		return nil
	}

	// A referrer whose membership lapsed loses the referral to the
	// lifetime referrer.
	referrer, err := store.Load[*types.AccountObject](m.store, acct.Referrer.ObjectID())
	if err != nil {
		return err
	}
	if !referrer.IsLifetimeMember() && referrer.MembershipExpiration < store.HeadTime(m.store) {
		err := store.Modify(m.store, acct, func(a *types.AccountObject) {
			a.Referrer = a.LifetimeReferrer
		})
		if err != nil {
			return err
		}
	}

	network := cutFee(total, acct.NetworkFeePercentage)
	lifetime := cutFee(total, acct.LifetimeReferrerFeePercentage)
	referral := total - network - lifetime
	referrerCut := cutFee(referral, acct.ReferrerRewardsPercentage)
	registrarCut := referral - referrerCut

	core, err := m.ledger.CoreDynamicData()
	if err != nil {
		return err
	}
	err = store.Modify(m.store, core, func(d *types.AssetDynamicDataObject) {
		d.AccumulatedFees += network
	})
	if err != nil {
		return err
	}

	for _, cut := range []struct {
		to     types.AccountID
		amount int64
	}{
		{acct.LifetimeReferrer, lifetime},
		{acct.Referrer, referrerCut},
		{acct.Registrar, registrarCut},
	} {
		to, err := store.Load[*types.AccountObject](m.store, cut.to.ObjectID())
		if err != nil {
			return err
		}
		if err := m.ledger.DepositCashback(to, cut.amount, requireVesting); err != nil {
			return err
		}
	}
	m.logger.Debug().Stringer("account", acct.AccountID()).Int64("total", total).Int64("network", network).Msg("Pending fees paid out")
	return nil
}
