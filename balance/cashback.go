package balance

import (
	"github.com/holiman/uint256"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

// DepositLazyVesting pays amount of core into the CDD vesting balance
// current if it still matches (owner, vestingSeconds); otherwise a new
// vesting balance is created and its id returned. Reusing the balance
// coalesces recurring payouts.
func (l *Ledger) DepositLazyVesting(current *types.VestingBalanceID, amount int64, vestingSeconds uint32, owner types.AccountID, requireVesting bool) (*types.VestingBalanceID, error) {
	if amount == 0 {
		return nil, nil
	}
	now := store.HeadTime(l.store)

	if current != nil {
		vb, ok := store.Find[*types.VestingBalanceObject](l.store, current.ObjectID())
		if ok && vb.Owner == owner && vb.Policy.CDD != nil && vb.Policy.CDD.VestingSeconds == vestingSeconds {
			var derr error
			err := store.Modify(l.store, vb, func(vb *types.VestingBalanceObject) {
				if requireVesting {
					derr = Deposit(vb, now, types.NewAsset(amount, types.CoreAsset))
				} else {
					derr = DepositVested(vb, now, types.NewAsset(amount, types.CoreAsset))
				}
			})
			if err != nil {
				return nil, err
			}
			return nil, derr
		}
	}

	policy := &types.CDDVestingPolicy{
		VestingSeconds:              vestingSeconds,
		CoinSecondsEarnedLastUpdate: now,
	}
	if !requireVesting {
		cs := new(uint256.Int).Mul(uint256.NewInt(uint64(amount)), uint256.NewInt(max(uint64(vestingSeconds), 1)))
		policy.CoinSecondsEarned = types.Uint128From(cs)
	}
	vb, err := store.Create(l.store, &types.VestingBalanceObject{
		Owner:   owner,
		Balance: types.NewAsset(amount, types.CoreAsset),
		Policy:  types.VestingPolicy{CDD: policy},
	})
	if err != nil {
		return nil, err
	}
	id := vb.VestingBalanceID()
	return &id, nil
}

// DepositCashback pays a referral or fee cashback to acct. Cashback of
// system accounts is burned from the core supply instead.
func (l *Ledger) DepositCashback(acct *types.AccountObject, amount int64, requireVesting bool) error {
	if amount == 0 {
		return nil
	}
	if types.IsSystemAccount(acct.AccountID()) {
		core, err := l.CoreDynamicData()
		if err != nil {
			return err
		}
		l.logger.Debug().Stringer("account", acct.AccountID()).Int64("amount", amount).Msg("Cashback burned")
		return store.Modify(l.store, core, func(d *types.AssetDynamicDataObject) {
			d.CurrentSupply -= amount
		})
	}

	period := store.Parameters(l.store).CashbackVestingPeriodSeconds
	id, err := l.DepositLazyVesting(acct.CashbackVB, amount, period, acct.AccountID(), requireVesting)
	if err != nil || id == nil {
		return err
	}
	return store.Modify(l.store, acct, func(a *types.AccountObject) {
		a.CashbackVB = id
	})
}

// DepositWitnessPay pays a block reward into the witness's vesting
// balance.
func (l *Ledger) DepositWitnessPay(wit *types.WitnessObject, amount int64) error {
	if amount == 0 {
		return nil
	}
	period := store.Parameters(l.store).WitnessPayVestingSeconds
	id, err := l.DepositLazyVesting(wit.PayVB, amount, period, wit.WitnessAccount, true)
	if err != nil || id == nil {
		return err
	}
	return store.Modify(l.store, wit, func(w *types.WitnessObject) {
		w.PayVB = id
	})
}

// CoreDynamicData returns the supply counters of the core asset.
func (l *Ledger) CoreDynamicData() (*types.AssetDynamicDataObject, error) {
	return l.DynamicData(types.CoreAsset)
}

// DynamicData returns the supply counters of an asset.
func (l *Ledger) DynamicData(asset types.AssetID) (*types.AssetDynamicDataObject, error) {
	a, err := store.Load[*types.AssetObject](l.store, asset.ObjectID())
	if err != nil {
		return nil, err
	}
	return store.Load[*types.AssetDynamicDataObject](l.store, a.DynamicAssetDataID.ObjectID())
}

// CreateVestingBalance moves amount from creator into a new vesting
// balance owned by owner.
func (l *Ledger) CreateVestingBalance(creator, owner types.AccountID, amount types.Asset, init types.VestingPolicyInitializer) (*types.VestingBalanceObject, error) {
	if amount.Amount <= 0 {
		return nil, errors.BadRequest.WithFormat("vesting amount must be positive, got %d", amount.Amount)
	}
	now := store.HeadTime(l.store)
	policy, err := NewPolicy(init, amount.Amount, now)
	if err != nil {
		return nil, err
	}
	if err := l.AdjustBalance(creator, amount.Neg(), false); err != nil {
		return nil, err
	}
	return store.Create(l.store, &types.VestingBalanceObject{
		Owner:   owner,
		Balance: amount,
		Policy:  policy,
	})
}

// WithdrawVesting moves amount out of a vesting balance into its owner's
// balance.
func (l *Ledger) WithdrawVesting(id types.VestingBalanceID, owner types.AccountID, amount types.Asset) error {
	vb, err := store.Load[*types.VestingBalanceObject](l.store, id.ObjectID())
	if err != nil {
		return err
	}
	if vb.Owner != owner {
		return errors.Unauthorized.WithFormat("vesting balance %v is owned by %v, not %v", id, vb.Owner, owner)
	}
	now := store.HeadTime(l.store)
	var werr error
	err = store.Modify(l.store, vb, func(vb *types.VestingBalanceObject) {
		werr = Withdraw(vb, now, amount)
	})
	if err != nil {
		return err
	}
	if werr != nil {
		return werr
	}
	return l.AdjustBalance(owner, amount, false)
}
