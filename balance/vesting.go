package balance

import (
	"github.com/holiman/uint256"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/types"
)

func sumBelowMaxShares(a, b int64) bool {
	return a <= types.MaxShareSupply && b <= types.MaxShareSupply && a+b <= types.MaxShareSupply
}

func cddSeconds(p *types.CDDVestingPolicy) uint64 {
	return max(uint64(p.VestingSeconds), 1)
}

func linearAllowed(p *types.LinearVestingPolicy, balance int64, now types.TimePoint) int64 {
	if now <= p.BeginTimestamp {
		return 0
	}
	elapsed := uint64(now.Sub(p.BeginTimestamp))
	if elapsed < uint64(p.VestingCliffSeconds) {
		return 0
	}
	vested := p.BeginBalance
	if elapsed < uint64(p.VestingDurationSeconds) {
		x := new(uint256.Int).Mul(uint256.NewInt(uint64(p.BeginBalance)), uint256.NewInt(elapsed))
		x.Div(x, uint256.NewInt(uint64(p.VestingDurationSeconds)))
		vested = int64(x.Uint64())
	}
	withdrawn := p.BeginBalance - balance
	return max(vested-withdrawn, 0)
}

// coinSecondsEarned accrues balance*elapsed, capped at
// balance*vesting_seconds.
func coinSecondsEarned(p *types.CDDVestingPolicy, balance int64, now types.TimePoint) *uint256.Int {
	elapsed := max(now.Sub(p.CoinSecondsEarnedLastUpdate), 0)
	earned := p.CoinSecondsEarned.Int()
	delta := new(uint256.Int).Mul(uint256.NewInt(uint64(balance)), uint256.NewInt(uint64(elapsed)))
	earned.Add(earned, delta)
	limit := new(uint256.Int).Mul(uint256.NewInt(uint64(balance)), uint256.NewInt(cddSeconds(p)))
	if earned.Gt(limit) {
		return limit
	}
	return earned
}

func cddAllowed(p *types.CDDVestingPolicy, balance int64, now types.TimePoint) int64 {
	if now <= p.StartClaim {
		return 0
	}
	earned := coinSecondsEarned(p, balance, now)
	earned.Div(earned, uint256.NewInt(cddSeconds(p)))
	return int64(earned.Uint64())
}

func updateCoinSeconds(p *types.CDDVestingPolicy, balance int64, now types.TimePoint) {
	p.CoinSecondsEarned = types.Uint128From(coinSecondsEarned(p, balance, now))
	p.CoinSecondsEarnedLastUpdate = now
}

// AllowedWithdraw returns what vb's policy lets its owner withdraw at now.
func AllowedWithdraw(vb *types.VestingBalanceObject, now types.TimePoint) types.Asset {
	var n int64
	switch p := vb.Policy; {
	case p.Linear != nil:
		n = linearAllowed(p.Linear, vb.Balance.Amount, now)
	case p.CDD != nil:
		n = cddAllowed(p.CDD, vb.Balance.Amount, now)
	}
	return types.NewAsset(n, vb.Balance.AssetID)
}

// Deposit adds amount to vb. Coin seconds are not credited for the new
// funds; they accrue from now on. Linear balances take no deposits.
func Deposit(vb *types.VestingBalanceObject, now types.TimePoint, amount types.Asset) error {
	if err := checkDeposit(vb, amount); err != nil {
		return err
	}
	if vb.Policy.Linear != nil {
		return errors.Precondition.WithFormat("vesting balance %v has a linear policy and takes no deposits", vb.ID)
	}
	updateCoinSeconds(vb.Policy.CDD, vb.Balance.Amount, now)
	vb.Balance.Amount += amount.Amount
	return nil
}

// DepositVested adds amount to vb and credits its full coin seconds so
// the funds are withdrawable at once.
func DepositVested(vb *types.VestingBalanceObject, now types.TimePoint, amount types.Asset) error {
	if err := checkDeposit(vb, amount); err != nil {
		return err
	}
	p := vb.Policy.CDD
	if p == nil {
		return errors.Precondition.WithFormat("vesting balance %v takes no vested deposits", vb.ID)
	}
	updateCoinSeconds(p, vb.Balance.Amount, now)
	earned := p.CoinSecondsEarned.Int()
	earned.Add(earned, new(uint256.Int).Mul(uint256.NewInt(uint64(amount.Amount)), uint256.NewInt(cddSeconds(p))))
	p.CoinSecondsEarned = types.Uint128From(earned)
	vb.Balance.Amount += amount.Amount
	return nil
}

func checkDeposit(vb *types.VestingBalanceObject, amount types.Asset) error {
	if amount.AssetID != vb.Balance.AssetID {
		return errors.BadRequest.WithFormat("vesting balance %v holds %v, not %v", vb.ID, vb.Balance.AssetID, amount.AssetID)
	}
	if amount.Amount < 0 || !sumBelowMaxShares(amount.Amount, vb.Balance.Amount) {
		return errors.Consistency.WithFormat("deposit of %d into %v exceeds the max share supply", amount.Amount, vb.ID)
	}
	return nil
}

// Withdraw removes amount from vb if its policy allows it at now.
func Withdraw(vb *types.VestingBalanceObject, now types.TimePoint, amount types.Asset) error {
	if amount.AssetID != vb.Balance.AssetID {
		return errors.BadRequest.WithFormat("vesting balance %v holds %v, not %v", vb.ID, vb.Balance.AssetID, amount.AssetID)
	}
	if amount.Amount < 0 {
		return errors.BadRequest.WithFormat("negative withdrawal %d", amount.Amount)
	}
	allowed := AllowedWithdraw(vb, now)
	if amount.Amount > allowed.Amount || amount.Amount > vb.Balance.Amount {
		return errors.Precondition.WithFormat("vesting balance %v allows %d at %v, %d requested", vb.ID, allowed.Amount, now, amount.Amount)
	}
	if p := vb.Policy.CDD; p != nil {
		updateCoinSeconds(p, vb.Balance.Amount, now)
		need := new(uint256.Int).Mul(uint256.NewInt(uint64(amount.Amount)), uint256.NewInt(cddSeconds(p)))
		earned := p.CoinSecondsEarned.Int()
		if need.Gt(earned) {
			return errors.Consistency.WithFormat("vesting balance %v has %s coin seconds, %s needed", vb.ID, earned.Dec(), need.Dec())
		}
		p.CoinSecondsEarned = types.Uint128From(earned.Sub(earned, need))
	}
	vb.Balance.Amount -= amount.Amount
	return nil
}

// NewPolicy builds the policy described by init for a balance of amount
// created at now.
func NewPolicy(init types.VestingPolicyInitializer, amount int64, now types.TimePoint) (types.VestingPolicy, error) {
	switch {
	case init.Linear != nil && init.CDD == nil:
		return types.VestingPolicy{Linear: &types.LinearVestingPolicy{
			BeginTimestamp:         init.Linear.BeginTimestamp,
			VestingCliffSeconds:    init.Linear.VestingCliffSeconds,
			VestingDurationSeconds: init.Linear.VestingDurationSeconds,
			BeginBalance:           amount,
		}}, nil
	case init.CDD != nil && init.Linear == nil:
		return types.VestingPolicy{CDD: &types.CDDVestingPolicy{
			VestingSeconds:              init.CDD.VestingSeconds,
			StartClaim:                  init.CDD.StartClaim,
			CoinSecondsEarnedLastUpdate: now,
		}}, nil
	}
	return types.VestingPolicy{}, errors.BadRequest.With("exactly one vesting policy must be set")
}
