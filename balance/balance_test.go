package balance_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/ledger/balance"
	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/store/memory"
	"github.com/blockberries/ledger/types"
)

const (
	alice types.AccountID = 5
	bob   types.AccountID = 6
	now   types.TimePoint = 1_700_000_000
)

type fixture struct {
	store  *store.Store
	ledger *balance.Ledger
}

// newFixture builds a chain with the reserved accounts, alice and bob, and
// a core asset of which alice holds 1000.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(memory.New(), store.Options{})
	require.NoError(t, err)
	balance.RegisterIndexes(s)
	f := &fixture{store: s, ledger: balance.New(s, zerolog.New(zerolog.NewTestWriter(t)))}

	f.session(t, func() error {
		if _, err := store.Create(s, &types.GlobalPropertyObject{Parameters: types.DefaultChainParameters()}); err != nil {
			return err
		}
		if _, err := store.Create(s, &types.DynamicGlobalPropertyObject{Time: now}); err != nil {
			return err
		}
		for _, name := range []string{"committee", "witness", "relaxed", "null", "temp", "alice", "bob"} {
			if _, err := store.Create(s, &types.AccountObject{Name: name}); err != nil {
				return err
			}
		}
		if _, err := store.Create(s, &types.AssetDynamicDataObject{CurrentSupply: 1000}); err != nil {
			return err
		}
		if _, err := store.Create(s, &types.AssetObject{Symbol: "CORE", Precision: 5}); err != nil {
			return err
		}
		return f.ledger.AdjustBalance(alice, types.NewAsset(1000, types.CoreAsset), false)
	})
	return f
}

func (f *fixture) session(t *testing.T, fn func() error) {
	t.Helper()
	require.NoError(t, store.WithSession(f.store, func(ss *store.Session) error {
		if err := fn(); err != nil {
			return err
		}
		return ss.Commit()
	}))
}

func (f *fixture) setTime(t *testing.T, at types.TimePoint) {
	f.session(t, func() error {
		return store.Modify(f.store, store.DynamicGlobals(f.store), func(d *types.DynamicGlobalPropertyObject) { d.Time = at })
	})
}

func TestAdjustBalance(t *testing.T) {
	f := newFixture(t)
	ss := f.store.StartSession()
	defer ss.Undo()

	require.NoError(t, f.ledger.AdjustBalance(bob, types.NewAsset(0, types.CoreAsset), false))
	_, ok := f.ledger.Row(bob, types.CoreAsset)
	require.False(t, ok, "a zero delta must not create a row")

	err := f.ledger.AdjustBalance(bob, types.NewAsset(-1, types.CoreAsset), false)
	require.True(t, errors.Is(err, errors.InsufficientBalance))

	require.NoError(t, f.ledger.AdjustBalance(alice, types.NewAsset(-400, types.CoreAsset), false))
	require.NoError(t, f.ledger.AdjustBalance(bob, types.NewAsset(400, types.CoreAsset), false))
	require.Equal(t, int64(600), f.ledger.Balance(alice, types.CoreAsset).Amount)
	require.Equal(t, int64(400), f.ledger.Balance(bob, types.CoreAsset).Amount)

	err = f.ledger.AdjustBalance(alice, types.NewAsset(-601, types.CoreAsset), false)
	require.True(t, errors.Is(err, errors.InsufficientBalance))
}

func TestLockedFundsCannotBeSpent(t *testing.T) {
	f := newFixture(t)
	ss := f.store.StartSession()
	defer ss.Undo()

	require.NoError(t, f.ledger.AdjustLock(alice, types.NewAsset(700, types.CoreAsset)))
	spendable, err := f.ledger.Spendable(alice, types.CoreAsset)
	require.NoError(t, err)
	require.Equal(t, int64(300), spendable)

	err = f.ledger.AdjustBalance(alice, types.NewAsset(-301, types.CoreAsset), false)
	require.True(t, errors.Is(err, errors.InsufficientBalance))
	require.NoError(t, f.ledger.AdjustBalance(alice, types.NewAsset(-300, types.CoreAsset), false))

	// Locked funds are only reachable through SpendLocked.
	require.NoError(t, f.ledger.SpendLocked(alice, types.NewAsset(200, types.CoreAsset)))
	require.Equal(t, int64(500), f.ledger.Balance(alice, types.CoreAsset).Amount)
	require.NoError(t, f.ledger.AssertBalance(alice, types.CoreAsset))

	err = f.ledger.AdjustLock(alice, types.NewAsset(1, types.CoreAsset))
	require.True(t, errors.Is(err, errors.InsufficientBalance), "cannot lock more than the balance")
	err = f.ledger.AdjustLock(alice, types.NewAsset(-501, types.CoreAsset))
	require.True(t, errors.Is(err, errors.Consistency))
}

func TestLinearVesting(t *testing.T) {
	vb := &types.VestingBalanceObject{
		Balance: types.NewAsset(1000, types.CoreAsset),
		Policy: types.VestingPolicy{Linear: &types.LinearVestingPolicy{
			BeginTimestamp:         now,
			VestingCliffSeconds:    100,
			VestingDurationSeconds: 1000,
			BeginBalance:           1000,
		}},
	}

	require.Error(t, balance.Withdraw(vb, now.Add(99), types.NewAsset(1, types.CoreAsset)))
	require.Equal(t, int64(100), balance.AllowedWithdraw(vb, now.Add(100)).Amount)
	require.Error(t, balance.Deposit(vb, now, types.NewAsset(1, types.CoreAsset)), "linear balances take no deposits")

	require.NoError(t, balance.Withdraw(vb, now.Add(500), types.NewAsset(200, types.CoreAsset)))
	require.Equal(t, int64(300), balance.AllowedWithdraw(vb, now.Add(500)).Amount)

	require.NoError(t, balance.Withdraw(vb, now.Add(1000), types.NewAsset(800, types.CoreAsset)))
	require.Zero(t, vb.Balance.Amount)
	require.Error(t, balance.Withdraw(vb, now.Add(2000), types.NewAsset(1, types.CoreAsset)))
}

func TestLinearVestingFullWithdrawOnce(t *testing.T) {
	vb := &types.VestingBalanceObject{
		Balance: types.NewAsset(750, types.CoreAsset),
		Policy: types.VestingPolicy{Linear: &types.LinearVestingPolicy{
			BeginTimestamp: now, VestingCliffSeconds: 10, VestingDurationSeconds: 60, BeginBalance: 750,
		}},
	}
	require.NoError(t, balance.Withdraw(vb, now.Add(60), types.NewAsset(750, types.CoreAsset)))
	require.Error(t, balance.Withdraw(vb, now.Add(60), types.NewAsset(750, types.CoreAsset)))
}

func TestCDDVesting(t *testing.T) {
	vb := &types.VestingBalanceObject{
		Balance: types.NewAsset(0, types.CoreAsset),
		Policy: types.VestingPolicy{CDD: &types.CDDVestingPolicy{
			VestingSeconds:              100,
			CoinSecondsEarnedLastUpdate: now,
		}},
	}

	require.NoError(t, balance.Deposit(vb, now, types.NewAsset(1000, types.CoreAsset)))
	require.Zero(t, balance.AllowedWithdraw(vb, now).Amount, "a plain deposit must re-accrue")

	// Withdrawing zero only records accrual.
	require.NoError(t, balance.Withdraw(vb, now.Add(10), types.NewAsset(0, types.CoreAsset)))
	require.Equal(t, "10000", vb.Policy.CDD.CoinSecondsEarned.String())

	require.Equal(t, int64(500), balance.AllowedWithdraw(vb, now.Add(50)).Amount)
	require.Equal(t, int64(1000), balance.AllowedWithdraw(vb, now.Add(5000)).Amount, "accrual is capped")

	max := balance.AllowedWithdraw(vb, now.Add(30))
	require.NoError(t, balance.Withdraw(vb, now.Add(30), max))
	require.Equal(t, int64(700), vb.Balance.Amount)
	require.Zero(t, balance.AllowedWithdraw(vb, now.Add(30)).Amount)

	require.NoError(t, balance.DepositVested(vb, now.Add(30), types.NewAsset(50, types.CoreAsset)))
	require.Equal(t, int64(50), balance.AllowedWithdraw(vb, now.Add(30)).Amount)
}

func TestCDDStartClaim(t *testing.T) {
	vb := &types.VestingBalanceObject{
		Balance: types.NewAsset(100, types.CoreAsset),
		Policy: types.VestingPolicy{CDD: &types.CDDVestingPolicy{
			VestingSeconds:              10,
			StartClaim:                  now.Add(50),
			CoinSecondsEarnedLastUpdate: now,
		}},
	}
	require.Zero(t, balance.AllowedWithdraw(vb, now.Add(50)).Amount)
	require.Equal(t, int64(100), balance.AllowedWithdraw(vb, now.Add(51)).Amount)
}

func TestDepositLazyVestingReusesBalance(t *testing.T) {
	f := newFixture(t)
	ss := f.store.StartSession()
	defer ss.Undo()

	id, err := f.ledger.DepositLazyVesting(nil, 10, 3600, alice, true)
	require.NoError(t, err)
	require.NotNil(t, id)

	again, err := f.ledger.DepositLazyVesting(id, 15, 3600, alice, false)
	require.NoError(t, err)
	require.Nil(t, again, "a matching balance must be reused")

	other, err := f.ledger.DepositLazyVesting(id, 5, 60, alice, true)
	require.NoError(t, err)
	require.NotNil(t, other, "a different period needs a new balance")
	require.NotEqual(t, *id, *other)

	vb, err := store.Load[*types.VestingBalanceObject](f.store, id.ObjectID())
	require.NoError(t, err)
	require.Equal(t, int64(25), vb.Balance.Amount)
	require.Equal(t, int64(15), balance.AllowedWithdraw(vb, now).Amount)
}

func TestDepositCashback(t *testing.T) {
	f := newFixture(t)
	f.session(t, func() error {
		if err := f.ledger.AdjustBalance(alice, types.NewAsset(-100, types.CoreAsset), false); err != nil {
			return err
		}
		acct, err := store.Load[*types.AccountObject](f.store, bob.ObjectID())
		if err != nil {
			return err
		}
		if err := f.ledger.DepositCashback(acct, 60, true); err != nil {
			return err
		}
		null, err := store.Load[*types.AccountObject](f.store, types.NullAccount.ObjectID())
		if err != nil {
			return err
		}
		return f.ledger.DepositCashback(null, 40, true)
	})

	acct, err := store.Load[*types.AccountObject](f.store, bob.ObjectID())
	require.NoError(t, err)
	require.NotNil(t, acct.CashbackVB)
	null, err := store.Load[*types.AccountObject](f.store, types.NullAccount.ObjectID())
	require.NoError(t, err)
	require.Nil(t, null.CashbackVB)

	core, err := f.ledger.CoreDynamicData()
	require.NoError(t, err)
	require.Equal(t, int64(960), core.CurrentSupply, "system account cashback is burned")
	require.NoError(t, balance.AuditSupply(f.store))
}

func TestVestingBalanceLifecycle(t *testing.T) {
	f := newFixture(t)
	var id types.VestingBalanceID
	f.session(t, func() error {
		vb, err := f.ledger.CreateVestingBalance(alice, bob, types.NewAsset(300, types.CoreAsset), types.VestingPolicyInitializer{
			Linear: &types.LinearVestingPolicyInitializer{BeginTimestamp: now, VestingDurationSeconds: 100},
		})
		if err != nil {
			return err
		}
		id = vb.VestingBalanceID()
		return nil
	})
	require.NoError(t, balance.AuditSupply(f.store))

	f.setTime(t, now.Add(50))
	ss := f.store.StartSession()
	defer ss.Undo()
	err := f.ledger.WithdrawVesting(id, alice, types.NewAsset(10, types.CoreAsset))
	require.True(t, errors.Is(err, errors.Unauthorized))
	require.Error(t, f.ledger.WithdrawVesting(id, bob, types.NewAsset(151, types.CoreAsset)))
	require.NoError(t, f.ledger.WithdrawVesting(id, bob, types.NewAsset(150, types.CoreAsset)))
	require.Equal(t, int64(150), f.ledger.Balance(bob, types.CoreAsset).Amount)
	require.NoError(t, balance.AuditSupply(f.store))
}

func TestAuditSupplyDetectsMismatch(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, balance.AuditSupply(f.store))

	ss := f.store.StartSession()
	defer ss.Undo()
	require.NoError(t, f.ledger.AdjustBalance(bob, types.NewAsset(1, types.CoreAsset), false))
	err := balance.AuditSupply(f.store)
	require.True(t, errors.Is(err, errors.Consistency))
}
