// Package balance keeps account balance rows, asset locks and vesting
// balances, and audits asset supply.
//
// Every mutation goes through the store and must happen inside an open
// undo session.
package balance

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

// IndexBalance is the (owner, asset) index over balance rows.
const IndexBalance = "balance/owner_asset"

// RegisterIndexes adds the indexes this package looks rows up by.
func RegisterIndexes(s *store.Store) {
	s.AddIndex(IndexBalance, types.AccountBalanceKind, func(o types.Object) (string, bool) {
		b := o.(*types.AccountBalanceObject)
		return balanceKey(b.Owner, b.AssetType), true
	})
}

func balanceKey(owner types.AccountID, asset types.AssetID) string {
	return fmt.Sprintf("%d/%d", owner, asset)
}

type Ledger struct {
	store  *store.Store
	logger zerolog.Logger
}

func New(s *store.Store, logger zerolog.Logger) *Ledger {
	return &Ledger{store: s, logger: logger}
}

// Row returns the balance row of (owner, asset), if any.
func (l *Ledger) Row(owner types.AccountID, asset types.AssetID) (*types.AccountBalanceObject, bool) {
	return store.LookupAs[*types.AccountBalanceObject](l.store, IndexBalance, balanceKey(owner, asset))
}

// Balance returns the balance of (owner, asset). Absent rows are zero.
func (l *Ledger) Balance(owner types.AccountID, asset types.AssetID) types.Asset {
	if row, ok := l.Row(owner, asset); ok {
		return row.Amount()
	}
	return types.NewAsset(0, asset)
}

// Spendable returns the balance not held by the account's asset locks.
func (l *Ledger) Spendable(owner types.AccountID, asset types.AssetID) (int64, error) {
	acct, err := store.Load[*types.AccountObject](l.store, owner.ObjectID())
	if err != nil {
		return 0, err
	}
	return l.Balance(owner, asset).Amount - acct.LockedAmount(asset), nil
}

// AdjustBalance adds delta to the account's balance. A zero delta is a
// no-op and a positive delta on an absent row creates it. A debit may
// not reach into locked funds unless passthrough is set, which is
// reserved for spending the locked funds themselves.
func (l *Ledger) AdjustBalance(account types.AccountID, delta types.Asset, passthrough bool) error {
	if delta.Amount == 0 {
		return nil
	}

	row, ok := l.Row(account, delta.AssetID)
	if !ok {
		if delta.Amount < 0 {
			return errors.InsufficientBalance.WithFormat("account %v has no %v, %d required", account, delta.AssetID, -delta.Amount)
		}
		_, err := store.Create(l.store, &types.AccountBalanceObject{
			Owner:     account,
			AssetType: delta.AssetID,
			Balance:   delta.Amount,
		})
		return err
	}

	if delta.Amount < 0 {
		if row.Balance < -delta.Amount {
			return errors.InsufficientBalance.WithFormat("account %v balance %d is less than required %d", account, row.Balance, -delta.Amount)
		}
		if !passthrough {
			acct, err := store.Load[*types.AccountObject](l.store, account.ObjectID())
			if err != nil {
				return err
			}
			locked := acct.LockedAmount(delta.AssetID)
			if locked < 0 || row.Balance+delta.Amount < locked {
				return errors.InsufficientBalance.WithFormat("%d of %v is locked on account %v", locked, delta.AssetID, account)
			}
		}
	} else if row.Balance > types.MaxShareSupply-delta.Amount {
		return errors.Consistency.WithFormat("balance of %v in %v would exceed the max share supply", account, delta.AssetID)
	}

	return store.Modify(l.store, row, func(b *types.AccountBalanceObject) {
		b.Balance += delta.Amount
	})
}

// AssertBalance checks 0 <= locked <= balance for (account, asset).
func (l *Ledger) AssertBalance(account types.AccountID, asset types.AssetID) error {
	acct, err := store.Load[*types.AccountObject](l.store, account.ObjectID())
	if err != nil {
		return err
	}
	locked := acct.LockedAmount(asset)
	bal := l.Balance(account, asset).Amount
	if locked < 0 || locked > bal {
		return errors.Consistency.WithFormat("account %v locks %d of %v but holds %d", account, locked, asset, bal)
	}
	return nil
}

// AdjustLock adds delta to the account's locked total of the asset.
func (l *Ledger) AdjustLock(account types.AccountID, delta types.Asset) error {
	if delta.Amount == 0 {
		return nil
	}
	acct, err := store.Load[*types.AccountObject](l.store, account.ObjectID())
	if err != nil {
		return err
	}
	next := acct.LockedAmount(delta.AssetID) + delta.Amount
	if next < 0 {
		return errors.Consistency.WithFormat("cannot release %d of %v locked on %v", -delta.Amount, delta.AssetID, account)
	}
	if next > l.Balance(account, delta.AssetID).Amount {
		return errors.InsufficientBalance.WithFormat("cannot lock %d of %v on %v", next, delta.AssetID, account)
	}
	return store.Modify(l.store, acct, func(a *types.AccountObject) {
		a.SetLocked(delta.AssetID, next)
	})
}

// SpendLocked debits amount out of the account's locked funds and
// lowers the lock by the same amount.
func (l *Ledger) SpendLocked(account types.AccountID, amount types.Asset) error {
	if amount.Amount <= 0 {
		return errors.BadRequest.WithFormat("spend of non-positive locked amount %d", amount.Amount)
	}
	acct, err := store.Load[*types.AccountObject](l.store, account.ObjectID())
	if err != nil {
		return err
	}
	locked := acct.LockedAmount(amount.AssetID)
	if locked < amount.Amount {
		return errors.InsufficientBalance.WithFormat("account %v has %d of %v locked, %d required", account, locked, amount.AssetID, amount.Amount)
	}
	if err := l.AdjustBalance(account, amount.Neg(), true); err != nil {
		return err
	}
	err = store.Modify(l.store, acct, func(a *types.AccountObject) {
		a.SetLocked(amount.AssetID, locked-amount.Amount)
	})
	if err != nil {
		return err
	}
	return l.AssertBalance(account, amount.AssetID)
}
