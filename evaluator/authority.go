package evaluator

import (
	"bytes"
	"slices"

	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

// RequiredAuthorities returns the accounts whose authority ops need. Fee
// payers need their active authority. Replacing an owner authority or
// vetoing a proposal with it needs the owner authority, which also
// covers the active one. Transfers spending commitments need no account
// authority.
func RequiredAuthorities(ops ...types.Operation) types.RequiredAuthorities {
	var r types.RequiredAuthorities
	for _, op := range ops {
		switch op := op.(type) {
		case *types.AccountUpdateOperation:
			if op.Owner != nil {
				r.Owner = append(r.Owner, op.Account)
				continue
			}
		case *types.ProposalDeleteOperation:
			if op.UsingOwnerAuthority {
				r.Owner = append(r.Owner, op.FeePayingAccount)
				continue
			}
		case *types.ProposalUpdateOperation:
			extra := op.RequiredAuthorities()
			r.Active = append(r.Active, extra.Active...)
			r.Owner = append(r.Owner, extra.Owner...)
		case *types.BlindTransferOperation, *types.TransferFromBlindOperation:
			// The owners of the spent commitments sign; the proof
			// verifier checks them.
			continue
		}
		r.Active = append(r.Active, op.FeePayer())
	}
	r.Owner = uniqueAccounts(r.Owner)
	r.Active = slices.DeleteFunc(uniqueAccounts(r.Active), func(id types.AccountID) bool {
		_, found := slices.BinarySearch(r.Owner, id)
		return found
	})
	return r
}

func uniqueAccounts(ids []types.AccountID) []types.AccountID {
	if len(ids) == 0 {
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// keysSatisfy reports whether keys alone reach the threshold of auth.
func keysSatisfy(auth types.Authority, keys []types.PublicKey) bool {
	if auth.WeightThreshold == 0 {
		return false
	}
	var total uint64
	for _, kw := range auth.KeyAuths {
		for _, k := range keys {
			if bytes.Equal(kw.Key, k) {
				total += uint64(kw.Weight)
				break
			}
		}
	}
	return total >= uint64(auth.WeightThreshold)
}

// MaxAuthorityDepth bounds how many levels of account authorities are
// followed when checking an approval.
const MaxAuthorityDepth = 2

// OwnerAuthorizes reports whether the approval of owner alone satisfies
// every authority ops require. Scheduled work runs without signatures,
// so each required account must be owner itself or be controlled by
// owner through its account authorities.
func OwnerAuthorizes(s *store.Store, owner types.AccountID, ops []types.Operation) (bool, error) {
	req := RequiredAuthorities(ops...)
	for _, id := range req.Owner {
		if ok, err := approvedBy(s, id, owner, true, 0); !ok || err != nil {
			return false, err
		}
	}
	for _, id := range req.Active {
		if ok, err := approvedBy(s, id, owner, false, 0); !ok || err != nil {
			return false, err
		}
	}
	return true, nil
}

// approvedBy reports whether owner's approval satisfies the owner
// authority of id, or its active authority unless ownerOnly is set.
func approvedBy(s *store.Store, id, owner types.AccountID, ownerOnly bool, depth int) (bool, error) {
	if id == owner {
		return true, nil
	}
	if depth >= MaxAuthorityDepth {
		return false, nil
	}
	acct, err := store.Load[*types.AccountObject](s, id.ObjectID())
	if err != nil {
		return false, err
	}
	auths := []types.Authority{acct.Owner}
	if !ownerOnly {
		auths = append(auths, acct.Active)
	}
	for _, auth := range auths {
		if auth.WeightThreshold == 0 {
			continue
		}
		var total uint64
		for _, w := range auth.AccountAuths {
			ok, err := approvedBy(s, w.Account, owner, false, depth+1)
			if err != nil {
				return false, err
			}
			if ok {
				total += uint64(w.Weight)
			}
		}
		if total >= uint64(auth.WeightThreshold) {
			return true, nil
		}
	}
	return false, nil
}
