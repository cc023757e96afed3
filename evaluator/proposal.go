package evaluator

import (
	"bytes"
	"context"
	"slices"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/fee"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

// impactedAccounts returns the fee payers and impacted accounts of ops.
func impactedAccounts(ops []types.Operation) []types.AccountID {
	var out []types.AccountID
	for _, op := range ops {
		out = append(out, op.FeePayer())
		if ia, ok := op.(types.ImpactedAccounter); ok {
			out = append(out, ia.ImpactedAccounts()...)
		}
	}
	return uniqueAccounts(out)
}

type proposalCreateEvaluator struct {
	d        *Dispatcher
	op       *types.ProposalCreateOperation
	required types.RequiredAuthorities
}

func (e *proposalCreateEvaluator) evaluate(context.Context, *ExecutionContext, *fee.Charge) error {
	op := e.op
	head := e.d.headTime()
	p := e.d.params()

	if op.ExpirationTime <= head {
		return errors.Expired.With("proposal has already expired on creation")
	}
	lifetime := op.ExpirationTime.Sub(head)
	if lifetime > int64(p.MaximumProposalLifetime) {
		return errors.Precondition.WithFormat("proposal lifetime %ds exceeds the maximum %ds", lifetime, p.MaximumProposalLifetime)
	}
	if rp := op.ReviewPeriodSeconds; rp != nil && int64(*rp) >= lifetime {
		return errors.Precondition.WithFormat("review period %ds must be shorter than the lifetime %ds", *rp, lifetime)
	}

	trx := types.Transaction{Operations: op.ProposedOps}
	ops, err := trx.Decoded()
	if err != nil {
		return errors.BadRequest.Wrap(err)
	}
	e.required = RequiredAuthorities(ops...)

	all := append(slices.Clone(e.required.Active), e.required.Owner...)
	if slices.Contains(all, types.CommitteeAccount) || slices.Contains(all, types.WitnessAccount) {
		rp := op.ReviewPeriodSeconds
		if rp == nil || *rp < p.CommitteeProposalReviewPeriod {
			return errors.Precondition.WithFormat("proposals of the committee need a review period of at least %ds", p.CommitteeProposalReviewPeriod)
		}
		if next := store.DynamicGlobals(e.d.store).NextMaintenanceTime; op.ExpirationTime > next {
			return errors.Precondition.WithFormat("committee proposal must expire by the next maintenance at %v", next)
		}
	}
	return e.d.requireAccounts(impactedAccounts(ops)...)
}

func (e *proposalCreateEvaluator) apply(context.Context, *ExecutionContext, *fee.Charge) (types.OperationResult, error) {
	op := e.op
	prop := &types.ProposalObject{
		Proposer:       op.FeePayingAccount,
		ExpirationTime: op.ExpirationTime,
		ProposedTransaction: types.Transaction{
			Expiration: op.ExpirationTime,
			Operations: op.ProposedOps,
		},
		RequiredActiveApprovals: e.required.Active,
		RequiredOwnerApprovals:  e.required.Owner,
	}
	if rp := op.ReviewPeriodSeconds; rp != nil {
		t := op.ExpirationTime.Add(-int64(*rp))
		prop.ReviewPeriodTime = &t
	}
	prop, err := store.Create(e.d.store, prop)
	if err != nil {
		return types.OperationResult{}, err
	}
	return types.ObjectIDResult(prop.ID), nil
}

type proposalUpdateEvaluator struct {
	d    *Dispatcher
	op   *types.ProposalUpdateOperation
	prop *types.ProposalObject
}

func (e *proposalUpdateEvaluator) evaluate(context.Context, *ExecutionContext, *fee.Charge) error {
	op := e.op
	prop, err := store.Load[*types.ProposalObject](e.d.store, op.Proposal.ObjectID())
	if err != nil {
		return err
	}
	if rp := prop.ReviewPeriodTime; rp != nil && e.d.headTime() >= *rp {
		if len(op.ActiveApprovalsToAdd) > 0 || len(op.OwnerApprovalsToAdd) > 0 {
			return errors.Precondition.WithFormat("proposal %v is in its review period, no approvals may be added", prop.ID)
		}
	}
	for _, id := range op.ActiveApprovalsToRemove {
		if !slices.Contains(prop.AvailableActiveApprovals, id) {
			return errors.Precondition.WithFormat("account %v has not approved proposal %v", id, prop.ID)
		}
	}
	for _, id := range op.OwnerApprovalsToRemove {
		if !slices.Contains(prop.AvailableOwnerApprovals, id) {
			return errors.Precondition.WithFormat("account %v has not approved proposal %v with its owner authority", id, prop.ID)
		}
	}
	e.prop = prop
	return nil
}

func (e *proposalUpdateEvaluator) apply(context.Context, *ExecutionContext, *fee.Charge) (types.OperationResult, error) {
	op := e.op
	removeKeys := func(keys []types.PublicKey, drop []types.PublicKey) []types.PublicKey {
		return slices.DeleteFunc(keys, func(k types.PublicKey) bool {
			return slices.ContainsFunc(drop, func(d types.PublicKey) bool { return bytes.Equal(k, d) })
		})
	}
	without := func(ids, drop []types.AccountID) []types.AccountID {
		return slices.DeleteFunc(ids, func(id types.AccountID) bool { return slices.Contains(drop, id) })
	}

	next := *e.prop
	next.AvailableActiveApprovals = without(uniqueAccounts(append(slices.Clone(next.AvailableActiveApprovals), op.ActiveApprovalsToAdd...)), op.ActiveApprovalsToRemove)
	next.AvailableOwnerApprovals = without(uniqueAccounts(append(slices.Clone(next.AvailableOwnerApprovals), op.OwnerApprovalsToAdd...)), op.OwnerApprovalsToRemove)
	keys := removeKeys(slices.Clone(next.AvailableKeyApprovals), op.KeyApprovalsToRemove)
	for _, k := range op.KeyApprovalsToAdd {
		if !slices.ContainsFunc(keys, func(have types.PublicKey) bool { return bytes.Equal(have, k) }) {
			keys = append(keys, k)
		}
	}
	next.AvailableKeyApprovals = keys

	authorized, err := e.authorized(&next)
	if err != nil {
		return types.OperationResult{}, err
	}
	next.AllowExecution = authorized
	if authorized {
		if next.ReviewPeriodTime == nil {
			next.ExpirationTime = e.d.headTime()
		}
		next.ProposedTransaction.SetReferenceBlock(store.DynamicGlobals(e.d.store).HeadBlockID)
		next.ProposedTransaction.Expiration = next.ExpirationTime.Add(TaskLifetime(e.d.params()))
	}

	err = store.Modify(e.d.store, e.prop, func(p *types.ProposalObject) { *p = next })
	return types.VoidResult(), err
}

// authorized reports whether the approvals gathered on p cover every
// required authority. An owner approval also stands for the active one,
// and an authority is met when its keys alone reach its threshold.
func (e *proposalUpdateEvaluator) authorized(p *types.ProposalObject) (bool, error) {
	approved := func(id types.AccountID, owner bool) (bool, error) {
		if slices.Contains(p.AvailableOwnerApprovals, id) {
			return true, nil
		}
		if !owner && slices.Contains(p.AvailableActiveApprovals, id) {
			return true, nil
		}
		acct, err := e.d.account(id)
		if err != nil {
			return false, err
		}
		if keysSatisfy(acct.Owner, p.AvailableKeyApprovals) {
			return true, nil
		}
		return !owner && keysSatisfy(acct.Active, p.AvailableKeyApprovals), nil
	}
	for _, id := range p.RequiredOwnerApprovals {
		if ok, err := approved(id, true); !ok || err != nil {
			return false, err
		}
	}
	for _, id := range p.RequiredActiveApprovals {
		if ok, err := approved(id, false); !ok || err != nil {
			return false, err
		}
	}
	return true, nil
}

type proposalDeleteEvaluator struct {
	d  *Dispatcher
	op *types.ProposalDeleteOperation
}

func (e *proposalDeleteEvaluator) evaluate(context.Context, *ExecutionContext, *fee.Charge) error {
	prop, err := store.Load[*types.ProposalObject](e.d.store, e.op.Proposal.ObjectID())
	if err != nil {
		return err
	}
	required := prop.RequiredActiveApprovals
	if e.op.UsingOwnerAuthority {
		required = prop.RequiredOwnerApprovals
	}
	if !slices.Contains(required, e.op.FeePayingAccount) {
		return errors.Unauthorized.WithFormat("account %v is not required to approve proposal %v", e.op.FeePayingAccount, prop.ID)
	}
	return nil
}

func (e *proposalDeleteEvaluator) apply(context.Context, *ExecutionContext, *fee.Charge) (types.OperationResult, error) {
	if err := store.Remove(e.d.store, e.op.Proposal.ObjectID()); err != nil {
		return types.OperationResult{}, err
	}
	return types.VoidResult(), nil
}
