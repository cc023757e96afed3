// Package evaluator applies single operations against the object store.
//
// Every operation goes through the same steps: its fee is prepared, its
// evaluator checks the operation against current state, applies it, and
// the fee is settled. The steps run inside an undo session of their own
// under the execution sandbox, so a failing or timed out operation leaves
// no trace.
package evaluator

import (
	"context"
	"encoding/hex"

	"github.com/rs/zerolog"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/balance"
	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/fee"
	"github.com/blockberries/ledger/sandbox"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

// Index names registered by RegisterIndexes.
const (
	IndexAccountName  = "account/name"
	IndexAssetSymbol  = "asset/symbol"
	IndexContractName = "contract/name"
	IndexCommitment   = "blinded/commitment"
)

// RegisterIndexes adds the indexes the evaluators look objects up by,
// including those of the balance package.
func RegisterIndexes(s *store.Store) {
	balance.RegisterIndexes(s)
	s.AddIndex(IndexAccountName, types.AccountKind, func(o types.Object) (string, bool) {
		return o.(*types.AccountObject).Name, true
	})
	s.AddIndex(IndexAssetSymbol, types.AssetKind, func(o types.Object) (string, bool) {
		return o.(*types.AssetObject).Symbol, true
	})
	s.AddIndex(IndexContractName, types.ContractKind, func(o types.Object) (string, bool) {
		return o.(*types.ContractObject).Name, true
	})
	s.AddIndex(IndexCommitment, types.BlindedBalanceKind, func(o types.Object) (string, bool) {
		return hex.EncodeToString(o.(*types.BlindedBalanceObject).Commitment), true
	})
}

// evaluator handles one operation. It may keep the objects it loaded in
// evaluate for use in apply.
type evaluator interface {
	evaluate(ctx context.Context, ec *ExecutionContext, c *fee.Charge) error
	apply(ctx context.Context, ec *ExecutionContext, c *fee.Charge) (types.OperationResult, error)
}

// settler is implemented by evaluators that settle their fee themselves.
type settler interface {
	settle(ec *ExecutionContext, c *fee.Charge, res *types.OperationResult) error
}

type Options struct {
	Logger zerolog.Logger
	// Auth decides asset authorization. Defaults to the asset lists.
	Auth ledger.AuthorityOracle
	// Scripts runs contract code. Contract calls fail without one.
	Scripts ledger.ScriptEngine
	// Confidential checks confidential transfer proofs. Confidential
	// transfers fail without one.
	Confidential ledger.ConfidentialVerifier
	Supervisor   *sandbox.Supervisor
}

// Dispatcher routes operations to their evaluators.
type Dispatcher struct {
	store        *store.Store
	ledger       *balance.Ledger
	meter        *fee.Meter
	auth         ledger.AuthorityOracle
	scripts      ledger.ScriptEngine
	confidential ledger.ConfidentialVerifier
	supervisor   *sandbox.Supervisor
	logger       zerolog.Logger
}

func New(s *store.Store, opts Options) *Dispatcher {
	if opts.Auth == nil {
		opts.Auth = ledger.AssetListAuthority{}
	}
	if opts.Supervisor == nil {
		opts.Supervisor = sandbox.New(sandbox.Options{Logger: opts.Logger})
	}
	l := balance.New(s, opts.Logger)
	return &Dispatcher{
		store:        s,
		ledger:       l,
		meter:        fee.New(s, l, opts.Auth, opts.Logger),
		auth:         opts.Auth,
		scripts:      opts.Scripts,
		confidential: opts.Confidential,
		supervisor:   opts.Supervisor,
		logger:       opts.Logger,
	}
}

// Ledger returns the balance ledger the dispatcher writes through.
func (d *Dispatcher) Ledger() *balance.Ledger { return d.ledger }

// Meter returns the fee meter.
func (d *Dispatcher) Meter() *fee.Meter { return d.meter }

// Apply evaluates op and, when applyFlag is set, applies it and settles
// its fee. Without applyFlag the operation is only checked and every
// change is discarded. Errors leave the store as it was.
func (d *Dispatcher) Apply(ctx context.Context, ec *ExecutionContext, op types.Operation, applyFlag bool) (types.OperationResult, error) {
	if ec == nil {
		ec = &ExecutionContext{}
	}
	if err := op.Validate(); err != nil {
		return types.OperationResult{}, errors.BadRequest.WithFormat("%v: %w", op.Type(), err)
	}
	ev, err := d.evaluatorFor(op)
	if err != nil {
		return types.OperationResult{}, err
	}

	budget := sandbox.Budget(store.Parameters(d.store))
	var res types.OperationResult
	err = store.WithSession(d.store, func(ss *store.Session) error {
		var err error
		res, err = d.supervisor.Run(ctx, ec.Mode(), budget, func(ctx context.Context) (types.OperationResult, error) {
			return d.run(ctx, ec, op, ev, applyFlag)
		})
		if err != nil || !applyFlag {
			return err
		}
		return ss.Merge()
	})
	if err != nil {
		opsFailed.WithLabelValues(op.Type().String(), errors.Code(err).String()).Inc()
		d.logger.Debug().Err(err).Stringer("op", op.Type()).Int("op_index", ec.OpIndex).Msg("Operation rejected")
		return types.OperationResult{}, err
	}
	opsApplied.WithLabelValues(op.Type().String()).Inc()
	return res, nil
}

func (d *Dispatcher) run(ctx context.Context, ec *ExecutionContext, op types.Operation, ev evaluator, applyFlag bool) (types.OperationResult, error) {
	c, err := d.meter.Prepare(op, ec.Skips(types.SkipFeeConversion))
	if err != nil {
		return types.OperationResult{}, err
	}
	if err := ev.evaluate(ctx, ec, c); err != nil {
		return types.OperationResult{}, err
	}
	if !applyFlag {
		return types.VoidResult(), nil
	}
	if err := ctx.Err(); err != nil {
		return types.OperationResult{}, errors.Timeout.Wrap(err)
	}
	res, err := ev.apply(ctx, ec, c)
	if err != nil {
		return types.OperationResult{}, err
	}
	if s, ok := ev.(settler); ok {
		err = s.settle(ec, c, &res)
	} else {
		err = d.meter.PayFee(c, &res)
	}
	if err != nil {
		return types.OperationResult{}, err
	}
	return res, nil
}

func (d *Dispatcher) evaluatorFor(op types.Operation) (evaluator, error) {
	switch op := op.(type) {
	case *types.TransferOperation:
		return &transferEvaluator{d: d, op: op}, nil
	case *types.AccountCreateOperation:
		return &accountCreateEvaluator{d: d, op: op}, nil
	case *types.AccountUpdateOperation:
		return &accountUpdateEvaluator{d: d, op: op}, nil
	case *types.AccountUpgradeOperation:
		return &accountUpgradeEvaluator{d: d, op: op}, nil
	case *types.AssetCreateOperation:
		return &assetCreateEvaluator{d: d, op: op}, nil
	case *types.AssetIssueOperation:
		return &assetIssueEvaluator{d: d, op: op}, nil
	case *types.AssetReserveOperation:
		return &assetReserveEvaluator{d: d, op: op}, nil
	case *types.AssetFundFeePoolOperation:
		return &assetFundFeePoolEvaluator{d: d, op: op}, nil
	case *types.AssetClaimFeesOperation:
		return &assetClaimFeesEvaluator{d: d, op: op}, nil
	case *types.WitnessCreateOperation:
		return &witnessCreateEvaluator{d: d, op: op}, nil
	case *types.WitnessUpdateOperation:
		return &witnessUpdateEvaluator{d: d, op: op}, nil
	case *types.CommitteeUpdateParametersOperation:
		return &parametersEvaluator{d: d, op: op}, nil
	case *types.VestingBalanceCreateOperation:
		return &vestingCreateEvaluator{d: d, op: op}, nil
	case *types.VestingBalanceWithdrawOperation:
		return &vestingWithdrawEvaluator{d: d, op: op}, nil
	case *types.ProposalCreateOperation:
		return &proposalCreateEvaluator{d: d, op: op}, nil
	case *types.ProposalUpdateOperation:
		return &proposalUpdateEvaluator{d: d, op: op}, nil
	case *types.ProposalDeleteOperation:
		return &proposalDeleteEvaluator{d: d, op: op}, nil
	case *types.ContractCreateOperation:
		return &contractCreateEvaluator{d: d, op: op}, nil
	case *types.ReviseContractOperation:
		return &reviseContractEvaluator{d: d, op: op}, nil
	case *types.CallContractFunctionOperation:
		return &callContractEvaluator{d: d, op: op}, nil
	case *types.CrontabCreateOperation:
		return &crontabCreateEvaluator{d: d, op: op}, nil
	case *types.CrontabCancelOperation:
		return &crontabCancelEvaluator{d: d, op: op}, nil
	case *types.CrontabRecoverOperation:
		return &crontabRecoverEvaluator{d: d, op: op}, nil
	case *types.TransferToBlindOperation:
		return &transferToBlindEvaluator{d: d, op: op}, nil
	case *types.BlindTransferOperation:
		return &blindTransferEvaluator{d: d, op: op}, nil
	case *types.TransferFromBlindOperation:
		return &transferFromBlindEvaluator{d: d, op: op}, nil
	}
	return nil, errors.NotSupported.WithFormat("operation %v is not supported", op.Type())
}

// Supports reports whether op has an evaluator.
func (d *Dispatcher) Supports(op types.Operation) bool {
	_, err := d.evaluatorFor(op)
	return err == nil
}

// ApplyVirtual applies an operation synthesized by the chain. Virtual
// operations pay no fee and are not timed.
func (d *Dispatcher) ApplyVirtual(ctx context.Context, vop types.VirtualOperation) (types.OperationResult, error) {
	var res types.OperationResult
	err := store.WithSession(d.store, func(ss *store.Session) error {
		var err error
		switch vop := vop.(type) {
		case *types.FBADistributeOperation:
			res, err = d.distributeFBA(vop)
		default:
			err = errors.NotSupported.WithFormat("virtual operation %v is not supported", vop.Type())
		}
		if err != nil {
			return err
		}
		return ss.Merge()
	})
	if err != nil {
		return types.OperationResult{}, err
	}
	virtualOps.WithLabelValues(vop.Type().String()).Inc()
	return res, nil
}

func (d *Dispatcher) distributeFBA(op *types.FBADistributeOperation) (types.OperationResult, error) {
	acc, err := store.Load[*types.FBAAccumulatorObject](d.store, op.FBA.ObjectID())
	if err != nil {
		return types.OperationResult{}, err
	}
	if op.Amount <= 0 || op.Amount > acc.AccumulatedFBAFees {
		return types.OperationResult{}, errors.Consistency.WithFormat("accumulator %v holds %d, cannot distribute %d", acc.ID, acc.AccumulatedFBAFees, op.Amount)
	}
	err = store.Modify(d.store, acc, func(a *types.FBAAccumulatorObject) {
		a.AccumulatedFBAFees -= op.Amount
	})
	if err != nil {
		return types.OperationResult{}, err
	}
	amount := types.NewAsset(op.Amount, types.CoreAsset)
	if err := d.ledger.AdjustBalance(op.Account, amount, false); err != nil {
		return types.OperationResult{}, err
	}
	return types.AssetResult(amount), nil
}

func (d *Dispatcher) headTime() types.TimePoint { return store.HeadTime(d.store) }

func (d *Dispatcher) params() *types.ChainParameters { return store.Parameters(d.store) }

func (d *Dispatcher) account(id types.AccountID) (*types.AccountObject, error) {
	return store.Load[*types.AccountObject](d.store, id.ObjectID())
}

func (d *Dispatcher) asset(id types.AssetID) (*types.AssetObject, error) {
	return store.Load[*types.AssetObject](d.store, id.ObjectID())
}

// requireAccounts checks that every id names an existing account.
func (d *Dispatcher) requireAccounts(ids ...types.AccountID) error {
	for _, id := range ids {
		if !d.store.Has(id.ObjectID()) {
			return errors.NotFound.WithFormat("account %v does not exist", id)
		}
	}
	return nil
}

// authorize checks that account may hold asset.
func (d *Dispatcher) authorize(account types.AccountID, asset *types.AssetObject) error {
	if !d.auth.IsAuthorized(account, asset) {
		return errors.Unauthorized.WithFormat("account %v is not authorized to hold %s", account, asset.Symbol)
	}
	return nil
}

// requireSpendable checks that account can pay amount, plus the fee of c
// when the fee is due in the same asset.
func (d *Dispatcher) requireSpendable(account types.AccountID, amount types.Asset, c *fee.Charge) error {
	need := amount.Amount
	if c != nil && !c.Skip && c.Payer == account && c.Fee.AssetID == amount.AssetID {
		need += c.Fee.Amount
	}
	have, err := d.ledger.Spendable(account, amount.AssetID)
	if err != nil {
		return err
	}
	if have < need {
		return errors.InsufficientBalance.WithFormat("account %v can spend %d of %v, %d required", account, have, amount.AssetID, need)
	}
	return nil
}

// TaskLifetime is how long a reinjected transaction stays valid.
func TaskLifetime(p *types.ChainParameters) int64 {
	return int64(min(p.AssignedTaskLifeCycle, p.MaximumAssignedTaskLifeCycle))
}
