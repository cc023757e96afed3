package evaluator_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/balance"
	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/evaluator"
	"github.com/blockberries/ledger/genesis"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/store/memory"
	"github.com/blockberries/ledger/types"
)

const (
	alice types.AccountID = 5
	bob   types.AccountID = 6

	p            = types.BlockchainPrecision
	genesisTime  = types.TimePoint(1_700_006_400)
	initialFunds = 1000 * p
)

type fixture struct {
	store      *store.Store
	dispatcher *evaluator.Dispatcher
}

func newFixture(t *testing.T, scripts ledger.ScriptEngine, edit ...func(*types.GenesisDoc)) *fixture {
	t.Helper()
	logger := zerolog.New(zerolog.NewTestWriter(t))
	s, err := store.Open(memory.New(), store.Options{Logger: logger})
	require.NoError(t, err)
	evaluator.RegisterIndexes(s)

	doc := genesis.Default(genesisTime, initialFunds, "alice", "bob")
	for _, fn := range edit {
		fn(&doc)
	}
	require.NoError(t, genesis.Init(s, doc, logger))
	ss := s.StartSession()
	t.Cleanup(ss.Undo)
	return &fixture{
		store:      s,
		dispatcher: evaluator.New(s, evaluator.Options{Logger: logger, Scripts: scripts}),
	}
}

func (f *fixture) apply(t *testing.T, ec *evaluator.ExecutionContext, op types.Operation) (types.OperationResult, error) {
	t.Helper()
	if ec == nil {
		ec = &evaluator.ExecutionContext{}
	}
	return f.dispatcher.Apply(context.Background(), ec, op, true)
}

func (f *fixture) balance(a types.AccountID) int64 {
	return f.dispatcher.Ledger().Balance(a, types.CoreAsset).Amount
}

func (f *fixture) deploy(t *testing.T, owner types.AccountID) *types.ContractObject {
	t.Helper()
	c, err := store.Create(f.store, &types.ContractObject{
		Owner:                  owner,
		Name:                   "dice",
		Code:                   []byte("return 1"),
		UserInvokeSharePercent: 100,
	})
	require.NoError(t, err)
	return c
}

func core(n int64) types.Asset { return types.NewAsset(n, types.CoreAsset) }

func encode(t *testing.T, ops ...types.Operation) []types.OperationEnvelope {
	t.Helper()
	var trx types.Transaction
	for _, op := range ops {
		require.NoError(t, trx.Append(op))
	}
	return trx.Operations
}

func TestTransfer(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.apply(t, nil, &types.TransferOperation{Fee: core(20 * p), From: alice, To: bob, Amount: core(initialFunds)})
	require.ErrorIs(t, err, errors.InsufficientBalance)
	require.Equal(t, initialFunds, f.balance(alice))

	res, err := f.apply(t, nil, &types.TransferOperation{Fee: core(20 * p), From: alice, To: bob, Amount: core(500 * p)})
	require.NoError(t, err)
	require.Equal(t, []types.Asset{core(20 * p)}, res.Fees)
	require.Equal(t, 480*p, f.balance(alice))
	require.Equal(t, 1500*p, f.balance(bob))
}

func TestTransferToMissingAccount(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.apply(t, nil, &types.TransferOperation{Fee: core(20 * p), From: alice, To: 99, Amount: core(p)})
	require.ErrorIs(t, err, errors.NotFound)
}

func TestEvaluateOnlyDiscardsChanges(t *testing.T) {
	f := newFixture(t, nil)
	op := &types.TransferOperation{Fee: core(20 * p), From: alice, To: bob, Amount: core(p)}
	res, err := f.dispatcher.Apply(context.Background(), &evaluator.ExecutionContext{}, op, false)
	require.NoError(t, err)
	require.Equal(t, types.ResultVoid, res.Kind)
	require.Equal(t, initialFunds, f.balance(alice))
}

func TestUnsupportedOperation(t *testing.T) {
	f := newFixture(t, nil)
	require.False(t, f.dispatcher.Supports(&types.LimitOrderCreateOperation{}))
	require.True(t, f.dispatcher.Supports(&types.TransferOperation{}))
}

func TestParametersOnlyThroughAgreedTask(t *testing.T) {
	f := newFixture(t, nil)
	next := types.DefaultChainParameters()
	next.BlockInterval = 3
	next.MaintenanceInterval = 3600
	op := &types.CommitteeUpdateParametersOperation{Fee: core(0), NewParameters: next}

	_, err := f.apply(t, nil, op)
	require.ErrorIs(t, err, errors.Unauthorized)
	require.Nil(t, store.GlobalProperties(f.store).PendingParameters)

	_, err = f.apply(t, &evaluator.ExecutionContext{AgreedTask: &types.AgreedTask{}}, op)
	require.NoError(t, err)
	pending := store.GlobalProperties(f.store).PendingParameters
	require.NotNil(t, pending)
	require.Equal(t, uint8(3), pending.BlockInterval)
	// Current parameters hold until maintenance.
	require.Equal(t, uint8(5), store.Parameters(f.store).BlockInterval)
}

func TestProposalLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	exp := genesisTime.Add(3600)
	inner := &types.TransferOperation{Fee: core(20 * p), From: alice, To: bob, Amount: core(p)}

	res, err := f.apply(t, nil, &types.ProposalCreateOperation{
		Fee:              core(100 * p),
		FeePayingAccount: bob,
		ExpirationTime:   exp,
		ProposedOps:      encode(t, inner),
	})
	require.NoError(t, err)
	require.Equal(t, types.ResultObjectID, res.Kind)
	id := types.ProposalID(res.ObjectID.Instance)

	prop, err := store.Load[*types.ProposalObject](f.store, id.ObjectID())
	require.NoError(t, err)
	require.Equal(t, []types.AccountID{alice}, prop.RequiredActiveApprovals)
	require.Empty(t, prop.RequiredOwnerApprovals)
	require.False(t, prop.AllowExecution)

	// Only an account whose approval is required may veto.
	_, err = f.apply(t, nil, &types.ProposalDeleteOperation{Fee: core(0), FeePayingAccount: bob, Proposal: id})
	require.ErrorIs(t, err, errors.Unauthorized)

	_, err = f.apply(t, nil, &types.ProposalUpdateOperation{
		Fee:                  core(0),
		FeePayingAccount:     alice,
		Proposal:             id,
		ActiveApprovalsToAdd: []types.AccountID{alice},
	})
	require.NoError(t, err)
	prop, err = store.Load[*types.ProposalObject](f.store, id.ObjectID())
	require.NoError(t, err)
	require.True(t, prop.AllowExecution)
	require.Equal(t, genesisTime, prop.ExpirationTime)
	require.Equal(t, genesisTime.Add(3600), prop.ProposedTransaction.Expiration)

	_, err = f.apply(t, nil, &types.ProposalDeleteOperation{Fee: core(0), FeePayingAccount: alice, Proposal: id})
	require.NoError(t, err)
	require.False(t, f.store.Has(id.ObjectID()))
}

func TestProposalRejectsBadExpiration(t *testing.T) {
	f := newFixture(t, nil)
	inner := &types.TransferOperation{Fee: core(20 * p), From: alice, To: bob, Amount: core(p)}
	params := store.Parameters(f.store)

	for name, exp := range map[string]types.TimePoint{
		"past":     genesisTime,
		"too_long": genesisTime.Add(int64(params.MaximumProposalLifetime) + 1),
	} {
		_, err := f.apply(t, nil, &types.ProposalCreateOperation{
			Fee:              core(100 * p),
			FeePayingAccount: bob,
			ExpirationTime:   exp,
			ProposedOps:      encode(t, inner),
		})
		require.Error(t, err, name)
	}
}

func TestCommitteeProposalNeedsReview(t *testing.T) {
	f := newFixture(t, nil, func(doc *types.GenesisDoc) {
		doc.InitialParameters.CommitteeProposalReviewPeriod = 3600
	})
	inner := &types.CommitteeUpdateParametersOperation{Fee: core(0), NewParameters: types.DefaultChainParameters()}
	create := &types.ProposalCreateOperation{
		Fee:              core(500 * p),
		FeePayingAccount: alice,
		ExpirationTime:   genesisTime.Add(7200),
		ProposedOps:      encode(t, inner),
	}

	_, err := f.apply(t, nil, create)
	require.ErrorIs(t, err, errors.Precondition)

	review := uint32(3600)
	create.ReviewPeriodSeconds = &review
	res, err := f.apply(t, nil, create)
	require.NoError(t, err)

	prop, err := store.Load[*types.ProposalObject](f.store, *res.ObjectID)
	require.NoError(t, err)
	require.Equal(t, []types.AccountID{types.CommitteeAccount}, prop.RequiredActiveApprovals)
	require.NotNil(t, prop.ReviewPeriodTime)
	require.Equal(t, genesisTime.Add(3600), *prop.ReviewPeriodTime)
}

func TestCrontab(t *testing.T) {
	f := newFixture(t, nil)
	inner := &types.TransferOperation{Fee: core(20 * p), From: alice, To: bob, Amount: core(p)}
	create := &types.CrontabCreateOperation{
		Fee:                   core(100 * p),
		CrontabCreator:        alice,
		CrontabOps:            encode(t, inner),
		StartTime:             genesisTime,
		ExecuteInterval:       60,
		ScheduledExecuteTimes: 3,
	}

	_, err := f.apply(t, nil, create)
	require.ErrorIs(t, err, errors.Precondition)

	create.StartTime = genesisTime.Add(10)
	create.CrontabCreator = bob
	_, err = f.apply(t, nil, create)
	require.ErrorIs(t, err, errors.Unauthorized)

	create.CrontabCreator = alice
	res, err := f.apply(t, nil, create)
	require.NoError(t, err)
	cron, err := store.Load[*types.CrontabObject](f.store, *res.ObjectID)
	require.NoError(t, err)
	require.Equal(t, genesisTime.Add(10), cron.NextExecuteTime)
	require.Equal(t, genesisTime.Add(190), cron.ExpirationTime)
	require.Equal(t, genesisTime.Add(3610), cron.TimedTransaction.Expiration)

	id := cron.CrontabID()
	_, err = f.apply(t, nil, &types.CrontabCancelOperation{Fee: core(0), CrontabCreator: bob, Task: id})
	require.ErrorIs(t, err, errors.Unauthorized)

	require.NoError(t, store.Modify(f.store, cron, func(c *types.CrontabObject) {
		c.IsSuspended = true
		c.AlreadyExecuteTimes = 1
		c.ContinuousFailureTimes = 3
		c.NextExecuteTime = types.MaxTimePoint
	}))
	_, err = f.apply(t, nil, &types.CrontabRecoverOperation{Fee: core(0), CrontabOwner: alice, Crontab: id, RestartTime: genesisTime.Add(100)})
	require.NoError(t, err)
	require.False(t, cron.IsSuspended)
	require.Zero(t, cron.ContinuousFailureTimes)
	require.Equal(t, genesisTime.Add(100), cron.NextExecuteTime)
	require.Equal(t, genesisTime.Add(220), cron.ExpirationTime)

	_, err = f.apply(t, nil, &types.CrontabCancelOperation{Fee: core(0), CrontabCreator: alice, Task: id})
	require.NoError(t, err)
	require.False(t, f.store.Has(id.ObjectID()))
}

func TestCrontabScheduleOverflow(t *testing.T) {
	f := newFixture(t, nil)
	create := &types.CrontabCreateOperation{
		Fee:                   core(100 * p),
		CrontabCreator:        alice,
		CrontabOps:            encode(t, &types.TransferOperation{Fee: core(20 * p), From: alice, To: bob, Amount: core(p)}),
		StartTime:             genesisTime.Add(10),
		ExecuteInterval:       1 << 63,
		ScheduledExecuteTimes: 2,
	}
	_, err := f.apply(t, nil, create)
	require.ErrorIs(t, err, errors.Precondition)

	// Within the lifetime on its own, but the whole schedule wraps.
	lifetime := uint64(store.Parameters(f.store).MaximumCrontabLifetime)
	create.ExecuteInterval = lifetime
	create.ScheduledExecuteTimes = math.MaxUint64/lifetime + 1
	_, err = f.apply(t, nil, create)
	require.ErrorIs(t, err, errors.Precondition)

	create.ExecuteInterval = 60
	create.ScheduledExecuteTimes = lifetime / 60
	_, err = f.apply(t, nil, create)
	require.ErrorIs(t, err, errors.Precondition)
	require.Zero(t, f.store.Count(types.CrontabKind))

	create.ScheduledExecuteTimes = 2
	res, err := f.apply(t, nil, create)
	require.NoError(t, err)
	cron, err := store.Load[*types.CrontabObject](f.store, *res.ObjectID)
	require.NoError(t, err)
	require.Equal(t, genesisTime.Add(130), cron.ExpirationTime)
}

func TestCrontabNeedsOwnerAuthority(t *testing.T) {
	f := newFixture(t, nil)
	approve := &types.ProposalUpdateOperation{Fee: core(p), FeePayingAccount: alice, ActiveApprovalsToAdd: []types.AccountID{bob}}
	create := &types.CrontabCreateOperation{
		Fee:                   core(100 * p),
		CrontabCreator:        alice,
		CrontabOps:            encode(t, approve),
		StartTime:             genesisTime.Add(10),
		ExecuteInterval:       60,
		ScheduledExecuteTimes: 2,
	}
	_, err := f.apply(t, nil, create)
	require.ErrorIs(t, err, errors.Unauthorized)

	acct, err := store.Load[*types.AccountObject](f.store, bob.ObjectID())
	require.NoError(t, err)
	require.NoError(t, store.Modify(f.store, acct, func(a *types.AccountObject) {
		a.Active = types.Authority{WeightThreshold: 1, AccountAuths: []types.AccountWeight{{Account: alice, Weight: 1}}}
	}))
	_, err = f.apply(t, nil, create)
	require.NoError(t, err)

	// Control of bob's active authority does not stand for his owner one.
	ok, err := evaluator.OwnerAuthorizes(f.store, alice, []types.Operation{
		&types.ProposalUpdateOperation{FeePayingAccount: alice, OwnerApprovalsToAdd: []types.AccountID{bob}},
	})
	require.NoError(t, err)
	require.False(t, ok)
}

const callFee = 21 * p

func call(contract *types.ContractObject) *types.CallContractFunctionOperation {
	return &types.CallContractFunctionOperation{
		Fee:          core(callFee),
		Caller:       alice,
		ContractID:   contract.ContractID(),
		FunctionName: "run",
	}
}

func TestContractCallTimesOutWhileAuthoring(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := ledger.NewMockScriptEngine(ctrl)
	f := newFixture(t, engine, func(doc *types.GenesisDoc) {
		doc.InitialParameters.TimeoutMagnification = 1
	})
	contract := f.deploy(t, bob)

	// The budget may run out before the engine is reached.
	engine.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ ledger.ScriptCall) (ledger.ScriptOutcome, error) {
		<-ctx.Done()
		return ledger.ScriptOutcome{}, ctx.Err()
	}).AnyTimes()
	_, err := f.apply(t, nil, call(contract))
	require.ErrorIs(t, err, errors.Timeout)
	require.Equal(t, initialFunds, f.balance(alice))
}

func TestContractCallReplaysRecordedTime(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := ledger.NewMockScriptEngine(ctrl)
	f := newFixture(t, engine, func(doc *types.GenesisDoc) {
		doc.InitialParameters.TimeoutMagnification = 1
	})
	contract := f.deploy(t, bob)

	engine.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, c ledger.ScriptCall) (ledger.ScriptOutcome, error) {
		require.True(t, c.Replay)
		time.Sleep(2 * time.Millisecond)
		return ledger.ScriptOutcome{ProcessValue: []byte("ok")}, nil
	})

	recorded := types.ContractCallResult(types.ContractResult{ContractID: contract.ContractID(), ProcessValue: []byte("ok")})
	recorded.RealRunningTime = 1000
	ec := &evaluator.ExecutionContext{
		Config: &types.ExecutionConfig{Mode: types.ModeReplay},
		Trx:    &types.ProcessedTransaction{OperationResults: []types.OperationResult{recorded}},
	}
	res, err := f.apply(t, ec, call(contract))
	require.NoError(t, err)
	require.Equal(t, uint64(1000), res.RealRunningTime)

	// One millisecond at ten core per millisecond on top of the base fee.
	require.Equal(t, initialFunds-callFee-10*p, f.balance(alice))
	require.Equal(t, callFee+10*p, res.TotalFee(types.CoreAsset))
}

func TestContractReplayDivergence(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := ledger.NewMockScriptEngine(ctrl)
	f := newFixture(t, engine)
	contract := f.deploy(t, bob)

	engine.EXPECT().Run(gomock.Any(), gomock.Any()).Return(ledger.ScriptOutcome{ProcessValue: []byte("heads")}, nil)
	recorded := types.ContractCallResult(types.ContractResult{ContractID: contract.ContractID(), ProcessValue: []byte("tails")})
	ec := &evaluator.ExecutionContext{
		Config: &types.ExecutionConfig{Mode: types.ModeReplay},
		Trx:    &types.ProcessedTransaction{OperationResults: []types.OperationResult{recorded}},
	}
	_, err := f.apply(t, ec, call(contract))
	require.ErrorIs(t, err, errors.Consistency)
}

func TestContractEffects(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := ledger.NewMockScriptEngine(ctrl)
	f := newFixture(t, engine)
	contract := f.deploy(t, bob)

	engine.EXPECT().Run(gomock.Any(), gomock.Any()).Return(ledger.ScriptOutcome{
		Affecteds: []types.ContractAffected{
			{Kind: types.AffectedBalance, Account: alice, Amount: core(-100 * p)},
			{Kind: types.AffectedBalance, Account: bob, Amount: core(100 * p)},
			{Kind: types.AffectedLog, Message: "paid"},
		},
		Data: []byte("state"),
	}, nil)
	res, err := f.apply(t, nil, call(contract))
	require.NoError(t, err)
	require.Equal(t, types.ResultContract, res.Kind)
	require.Len(t, res.Contract.ContractAffecteds, 3)
	require.Equal(t, 1100*p, f.balance(bob))
	require.Less(t, f.balance(alice), 900*p-callFee+1)
	require.Equal(t, []byte("state"), contract.Data)

	// Minting is refused and nothing sticks.
	engine.EXPECT().Run(gomock.Any(), gomock.Any()).Return(ledger.ScriptOutcome{
		Affecteds: []types.ContractAffected{{Kind: types.AffectedBalance, Account: alice, Amount: core(p)}},
	}, nil)
	before := f.balance(alice)
	_, err = f.apply(t, nil, call(contract))
	require.ErrorIs(t, err, errors.Consistency)
	require.Equal(t, before, f.balance(alice))
}

func TestContractCallWithoutEngine(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.apply(t, nil, call(f.deploy(t, bob)))
	require.ErrorIs(t, err, errors.NotSupported)
}

func TestVirtualFBADistribute(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.dispatcher.ApplyVirtual(context.Background(), &types.FBADistributeOperation{
		Account: alice,
		FBA:     types.FBATransferToBlind,
		Amount:  p,
	})
	require.ErrorIs(t, err, errors.Consistency)

	acc, err := store.Load[*types.FBAAccumulatorObject](f.store, types.FBATransferToBlind.ObjectID())
	require.NoError(t, err)
	require.NoError(t, store.Modify(f.store, acc, func(a *types.FBAAccumulatorObject) { a.AccumulatedFBAFees = 5 * p }))

	res, err := f.dispatcher.ApplyVirtual(context.Background(), &types.FBADistributeOperation{
		Account: alice,
		FBA:     types.FBATransferToBlind,
		Amount:  2 * p,
	})
	require.NoError(t, err)
	require.Equal(t, core(2*p), *res.Asset)
	require.Equal(t, initialFunds+2*p, f.balance(alice))
	require.Equal(t, 3*p, acc.AccumulatedFBAFees)
}

func TestRequiredAuthorities(t *testing.T) {
	owner := types.Authority{WeightThreshold: 1}
	got := evaluator.RequiredAuthorities(
		&types.TransferOperation{From: alice, To: bob},
		&types.AccountUpdateOperation{Account: alice, Owner: &owner},
		&types.ProposalUpdateOperation{FeePayingAccount: bob, OwnerApprovalsToAdd: []types.AccountID{7}},
	)
	require.Equal(t, []types.AccountID{alice, 7}, got.Owner)
	require.Equal(t, []types.AccountID{bob}, got.Active)
}

// routeFBA lets accumulator id distribute to the holders of asset usd.
func routeFBA(t *testing.T, s *store.Store, id types.FBAAccumulatorID, usd types.AssetID) {
	t.Helper()
	acc, err := store.Load[*types.FBAAccumulatorObject](s, id.ObjectID())
	require.NoError(t, err)
	require.NoError(t, store.Modify(s, acc, func(a *types.FBAAccumulatorObject) { a.DesignatedAsset = &usd }))
	asset, err := store.Load[*types.AssetObject](s, usd.ObjectID())
	require.NoError(t, err)
	buyback := bob
	require.NoError(t, store.Modify(s, asset, func(a *types.AssetObject) { a.BuybackAccount = &buyback }))
	issuer, err := store.Load[*types.AccountObject](s, asset.Issuer.ObjectID())
	require.NoError(t, err)
	require.NoError(t, store.Modify(s, issuer, func(a *types.AccountObject) {
		a.OwnerSpecialAuthority = &types.TopHoldersAuthority{Asset: usd, NumTopHolders: 1}
		a.ActiveSpecialAuthority = &types.TopHoldersAuthority{Asset: usd, NumTopHolders: 1}
		a.TopNControlFlags = types.TopNControlOwner | types.TopNControlActive
	}))
}

func TestConfidentialTransfers(t *testing.T) {
	const usd types.AssetID = 1
	ctrl := gomock.NewController(t)
	verifier := ledger.NewMockConfidentialVerifier(ctrl)
	f := newFixture(t, nil, func(doc *types.GenesisDoc) {
		doc.InitialAssets = []types.GenesisAsset{{
			Symbol:           "USD",
			IssuerName:       "alice",
			Precision:        2,
			MaxSupply:        types.MaxShareSupply,
			CoreExchangeRate: types.Price{Base: types.NewAsset(2, usd), Quote: core(1)},
		}}
	})
	d := evaluator.New(f.store, evaluator.Options{Logger: zerolog.New(zerolog.NewTestWriter(t)), Confidential: verifier})
	fbas := []types.FBAAccumulatorID{types.FBATransferToBlind, types.FBABlindTransfer, types.FBATransferFromBlind}
	for _, id := range fbas {
		routeFBA(t, f.store, id, usd)
	}
	apply := func(op types.Operation) error {
		_, err := d.Apply(context.Background(), &evaluator.ExecutionContext{}, op, true)
		return err
	}
	confidential := func() int64 {
		dyn, err := d.Ledger().CoreDynamicData()
		require.NoError(t, err)
		return dyn.ConfidentialSupply
	}
	const fee = 5 * p
	a, b, c := []byte("commitment-a"), []byte("commitment-b"), []byte("commitment-c")

	verifier.EXPECT().VerifyConfidential(gomock.Any(), gomock.Any()).Return(nil).Times(3)

	require.NoError(t, apply(&types.TransferToBlindOperation{
		Fee:     core(fee),
		Amount:  core(100 * p),
		From:    alice,
		Outputs: []types.BlindOutput{{Commitment: a}, {Commitment: b}},
	}))
	require.Equal(t, initialFunds-100*p-fee, f.balance(alice))
	require.Equal(t, 100*p, confidential())

	err := apply(&types.TransferToBlindOperation{Fee: core(fee), Amount: core(p), From: alice, Outputs: []types.BlindOutput{{Commitment: a}}})
	require.ErrorIs(t, err, errors.Duplicate)

	require.NoError(t, apply(&types.BlindTransferOperation{
		Fee:     core(fee),
		Inputs:  [][]byte{a},
		Outputs: []types.BlindOutput{{Commitment: c}},
	}))
	require.Equal(t, 100*p-fee, confidential())

	err = apply(&types.TransferFromBlindOperation{Fee: core(fee), Amount: core(p), To: bob, Inputs: [][]byte{a}})
	require.ErrorIs(t, err, errors.NotFound)

	require.NoError(t, apply(&types.TransferFromBlindOperation{
		Fee:    core(fee),
		Amount: core(50 * p),
		To:     bob,
		Inputs: [][]byte{b, c},
	}))
	require.Equal(t, initialFunds+50*p, f.balance(bob))
	require.Equal(t, 100*p-2*fee-50*p, confidential())
	require.Zero(t, f.dispatcher.Ledger().Balance(types.TempAccount, types.CoreAsset).Amount)
	require.Zero(t, f.store.Count(types.BlindedBalanceKind))

	for _, id := range fbas {
		acc, err := store.Load[*types.FBAAccumulatorObject](f.store, id.ObjectID())
		require.NoError(t, err)
		require.Equal(t, fee, acc.AccumulatedFBAFees, "accumulator %v", id)
	}
	require.NoError(t, balance.AuditSupply(f.store))
}

func TestConfidentialTransferWithoutVerifier(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.apply(t, nil, &types.TransferToBlindOperation{
		Fee:     core(5 * p),
		Amount:  core(p),
		From:    alice,
		Outputs: []types.BlindOutput{{Commitment: []byte("x")}},
	})
	require.ErrorIs(t, err, errors.NotSupported)
	require.Equal(t, initialFunds, f.balance(alice))
}
