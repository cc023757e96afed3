package chain_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/balance"
	"github.com/blockberries/ledger/chain"
	"github.com/blockberries/ledger/errors"
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
	transferFee  = 20 * p
)

type fixture struct {
	chain   *chain.Chain
	witness types.WitnessID
}

func newFixture(t *testing.T, opts ...func(*chain.Options)) *fixture {
	t.Helper()
	return newGenesisFixture(t, nil, opts...)
}

// newGenesisFixture lets edit change the genesis document first.
func newGenesisFixture(t *testing.T, edit func(*types.GenesisDoc), opts ...func(*chain.Options)) *fixture {
	t.Helper()
	logger := zerolog.New(zerolog.NewTestWriter(t))
	s, err := store.Open(memory.New(), store.Options{Logger: logger})
	require.NoError(t, err)

	o := chain.Options{Logger: logger, ChainID: "ledger-devnet"}
	for _, fn := range opts {
		fn(&o)
	}
	c, err := chain.New(s, o)
	require.NoError(t, err)
	doc := genesis.Default(genesisTime, initialFunds, "alice", "bob")
	if edit != nil {
		edit(&doc)
	}
	require.NoError(t, genesis.Init(s, doc, logger))
	return &fixture{
		chain:   c,
		witness: store.GlobalProperties(s).ActiveWitnesses[0],
	}
}

func core(n int64) types.Asset { return types.NewAsset(n, types.CoreAsset) }

func (f *fixture) balance(a types.AccountID) int64 {
	return f.chain.Dispatcher().Ledger().Balance(a, types.CoreAsset).Amount
}

func (f *fixture) tx(t *testing.T, ops ...types.Operation) types.SignedTransaction {
	t.Helper()
	head := f.chain.Head()
	trx := types.Transaction{Expiration: f.chain.HeadTime().Add(60)}
	trx.SetReferenceBlock(head.ID)
	for _, op := range ops {
		require.NoError(t, trx.Append(op))
	}
	return types.SignedTransaction{Transaction: trx}
}

func (f *fixture) transfer(t *testing.T, from, to types.AccountID, amount int64) types.SignedTransaction {
	t.Helper()
	return f.tx(t, &types.TransferOperation{Fee: core(transferFee), From: from, To: to, Amount: core(amount)})
}

func (f *fixture) generate(t *testing.T, txs ...types.SignedTransaction) *types.SignedBlock {
	t.Helper()
	b, err := f.chain.GenerateBlock(context.Background(), f.chain.HeadTime().Add(5), f.witness, txs)
	require.NoError(t, err)
	return b
}

func (f *fixture) produce(t *testing.T, txs ...types.SignedTransaction) (*types.SignedBlock, types.BlockOutcome) {
	t.Helper()
	b := f.generate(t, txs...)
	out, err := f.chain.PushBlock(context.Background(), b, types.SkipNothing)
	require.NoError(t, err)
	return b, out
}

// task turns a crontab into the transaction a node would reinject for it.
func task(t *testing.T, cron *types.CrontabObject) types.SignedTransaction {
	t.Helper()
	trx := cron.TimedTransaction
	h, err := chain.TaskHash(trx)
	require.NoError(t, err)
	trx.AgreedTask = &types.AgreedTask{TrxHash: h, ScheduleID: cron.ID}
	return types.SignedTransaction{Transaction: trx}
}

func hasEvent(events []types.Event, kind, key, value string) bool {
	for _, ev := range events {
		if ev.Kind != kind {
			continue
		}
		if key == "" {
			return true
		}
		for _, a := range ev.Attributes {
			if a.Key == key && a.Value == value {
				return true
			}
		}
	}
	return false
}

func TestPushBlock(t *testing.T) {
	f := newFixture(t)
	var seen []uint32
	f.chain.OnApplied(func(b *types.SignedBlock, _ types.BlockOutcome) { seen = append(seen, b.Num()) })

	b, out := f.produce(t, f.transfer(t, alice, bob, 100*p))
	require.Len(t, b.Transactions, 1)
	require.Len(t, out.TxOutcomes, 1)
	require.Equal(t, []types.Asset{core(transferFee)}, out.TxOutcomes[0].Results[0].Fees)
	require.True(t, hasEvent(out.TxOutcomes[0].Events, types.EventOperation, "", ""))
	require.NotEqual(t, types.AppHash{}, out.AppHash)

	require.Equal(t, chain.StateCommitted, f.chain.State())
	require.Equal(t, []uint32{1}, seen)
	require.Equal(t, initialFunds-100*p-transferFee, f.balance(alice))
	require.Equal(t, initialFunds+100*p, f.balance(bob))

	head := f.chain.Head()
	require.Equal(t, uint64(1), head.Height)
	require.Equal(t, out.BlockID, head.ID)
	require.Equal(t, genesisTime.Add(5), f.chain.HeadTime())
	h, err := f.chain.AppHash()
	require.NoError(t, err)
	require.Equal(t, out.AppHash, h)

	stored, err := f.chain.ReadBlock(1)
	require.NoError(t, err)
	id, err := stored.ID()
	require.NoError(t, err)
	require.Equal(t, head.ID, id)
	fetched, err := f.chain.FetchBlock(head.ID)
	require.NoError(t, err)
	require.Equal(t, b.Header, fetched.Header)

	dgp := store.DynamicGlobals(f.chain.Store())
	require.Equal(t, f.witness, dgp.CurrentWitness)
	require.Equal(t, uint32(1), dgp.CurrentOpIndex)
}

func TestReplayIsDeterministic(t *testing.T) {
	producer := newFixture(t)
	follower := newFixture(t)

	b := producer.generate(t, producer.transfer(t, alice, bob, 10*p), producer.transfer(t, bob, alice, 3*p))
	want, err := producer.chain.PushBlock(context.Background(), b, types.SkipNothing)
	require.NoError(t, err)
	got, err := follower.chain.PushBlock(context.Background(), b, types.SkipNothing)
	require.NoError(t, err)

	require.Equal(t, want.AppHash, got.AppHash)
	require.Equal(t, want.BlockID, got.BlockID)
	require.Equal(t, producer.balance(alice), follower.balance(alice))
	require.Equal(t, producer.balance(bob), follower.balance(bob))
}

func TestGenerateBlockDropsFailingTransactions(t *testing.T) {
	f := newFixture(t)
	ok := f.transfer(t, alice, bob, p)
	overdraft := f.transfer(t, bob, alice, 10*initialFunds)

	b := f.generate(t, overdraft, ok)
	require.Len(t, b.Transactions, 1)
	require.Equal(t, ok, b.Transactions[0].Signed)

	// Generating leaves the state alone.
	require.Equal(t, initialFunds, f.balance(alice))
	require.Equal(t, uint64(0), f.chain.Head().Height)
}

func TestGenerateBlockRejectsStaleTime(t *testing.T) {
	f := newFixture(t)
	_, err := f.chain.GenerateBlock(context.Background(), genesisTime, f.witness, nil)
	require.ErrorIs(t, err, errors.Precondition)
	_, err = f.chain.GenerateBlock(context.Background(), genesisTime.Add(5), 42, nil)
	require.ErrorIs(t, err, errors.NotFound)
}

func TestDuplicateTransaction(t *testing.T) {
	f := newFixture(t)
	tx := f.transfer(t, alice, bob, p)
	_, err := f.chain.PushTransaction(context.Background(), tx)
	require.NoError(t, err)
	_, err = f.chain.PushTransaction(context.Background(), tx)
	require.ErrorIs(t, err, errors.Duplicate)

	b := f.generate(t, tx, tx)
	require.Len(t, b.Transactions, 1)
	_, err = f.chain.PushBlock(context.Background(), b, types.SkipNothing)
	require.NoError(t, err)

	id, err := tx.ID()
	require.NoError(t, err)
	require.True(t, f.chain.IsKnown(id))
	_, err = f.chain.PushTransaction(context.Background(), tx)
	require.ErrorIs(t, err, errors.Duplicate)
}

func TestApplyBlockRejectsBadLinkage(t *testing.T) {
	f := newFixture(t)
	b := f.generate(t)
	b.Header.Previous = types.BlockID{1}

	_, err := f.chain.ApplyBlock(context.Background(), b, types.SkipNothing)
	require.ErrorIs(t, err, errors.Fatal)
	require.Equal(t, chain.StateAborted, f.chain.State())
	require.Equal(t, uint64(0), f.chain.Head().Height)

	// The applicator accepts the next block after an abort.
	f.produce(t)
	require.Equal(t, uint64(1), f.chain.Head().Height)
}

func TestApplyBlockRejectsBadMerkleRoot(t *testing.T) {
	f := newFixture(t)
	b := f.generate(t, f.transfer(t, alice, bob, p))
	b.Header.TransactionMerkleRoot = types.Hash{}

	_, err := f.chain.ApplyBlock(context.Background(), b, types.SkipNothing)
	require.ErrorIs(t, err, errors.Fatal)
	require.Equal(t, initialFunds, f.balance(alice))
}

func TestFailingTransactionAbortsBlock(t *testing.T) {
	f := newFixture(t)
	b := &types.SignedBlock{
		Header: types.BlockHeader{
			Previous:  f.chain.Head().ID,
			Timestamp: genesisTime.Add(5),
			Witness:   f.witness,
		},
		Transactions: []types.ProcessedTransaction{
			{Signed: f.transfer(t, alice, bob, p)},
			{Signed: f.transfer(t, bob, alice, 10*initialFunds)},
		},
	}
	root, err := b.MerkleRoot()
	require.NoError(t, err)
	b.Header.TransactionMerkleRoot = root

	_, err = f.chain.ApplyBlock(context.Background(), b, types.SkipNothing)
	require.ErrorIs(t, err, errors.Fatal)
	require.ErrorIs(t, err, errors.InsufficientBalance)
	require.Equal(t, chain.StateAborted, f.chain.State())

	// The first transaction is rolled back with the block.
	require.Equal(t, initialFunds, f.balance(alice))
	require.Equal(t, initialFunds, f.balance(bob))
	_, err = f.chain.ReadBlock(1)
	require.ErrorIs(t, err, errors.NotFound)
}

func TestAbortRestoresState(t *testing.T) {
	f := newFixture(t)
	b := f.generate(t, f.transfer(t, alice, bob, 100*p))

	_, err := f.chain.ApplyBlock(context.Background(), b, types.SkipNothing)
	require.NoError(t, err)
	require.Equal(t, chain.StateFinalizing, f.chain.State())
	require.Equal(t, initialFunds+100*p, f.balance(bob))

	// A second block cannot start while one is in flight.
	_, err = f.chain.ApplyBlock(context.Background(), b, types.SkipNothing)
	require.ErrorIs(t, err, errors.Precondition)
	_, err = f.chain.PushTransaction(context.Background(), f.transfer(t, alice, bob, p))
	require.ErrorIs(t, err, errors.Precondition)

	f.chain.Abort()
	require.Equal(t, chain.StateAborted, f.chain.State())
	require.Equal(t, initialFunds, f.balance(bob))
	require.Equal(t, uint64(0), f.chain.Head().Height)
	require.ErrorIs(t, f.chain.Commit(), errors.Precondition)
	id, err := b.ID()
	require.NoError(t, err)
	_, err = f.chain.FetchBlock(id)
	require.ErrorIs(t, err, errors.NotFound)
}

func TestPopBlock(t *testing.T) {
	f := newFixture(t)
	f.produce(t, f.transfer(t, alice, bob, 50*p))
	first := f.chain.Head()
	tx := f.transfer(t, alice, bob, 100*p)
	f.produce(t, tx)
	require.Equal(t, uint64(2), f.chain.Head().Height)

	popped, err := f.chain.PopBlock()
	require.NoError(t, err)
	require.Len(t, popped, 1)
	require.Equal(t, tx, popped[0].Signed)
	require.Equal(t, first, f.chain.Head())
	require.Equal(t, initialFunds+50*p, f.balance(bob))
	_, err = f.chain.ReadBlock(2)
	require.ErrorIs(t, err, errors.NotFound)

	// The popped transaction is no longer known and applies again.
	id, err := tx.ID()
	require.NoError(t, err)
	require.False(t, f.chain.IsKnown(id))
	f.produce(t, tx)
	require.Equal(t, initialFunds+150*p, f.balance(bob))
}

func TestPopBlockAtGenesis(t *testing.T) {
	f := newFixture(t)
	_, err := f.chain.PopBlock()
	require.ErrorIs(t, err, errors.Precondition)
}

func TestPendingPool(t *testing.T) {
	f := newFixture(t)
	tx := f.transfer(t, alice, bob, 10*p)
	ptx, err := f.chain.PushTransaction(context.Background(), tx)
	require.NoError(t, err)
	require.Len(t, ptx.OperationResults, 1)
	require.Equal(t, initialFunds+10*p, f.balance(bob))
	require.Len(t, f.chain.PendingTransactions(), 1)

	// A block operation sets the pool aside.
	f.produce(t)
	require.Equal(t, initialFunds, f.balance(bob))
	require.Empty(t, f.chain.PendingTransactions())

	require.Equal(t, []types.SignedTransaction{tx}, f.chain.ClearPending())
	require.Empty(t, f.chain.ClearPending())
}

func TestDryRunDiscardsChanges(t *testing.T) {
	f := newFixture(t)
	ptx, events, err := f.chain.DryRun(context.Background(), f.transfer(t, alice, bob, 10*p))
	require.NoError(t, err)
	require.Len(t, ptx.OperationResults, 1)
	require.Len(t, events, 1)
	require.Equal(t, initialFunds, f.balance(bob))
	require.Equal(t, uint32(0), f.chain.CurrentOpIndex())

	_, _, err = f.chain.DryRun(context.Background(), f.transfer(t, alice, bob, 10*initialFunds))
	require.ErrorIs(t, err, errors.InsufficientBalance)
}

func TestTransactionExpiration(t *testing.T) {
	f := newFixture(t)
	f.produce(t)

	tx := f.transfer(t, alice, bob, p)
	tx.Transaction.Expiration = f.chain.HeadTime().Add(86400 + 1)
	_, err := f.chain.PushTransaction(context.Background(), tx)
	require.ErrorIs(t, err, errors.Expired)

	tx = f.transfer(t, alice, bob, p)
	tx.Transaction.Expiration = f.chain.HeadTime().Add(-1)
	_, err = f.chain.PushTransaction(context.Background(), tx)
	require.ErrorIs(t, err, errors.Expired)
}

func TestTaposMismatch(t *testing.T) {
	f := newFixture(t)
	f.produce(t)

	tx := f.transfer(t, alice, bob, p)
	tx.Transaction.RefBlockPrefix++
	_, err := f.chain.PushTransaction(context.Background(), tx)
	require.ErrorIs(t, err, errors.Precondition)

	_, err = f.chain.PushTransaction(context.Background(), f.transfer(t, alice, bob, p))
	require.NoError(t, err)
}

func TestSignatureCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	verifier := ledger.NewMockSignatureVerifier(ctrl)
	f := newFixture(t, func(o *chain.Options) { o.Verifier = verifier })

	key := types.PublicKey{7}
	verifier.EXPECT().SignatureKeys("ledger-devnet", gomock.Any()).Return([]types.PublicKey{key}, nil).AnyTimes()
	verifier.EXPECT().Satisfied([]types.PublicKey{key}, gomock.Any(), gomock.Any()).Return(false, nil).Times(1)
	verifier.EXPECT().Satisfied([]types.PublicKey{key}, gomock.Any(), gomock.Any()).Return(true, nil).AnyTimes()

	_, err := f.chain.PushTransaction(context.Background(), f.transfer(t, alice, bob, p))
	require.ErrorIs(t, err, errors.Unauthorized)
	_, err = f.chain.PushTransaction(context.Background(), f.transfer(t, alice, bob, 2*p))
	require.NoError(t, err)
}

func TestWitnessSchedule(t *testing.T) {
	ctrl := gomock.NewController(t)
	schedule := ledger.NewMockWitnessSchedule(ctrl)
	f := newFixture(t, func(o *chain.Options) { o.Schedule = schedule })
	schedule.EXPECT().ScheduledWitness(gomock.Any()).Return(f.witness+1, nil).AnyTimes()

	b := f.generate(t)
	_, err := f.chain.PushBlock(context.Background(), b, types.SkipNothing)
	require.ErrorIs(t, err, errors.Fatal)

	_, err = f.chain.PushBlock(context.Background(), b, types.SkipWitnessScheduleCheck)
	require.NoError(t, err)
}

func TestMaintenanceRunsOncePerInterval(t *testing.T) {
	f := newFixture(t)
	next := store.DynamicGlobals(f.chain.Store()).NextMaintenanceTime
	require.Equal(t, genesisTime.Add(86400), next)

	b, err := f.chain.GenerateBlock(context.Background(), next, f.witness, nil)
	require.NoError(t, err)
	out, err := f.chain.PushBlock(context.Background(), b, types.SkipNothing)
	require.NoError(t, err)
	require.True(t, hasEvent(out.BlockEvents, types.EventMaintenance, "", ""))
	require.Equal(t, next.Add(86400), store.DynamicGlobals(f.chain.Store()).NextMaintenanceTime)

	_, out = f.produce(t)
	require.False(t, hasEvent(out.BlockEvents, types.EventMaintenance, "", ""))
}

func TestPendingParametersActivateAtMaintenance(t *testing.T) {
	f := newFixture(t)
	s := f.chain.Store()
	next := types.DefaultChainParameters()
	next.MaximumTimeUntilExpiration = 3600
	ss := s.StartSession()
	require.NoError(t, store.Modify(s, store.GlobalProperties(s), func(g *types.GlobalPropertyObject) { g.PendingParameters = &next }))
	require.NoError(t, ss.Commit())

	_, out := f.produce(t)
	require.Nil(t, out.ParamsUpdate)

	at := store.DynamicGlobals(s).NextMaintenanceTime
	b, err := f.chain.GenerateBlock(context.Background(), at, f.witness, nil)
	require.NoError(t, err)
	out, err = f.chain.PushBlock(context.Background(), b, types.SkipNothing)
	require.NoError(t, err)
	require.NotNil(t, out.ParamsUpdate)
	require.Equal(t, uint32(3600), store.Parameters(s).MaximumTimeUntilExpiration)
	require.Nil(t, store.GlobalProperties(s).PendingParameters)
}

func (f *fixture) createCrontab(t *testing.T, times uint64, ops ...types.Operation) *types.CrontabObject {
	t.Helper()
	var inner types.Transaction
	for _, op := range ops {
		require.NoError(t, inner.Append(op))
	}
	_, out := f.produce(t, f.tx(t, &types.CrontabCreateOperation{
		Fee:                   core(100 * p),
		CrontabCreator:        alice,
		CrontabOps:            inner.Operations,
		StartTime:             f.chain.HeadTime().Add(5),
		ExecuteInterval:       5,
		ScheduledExecuteTimes: times,
	}))
	id := out.TxOutcomes[0].Results[0].ObjectID
	require.NotNil(t, id)
	cron, err := store.Load[*types.CrontabObject](f.chain.Store(), *id)
	require.NoError(t, err)
	// Entries become due once the head reaches their start time.
	f.produce(t)
	return cron
}

func (f *fixture) crontab(t *testing.T, id types.ObjectID) (*types.CrontabObject, bool) {
	t.Helper()
	return store.Find[*types.CrontabObject](f.chain.Store(), id)
}

func TestCrontabRunsToCompletion(t *testing.T) {
	f := newFixture(t)
	cron := f.createCrontab(t, 3, &types.TransferOperation{Fee: core(transferFee), From: alice, To: bob, Amount: core(p)})
	bob0 := f.balance(bob)

	for i := 1; i <= 3; i++ {
		_, out := f.produce(t, task(t, cron))
		require.Len(t, out.TxOutcomes, 1, "execution %d", i)
		require.False(t, out.TxOutcomes[0].Results[0].IsError())
		require.Equal(t, bob0+int64(i)*p, f.balance(bob))

		var ok bool
		if cron, ok = f.crontab(t, cron.ID); !ok {
			require.Equal(t, 3, i)
			require.True(t, hasEvent(out.TxOutcomes[0].Events, types.EventCrontabState, "state", "completed"))
			break
		}
		require.Equal(t, uint64(i), cron.AlreadyExecuteTimes)
		require.Equal(t, f.chain.HeadTime(), cron.NextExecuteTime)
	}
	_, ok := f.crontab(t, cron.ID)
	require.False(t, ok)
}

func TestCrontabRejectsEarlyOrForgedTask(t *testing.T) {
	f := newFixture(t)
	cron := f.createCrontab(t, 3, &types.TransferOperation{Fee: core(transferFee), From: alice, To: bob, Amount: core(p)})

	forged := task(t, cron)
	forged.Transaction.AgreedTask.TrxHash = types.Hash{1}
	_, err := f.chain.PushTransaction(context.Background(), forged)
	require.ErrorIs(t, err, errors.BadRequest)

	_, err = f.chain.PushTransaction(context.Background(), task(t, cron))
	require.NoError(t, err)

	// The execution moved the entry to its next slot, after the head.
	cron, _ = f.crontab(t, cron.ID)
	require.Greater(t, cron.NextExecuteTime, f.chain.HeadTime())
	_, err = f.chain.PushTransaction(context.Background(), task(t, cron))
	require.ErrorIs(t, err, errors.Precondition)
}

func TestCrontabSuspendsAfterRepeatedFailures(t *testing.T) {
	f := newFixture(t)
	cron := f.createCrontab(t, 10, &types.TransferOperation{Fee: core(transferFee), From: alice, To: bob, Amount: core(10 * initialFunds)})
	threshold := store.Parameters(f.chain.Store()).CrontabSuspendThreshold

	var out types.BlockOutcome
	for i := uint32(1); i <= threshold; i++ {
		_, out = f.produce(t, task(t, cron))
		require.Len(t, out.TxOutcomes, 1)
		res := out.TxOutcomes[0].Results[0]
		require.True(t, res.IsError())
		require.Equal(t, uint64(errors.InsufficientBalance), res.Error.Code)
		cron, _ = f.crontab(t, cron.ID)
	}
	require.True(t, hasEvent(out.TxOutcomes[0].Events, types.EventCrontabState, "state", "suspended"))
	require.True(t, cron.IsSuspended)
	require.Equal(t, types.MaxTimePoint, cron.NextExecuteTime)

	// Suspended entries are not run.
	_, err := f.chain.PushTransaction(context.Background(), task(t, cron))
	require.ErrorIs(t, err, errors.Precondition)
}

const usd types.AssetID = 1

func withUSD(doc *types.GenesisDoc) {
	doc.InitialAssets = []types.GenesisAsset{{
		Symbol:           "USD",
		IssuerName:       "alice",
		Precision:        2,
		MaxSupply:        types.MaxShareSupply,
		CoreExchangeRate: types.Price{Base: types.NewAsset(2, usd), Quote: core(1)},
	}}
}

// commit applies fn to the head state outside of any block.
func (f *fixture) commit(t *testing.T, fn func(s *store.Store)) {
	t.Helper()
	s := f.chain.Store()
	ss := s.StartSession()
	fn(s)
	require.NoError(t, ss.Commit())
}

func TestSupplyHoldsAcrossMaintenanceAndPop(t *testing.T) {
	ctrl := gomock.NewController(t)
	verifier := ledger.NewMockConfidentialVerifier(ctrl)
	verifier.EXPECT().VerifyConfidential(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	f := newGenesisFixture(t, withUSD, func(o *chain.Options) { o.Confidential = verifier })
	s := f.chain.Store()
	audit := func() {
		t.Helper()
		require.NoError(t, balance.AuditSupply(s))
	}
	accumulated := func() int64 {
		acc, err := store.Load[*types.FBAAccumulatorObject](s, types.FBATransferToBlind.ObjectID())
		require.NoError(t, err)
		return acc.AccumulatedFBAFees
	}

	// Route the fees of public to blind transfers to bob, the buyback
	// account of USD.
	f.commit(t, func(s *store.Store) {
		acc, err := store.Load[*types.FBAAccumulatorObject](s, types.FBATransferToBlind.ObjectID())
		require.NoError(t, err)
		designated := usd
		require.NoError(t, store.Modify(s, acc, func(a *types.FBAAccumulatorObject) { a.DesignatedAsset = &designated }))
		asset, err := store.Load[*types.AssetObject](s, usd.ObjectID())
		require.NoError(t, err)
		buyback := bob
		require.NoError(t, store.Modify(s, asset, func(a *types.AssetObject) { a.BuybackAccount = &buyback }))
		issuer, err := store.Load[*types.AccountObject](s, alice.ObjectID())
		require.NoError(t, err)
		require.NoError(t, store.Modify(s, issuer, func(a *types.AccountObject) {
			a.OwnerSpecialAuthority = &types.TopHoldersAuthority{Asset: usd, NumTopHolders: 1}
			a.ActiveSpecialAuthority = &types.TopHoldersAuthority{Asset: usd, NumTopHolders: 1}
			a.TopNControlFlags = types.TopNControlOwner | types.TopNControlActive
		}))
	})

	blind := f.tx(t, &types.TransferToBlindOperation{
		Fee:     core(5 * p),
		Amount:  core(100 * p),
		From:    alice,
		Outputs: []types.BlindOutput{{Commitment: []byte("commitment")}},
	})
	_, out := f.produce(t, f.transfer(t, alice, bob, 10*p), blind)
	require.Len(t, out.TxOutcomes, 2)
	require.Equal(t, 5*p, accumulated())
	audit()

	// Maintenance pays out pending fees, empties the accumulator into
	// bob's balance and funds the witness budget from the network cut.
	before := f.balance(bob)
	at := store.DynamicGlobals(s).NextMaintenanceTime
	b, err := f.chain.GenerateBlock(context.Background(), at, f.witness, nil)
	require.NoError(t, err)
	out, err = f.chain.PushBlock(context.Background(), b, types.SkipNothing)
	require.NoError(t, err)
	require.True(t, hasEvent(out.BlockEvents, types.EventMaintenance, "", ""))
	require.Zero(t, accumulated())
	require.Equal(t, before+5*p, f.balance(bob))
	budget := store.DynamicGlobals(s).WitnessBudget
	require.Positive(t, budget)
	audit()

	// The next producer is paid out of the budget.
	f.produce(t)
	require.Less(t, store.DynamicGlobals(s).WitnessBudget, budget)
	audit()

	for f.chain.Head().Height > 0 {
		_, err := f.chain.PopBlock()
		require.NoError(t, err)
		audit()
	}
	require.Equal(t, initialFunds, f.balance(alice))
	require.Equal(t, initialFunds, f.balance(bob))
	require.Zero(t, store.DynamicGlobals(s).WitnessBudget)
}

// newContractFixture deploys a contract owned by bob whose every call
// runs until it is cancelled. Operations get a 12.5ms budget.
func newContractFixture(t *testing.T) (*fixture, *types.CallContractFunctionOperation) {
	t.Helper()
	ctrl := gomock.NewController(t)
	engine := ledger.NewMockScriptEngine(ctrl)
	engine.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ ledger.ScriptCall) (ledger.ScriptOutcome, error) {
		<-ctx.Done()
		return ledger.ScriptOutcome{}, ctx.Err()
	}).AnyTimes()
	f := newGenesisFixture(t, func(doc *types.GenesisDoc) {
		doc.InitialParameters.TimeoutMagnification = 100
	}, func(o *chain.Options) { o.Scripts = engine })

	var contract *types.ContractObject
	f.commit(t, func(s *store.Store) {
		var err error
		contract, err = store.Create(s, &types.ContractObject{
			Owner:                  bob,
			Name:                   "spin",
			Code:                   []byte("while true do end"),
			UserInvokeSharePercent: 100,
		})
		require.NoError(t, err)
	})
	return f, &types.CallContractFunctionOperation{
		Fee:          core(21 * p),
		Caller:       alice,
		ContractID:   contract.ContractID(),
		FunctionName: "run",
	}
}

func TestGenerateBlockLeavesOutOverrunningTransactions(t *testing.T) {
	f, call := newContractFixture(t)
	first := f.transfer(t, alice, bob, p)
	overrun := f.tx(t, &types.TransferOperation{Fee: core(transferFee), From: bob, To: alice, Amount: core(p)}, call)
	last := f.transfer(t, alice, bob, 2*p)

	b := f.generate(t, first, overrun, last)
	require.Len(t, b.Transactions, 2)
	require.Equal(t, first, b.Transactions[0].Signed)
	require.Equal(t, last, b.Transactions[1].Signed)

	out, err := f.chain.PushBlock(context.Background(), b, types.SkipNothing)
	require.NoError(t, err)
	require.Len(t, out.TxOutcomes, 2)
	require.Equal(t, initialFunds-3*p-2*transferFee, f.balance(alice))
	require.Equal(t, initialFunds+3*p, f.balance(bob))
	require.NoError(t, balance.AuditSupply(f.chain.Store()))
}

func TestDryRunIsBudgeted(t *testing.T) {
	f, call := newContractFixture(t)
	tx := f.tx(t, call)
	done := make(chan error, 1)
	go func() {
		_, _, err := f.chain.DryRun(context.Background(), tx)
		done <- err
	}()
	select {
	case err := <-done:
		require.ErrorIs(t, err, errors.Timeout)
	case <-time.After(5 * time.Second):
		t.Fatal("dry run did not time out")
	}
	require.Equal(t, initialFunds, f.balance(alice))
}
