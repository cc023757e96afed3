package scheduler_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/ledger/chain"
	"github.com/blockberries/ledger/genesis"
	"github.com/blockberries/ledger/scheduler"
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
	chain     *chain.Chain
	scheduler *scheduler.Scheduler
	witness   types.WitnessID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.New(zerolog.NewTestWriter(t))
	s, err := store.Open(memory.New(), store.Options{Logger: logger})
	require.NoError(t, err)
	c, err := chain.New(s, chain.Options{Logger: logger})
	require.NoError(t, err)
	require.NoError(t, genesis.Init(s, genesis.Default(genesisTime, initialFunds, "alice", "bob"), logger))
	return &fixture{
		chain:     c,
		scheduler: scheduler.New(c, scheduler.Options{Logger: logger}),
		witness:   store.GlobalProperties(s).ActiveWitnesses[0],
	}
}

func core(n int64) types.Asset { return types.NewAsset(n, types.CoreAsset) }

func (f *fixture) balance(a types.AccountID) int64 {
	return f.chain.Dispatcher().Ledger().Balance(a, types.CoreAsset).Amount
}

func (f *fixture) tx(t *testing.T, ops ...types.Operation) types.SignedTransaction {
	t.Helper()
	trx := types.Transaction{Expiration: f.chain.HeadTime().Add(60)}
	trx.SetReferenceBlock(f.chain.Head().ID)
	for _, op := range ops {
		require.NoError(t, trx.Append(op))
	}
	return types.SignedTransaction{Transaction: trx}
}

func transfer(from, to types.AccountID, amount int64) *types.TransferOperation {
	return &types.TransferOperation{Fee: core(transferFee), From: from, To: to, Amount: core(amount)}
}

// produce authors a block from the pending pool plus txs, pushes it and
// restores the pool the way the node does after a commit.
func (f *fixture) produce(t *testing.T, txs ...types.SignedTransaction) (types.BlockOutcome, scheduler.Report) {
	t.Helper()
	ctx := context.Background()
	offered := append(f.chain.ClearPending(), txs...)
	b, err := f.chain.GenerateBlock(ctx, f.chain.HeadTime().Add(5), f.witness, offered)
	require.NoError(t, err)
	out, err := f.chain.PushBlock(ctx, b, types.SkipNothing)
	require.NoError(t, err)
	return out, f.scheduler.Restore(ctx, nil, f.chain.ClearPending())
}

func (f *fixture) createCrontab(t *testing.T, times uint64, op types.Operation) types.ObjectID {
	t.Helper()
	var inner types.Transaction
	require.NoError(t, inner.Append(op))
	out, _ := f.produce(t, f.tx(t, &types.CrontabCreateOperation{
		Fee:                   core(100 * p),
		CrontabCreator:        alice,
		CrontabOps:            inner.Operations,
		StartTime:             f.chain.HeadTime().Add(5),
		ExecuteInterval:       5,
		ScheduledExecuteTimes: times,
	}))
	require.Len(t, out.TxOutcomes, 1)
	id := out.TxOutcomes[0].Results[0].ObjectID
	require.NotNil(t, id)
	return *id
}

func (f *fixture) crontab(id types.ObjectID) (*types.CrontabObject, bool) {
	return store.Find[*types.CrontabObject](f.chain.Store(), id)
}

func TestRestoreResubmitsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	included := f.tx(t, transfer(alice, bob, p))
	pending := f.tx(t, transfer(alice, bob, 2*p))
	invalid := f.tx(t, transfer(alice, bob, 10*initialFunds))

	b, err := f.chain.GenerateBlock(ctx, f.chain.HeadTime().Add(5), f.witness, []types.SignedTransaction{included})
	require.NoError(t, err)
	_, err = f.chain.PushBlock(ctx, b, types.SkipNothing)
	require.NoError(t, err)

	r := f.scheduler.Restore(ctx, nil, []types.SignedTransaction{included, pending, invalid})
	require.Equal(t, scheduler.Report{Restored: 1, Dropped: 2}, r)

	ptxs := f.chain.PendingTransactions()
	require.Len(t, ptxs, 1)
	require.Equal(t, pending, ptxs[0].Signed)
	require.Equal(t, initialFunds+3*p, f.balance(bob))
}

func TestRestoreAfterPop(t *testing.T) {
	f := newFixture(t)
	tx := f.tx(t, transfer(alice, bob, 7*p))
	f.produce(t, tx)
	require.Equal(t, initialFunds+7*p, f.balance(bob))

	popped, err := f.chain.PopBlock()
	require.NoError(t, err)
	require.Equal(t, initialFunds, f.balance(bob))

	r := f.scheduler.Restore(context.Background(), popped, f.chain.ClearPending())
	require.Equal(t, 1, r.Restored)
	require.Equal(t, initialFunds+7*p, f.balance(bob))
	require.Len(t, f.chain.PendingTransactions(), 1)
}

func TestCrontabRunsThreeTimes(t *testing.T) {
	f := newFixture(t)
	id := f.createCrontab(t, 3, transfer(alice, bob, p))

	// Every block executes the entry reinjected after the previous one.
	for i := 1; i <= 3; i++ {
		out, r := f.produce(t)
		require.Len(t, out.TxOutcomes, 1, "execution %d", i)
		require.False(t, out.TxOutcomes[0].Results[0].IsError())
		if i < 3 {
			require.Equal(t, 1, r.Reinjected)
		} else {
			require.Zero(t, r.Reinjected)
		}
	}

	_, ok := f.crontab(id)
	require.False(t, ok)
	require.Empty(t, f.chain.PendingTransactions())
	require.Equal(t, initialFunds+3*p, f.balance(bob))
	require.Empty(t, f.scheduler.Due())
	out, _ := f.produce(t)
	require.Empty(t, out.TxOutcomes)
}

func TestPendingExecutionMovesEntryForward(t *testing.T) {
	f := newFixture(t)
	id := f.createCrontab(t, 5, transfer(alice, bob, p))

	// The restore after the creating block already submitted the entry.
	require.Len(t, f.chain.PendingTransactions(), 1)
	cron, ok := f.crontab(id)
	require.True(t, ok)
	require.Greater(t, cron.NextExecuteTime, f.chain.HeadTime())
	require.Empty(t, f.scheduler.Due())

	r := f.scheduler.Restore(context.Background(), nil, nil)
	require.Zero(t, r.Reinjected)
}

func TestSuspendedCrontabIsNotReinjected(t *testing.T) {
	f := newFixture(t)
	id := f.createCrontab(t, 10, transfer(alice, bob, 10*initialFunds))
	threshold := int(store.Parameters(f.chain.Store()).CrontabSuspendThreshold)

	for i := 0; i < threshold; i++ {
		out, _ := f.produce(t)
		require.Len(t, out.TxOutcomes, 1)
		require.True(t, out.TxOutcomes[0].Results[0].IsError())
	}
	cron, ok := f.crontab(id)
	require.True(t, ok)
	require.True(t, cron.IsSuspended)
	require.Empty(t, f.scheduler.Due())
	require.Empty(t, f.chain.PendingTransactions())
}

func TestApprovedProposalIsExecutedOnce(t *testing.T) {
	f := newFixture(t)
	s := f.chain.Store()

	var proposed types.Transaction
	require.NoError(t, proposed.Append(transfer(alice, bob, 5*p)))
	proposed.Expiration = genesisTime.Add(3600)
	ss := s.StartSession()
	prop, err := store.Create(s, &types.ProposalObject{
		Proposer:            alice,
		ExpirationTime:      genesisTime,
		ProposedTransaction: proposed,
		AllowExecution:      true,
	})
	require.NoError(t, err)
	require.NoError(t, ss.Commit())

	due := f.scheduler.Due()
	require.Len(t, due, 1)
	require.Equal(t, prop.ID, due[0].ScheduleID)

	r := f.scheduler.Restore(context.Background(), nil, nil)
	require.Equal(t, 1, r.Reinjected)
	require.Equal(t, initialFunds+5*p, f.balance(bob))

	out, r := f.produce(t)
	require.Len(t, out.TxOutcomes, 1)
	require.Zero(t, r.Reinjected)
	require.Equal(t, initialFunds+5*p, f.balance(bob))

	// Executed proposals are swept by the next block.
	f.produce(t)
	_, ok := store.Find[*types.ProposalObject](s, prop.ID)
	require.False(t, ok)
}

func TestCrontabSkippedWhenAuthorityRevoked(t *testing.T) {
	f := newFixture(t)
	s := f.chain.Store()
	delegate := func(auths ...types.AccountWeight) {
		ss := s.StartSession()
		acct, err := store.Load[*types.AccountObject](s, bob.ObjectID())
		require.NoError(t, err)
		require.NoError(t, store.Modify(s, acct, func(a *types.AccountObject) {
			a.Active = types.Authority{WeightThreshold: 1, AccountAuths: auths}
		}))
		require.NoError(t, ss.Commit())
	}
	delegate(types.AccountWeight{Account: alice, Weight: 1})

	approve := &types.ProposalUpdateOperation{Fee: core(p), FeePayingAccount: alice, ActiveApprovalsToAdd: []types.AccountID{bob}}
	id := f.createCrontab(t, 3, approve)
	stale := f.chain.ClearPending()
	require.Len(t, stale, 1)

	delegate()
	require.Empty(t, f.scheduler.Due())

	out, r := f.produce(t, stale...)
	require.Empty(t, out.TxOutcomes)
	require.Zero(t, r.Reinjected)
	cron, ok := f.crontab(id)
	require.True(t, ok)
	require.Zero(t, cron.AlreadyExecuteTimes)
	require.Empty(t, f.chain.PendingTransactions())
}
