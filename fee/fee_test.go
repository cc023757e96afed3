package fee_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/balance"
	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/fee"
	"github.com/blockberries/ledger/genesis"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/store/memory"
	"github.com/blockberries/ledger/types"
)

const (
	alice types.AccountID = 5
	bob   types.AccountID = 6
	usd   types.AssetID   = 1

	p            = types.BlockchainPrecision
	transferFee  = 20 * p
	genesisTime  = types.TimePoint(1_700_006_400)
	initialFunds = 1000 * p
)

type fixture struct {
	store  *store.Store
	ledger *balance.Ledger
	meter  *fee.Meter
}

// newFixture starts a chain where alice and bob hold core, bob holds USD
// and USD can pay fees through its pool at two USD per core.
func newFixture(t *testing.T, auth ledger.AuthorityOracle, edit ...func(*types.GenesisDoc)) *fixture {
	t.Helper()
	logger := zerolog.New(zerolog.NewTestWriter(t))
	s, err := store.Open(memory.New(), store.Options{Logger: logger})
	require.NoError(t, err)
	balance.RegisterIndexes(s)

	doc := genesis.Default(genesisTime, initialFunds, "alice", "bob")
	doc.InitialAssets = []types.GenesisAsset{{
		Symbol:     "USD",
		IssuerName: "alice",
		Precision:  2,
		MaxSupply:  types.MaxShareSupply,
		CoreExchangeRate: types.Price{
			Base:  types.NewAsset(2, usd),
			Quote: types.NewAsset(1, types.CoreAsset),
		},
		FeePool: 100 * p,
	}}
	doc.InitialBalances = append(doc.InitialBalances, types.GenesisBalance{Owner: "bob", Symbol: "USD", Amount: 1000 * p})
	for _, fn := range edit {
		fn(&doc)
	}
	require.NoError(t, genesis.Init(s, doc, logger))

	l := balance.New(s, logger)
	return &fixture{store: s, ledger: l, meter: fee.New(s, l, auth, logger)}
}

func (f *fixture) session(t *testing.T) *store.Session {
	t.Helper()
	ss := f.store.StartSession()
	t.Cleanup(ss.Undo)
	return ss
}

func (f *fixture) dynamic(t *testing.T, a types.AssetID) *types.AssetDynamicDataObject {
	t.Helper()
	d, err := f.ledger.DynamicData(a)
	require.NoError(t, err)
	return d
}

func (f *fixture) stats(t *testing.T, a types.AccountID) *types.AccountStatisticsObject {
	t.Helper()
	acct, err := store.Load[*types.AccountObject](f.store, a.ObjectID())
	require.NoError(t, err)
	st, err := store.Load[*types.AccountStatisticsObject](f.store, acct.Statistics.ObjectID())
	require.NoError(t, err)
	return st
}

func transfer(from types.AccountID, fee types.Asset) *types.TransferOperation {
	return &types.TransferOperation{
		Fee:    fee,
		From:   from,
		To:     alice,
		Amount: types.NewAsset(1, types.CoreAsset),
	}
}

func TestCalculate(t *testing.T) {
	f := newFixture(t, nil, func(doc *types.GenesisDoc) {
		doc.InitialParameters.CurrentFees.Scale = 2 * uint32(types.Percent100)
	})

	op := transfer(bob, types.NewAsset(0, types.CoreAsset))
	got, err := f.meter.Calculate(op)
	require.NoError(t, err)
	require.Equal(t, 2*transferFee, got)

	// Two kilobytes of memo at ten core per kilobyte.
	op.Memo = make([]byte, 2048)
	got, err = f.meter.Calculate(op)
	require.NoError(t, err)
	require.Equal(t, 2*(transferFee+20*p), got)
}

func TestPrepareInsufficientFee(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.meter.Prepare(transfer(bob, types.NewAsset(transferFee-1, types.CoreAsset)), false)
	require.ErrorIs(t, err, errors.InsufficientBalance)

	c, err := f.meter.Prepare(transfer(bob, types.NewAsset(transferFee-1, types.CoreAsset)), true)
	require.NoError(t, err)
	require.True(t, c.Skip)
}

func TestPrepareUnauthorizedFeeAsset(t *testing.T) {
	ctrl := gomock.NewController(t)
	auth := ledger.NewMockAuthorityOracle(ctrl)
	auth.EXPECT().IsAuthorized(bob, gomock.Any()).Return(false)
	f := newFixture(t, auth)

	_, err := f.meter.Prepare(transfer(bob, types.NewAsset(2*transferFee, usd)), false)
	require.ErrorIs(t, err, errors.Unauthorized)
}

func TestPayFeeInCore(t *testing.T) {
	f := newFixture(t, nil)
	f.session(t)

	c, err := f.meter.Prepare(transfer(bob, types.NewAsset(transferFee, types.CoreAsset)), false)
	require.NoError(t, err)
	res := types.VoidResult()
	require.NoError(t, f.meter.PayFee(c, &res))

	require.Equal(t, initialFunds-transferFee, f.ledger.Balance(bob, types.CoreAsset).Amount)
	require.Equal(t, transferFee, f.stats(t, bob).PendingVestedFees)
	require.Equal(t, transferFee, res.TotalFee(types.CoreAsset))
	require.NoError(t, balance.AuditSupply(f.store))
}

func TestPayFeeThroughPool(t *testing.T) {
	f := newFixture(t, nil)
	f.session(t)

	c, err := f.meter.Prepare(transfer(bob, types.NewAsset(2*transferFee, usd)), false)
	require.NoError(t, err)
	require.Equal(t, transferFee, c.CorePaid)

	res := types.VoidResult()
	require.NoError(t, f.meter.PayFee(c, &res))

	dyn := f.dynamic(t, usd)
	require.Equal(t, 100*p-transferFee, dyn.FeePool)
	require.Equal(t, 2*transferFee, dyn.AccumulatedFees)
	require.Equal(t, 1000*p-2*transferFee, f.ledger.Balance(bob, usd).Amount)
	require.Equal(t, transferFee, f.stats(t, bob).PendingVestedFees)
	require.NoError(t, balance.AuditSupply(f.store))
}

func TestPrepareFeePoolTooSmall(t *testing.T) {
	f := newFixture(t, nil, func(doc *types.GenesisDoc) {
		doc.InitialAssets[0].FeePool = transferFee - 1
	})

	_, err := f.meter.Prepare(transfer(bob, types.NewAsset(2*transferFee, usd)), false)
	require.ErrorIs(t, err, errors.Consistency)
}

func TestPayFBAFee(t *testing.T) {
	t.Run("unconfigured accumulator falls back", func(t *testing.T) {
		f := newFixture(t, nil)
		f.session(t)

		c, err := f.meter.Prepare(transfer(bob, types.NewAsset(transferFee, types.CoreAsset)), false)
		require.NoError(t, err)
		res := types.VoidResult()
		require.NoError(t, f.meter.PayFBAFee(c, types.FBABlindTransfer, &res))

		acc, err := store.Load[*types.FBAAccumulatorObject](f.store, types.FBABlindTransfer.ObjectID())
		require.NoError(t, err)
		require.Zero(t, acc.AccumulatedFBAFees)
		require.Equal(t, transferFee, f.stats(t, bob).PendingVestedFees)
		require.NoError(t, balance.AuditSupply(f.store))
	})

	t.Run("configured accumulator collects", func(t *testing.T) {
		f := newFixture(t, nil)
		f.session(t)

		acc, err := store.Load[*types.FBAAccumulatorObject](f.store, types.FBABlindTransfer.ObjectID())
		require.NoError(t, err)
		designated := usd
		require.NoError(t, store.Modify(f.store, acc, func(a *types.FBAAccumulatorObject) { a.DesignatedAsset = &designated }))
		asset, err := store.Load[*types.AssetObject](f.store, usd.ObjectID())
		require.NoError(t, err)
		buyback := bob
		require.NoError(t, store.Modify(f.store, asset, func(a *types.AssetObject) { a.BuybackAccount = &buyback }))
		issuer, err := store.Load[*types.AccountObject](f.store, alice.ObjectID())
		require.NoError(t, err)
		require.NoError(t, store.Modify(f.store, issuer, func(a *types.AccountObject) {
			a.OwnerSpecialAuthority = &types.TopHoldersAuthority{Asset: usd, NumTopHolders: 1}
			a.ActiveSpecialAuthority = &types.TopHoldersAuthority{Asset: usd, NumTopHolders: 1}
			a.TopNControlFlags = types.TopNControlOwner | types.TopNControlActive
		}))

		c, err := f.meter.Prepare(transfer(bob, types.NewAsset(transferFee, types.CoreAsset)), false)
		require.NoError(t, err)
		res := types.VoidResult()
		require.NoError(t, f.meter.PayFBAFee(c, types.FBABlindTransfer, &res))

		acc, err = store.Load[*types.FBAAccumulatorObject](f.store, types.FBABlindTransfer.ObjectID())
		require.NoError(t, err)
		require.Equal(t, transferFee, acc.AccumulatedFBAFees)
		require.Zero(t, f.stats(t, bob).PendingVestedFees)
		require.Equal(t, initialFunds-transferFee, f.ledger.Balance(bob, types.CoreAsset).Amount)
		require.NoError(t, balance.AuditSupply(f.store))

		// A surcharge is not routed but still stays in the supply.
		c, err = f.meter.Prepare(transfer(bob, types.NewAsset(transferFee, types.CoreAsset)), false)
		require.NoError(t, err)
		c.Surcharge = 3 * p
		res = types.VoidResult()
		require.NoError(t, f.meter.PayFBAFee(c, types.FBABlindTransfer, &res))
		require.Equal(t, 2*transferFee, acc.AccumulatedFBAFees)
		st := f.stats(t, bob)
		require.Equal(t, 3*p, st.PendingFees+st.PendingVestedFees)
		require.Equal(t, initialFunds-2*transferFee-3*p, f.ledger.Balance(bob, types.CoreAsset).Amount)
		require.NoError(t, balance.AuditSupply(f.store))
	})
}

func TestContractSurcharge(t *testing.T) {
	// The base fee plus the data fee of the function name.
	const callFee = 21 * p
	call := &types.CallContractFunctionOperation{
		Fee:          types.NewAsset(callFee, types.CoreAsset),
		Caller:       bob,
		FunctionName: "run",
	}
	contract := &types.ContractObject{Owner: alice, UserInvokeSharePercent: 30}
	// One kilobyte of data and one millisecond, each priced at ten core.
	r := &types.ContractResult{RelevantDataSize: 1024}

	t.Run("split between caller and owner", func(t *testing.T) {
		f := newFixture(t, nil)
		f.session(t)

		c, err := f.meter.Prepare(call, false)
		require.NoError(t, err)
		require.NoError(t, f.meter.ContractSurcharge(c, contract, r, 1000))
		require.Equal(t, 6*p, c.Surcharge)
		require.Equal(t, alice, c.Owner)
		require.Equal(t, 14*p, c.OwnerFee)

		res := types.VoidResult()
		require.NoError(t, f.meter.PayFee(c, &res))
		require.Equal(t, initialFunds-callFee-6*p, f.ledger.Balance(bob, types.CoreAsset).Amount)
		require.Equal(t, initialFunds-14*p, f.ledger.Balance(alice, types.CoreAsset).Amount)
		require.Equal(t, callFee+6*p, f.stats(t, bob).PendingVestedFees)
		require.Equal(t, 14*p, f.stats(t, alice).PendingVestedFees)
		require.Equal(t, callFee+20*p, res.TotalFee(types.CoreAsset))
		require.NoError(t, balance.AuditSupply(f.store))
	})

	t.Run("ceiling", func(t *testing.T) {
		f := newFixture(t, nil, func(doc *types.GenesisDoc) {
			doc.InitialParameters.CurrentFees.MaximumHandlingFee = callFee + 20*p
		})

		c, err := f.meter.Prepare(call, false)
		require.NoError(t, err)
		err = f.meter.ContractSurcharge(c, contract, r, 1000)
		require.ErrorIs(t, err, errors.FeeCeiling)
	})
}

func TestProcessPendingFees(t *testing.T) {
	f := newFixture(t, nil)
	f.session(t)

	c, err := f.meter.Prepare(transfer(bob, types.NewAsset(transferFee, types.CoreAsset)), false)
	require.NoError(t, err)
	res := types.VoidResult()
	require.NoError(t, f.meter.PayFee(c, &res))
	before := f.dynamic(t, types.CoreAsset).AccumulatedFees

	require.NoError(t, f.meter.ProcessPendingFees())

	st := f.stats(t, bob)
	require.Zero(t, st.PendingFees)
	require.Zero(t, st.PendingVestedFees)
	require.Equal(t, transferFee, st.LifetimeFeesPaid)

	// Twenty percent to the network, the rest back to bob as his own
	// lifetime referrer.
	require.Equal(t, before+transferFee/5, f.dynamic(t, types.CoreAsset).AccumulatedFees)
	acct, err := store.Load[*types.AccountObject](f.store, bob.ObjectID())
	require.NoError(t, err)
	require.NotNil(t, acct.CashbackVB)
	vb, err := store.Load[*types.VestingBalanceObject](f.store, acct.CashbackVB.ObjectID())
	require.NoError(t, err)
	require.Equal(t, transferFee*4/5, vb.Balance.Amount)
	require.NoError(t, balance.AuditSupply(f.store))
}
