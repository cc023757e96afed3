package genesis_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/ledger/balance"
	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/genesis"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/store/memory"
	"github.com/blockberries/ledger/types"
)

func open(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(memory.New(), store.Options{})
	require.NoError(t, err)
	balance.RegisterIndexes(s)
	return s
}

func TestInit(t *testing.T) {
	s := open(t)
	doc := genesis.Default(86400*100, 5000, "alice", "bob")
	require.NoError(t, genesis.Init(s, doc, zerolog.Nop()))

	require.Equal(t, 7, s.Count(types.AccountKind))
	require.Equal(t, 7, s.Count(types.AccountStatisticsKind))
	require.Equal(t, 3, s.Count(types.FBAAccumulatorKind))

	committee, err := store.Load[*types.AccountObject](s, types.CommitteeAccount.ObjectID())
	require.NoError(t, err)
	require.Equal(t, "committee-account", committee.Name)
	require.True(t, committee.IsLifetimeMember())

	alice, err := store.Load[*types.AccountObject](s, types.AccountID(5).ObjectID())
	require.NoError(t, err)
	require.Equal(t, "alice", alice.Name)
	require.Equal(t, alice.AccountID(), alice.LifetimeReferrer)

	core, err := balance.New(s, zerolog.Nop()).CoreDynamicData()
	require.NoError(t, err)
	require.Equal(t, int64(10000), core.CurrentSupply)

	gpo := store.GlobalProperties(s)
	require.Len(t, gpo.ActiveWitnesses, 1)
	dgp := store.DynamicGlobals(s)
	require.Equal(t, doc.GenesisTime, dgp.Time)
	require.Equal(t, doc.GenesisTime+86400, dgp.NextMaintenanceTime)

	require.NoError(t, balance.AuditSupply(s))
	require.Equal(t, 1, s.CommittedDepth())
}

func TestInitTwice(t *testing.T) {
	s := open(t)
	doc := genesis.Default(86400, 1, "alice")
	require.NoError(t, genesis.Init(s, doc, zerolog.Nop()))
	require.ErrorIs(t, genesis.Init(s, doc, zerolog.Nop()), errors.Precondition)
}

func TestInitRejectsBadDocument(t *testing.T) {
	cases := map[string]func(*types.GenesisDoc){
		"no time":          func(d *types.GenesisDoc) { d.GenesisTime = 0 },
		"reserved name":    func(d *types.GenesisDoc) { d.InitialAccounts[0].Name = "null-account" },
		"unknown owner":    func(d *types.GenesisDoc) { d.InitialBalances[0].Owner = "carol" },
		"unknown asset":    func(d *types.GenesisDoc) { d.InitialBalances[0].Symbol = "GOLD" },
		"unknown witness":  func(d *types.GenesisDoc) { d.InitialWitnesses[0].OwnerName = "carol" },
		"zero fee scale":   func(d *types.GenesisDoc) { d.InitialParameters.CurrentFees.Scale = 0 },
		"duplicate symbol": func(d *types.GenesisDoc) { d.InitialAssets = []types.GenesisAsset{{Symbol: "CORE", IssuerName: "alice"}} },
	}
	for name, edit := range cases {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			doc := genesis.Default(86400, 1, "alice")
			edit(&doc)
			require.ErrorIs(t, genesis.Init(s, doc, zerolog.Nop()), errors.BadRequest)
			require.False(t, s.Has(types.GlobalPropertyID))
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.json")
	doc := genesis.Default(86400*100, 5000, "alice", "bob")
	require.NoError(t, genesis.Save(path, doc))

	loaded, err := genesis.Load(path)
	require.NoError(t, err)
	require.Equal(t, doc.ChainID, loaded.ChainID)
	require.Equal(t, doc.InitialBalances, loaded.InitialBalances)
	require.Equal(t, doc.InitialWitnesses[0].OwnerName, loaded.InitialWitnesses[0].OwnerName)

	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err = genesis.Load(path)
	require.ErrorIs(t, err, errors.BadRequest)

	_, err = genesis.Load(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, errors.NotFound)
}
