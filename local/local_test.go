package local_test

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/genesis"
	"github.com/blockberries/ledger/local"
	"github.com/blockberries/ledger/node"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/store/memory"
	ledgertest "github.com/blockberries/ledger/testing"
	"github.com/blockberries/ledger/types"
)

const genesisTime = types.TimePoint(1_700_006_400)

func connect(t *testing.T) (*local.Connection, *node.App) {
	t.Helper()
	logger := zerolog.New(zerolog.NewTestWriter(t))
	s, err := store.Open(memory.New(), store.Options{Logger: logger})
	require.NoError(t, err)
	app, err := node.New(s, node.Options{Logger: logger, ChainID: "ledger-devnet"})
	require.NoError(t, err)
	conn := local.NewConnection(app, logger)
	t.Cleanup(func() { _ = conn.Close() })

	doc := genesis.Default(genesisTime, 1000*types.BlockchainPrecision, "alice", "bob")
	_, err = conn.Handshake(context.Background(), types.HandshakeRequest{Genesis: &doc})
	require.NoError(t, err)
	return conn, app
}

func TestLocalProduce(t *testing.T) {
	conn, app := connect(t)
	ctx := context.Background()
	require.NotNil(t, conn.AsProposalControl())
	require.NotNil(t, conn.AsStateSync())
	require.NotNil(t, conn.AsSimulator())

	var witness types.WitnessID
	app.Chain().View(func(s *store.Store) { witness = store.GlobalProperties(s).ActiveWitnesses[0] })

	for h := uint64(1); h <= 3; h++ {
		out, err := conn.Produce(ctx, types.ProposalContext{
			Height:  h,
			Time:    genesisTime.Add(int64(5 * h)),
			Witness: witness,
		})
		require.NoError(t, err)
		require.Equal(t, app.Chain().Head().ID, out.BlockID)
		require.Equal(t, "Ready", conn.Server().State())
	}
	require.Equal(t, uint64(3), app.Committed().Height)

	res, err := conn.Query(ctx, types.StateQuery{Path: types.QueryHead})
	require.NoError(t, err)
	require.Zero(t, res.Code, res.Info)
	require.Equal(t, uint64(3), res.Height)
}

func TestLocalProduceWithoutAuthoring(t *testing.T) {
	mock := &ledgertest.MockApp{}
	conn := local.NewConnection(mock, zerolog.Nop())
	_, err := conn.Handshake(context.Background(), types.HandshakeRequest{})
	require.NoError(t, err)

	_, err = conn.Produce(context.Background(), types.ProposalContext{Height: 1})
	require.ErrorIs(t, err, errors.NotSupported)
	require.Zero(t, mock.ExecuteBlockCalls.Load())
}

func TestLocalCheckTxConcurrent(t *testing.T) {
	conn, _ := connect(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := conn.CheckTx(context.Background(), types.Tx{0x01, 0x02}, types.MempoolFirstSeen)
			require.NoError(t, err)
			require.False(t, v.Accepted())
		}()
	}
	wg.Wait()
}
