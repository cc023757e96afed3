package server_test

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/genesis"
	"github.com/blockberries/ledger/node"
	"github.com/blockberries/ledger/server"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/store/memory"
	"github.com/blockberries/ledger/types"
)

const genesisTime = types.TimePoint(1_700_006_400)

// lifecycleOnly implements nothing beyond the core lifecycle.
type lifecycleOnly struct {
	caps types.Capabilities
}

func (a lifecycleOnly) Handshake(context.Context, types.HandshakeRequest) (types.HandshakeResponse, error) {
	return types.HandshakeResponse{Capabilities: a.caps}, nil
}

func (lifecycleOnly) CheckTx(context.Context, types.Tx, types.MempoolContext) (types.GateVerdict, error) {
	return types.GateVerdict{}, nil
}

func (lifecycleOnly) ExecuteBlock(context.Context, types.FinalizedBlock) (types.BlockOutcome, error) {
	return types.BlockOutcome{}, errors.Fatal.With("cannot apply")
}

func (lifecycleOnly) Commit(context.Context) (types.CommitResult, error) {
	return types.CommitResult{}, nil
}

func (lifecycleOnly) Query(context.Context, types.StateQuery) (types.StateQueryResult, error) {
	return types.StateQueryResult{}, nil
}

func newNodeServer(t *testing.T) (*server.Server, *node.App) {
	t.Helper()
	logger := zerolog.New(zerolog.NewTestWriter(t))
	s, err := store.Open(memory.New(), store.Options{Logger: logger})
	require.NoError(t, err)
	app, err := node.New(s, node.Options{Logger: logger, ChainID: "ledger-devnet"})
	require.NoError(t, err)
	srv := server.New(app, server.Options{Logger: logger})

	doc := genesis.Default(genesisTime, 1000*types.BlockchainPrecision, "alice", "bob")
	resp, err := srv.Handshake(context.Background(), types.HandshakeRequest{Genesis: &doc})
	require.NoError(t, err)
	require.Equal(t, resp.Capabilities, srv.Capabilities())
	return srv, app
}

func TestServerExecuteCommitCycle(t *testing.T) {
	srv, app := newNodeServer(t)
	ctx := context.Background()

	var witness types.WitnessID
	app.Chain().View(func(s *store.Store) { witness = store.GlobalProperties(s).ActiveWitnesses[0] })

	for h := uint64(1); h <= 2; h++ {
		built, err := srv.AsProposalControl().BuildProposal(ctx, types.ProposalContext{
			Height:  h,
			Time:    genesisTime.Add(int64(5 * h)),
			Witness: witness,
		})
		require.NoError(t, err)

		out, err := srv.ExecuteBlock(ctx, types.FinalizedBlock{Block: built.Block})
		require.NoError(t, err)
		require.Equal(t, &out, srv.LastOutcome())
		require.Equal(t, "Executed", srv.State())

		_, err = srv.Commit(ctx)
		require.NoError(t, err)
		require.Nil(t, srv.LastOutcome())
		require.Equal(t, h, app.Committed().Height)
	}
}

func TestServerFailedExecuteCanRetry(t *testing.T) {
	srv, _ := newNodeServer(t)
	ctx := context.Background()

	_, err := srv.ExecuteBlock(ctx, types.FinalizedBlock{Block: types.SignedBlock{Header: types.BlockHeader{Previous: types.BlockID{9}}}})
	require.Error(t, err)
	require.Equal(t, "Ready", srv.State())
	require.Panics(t, func() { _, _ = srv.Commit(ctx) })
}

func TestServerConcurrentCalls(t *testing.T) {
	srv, _ := newNodeServer(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := srv.Query(ctx, types.StateQuery{Path: types.QueryHead})
			require.NoError(t, err)
			require.Zero(t, res.Code)
			v, err := srv.CheckTx(ctx, types.Tx{0xff}, types.MempoolFirstSeen)
			require.NoError(t, err)
			require.False(t, v.Accepted())
		}()
	}
	wg.Wait()
}

func TestServerBeforeHandshake(t *testing.T) {
	srv := server.New(lifecycleOnly{}, server.Options{Logger: zerolog.Nop()})
	require.Panics(t, func() { _, _ = srv.Query(context.Background(), types.StateQuery{}) })
}

func TestServerCapabilityGating(t *testing.T) {
	ctx := context.Background()

	srv := server.New(lifecycleOnly{}, server.Options{Logger: zerolog.Nop()})
	_, err := srv.Handshake(ctx, types.HandshakeRequest{})
	require.NoError(t, err)
	require.Nil(t, srv.AsProposalControl())
	require.Nil(t, srv.AsStateSync())
	require.Nil(t, srv.AsSimulator())

	_, err = srv.BuildProposal(ctx, types.ProposalContext{})
	require.ErrorIs(t, err, errors.NotSupported)
	verdict, err := srv.VerifyProposal(ctx, types.ReceivedProposal{})
	require.NoError(t, err)
	require.True(t, verdict.Accept)
	_, err = srv.Simulate(ctx, nil)
	require.ErrorIs(t, err, errors.NotSupported)

	// Declaring a capability the node lacks fails the handshake.
	srv = server.New(lifecycleOnly{caps: types.CapStateSync}, server.Options{Logger: zerolog.Nop()})
	_, err = srv.Handshake(ctx, types.HandshakeRequest{})
	require.ErrorIs(t, err, errors.BadRequest)

	full, _ := newNodeServer(t)
	require.NotNil(t, full.AsProposalControl())
	require.NotNil(t, full.AsStateSync())
	require.NotNil(t, full.AsSimulator())
}
