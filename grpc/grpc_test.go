package ledgergrpc_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/genesis"
	ledgergrpc "github.com/blockberries/ledger/grpc"
	"github.com/blockberries/ledger/node"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/store/memory"
	"github.com/blockberries/ledger/types"
)

const (
	alice types.AccountID = 5
	bob   types.AccountID = 6

	p           = types.BlockchainPrecision
	genesisTime = types.TimePoint(1_700_006_400)
	funds       = 1000 * p
	fee         = 20 * p
)

type peer struct {
	app     *node.App
	client  *ledgergrpc.Client
	witness types.WitnessID
}

// start serves a fresh node on a random port and dials it.
func start(t *testing.T) *peer {
	t.Helper()
	logger := zerolog.New(zerolog.NewTestWriter(t))
	s, err := store.Open(memory.New(), store.Options{Logger: logger})
	require.NoError(t, err)
	app, err := node.New(s, node.Options{Logger: logger, ChainID: "ledger-devnet"})
	require.NoError(t, err)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ledgergrpc.NewGRPCServer(app, logger).Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dcancel()
	client, err := ledgergrpc.Dial(dctx, lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	doc := genesis.Default(genesisTime, funds, "alice", "bob")
	resp, err := client.Handshake(context.Background(), types.HandshakeRequest{Genesis: &doc})
	require.NoError(t, err)
	require.Equal(t, types.CapProposalControl|types.CapStateSync|types.CapSimulation, resp.Capabilities)

	pr := &peer{app: app, client: client}
	app.Chain().View(func(s *store.Store) { pr.witness = store.GlobalProperties(s).ActiveWitnesses[0] })
	return pr
}

func (pr *peer) transfer(t *testing.T, amount int64) types.Tx {
	t.Helper()
	c := pr.app.Chain()
	trx := types.Transaction{Expiration: c.HeadTime().Add(60)}
	trx.SetReferenceBlock(c.Head().ID)
	require.NoError(t, trx.Append(&types.TransferOperation{
		Fee:    types.NewAsset(fee, types.CoreAsset),
		From:   alice,
		To:     bob,
		Amount: types.NewAsset(amount, types.CoreAsset),
	}))
	raw, err := types.EncodeTx(types.SignedTransaction{Transaction: trx})
	require.NoError(t, err)
	return raw
}

// block authors, executes and commits the next block over the wire.
func (pr *peer) block(t *testing.T, txs ...types.Tx) types.BlockOutcome {
	t.Helper()
	ctx := context.Background()
	height := pr.app.Committed().Height + 1
	built, err := pr.client.AsProposalControl().BuildProposal(ctx, types.ProposalContext{
		Height:     height,
		Time:       pr.app.Chain().HeadTime().Add(5),
		Witness:    pr.witness,
		MempoolTxs: txs,
	})
	require.NoError(t, err)

	verdict, err := pr.client.AsProposalControl().VerifyProposal(ctx, types.ReceivedProposal{Block: built.Block})
	require.NoError(t, err)
	require.True(t, verdict.Accept, verdict.RejectReason)

	out, err := pr.client.ExecuteBlock(ctx, types.FinalizedBlock{Block: built.Block})
	require.NoError(t, err)
	_, err = pr.client.Commit(ctx)
	require.NoError(t, err)
	require.Equal(t, height, pr.app.Committed().Height)
	return out
}

func (pr *peer) balance(t *testing.T, a types.AccountID) int64 {
	t.Helper()
	data, err := cramberry.Marshal(&types.BalanceQuery{Account: a, Asset: types.CoreAsset})
	require.NoError(t, err)
	res, err := pr.client.Query(context.Background(), types.StateQuery{Path: types.QueryBalance, Data: data})
	require.NoError(t, err)
	require.Zero(t, res.Code, res.Info)
	var amount types.Asset
	require.NoError(t, cramberry.Unmarshal(res.Value, &amount))
	return amount.Amount
}

func TestGRPCLifecycle(t *testing.T) {
	pr := start(t)
	ctx := context.Background()

	v, err := pr.client.CheckTx(ctx, pr.transfer(t, 100*p), types.MempoolFirstSeen)
	require.NoError(t, err)
	require.True(t, v.Accepted(), v.Info)
	require.Equal(t, alice.String(), v.Sender)

	v, err = pr.client.CheckTx(ctx, types.Tx{0xff}, types.MempoolFirstSeen)
	require.NoError(t, err)
	require.Equal(t, uint32(errors.BadRequest), v.Code)

	out := pr.block(t)
	require.Len(t, out.TxOutcomes, 1)
	require.True(t, out.TxOutcomes[0].OK())
	require.Equal(t, funds+100*p, pr.balance(t, bob))
	require.Equal(t, funds-100*p-fee, pr.balance(t, alice))

	res, err := pr.client.Query(ctx, types.StateQuery{Path: "/nowhere"})
	require.NoError(t, err)
	require.Equal(t, uint32(errors.NotSupported), res.Code)
}

func TestGRPCSimulate(t *testing.T) {
	pr := start(t)
	ctx := context.Background()

	out, err := pr.client.AsSimulator().Simulate(ctx, pr.transfer(t, 100*p))
	require.NoError(t, err)
	require.True(t, out.OK(), out.Info)

	out, err = pr.client.AsSimulator().Simulate(ctx, pr.transfer(t, 10*funds))
	require.NoError(t, err)
	require.Equal(t, uint32(errors.InsufficientBalance), out.Code)
	require.Equal(t, funds, pr.balance(t, bob))
}

func TestGRPCErrorStatus(t *testing.T) {
	pr := start(t)
	ctx := context.Background()
	sync := pr.client.AsStateSync()

	_, _, err := sync.ExportSnapshot(ctx, 7, types.SnapshotFormatObjects)
	require.ErrorIs(t, err, errors.NotFound)

	pr.block(t)
	_, _, err = sync.ExportSnapshot(ctx, 1, 9)
	require.ErrorIs(t, err, errors.NotSupported)
}

func TestGRPCSnapshotSync(t *testing.T) {
	source := start(t)
	target := start(t)
	ctx := context.Background()

	out := source.block(t, source.transfer(t, 100*p))

	descs, err := source.client.AsStateSync().AvailableSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, descs, 1)

	chunks, desc, err := source.client.AsStateSync().ExportSnapshot(ctx, 1, types.SnapshotFormatObjects)
	require.NoError(t, err)
	require.Equal(t, descs[0], *desc)
	var all []types.SnapshotChunk
	for c := range chunks {
		all = append(all, c)
	}
	require.Len(t, all, int(desc.Chunks))

	feed := func(cs []types.SnapshotChunk) <-chan types.SnapshotChunk {
		ch := make(chan types.SnapshotChunk, len(cs))
		for _, c := range cs {
			ch <- c
		}
		close(ch)
		return ch
	}

	res, err := target.client.AsStateSync().ImportSnapshot(ctx, *desc, feed(all[1:]))
	require.NoError(t, err)
	require.Equal(t, types.ImportRetryChunks, res.Status)
	require.Equal(t, []uint32{0}, res.RetryIndices)

	res, err = target.client.AsStateSync().ImportSnapshot(ctx, *desc, feed(all))
	require.NoError(t, err)
	require.Equal(t, types.ImportOK, res.Status, res.Reason)
	require.Equal(t, out.AppHash, *res.AppHash)
	require.Equal(t, uint64(1), target.app.Committed().Height)
	require.Equal(t, funds+100*p, target.balance(t, bob))
}
