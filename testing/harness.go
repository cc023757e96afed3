package ledgertest

import (
	"context"
	"testing"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/genesis"
	"github.com/blockberries/ledger/server"
	"github.com/blockberries/ledger/types"
)

// GenesisTime is the genesis time of DefaultGenesis.
const GenesisTime = types.TimePoint(1_700_006_400)

// BlockInterval is the spacing of blocks the harness produces.
const BlockInterval = 5

// Harness drives a node through the lifecycle guard the way an engine
// would, failing the test on any error.
type Harness struct {
	t   *testing.T
	srv *server.Server
}

// NewHarness wraps app.
func NewHarness(t *testing.T, app ledger.Lifecycle) *Harness {
	t.Helper()
	logger := zerolog.New(zerolog.NewTestWriter(t))
	return &Harness{t: t, srv: server.New(app, server.Options{Logger: logger})}
}

// Server returns the underlying server for direct access.
func (h *Harness) Server() *server.Server {
	return h.srv
}

// Genesis performs a genesis handshake with doc.
func (h *Harness) Genesis(doc types.GenesisDoc) types.HandshakeResponse {
	h.t.Helper()
	resp, err := h.srv.Handshake(context.Background(), types.HandshakeRequest{Genesis: &doc})
	require.NoError(h.t, err, "genesis handshake")
	return resp
}

// GenesisDefault performs a genesis handshake with DefaultGenesis.
func (h *Harness) GenesisDefault() types.HandshakeResponse {
	h.t.Helper()
	return h.Genesis(DefaultGenesis())
}

// Restart performs a restart handshake at block.
func (h *Harness) Restart(block types.BlockRef) types.HandshakeResponse {
	h.t.Helper()
	resp, err := h.srv.Handshake(context.Background(), types.HandshakeRequest{LastCommitted: &block})
	require.NoError(h.t, err, "restart handshake")
	return resp
}

// ExecuteBlock executes a block without committing.
func (h *Harness) ExecuteBlock(block types.SignedBlock) types.BlockOutcome {
	h.t.Helper()
	outcome, err := h.srv.ExecuteBlock(context.Background(), types.FinalizedBlock{Block: block})
	require.NoError(h.t, err, "execute block %d", block.Num())
	return outcome
}

// Commit commits the last executed block.
func (h *Harness) Commit() types.CommitResult {
	h.t.Helper()
	result, err := h.srv.Commit(context.Background())
	require.NoError(h.t, err, "commit")
	return result
}

// ExecuteAndCommit executes block and commits it.
func (h *Harness) ExecuteAndCommit(block types.SignedBlock) types.BlockOutcome {
	h.t.Helper()
	outcome := h.ExecuteBlock(block)
	h.Commit()
	return outcome
}

// Build authors the next block, BlockInterval seconds after the head,
// signed by the first active witness.
func (h *Harness) Build(txs ...types.Tx) types.SignedBlock {
	h.t.Helper()
	pc := h.srv.AsProposalControl()
	require.NotNil(h.t, pc, "node does not author blocks")
	head := h.Head()
	built, err := pc.BuildProposal(context.Background(), types.ProposalContext{
		Height:     uint64(head.HeadBlockNumber) + 1,
		Time:       head.Time.Add(BlockInterval),
		Witness:    h.Witness(),
		MempoolTxs: txs,
	})
	require.NoError(h.t, err, "build proposal")
	return built.Block
}

// Produce authors, executes and commits the next block.
func (h *Harness) Produce(txs ...types.Tx) (types.SignedBlock, types.BlockOutcome) {
	h.t.Helper()
	block := h.Build(txs...)
	return block, h.ExecuteAndCommit(block)
}

// CheckTx submits a transaction for gate-checking.
func (h *Harness) CheckTx(tx types.Tx) types.GateVerdict {
	h.t.Helper()
	verdict, err := h.srv.CheckTx(context.Background(), tx, types.MempoolFirstSeen)
	require.NoError(h.t, err, "check tx")
	return verdict
}

// RecheckTx re-validates a previously admitted transaction.
func (h *Harness) RecheckTx(tx types.Tx) types.GateVerdict {
	h.t.Helper()
	verdict, err := h.srv.CheckTx(context.Background(), tx, types.MempoolRevalidation)
	require.NoError(h.t, err, "recheck tx")
	return verdict
}

// Query reads committed state.
func (h *Harness) Query(path types.QueryPath, data []byte) types.StateQueryResult {
	h.t.Helper()
	result, err := h.srv.Query(context.Background(), types.StateQuery{Path: path, Data: data})
	require.NoError(h.t, err, "query %s", path)
	return result
}

// Object reads the committed object id into obj.
func (h *Harness) Object(id types.ObjectID, obj types.Object) {
	h.t.Helper()
	res := h.Query(types.QueryObject, []byte(id.String()))
	require.Zero(h.t, res.Code, res.Info)
	require.NoError(h.t, cramberry.Unmarshal(res.Value, obj))
}

// Head returns the committed dynamic global properties.
func (h *Harness) Head() *types.DynamicGlobalPropertyObject {
	h.t.Helper()
	dgp := new(types.DynamicGlobalPropertyObject)
	h.Object(types.DynamicGlobalPropertyID, dgp)
	return dgp
}

// Witness returns the first active witness.
func (h *Harness) Witness() types.WitnessID {
	h.t.Helper()
	gpo := new(types.GlobalPropertyObject)
	h.Object(types.GlobalPropertyID, gpo)
	require.NotEmpty(h.t, gpo.ActiveWitnesses)
	return gpo.ActiveWitnesses[0]
}

// MustAcceptTx asserts that tx is accepted.
func (h *Harness) MustAcceptTx(tx types.Tx) {
	h.t.Helper()
	v := h.CheckTx(tx)
	require.True(h.t, v.Accepted(), "code=%d info=%q", v.Code, v.Info)
}

// MustRejectTx asserts that tx is rejected.
func (h *Harness) MustRejectTx(tx types.Tx) {
	h.t.Helper()
	v := h.CheckTx(tx)
	require.False(h.t, v.Accepted(), "expected tx rejected")
}

// DefaultGenesis returns a devnet genesis with two funded accounts,
// alice and bob. Alice runs the only witness.
func DefaultGenesis() types.GenesisDoc {
	return genesis.Default(GenesisTime, 1000*types.BlockchainPrecision, "alice", "bob")
}

// TransferFee covers the transfer fee of the default chain parameters.
const TransferFee = 20 * types.BlockchainPrecision

// Account resolves a registered account name.
func (h *Harness) Account(name string) types.AccountID {
	h.t.Helper()
	res := h.Query(types.QueryAccount, []byte(name))
	require.Zero(h.t, res.Code, res.Info)
	var acct types.AccountObject
	require.NoError(h.t, cramberry.Unmarshal(res.Value, &acct))
	return acct.AccountID()
}

// Transfer encodes an unsigned core asset transfer referencing the
// committed head.
func (h *Harness) Transfer(from, to types.AccountID, amount int64) types.Tx {
	h.t.Helper()
	head := h.Head()
	trx := types.Transaction{Expiration: head.Time.Add(60)}
	trx.SetReferenceBlock(head.HeadBlockID)
	require.NoError(h.t, trx.Append(&types.TransferOperation{
		Fee:    types.NewAsset(TransferFee, types.CoreAsset),
		From:   from,
		To:     to,
		Amount: types.NewAsset(amount, types.CoreAsset),
	}))
	raw, err := types.EncodeTx(types.SignedTransaction{Transaction: trx})
	require.NoError(h.t, err)
	return raw
}

// Balance returns the committed core balance of account.
func (h *Harness) Balance(account types.AccountID) int64 {
	h.t.Helper()
	data, err := cramberry.Marshal(&types.BalanceQuery{Account: account, Asset: types.CoreAsset})
	require.NoError(h.t, err)
	res := h.Query(types.QueryBalance, data)
	require.Zero(h.t, res.Code, res.Info)
	var amount types.Asset
	require.NoError(h.t, cramberry.Unmarshal(res.Value, &amount))
	return amount.Amount
}
