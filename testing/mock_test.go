package ledgertest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/types"
)

func TestMockAppDefaults(t *testing.T) {
	mock := &MockApp{DeclaredCapabilities: types.CapProposalControl | types.CapSimulation}
	h := NewHarness(t, mock)

	resp, err := h.Server().Handshake(context.Background(), types.HandshakeRequest{})
	require.NoError(t, err)
	require.Equal(t, mock.DeclaredCapabilities, resp.Capabilities)
	require.NotNil(t, h.Server().AsProposalControl())
	require.Nil(t, h.Server().AsStateSync())

	built, err := h.Server().BuildProposal(context.Background(), types.ProposalContext{Height: 1, Time: GenesisTime, Witness: 1})
	require.NoError(t, err)
	require.Equal(t, types.WitnessID(1), built.Block.Header.Witness)

	outcome := h.ExecuteAndCommit(built.Block)
	require.Equal(t, []types.BlockID{outcome.BlockID}, mock.Executed())
	require.Equal(t, int64(1), mock.ExecuteBlockCalls.Load())
	require.Equal(t, int64(1), mock.CommitCalls.Load())
	h.MustAcceptTx(types.Tx{0x01})
}

func TestMockAppOverrides(t *testing.T) {
	mock := &MockApp{
		CheckTxFn: func(context.Context, types.Tx, types.MempoolContext) (types.GateVerdict, error) {
			return types.GateVerdict{Code: uint32(errors.BadRequest), Info: "no"}, nil
		},
		ExecuteBlockFn: func(context.Context, types.FinalizedBlock) (types.BlockOutcome, error) {
			return types.BlockOutcome{}, errors.Consistency.With("diverged")
		},
	}
	h := NewHarness(t, mock)
	h.GenesisDefault()
	h.MustRejectTx(types.Tx{0x01})

	_, err := h.Server().ExecuteBlock(context.Background(), types.FinalizedBlock{})
	require.ErrorIs(t, err, errors.Consistency)
	require.Equal(t, "Ready", h.Server().State())
	require.Empty(t, mock.Executed())
}
