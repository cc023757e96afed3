package ledgertest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/types"
)

// RunComplianceSuite checks that a block-authoring node follows the
// lifecycle and replays its own blocks deterministically.
//
// factory must return a fresh node with no state on every call.
func RunComplianceSuite(t *testing.T, factory func(t *testing.T) ledger.Lifecycle) {
	t.Helper()

	t.Run("genesis_handshake", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		resp := h.GenesisDefault()
		require.Nil(t, resp.LastBlock)
		require.True(t, resp.Capabilities.Has(types.CapProposalControl))
		require.Equal(t, uint32(0), h.Head().HeadBlockNumber)
	})

	t.Run("produce_cycle", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		h.GenesisDefault()

		for i := uint32(1); i <= 5; i++ {
			block, outcome := h.Produce()
			id, err := block.ID()
			require.NoError(t, err)
			require.Equal(t, id, outcome.BlockID)
			require.NotEqual(t, types.AppHash{}, outcome.AppHash)
			require.Equal(t, i, h.Head().HeadBlockNumber)
		}
	})

	t.Run("replay_deterministic", func(t *testing.T) {
		author := NewHarness(t, factory(t))
		author.GenesisDefault()
		replica := NewHarness(t, factory(t))
		replica.GenesisDefault()

		alice, bob := author.Account("alice"), author.Account("bob")
		for i := int64(1); i <= 3; i++ {
			block, o1 := author.Produce(author.Transfer(alice, bob, i*types.BlockchainPrecision))
			require.Len(t, o1.TxOutcomes, 1)
			o2 := replica.ExecuteAndCommit(block)
			require.Equal(t, o1.AppHash, o2.AppHash, "block %d", block.Num())
			require.Equal(t, o1.BlockID, o2.BlockID)
		}
		require.Equal(t, author.Balance(bob), replica.Balance(bob))
	})

	t.Run("tx_outcome_indices", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		h.GenesisDefault()
		alice, bob := h.Account("alice"), h.Account("bob")

		for i := int64(1); i <= 3; i++ {
			h.MustAcceptTx(h.Transfer(alice, bob, i*types.BlockchainPrecision))
		}
		_, outcome := h.Produce()
		require.Len(t, outcome.TxOutcomes, 3)
		for i, o := range outcome.TxOutcomes {
			require.Equal(t, uint32(i), o.Index)
			require.True(t, o.OK(), o.Info)
		}
	})

	t.Run("rejects_garbage", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		h.GenesisDefault()
		h.MustRejectTx(types.Tx{0x01, 0x02, 0x03})
	})

	t.Run("concurrent_checktx_and_query", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		h.GenesisDefault()
		tx := h.Transfer(h.Account("alice"), h.Account("bob"), types.BlockchainPrecision)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, err := h.Server().CheckTx(context.Background(), tx, types.MempoolFirstSeen)
				require.NoError(t, err)
			}()
			go func() {
				defer wg.Done()
				_, err := h.Server().Query(context.Background(), types.StateQuery{Path: types.QueryHead})
				require.NoError(t, err)
			}()
		}
		wg.Wait()
	})

	t.Run("query_returns_height", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		h.GenesisDefault()
		h.Produce()
		h.Produce()

		result := h.Query(types.QueryHead, nil)
		require.Zero(t, result.Code, result.Info)
		require.Equal(t, uint64(2), result.Height)
	})
}
