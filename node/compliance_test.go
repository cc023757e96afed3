package node_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/node"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/store/memory"
	ledgertest "github.com/blockberries/ledger/testing"
)

func TestCompliance(t *testing.T) {
	ledgertest.RunComplianceSuite(t, func(t *testing.T) ledger.Lifecycle {
		logger := zerolog.New(zerolog.NewTestWriter(t))
		s, err := store.Open(memory.New(), store.Options{Logger: logger})
		require.NoError(t, err)
		app, err := node.New(s, node.Options{Logger: logger, ChainID: "ledger-devnet"})
		require.NoError(t, err)
		return app
	})
}
