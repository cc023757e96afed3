// Command ledgerd runs a ledger node.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blockberries/ledger/genesis"
	"github.com/blockberries/ledger/types"
)

var cmdMain = &cobra.Command{
	Use:   "ledgerd",
	Short: "Ledger node",
}

var flagMain = struct {
	Config string
}{}

var cmdGenesis = &cobra.Command{
	Use:   "genesis [file]",
	Short: "Write a devnet genesis document",
	Args:  cobra.ExactArgs(1),
	RunE:  writeGenesis,
}

var flagGenesis = struct {
	Accounts []string
	Supply   int64
	ChainID  string
}{}

func init() {
	cmdMain.PersistentFlags().StringVarP(&flagMain.Config, "config", "c", "", "Configuration file (TOML or YAML)")

	cmdGenesis.Flags().StringSliceVar(&flagGenesis.Accounts, "accounts", []string{"alice", "bob"}, "Funded accounts; the first runs the witness")
	cmdGenesis.Flags().Int64Var(&flagGenesis.Supply, "supply", 1_000_000, "Core balance of each account, in whole units")
	cmdGenesis.Flags().StringVar(&flagGenesis.ChainID, "chain-id", "ledger-devnet", "Chain ID")

	cmdMain.AddCommand(cmdRun, cmdGenesis)
}

func main() {
	if err := cmdMain.Execute(); err != nil {
		os.Exit(1)
	}
}

func writeGenesis(_ *cobra.Command, args []string) error {
	doc := genesis.Default(types.TimePointFromTime(time.Now()), flagGenesis.Supply*types.BlockchainPrecision, flagGenesis.Accounts...)
	doc.ChainID = flagGenesis.ChainID
	if err := genesis.Validate(&doc); err != nil {
		return err
	}
	if err := genesis.Save(args[0], doc); err != nil {
		return err
	}
	fmt.Printf("Wrote genesis for %s to %s\n", doc.ChainID, args[0])
	return nil
}
