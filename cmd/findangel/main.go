package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "findangel",
		Short: "Marketplace scanner that flags listings priced well below their fair value",
		Long: `findangel watches the accessory market with a pool of API credentials,
prices every new listing against the active pattern generation and alerts
on the ones worth buying. The collector and generator keep those patterns
current from listing history.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(collectCmd())
	rootCmd.AddCommand(patternsCmd())
	rootCmd.AddCommand(migrateCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
