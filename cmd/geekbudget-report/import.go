package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"geekbudget/internal/sources/memory"
)

var importCmd = &cobra.Command{
	Use:   "import <seed-dir>",
	Short: "Replace the backend contents with the seed files in a directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	seed, err := memory.LoadSeed(args[0])
	if err != nil {
		return fmt.Errorf("load seed: %w", err)
	}

	ctx := cmd.Context()
	_, be, release, err := openViews(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := be.Importer.ImportSeed(ctx, seed); err != nil {
		return fmt.Errorf("import seed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d accounts, %d currencies, %d budget items, %d ledger entries\n",
		len(seed.Accounts), len(seed.Currencies), len(seed.Records), len(seed.Ledger))
	return nil
}
