package main

import (
	"github.com/spf13/cobra"

	"geekbudget/internal/core"
	"geekbudget/internal/report"
	"geekbudget/internal/services"
)

var (
	matrixAnchor string
	matrixMonths int

	matrixCmd = &cobra.Command{
		Use:   "matrix",
		Short: "Print planned against spent amounts per account and month",
		Args:  cobra.NoArgs,
		RunE:  runMatrix,
	}
)

func init() {
	rootCmd.AddCommand(matrixCmd)

	matrixCmd.Flags().StringVar(&matrixAnchor, "anchor", "",
		"Last month of the window as YYYY-MM (default current month)")
	matrixCmd.Flags().IntVarP(&matrixMonths, "months", "m", 0,
		"Window size in months, 1 to 12 (default from DEFAULT_WINDOW_MONTHS)")
}

func runMatrix(cmd *cobra.Command, _ []string) error {
	req := services.MatrixRequest{
		Months:     matrixMonths,
		CurrencyID: currency,
		ShowHidden: showHidden,
	}
	if matrixAnchor != "" {
		anchor, err := core.ParseInterval(matrixAnchor)
		if err != nil {
			return err
		}
		req.Anchor = anchor
	}

	ctx := cmd.Context()
	svc, _, release, err := openViews(ctx)
	if err != nil {
		return err
	}
	defer release()

	m, err := svc.BudgetMatrix(ctx, req)
	if err != nil {
		return err
	}
	return report.RenderMatrix(cmd.OutOrStdout(), m, report.Options{Color: !noColor})
}
