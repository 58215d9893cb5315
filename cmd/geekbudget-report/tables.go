package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"geekbudget/internal/aggregation"
	"geekbudget/internal/core"
	"geekbudget/internal/report"
	"geekbudget/internal/services"
)

var (
	tablesFrom   string
	tablesTo     string
	tablesNarrow bool
	tablesSort   string
	tablesOrder  string
	tablesLang   string

	tablesCmd = &cobra.Command{
		Use:   "tables",
		Short: "Print monthly expenses per currency with heat grades",
		Args:  cobra.NoArgs,
		RunE:  runTables,
	}
)

func init() {
	rootCmd.AddCommand(tablesCmd)

	tablesCmd.Flags().StringVar(&tablesFrom, "from", "",
		"First month as YYYY-MM (default 11 months before --to)")
	tablesCmd.Flags().StringVar(&tablesTo, "to", "",
		"Last month as YYYY-MM (default current month)")
	tablesCmd.Flags().BoolVar(&tablesNarrow, "narrow", false,
		"Show only the trailing months")
	tablesCmd.Flags().StringVar(&tablesSort, "sort", "",
		"Sort column: name, total or month:<index>")
	tablesCmd.Flags().StringVar(&tablesOrder, "order", "asc",
		"Sort order (asc, desc)")
	tablesCmd.Flags().StringVar(&tablesLang, "lang", "en",
		"Language tag used to collate account names")
}

func runTables(cmd *cobra.Command, _ []string) error {
	req := services.TableRequest{
		CurrencyID: currency,
		ShowHidden: showHidden,
	}
	var err error
	if tablesFrom != "" {
		if req.From, err = core.ParseInterval(tablesFrom); err != nil {
			return err
		}
	}
	if tablesTo != "" {
		if req.To, err = core.ParseInterval(tablesTo); err != nil {
			return err
		}
	}
	if tablesNarrow {
		req.VisibleMonths = aggregation.NarrowMonths
	}
	if tablesSort != "" {
		key, err := aggregation.ParseSortKey(tablesSort, tablesOrder)
		if err != nil {
			return err
		}
		tag, err := language.Parse(tablesLang)
		if err != nil {
			return err
		}
		key.Lang = tag
		req.Sort = &key
	}

	ctx := cmd.Context()
	svc, _, release, err := openViews(ctx)
	if err != nil {
		return err
	}
	defer release()

	tables, err := svc.AggregationTables(ctx, req)
	if err != nil {
		return err
	}
	return report.RenderTables(cmd.OutOrStdout(), tables, report.Options{Color: !noColor})
}
