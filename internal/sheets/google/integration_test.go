//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"geekbudget/internal/aggregation"
	"geekbudget/internal/budget"
	"geekbudget/internal/core"
	"geekbudget/internal/log"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_ExportFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	if os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON") == "" && os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE") == "" &&
		os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		t.Skip("service account credentials not configured, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := New(ctx, Options{
		SpreadsheetID:      spreadsheetID,
		ServiceAccountJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		ServiceAccountFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
		MatrixSheet:        "Budget (integration)",
		TablesSheet:        "Expenses (integration)",
	}, log.Discard())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	month := core.MonthOf(time.Now())
	acc := core.Account{ID: "food", Name: "Food", Type: core.AccountTypeExpense}
	m := budget.Build(budget.MatrixInput{
		Accounts: []core.Account{acc},
		Window:   core.Window(month, 3),
		Current:  month,
		Spend:    budget.Spend{"food": {month.AddMonths(-1): 42}},
	})
	if err := client.WriteMatrix(ctx, m); err != nil {
		t.Fatalf("WriteMatrix: %v", err)
	}

	agg := core.Aggregation{
		Intervals: []core.Interval{month.AddMonths(-1), month},
		Currencies: []core.CurrencyAggregation{{
			CurrencyID: "eur",
			Accounts:   []core.AccountAggregation{{AccountID: "food", Amounts: []float64{42, 12}}},
		}},
	}
	tables := aggregation.Build(aggregation.Input{Aggregation: agg, Accounts: []core.Account{acc}})
	if err := client.WriteTables(ctx, tables); err != nil {
		t.Fatalf("WriteTables: %v", err)
	}
}
