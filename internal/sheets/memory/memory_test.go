package memory

import (
	"context"
	"testing"

	"geekbudget/internal/aggregation"
	"geekbudget/internal/budget"
	"geekbudget/internal/core"
)

func TestWriterKeepsLastExport(t *testing.T) {
	w := New()
	ctx := context.Background()

	m := budget.Matrix{Rows: []budget.Row{{Account: core.Account{ID: "food"}}}}
	if err := w.WriteMatrix(ctx, budget.Matrix{}); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteMatrix(ctx, m); err != nil {
		t.Fatal(err)
	}
	got, n := w.Matrix()
	if n != 2 || len(got.Rows) != 1 || got.Rows[0].Account.ID != "food" {
		t.Errorf("Matrix() = %+v, %d", got, n)
	}

	tables := []aggregation.Table{{CurrencyID: "eur"}}
	if err := w.WriteTables(ctx, tables); err != nil {
		t.Fatal(err)
	}
	tables[0].CurrencyID = "changed"
	gotTables, n := w.Tables()
	if n != 1 || gotTables[0].CurrencyID != "eur" {
		t.Errorf("Tables() = %+v, %d", gotTables, n)
	}
}

func TestWriterHonoursCancellation(t *testing.T) {
	w := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.WriteMatrix(ctx, budget.Matrix{}); err == nil {
		t.Error("expected error for cancelled context")
	}
	if _, n := w.Matrix(); n != 0 {
		t.Errorf("cancelled write counted: %d", n)
	}
}
