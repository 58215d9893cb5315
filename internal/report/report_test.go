package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geekbudget/internal/aggregation"
	"geekbudget/internal/budget"
	"geekbudget/internal/core"
	"geekbudget/internal/heat"
)

func sampleMatrix() budget.Matrix {
	jan := core.NewInterval(2024, time.January)
	feb := core.NewInterval(2024, time.February)
	return budget.Build(budget.MatrixInput{
		Accounts: []core.Account{{ID: "a1", Name: "🛒 Groceries", Type: core.AccountTypeExpense}},
		Window:   []core.Interval{jan, feb},
		Current:  feb,
		Records: []core.BudgetRecord{
			{ID: "r1", AccountID: "a1", Month: jan, Amount: 1200},
		},
		Spend: budget.Spend{"a1": {jan: 950.5, feb: 40}},
	})
}

func TestRenderMatrix(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderMatrix(&buf, sampleMatrix(), Options{}))

	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "Account"))
	assert.Contains(t, lines[2], "Groceries")
	assert.Contains(t, lines[2], "1,200.00")
	assert.Contains(t, lines[2], "950.50")
	assert.Contains(t, lines[4], "Total")
	assert.NotContains(t, out, "\033[")
}

func TestRenderMatrixAlignsWideRunes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderMatrix(&buf, sampleMatrix(), Options{}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	// Data and total rows have the same display width as the header.
	want := displayWidth(lines[0])
	for _, l := range []string{lines[2], lines[4]} {
		assert.Equal(t, want, displayWidth(l), l)
	}
}

func TestRenderTables(t *testing.T) {
	jan := core.NewInterval(2024, time.January)
	tables := []aggregation.Table{{
		CurrencyID:   "EUR",
		CurrencyName: "Euro",
		Months:       []core.Interval{jan},
		Rows: []aggregation.Row{{
			AccountID:   "a1",
			AccountName: "Rent",
			Cells:       []aggregation.ValueCell{{Value: 800, Color: heat.Color{R: 255, G: 0, B: 0, A: 0.5}}},
			Total:       aggregation.ValueCell{Value: 800, Color: heat.White},
		}},
		TotalRow: aggregation.TotalRow{
			Cells:      []aggregation.ValueCell{{Value: 800, Color: heat.White}},
			GrandTotal: aggregation.ValueCell{Value: 800, Color: heat.White},
		},
	}}

	t.Run("plain", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, RenderTables(&buf, tables, Options{}))
		out := buf.String()
		assert.True(t, strings.HasPrefix(out, "Euro (EUR)\n"))
		assert.Contains(t, out, "Rent")
		assert.Contains(t, out, "800.00")
		assert.NotContains(t, out, "\033[")
	})

	t.Run("color", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, RenderTables(&buf, tables, Options{Color: true}))
		out := buf.String()
		// 0.5 * 0 + 0.5 * 255 = 127.5 rounds to 128.
		assert.Contains(t, out, "\033[48;2;255;128;128m")
		assert.Contains(t, out, colorReset)
	})

	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, RenderTables(&buf, nil, Options{}))
		assert.Equal(t, "No expenses in range.\n", buf.String())
	})
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", 40)
	got := truncate(long)
	assert.Equal(t, maxNameWidth, displayWidth(got))
	assert.Equal(t, "short", truncate("short"))
}

func displayWidth(s string) int { return runewidth.StringWidth(s) }
