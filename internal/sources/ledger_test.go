package sources

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geekbudget/internal/core"
)

func TestAggregateLedger(t *testing.T) {
	oct := core.NewInterval(2025, time.October)
	nov, dec := oct.AddMonths(1), oct.AddMonths(2)
	accounts := []core.Account{
		{ID: "food", Type: core.AccountTypeExpense},
		{ID: "salary", Type: core.AccountTypeIncome},
	}
	entries := []core.LedgerEntry{
		{AccountID: "food", CurrencyID: "eur", Month: nov, Amount: 40},
		{AccountID: "food", CurrencyID: "eur", Month: nov, Amount: 10},
		{AccountID: "food", CurrencyID: "eur", Month: dec, Amount: 75},
		{AccountID: "salary", CurrencyID: "eur", Month: dec, Amount: 3000},
		{AccountID: "misc", CurrencyID: "usd", Month: oct, Amount: 3},
		{AccountID: "food", CurrencyID: "eur", Month: dec.AddMonths(1), Amount: 999},
	}

	agg := AggregateLedger(entries, accounts, AggregationQuery{From: oct, To: dec})
	assert.Equal(t, []core.Interval{oct, nov, dec}, agg.Intervals)
	assert.Equal(t, core.GranularityMonth, agg.Granularity)
	require.Len(t, agg.Currencies, 2)

	eur := agg.Currencies[0]
	assert.Equal(t, "eur", eur.CurrencyID)
	require.Len(t, eur.Accounts, 1, "income accounts are skipped")
	food := eur.Accounts[0]
	assert.Equal(t, []float64{0, 50, 75}, food.Amounts)
	require.NotNil(t, food.Total)
	assert.Equal(t, 125.0, *food.Total)
	require.NotNil(t, food.ChangePercent)
	assert.Equal(t, 50.0, *food.ChangePercent)

	usd := agg.Currencies[1]
	assert.Equal(t, "misc", usd.Accounts[0].AccountID, "unknown accounts are kept")
	assert.Nil(t, usd.Accounts[0].ChangePercent)

	only := AggregateLedger(entries, accounts, AggregationQuery{From: oct, To: dec, CurrencyID: "usd"})
	require.Len(t, only.Currencies, 1)
	assert.Equal(t, "usd", only.Currencies[0].CurrencyID)
}

func TestAggregateLedgerEmptyRange(t *testing.T) {
	dec := core.NewInterval(2025, time.December)
	agg := AggregateLedger(nil, nil, AggregationQuery{From: dec, To: dec.AddMonths(-1)})
	assert.Empty(t, agg.Intervals)
	assert.NotNil(t, agg.Currencies)
}
