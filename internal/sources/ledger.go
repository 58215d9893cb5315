package sources

import (
	"math"

	"geekbudget/internal/core"
)

// AggregateLedger folds ledger entries into a monthly aggregation over
// [q.From, q.To]. Accounts of a non expense type are skipped; accounts
// missing from the catalog are kept. Currencies and accounts appear in
// first seen order.
func AggregateLedger(entries []core.LedgerEntry, accounts []core.Account, q AggregationQuery) core.Aggregation {
	intervals := core.MonthsBetween(q.From, q.To)
	agg := core.Aggregation{
		From:        q.From,
		To:          q.To,
		Granularity: core.GranularityMonth,
		Intervals:   intervals,
		Currencies:  []core.CurrencyAggregation{},
	}
	if len(intervals) == 0 {
		return agg
	}
	catalog := core.AccountsByID(accounts)
	index := agg.IntervalIndex()

	currencyPos := map[string]int{}
	accountPos := map[string]map[string]int{}

	for _, e := range entries {
		if q.CurrencyID != "" && e.CurrencyID != q.CurrencyID {
			continue
		}
		if acc, ok := catalog[e.AccountID]; ok && !acc.IsExpense() {
			continue
		}
		i, ok := index[e.Month]
		if !ok {
			continue
		}
		ci, ok := currencyPos[e.CurrencyID]
		if !ok {
			ci = len(agg.Currencies)
			currencyPos[e.CurrencyID] = ci
			accountPos[e.CurrencyID] = map[string]int{}
			agg.Currencies = append(agg.Currencies, core.CurrencyAggregation{CurrencyID: e.CurrencyID})
		}
		cur := &agg.Currencies[ci]
		ai, ok := accountPos[e.CurrencyID][e.AccountID]
		if !ok {
			ai = len(cur.Accounts)
			accountPos[e.CurrencyID][e.AccountID] = ai
			cur.Accounts = append(cur.Accounts, core.AccountAggregation{
				AccountID: e.AccountID,
				Amounts:   make([]float64, len(intervals)),
			})
		}
		cur.Accounts[ai].Amounts[i] += e.Amount
	}

	for ci := range agg.Currencies {
		for ai := range agg.Currencies[ci].Accounts {
			summarize(&agg.Currencies[ci].Accounts[ai])
		}
	}
	return agg
}

// summarize fills Total and, when the previous month is nonzero, the
// percentage change of the last month against it.
func summarize(a *core.AccountAggregation) {
	var total float64
	for _, v := range a.Amounts {
		total += v
	}
	total = core.RoundCents(total)
	a.Total = &total
	n := len(a.Amounts)
	if n < 2 || a.Amounts[n-2] == 0 {
		return
	}
	change := (a.Amounts[n-1] - a.Amounts[n-2]) / math.Abs(a.Amounts[n-2]) * 100
	change = math.Round(change*10) / 10
	a.ChangePercent = &change
}
