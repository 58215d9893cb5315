// Package aggregation assembles heat graded, per currency expense tables
// from a monthly aggregation.
package aggregation

import (
	"geekbudget/internal/core"
	"geekbudget/internal/heat"
)

// NarrowMonths is the number of trailing months shown on narrow viewports.
const NarrowMonths = 6

type (
	// Input is the aggregation snapshot plus display options for Build.
	Input struct {
		Aggregation core.Aggregation
		Accounts    []core.Account
		Currencies  []core.Currency
		// VisibleMonths keeps the trailing months only; 0 shows all of them.
		VisibleMonths int
		ShowHidden    bool
		Sort          *SortKey
	}

	// ValueCell is an amount with its heat grade.
	ValueCell struct {
		Value float64    `json:"value"`
		Color heat.Color `json:"color"`
	}

	// Row is one account across the visible months.
	Row struct {
		AccountID   string      `json:"accountId"`
		AccountName string      `json:"accountName"`
		Image       string      `json:"image,omitempty"`
		Cells       []ValueCell `json:"cells"`
		Total       ValueCell   `json:"total"`
	}

	// TotalRow holds the column totals and the ungraded grand total.
	TotalRow struct {
		Cells      []ValueCell `json:"cells"`
		GrandTotal ValueCell   `json:"grandTotal"`
	}

	// Table is the graded view of one currency.
	Table struct {
		CurrencyID   string          `json:"currencyId"`
		CurrencyName string          `json:"currencyName"`
		Months       []core.Interval `json:"months"`
		Rows         []Row           `json:"rows"`
		TotalRow     TotalRow        `json:"totalRow"`
	}
)

// VisibleMonthCount returns how many trailing months to show.
func VisibleMonthCount(narrow bool, total int) int {
	if narrow && total > NarrowMonths {
		return NarrowMonths
	}
	return total
}

// Build returns one table per currency, in aggregation order.
func Build(in Input) []Table {
	agg := in.Aggregation
	start := 0
	if k := in.VisibleMonths; k > 0 && k < len(agg.Intervals) {
		start = len(agg.Intervals) - k
	}
	months := append([]core.Interval(nil), agg.Intervals[start:]...)
	accounts := core.AccountsByID(in.Accounts)

	tables := make([]Table, 0, len(agg.Currencies))
	for _, cur := range agg.Currencies {
		tables = append(tables, buildTable(cur, months, start, accounts, in))
	}
	return tables
}

type rawRow struct {
	account core.Account
	values  []float64
	total   float64
}

func buildTable(cur core.CurrencyAggregation, months []core.Interval, start int, accounts map[string]core.Account, in Input) Table {
	// Phase 1: every displayed value except the grand total joins one population.
	var raws []rawRow
	columns := make([]float64, len(months))
	for _, a := range cur.Accounts {
		acc, known := accounts[a.AccountID]
		if !known {
			acc = core.Account{ID: a.AccountID, Name: a.AccountID}
		}
		if acc.HideFromReports && !in.ShowHidden {
			continue
		}
		r := rawRow{account: acc, values: make([]float64, len(months))}
		nonzero := false
		for i := range months {
			v := a.Amount(start + i)
			r.values[i] = v
			r.total += v
			if v != 0 {
				nonzero = true
			}
		}
		if r.total <= 0 && !nonzero {
			continue
		}
		for i, v := range r.values {
			columns[i] += v
		}
		raws = append(raws, r)
	}

	population := make([]float64, 0, len(raws)*(len(months)+1)+len(months))
	var grand float64
	for _, r := range raws {
		population = append(population, r.values...)
		population = append(population, r.total)
	}
	for _, c := range columns {
		population = append(population, c)
		grand += c
	}

	// Phase 2: colour everything against the complete population.
	scale := heat.NewScale(population)
	grade := func(v float64) ValueCell { return ValueCell{Value: v, Color: scale.Color(v)} }

	t := Table{
		CurrencyID:   cur.CurrencyID,
		CurrencyName: core.CurrencyName(in.Currencies, cur.CurrencyID),
		Months:       months,
		Rows:         make([]Row, 0, len(raws)),
		TotalRow: TotalRow{
			Cells:      make([]ValueCell, len(columns)),
			GrandTotal: ValueCell{Value: grand, Color: heat.GrandTotal()},
		},
	}
	for _, r := range raws {
		name := r.account.Name
		if name == "" {
			name = r.account.ID
		}
		row := Row{
			AccountID:   r.account.ID,
			AccountName: name,
			Image:       r.account.Image,
			Cells:       make([]ValueCell, len(r.values)),
			Total:       grade(r.total),
		}
		for i, v := range r.values {
			row.Cells[i] = grade(v)
		}
		t.Rows = append(t.Rows, row)
	}
	for i, c := range columns {
		t.TotalRow.Cells[i] = grade(c)
	}
	if in.Sort != nil {
		Sort(t.Rows, *in.Sort)
	}
	return t
}
