package budget

import "geekbudget/internal/core"

type (
	// Spend maps account id to month to the actual amount spent.
	Spend map[string]map[core.Interval]float64

	MatrixInput struct {
		Accounts []core.Account
		Window   []core.Interval
		// Current is the month containing "now", compared by year and month.
		Current    core.Interval
		Records    []core.BudgetRecord
		Statuses   []core.BudgetStatus
		Spend      Spend
		ShowHidden bool
	}

	// Cell is one account and month of the matrix.
	Cell struct {
		Month          core.Interval `json:"month"`
		Amount         float64       `json:"amount"`
		RawAmount      float64       `json:"rawAmount"`
		Spent          float64       `json:"spent"`
		Available      float64       `json:"available"`
		BudgetItemID   string        `json:"budgetItemId,omitempty"`
		IsVirtual      bool          `json:"isVirtual"`
		IsPastMonth    bool          `json:"isPastMonth"`
		IsCurrentMonth bool          `json:"isCurrentMonth"`
	}

	// Row is one expense account across the window.
	Row struct {
		Account      core.Account `json:"account"`
		Cells        []Cell       `json:"cells"`
		TotalPlanned float64      `json:"totalPlanned"`
		TotalSpent   float64      `json:"totalSpent"`
		AverageSpent float64      `json:"averageSpent"`
	}

	ColumnTotal struct {
		Month   core.Interval `json:"month"`
		Planned float64       `json:"planned"`
		Spent   float64       `json:"spent"`
	}

	Totals struct {
		Planned float64 `json:"planned"`
		Spent   float64 `json:"spent"`
	}

	// Matrix is the budget view over a window of months.
	Matrix struct {
		Months       []core.Interval `json:"months"`
		Rows         []Row           `json:"rows"`
		ColumnTotals []ColumnTotal   `json:"columnTotals"`
		GrandTotal   Totals          `json:"grandTotal"`
	}
)

type cellKey struct {
	account string
	month   core.Interval
}

// SpendFromAggregation extracts per account spending for one currency.
// An empty currencyID selects the first currency block.
func SpendFromAggregation(agg core.Aggregation, currencyID string) Spend {
	out := Spend{}
	var block core.CurrencyAggregation
	switch {
	case currencyID == "" && len(agg.Currencies) > 0:
		block = agg.Currencies[0]
	default:
		var ok bool
		if block, ok = agg.Currency(currencyID); !ok {
			return out
		}
	}
	for _, acc := range block.Accounts {
		months := out[acc.AccountID]
		if months == nil {
			months = map[core.Interval]float64{}
			out[acc.AccountID] = months
		}
		for i, iv := range agg.Intervals {
			months[iv] += acc.Amount(i)
		}
	}
	return out
}

// Build assembles the matrix. It never fails: missing spend is zero and
// records for accounts outside the catalog are ignored.
func Build(in MatrixInput) Matrix {
	records := make(map[cellKey]core.BudgetRecord, len(in.Records))
	for _, r := range in.Records {
		k := cellKey{r.AccountID, r.Month}
		if _, dup := records[k]; !dup {
			records[k] = r
		}
	}
	statuses := make(map[cellKey]core.BudgetStatus, len(in.Statuses))
	for _, s := range in.Statuses {
		k := cellKey{s.AccountID, s.Month}
		if _, dup := statuses[k]; !dup {
			statuses[k] = s
		}
	}

	m := Matrix{
		Months:       append([]core.Interval(nil), in.Window...),
		Rows:         []Row{},
		ColumnTotals: make([]ColumnTotal, len(in.Window)),
	}
	for i, month := range in.Window {
		m.ColumnTotals[i].Month = month
	}

	for _, acc := range in.Accounts {
		if !acc.IsExpense() || (acc.HideFromReports && !in.ShowHidden) {
			continue
		}
		row := buildRow(acc, in, records, statuses)
		for i, c := range row.Cells {
			m.ColumnTotals[i].Planned += c.Amount
			m.ColumnTotals[i].Spent += c.Spent
		}
		m.Rows = append(m.Rows, row)
	}

	for _, ct := range m.ColumnTotals {
		m.GrandTotal.Planned += ct.Planned
		m.GrandTotal.Spent += ct.Spent
	}
	return m
}

func buildRow(acc core.Account, in MatrixInput, records map[cellKey]core.BudgetRecord, statuses map[cellKey]core.BudgetStatus) Row {
	row := Row{Account: acc, Cells: make([]Cell, 0, len(in.Window))}
	for _, month := range in.Window {
		k := cellKey{acc.ID, month}
		ri := ResolveInput{
			Spent:          in.Spend[acc.ID][month],
			IsCurrentMonth: month == in.Current,
		}
		if r, ok := records[k]; ok {
			ri.Record = &r
		}
		if s, ok := statuses[k]; ok {
			ri.Status = &s
		}
		res := Resolve(ri)

		cell := Cell{
			Month:          month,
			Amount:         res.Amount,
			Spent:          res.Spent,
			Available:      res.Amount - res.Spent,
			IsVirtual:      res.IsVirtual,
			IsPastMonth:    month.Before(in.Current),
			IsCurrentMonth: ri.IsCurrentMonth,
		}
		if ri.Record != nil {
			cell.RawAmount = ri.Record.Amount
			cell.BudgetItemID = ri.Record.ID
		}
		row.Cells = append(row.Cells, cell)
		row.TotalPlanned += cell.Amount
		row.TotalSpent += cell.Spent
	}
	if n := len(row.Cells); n > 0 {
		row.AverageSpent = row.TotalSpent / float64(n)
	}
	return row
}

// Row returns the row of the given account.
func (m Matrix) Row(accountID string) (Row, bool) {
	for _, r := range m.Rows {
		if r.Account.ID == accountID {
			return r, true
		}
	}
	return Row{}, false
}

// Cell returns the cell for month.
func (r Row) Cell(month core.Interval) (Cell, bool) {
	for _, c := range r.Cells {
		if c.Month == month {
			return c, true
		}
	}
	return Cell{}, false
}

// OrphanRecords lists records whose account is missing from the catalog.
func OrphanRecords(accounts []core.Account, records []core.BudgetRecord) []core.BudgetRecord {
	known := core.AccountsByID(accounts)
	var out []core.BudgetRecord
	for _, r := range records {
		if _, ok := known[r.AccountID]; !ok {
			out = append(out, r)
		}
	}
	return out
}

// EditRecord returns the record to write when a cell's planned amount is edited.
// A cell backed by a record yields an update of that record, any other cell a
// new record. Callers rebuild the whole matrix after the write succeeds.
func EditRecord(row Row, cell Cell, amount float64) core.BudgetRecord {
	return core.BudgetRecord{
		ID:        cell.BudgetItemID,
		AccountID: row.Account.ID,
		Month:     cell.Month,
		Amount:    amount,
	}
}
