package google

import (
	"math"

	"geekbudget/internal/aggregation"
	"geekbudget/internal/budget"
	"geekbudget/internal/heat"

	gsheet "google.golang.org/api/sheets/v4"
)

// fill is the background of one cell, zero based.
type fill struct {
	row, col int
	color    heat.Color
}

// matrixValues lays the matrix out with a planned and a spent column per month.
func matrixValues(m budget.Matrix) [][]any {
	header := []any{"Account"}
	for _, month := range m.Months {
		header = append(header, month.Label()+" planned", month.Label()+" spent")
	}
	header = append(header, "Total planned", "Total spent", "Average spent")

	values := [][]any{header}
	for _, r := range m.Rows {
		line := []any{r.Account.Name}
		for _, c := range r.Cells {
			line = append(line, c.Amount, c.Spent)
		}
		line = append(line, r.TotalPlanned, r.TotalSpent, r.AverageSpent)
		values = append(values, line)
	}

	totals := []any{"Total"}
	for _, ct := range m.ColumnTotals {
		totals = append(totals, ct.Planned, ct.Spent)
	}
	totals = append(totals, m.GrandTotal.Planned, m.GrandTotal.Spent, "")
	return append(values, totals)
}

// tableLayout stacks the tables vertically, one blank row apart, and
// records where each graded cell landed.
func tableLayout(tables []aggregation.Table) ([][]any, []fill) {
	var (
		values [][]any
		fills  = []fill{}
	)
	for i, t := range tables {
		if i > 0 {
			values = append(values, []any{})
		}
		values = append(values, []any{t.CurrencyName})

		header := []any{"Account"}
		for _, m := range t.Months {
			header = append(header, m.Label())
		}
		values = append(values, append(header, "Total"))

		for _, r := range t.Rows {
			row := len(values)
			line := []any{r.AccountName}
			for j, c := range r.Cells {
				line = append(line, c.Value)
				fills = append(fills, fill{row: row, col: j + 1, color: c.Color})
			}
			line = append(line, r.Total.Value)
			fills = append(fills, fill{row: row, col: len(r.Cells) + 1, color: r.Total.Color})
			values = append(values, line)
		}

		row := len(values)
		line := []any{"Total"}
		for j, c := range t.TotalRow.Cells {
			line = append(line, c.Value)
			fills = append(fills, fill{row: row, col: j + 1, color: c.Color})
		}
		line = append(line, t.TotalRow.GrandTotal.Value)
		fills = append(fills, fill{row: row, col: len(t.TotalRow.Cells) + 1, color: t.TotalRow.GrandTotal.Color})
		values = append(values, line)
	}
	return values, fills
}

// fillRequests resets the sheet background to white, then paints every
// graded cell that is not white.
func fillRequests(sheetID int64, fills []fill) []*gsheet.Request {
	reqs := []*gsheet.Request{repeatBackground(&gsheet.GridRange{SheetId: sheetID, ForceSendFields: []string{"SheetId"}}, heat.White)}
	for _, f := range fills {
		if f.color == heat.White {
			continue
		}
		reqs = append(reqs, repeatBackground(&gsheet.GridRange{
			SheetId:          sheetID,
			StartRowIndex:    int64(f.row),
			EndRowIndex:      int64(f.row + 1),
			StartColumnIndex: int64(f.col),
			EndColumnIndex:   int64(f.col + 1),
			ForceSendFields:  []string{"SheetId"},
		}, f.color))
	}
	return reqs
}

func repeatBackground(rng *gsheet.GridRange, c heat.Color) *gsheet.Request {
	return &gsheet.Request{RepeatCell: &gsheet.RepeatCellRequest{
		Range:  rng,
		Cell:   &gsheet.CellData{UserEnteredFormat: &gsheet.CellFormat{BackgroundColor: sheetColor(c)}},
		Fields: backgroundFields,
	}}
}

// sheetColor flattens c onto white, since Sheets ignores alpha.
func sheetColor(c heat.Color) *gsheet.Color {
	o := c.Opaque()
	unit := func(v uint8) float64 { return math.Round(float64(v)/255*1000) / 1000 }
	return &gsheet.Color{
		Red:             unit(o.R),
		Green:           unit(o.G),
		Blue:            unit(o.B),
		ForceSendFields: []string{"Red", "Green", "Blue"},
	}
}
