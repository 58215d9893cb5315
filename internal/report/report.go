// Package report renders views as aligned terminal tables.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"geekbudget/internal/aggregation"
	"geekbudget/internal/budget"
	"geekbudget/internal/core"
	"geekbudget/internal/heat"
)

const (
	colorReset = "\033[0m"
	colorBold  = "\033[1m"
	colorDim   = "\033[2m"
	// Account names wider than this are truncated.
	maxNameWidth = 28
)

type Options struct {
	// Color paints heat grades as 24-bit ANSI backgrounds.
	Color bool
}

type cell struct {
	text  string
	bg    *heat.Color
	style string
}

type grid struct {
	rows   [][]cell
	breaks map[int]bool
}

func (g *grid) add(cells ...cell) {
	g.rows = append(g.rows, cells)
}

// separator draws a horizontal rule before the next row.
func (g *grid) separator() {
	if g.breaks == nil {
		g.breaks = map[int]bool{}
	}
	g.breaks[len(g.rows)] = true
}

func text(s string) cell { return cell{text: s} }

func amount(v float64) cell { return cell{text: core.FormatAmount(v)} }

func graded(v aggregation.ValueCell) cell {
	c := v.Color
	return cell{text: core.FormatAmount(v.Value), bg: &c}
}

// RenderMatrix writes the budget matrix, one planned/spent pair per month.
// Virtual amounts are marked with a tilde.
func RenderMatrix(w io.Writer, m budget.Matrix, opts Options) error {
	var g grid
	header := []cell{text("Account")}
	for _, month := range m.Months {
		style := ""
		if len(m.Rows) > 0 && len(m.Rows[0].Cells) > 0 {
			if c, ok := m.Rows[0].Cell(month); ok && c.IsCurrentMonth {
				style = colorBold
			}
		}
		header = append(header, cell{text: month.Label(), style: style}, text("spent"))
	}
	header = append(header, text("Planned"), text("Spent"), text("Avg spent"))
	g.add(header...)
	g.separator()

	for _, r := range m.Rows {
		line := []cell{text(truncate(r.Account.Name))}
		for _, c := range r.Cells {
			planned := amount(c.Amount)
			if c.IsVirtual {
				planned.text = "~" + planned.text
				planned.style = colorDim
			}
			line = append(line, planned, amount(c.Spent))
		}
		line = append(line, amount(r.TotalPlanned), amount(r.TotalSpent), amount(r.AverageSpent))
		g.add(line...)
	}

	g.separator()
	totals := []cell{text("Total")}
	for _, ct := range m.ColumnTotals {
		totals = append(totals, amount(ct.Planned), amount(ct.Spent))
	}
	totals = append(totals, amount(m.GrandTotal.Planned), amount(m.GrandTotal.Spent), text(""))
	g.add(totals...)

	return g.render(w, opts)
}

// RenderTables writes each currency table with its heat grades.
func RenderTables(w io.Writer, tables []aggregation.Table, opts Options) error {
	if len(tables) == 0 {
		_, err := fmt.Fprintln(w, "No expenses in range.")
		return err
	}
	for i, t := range tables {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s (%s)\n", t.CurrencyName, t.CurrencyID); err != nil {
			return err
		}

		var g grid
		header := []cell{text("Account")}
		for _, m := range t.Months {
			header = append(header, text(m.Label()))
		}
		g.add(append(header, text("Total"))...)
		g.separator()

		for _, r := range t.Rows {
			line := []cell{text(truncate(r.AccountName))}
			for _, c := range r.Cells {
				line = append(line, graded(c))
			}
			g.add(append(line, graded(r.Total))...)
		}

		g.separator()
		totals := []cell{text("Total")}
		for _, c := range t.TotalRow.Cells {
			totals = append(totals, graded(c))
		}
		g.add(append(totals, graded(t.TotalRow.GrandTotal))...)

		if err := g.render(w, opts); err != nil {
			return err
		}
	}
	return nil
}

func truncate(name string) string {
	return runewidth.Truncate(name, maxNameWidth, "…")
}

func (g *grid) widths() []int {
	var widths []int
	for _, row := range g.rows {
		for i, c := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if n := runewidth.StringWidth(c.text); n > widths[i] {
				widths[i] = n
			}
		}
	}
	return widths
}

// render left aligns the first column and right aligns the amounts.
func (g *grid) render(w io.Writer, opts Options) error {
	widths := g.widths()
	rule := make([]string, len(widths))
	for i, n := range widths {
		rule[i] = strings.Repeat("─", n)
	}

	var b strings.Builder
	for ri, row := range g.rows {
		if g.breaks[ri] && ri > 0 {
			b.WriteString(strings.Join(rule, "─┼─"))
			b.WriteByte('\n')
		}
		for i, c := range row {
			if i > 0 {
				b.WriteString(" │ ")
			}
			var padded string
			if i == 0 {
				padded = runewidth.FillRight(c.text, widths[i])
			} else {
				padded = runewidth.FillLeft(c.text, widths[i])
			}
			b.WriteString(paint(padded, c, opts))
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func paint(s string, c cell, opts Options) string {
	if !opts.Color {
		return s
	}
	prefix := c.style
	if c.bg != nil && *c.bg != heat.White {
		o := c.bg.Opaque()
		prefix += fmt.Sprintf("\033[48;2;%d;%d;%dm\033[38;2;0;0;0m", o.R, o.G, o.B)
	}
	if prefix == "" {
		return s
	}
	return prefix + s + colorReset
}
