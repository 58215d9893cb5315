// Package budget builds the budget matrix: expense accounts by months of a
// sliding window, reconciling explicit budget records with actual spending.
package budget

import "geekbudget/internal/core"

type (
	// ResolveInput describes one account and month cell.
	ResolveInput struct {
		Record *core.BudgetRecord
		// Status holds server converted figures and takes precedence when present.
		Status         *core.BudgetStatus
		Spent          float64
		IsCurrentMonth bool
	}

	// Resolution is the planned and spent amount shown in a cell.
	Resolution struct {
		Amount    float64
		Spent     float64
		IsVirtual bool
	}
)

// Resolve decides the planned amount shown in a cell.
//
// An explicit record always wins. Without one, the current month shows a
// zero plan so overspend stays visible, and any other month assumes the
// spend was the plan, flagged as virtual when something was spent.
func Resolve(in ResolveInput) Resolution {
	spent := in.Spent
	if in.Status != nil {
		spent = in.Status.Spent
	}
	switch {
	case in.Record != nil:
		amount := in.Record.Amount
		if in.Status != nil {
			amount = in.Status.Budgeted
		}
		return Resolution{Amount: amount, Spent: spent}
	case in.IsCurrentMonth:
		return Resolution{Spent: spent}
	default:
		return Resolution{Amount: spent, Spent: spent, IsVirtual: spent > 0}
	}
}
