// Package sheets declares the export targets for built views.
package sheets

import (
	"context"

	"geekbudget/internal/aggregation"
	"geekbudget/internal/budget"
)

// Ports for outbound adapters.
type (
	// MatrixWriter replaces the exported budget matrix.
	MatrixWriter interface {
		WriteMatrix(ctx context.Context, m budget.Matrix) error
	}

	// TableWriter replaces the exported heat graded tables.
	TableWriter interface {
		WriteTables(ctx context.Context, tables []aggregation.Table) error
	}

	Exporter interface {
		MatrixWriter
		TableWriter
	}
)
