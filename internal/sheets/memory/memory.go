// Package memory keeps the last exported views in process. It stands in for
// Google Sheets when no spreadsheet is configured.
package memory

import (
	"context"
	"sync"

	"geekbudget/internal/aggregation"
	"geekbudget/internal/budget"
	"geekbudget/internal/sheets"
)

var _ sheets.Exporter = (*Writer)(nil)

type Writer struct {
	mu           sync.RWMutex
	matrix       budget.Matrix
	tables       []aggregation.Table
	matrixWrites int
	tablesWrites int
}

func New() *Writer {
	return &Writer{}
}

func (w *Writer) WriteMatrix(ctx context.Context, m budget.Matrix) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.matrix = m
	w.matrixWrites++
	return nil
}

func (w *Writer) WriteTables(ctx context.Context, tables []aggregation.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tables = append([]aggregation.Table(nil), tables...)
	w.tablesWrites++
	return nil
}

// Matrix returns the last written matrix and how many writes happened.
func (w *Writer) Matrix() (budget.Matrix, int) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.matrix, w.matrixWrites
}

// Tables returns the last written tables and how many writes happened.
func (w *Writer) Tables() ([]aggregation.Table, int) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]aggregation.Table(nil), w.tables...), w.tablesWrites
}
