// Package worker keeps the exported spreadsheet views current.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"geekbudget/internal/aggregation"
	"geekbudget/internal/amqp"
	"geekbudget/internal/budget"
	"geekbudget/internal/log"
	"geekbudget/internal/services"
	"geekbudget/internal/sheets"
)

// Views builds the matrix and tables that get exported.
type Views interface {
	BudgetMatrix(ctx context.Context, req services.MatrixRequest) (budget.Matrix, error)
	AggregationTables(ctx context.Context, req services.TableRequest) ([]aggregation.Table, error)
	Invalidate()
}

type ExportOptions struct {
	// Interval between periodic exports; zero disables the ticker.
	Interval   time.Duration
	Months     int
	CurrencyID string
}

// ExportWorker rebuilds the current views and writes them to an exporter,
// on every budget change and periodically.
type ExportWorker struct {
	views    Views
	exporter sheets.Exporter
	opts     ExportOptions
	logger   *log.Logger

	mu      sync.Mutex
	exports atomic.Int64
	dirty   atomic.Bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewExportWorker(views Views, exporter sheets.Exporter, opts ExportOptions, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.Default()
	}
	return &ExportWorker{
		views:    views,
		exporter: exporter,
		opts:     opts,
		logger:   logger.WithComponent(log.ComponentWorker),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// HandleBudgetChanged exports fresh views after a budget write. A failed
// export is retried by the next tick instead of requeueing the message.
func (w *ExportWorker) HandleBudgetChanged(ctx context.Context, msg *amqp.BudgetChangedMessage) error {
	w.logger.InfoContext(ctx, "Processing budget changed message",
		log.FieldAccountID, msg.AccountID,
		log.FieldMonth, msg.Month.String(),
		log.FieldBudgetItemID, msg.BudgetItemID)

	if err := w.Export(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		w.dirty.Store(true)
		w.logger.ErrorContext(ctx, "Export after budget change failed, will retry",
			log.FieldBudgetItemID, msg.BudgetItemID, log.FieldError, err)
	}
	return nil
}

// Export rebuilds both views from fresh inputs and writes them.
func (w *ExportWorker) Export(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	w.views.Invalidate()

	var (
		m      budget.Matrix
		tables []aggregation.Table
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		m, err = w.views.BudgetMatrix(gctx, services.MatrixRequest{Months: w.opts.Months, CurrencyID: w.opts.CurrencyID})
		if err != nil {
			return fmt.Errorf("build matrix: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		tables, err = w.views.AggregationTables(gctx, services.TableRequest{CurrencyID: w.opts.CurrencyID})
		if err != nil {
			return fmt.Errorf("build tables: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if err := w.exporter.WriteMatrix(ctx, m); err != nil {
		return fmt.Errorf("write matrix: %w", err)
	}
	if err := w.exporter.WriteTables(ctx, tables); err != nil {
		return fmt.Errorf("write tables: %w", err)
	}

	w.dirty.Store(false)
	n := w.exports.Add(1)
	w.logger.InfoContext(ctx, "Views exported",
		log.FieldOperation, log.OpExport,
		log.FieldRows, len(m.Rows),
		log.FieldTables, len(tables),
		log.FieldDuration, time.Since(start).Milliseconds(),
		"exports", n)
	return nil
}

// Exports is the number of successful exports.
func (w *ExportWorker) Exports() int64 {
	return w.exports.Load()
}

// Dirty reports whether the last export attempt failed.
func (w *ExportWorker) Dirty() bool {
	return w.dirty.Load()
}

// Start performs a startup export and then exports on every tick until ctx
// is done or Stop is called.
func (w *ExportWorker) Start(ctx context.Context) {
	go func() {
		defer close(w.done)

		if err := w.Export(ctx); err != nil && ctx.Err() == nil {
			w.dirty.Store(true)
			w.logger.ErrorContext(ctx, "Startup export failed", log.FieldError, err)
		}
		if w.opts.Interval <= 0 {
			select {
			case <-ctx.Done():
			case <-w.stop:
			}
			return
		}

		ticker := time.NewTicker(w.opts.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			case <-ticker.C:
				if err := w.Export(ctx); err != nil && ctx.Err() == nil {
					w.dirty.Store(true)
					w.logger.ErrorContext(ctx, "Periodic export failed", log.FieldError, err)
				}
			}
		}
	}()
}

// Stop ends the periodic loop and waits for it to exit. It must only be
// called after Start.
func (w *ExportWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}
