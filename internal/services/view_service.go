// Package services orchestrates data fetching, view building and budget edits.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"geekbudget/internal/aggregation"
	"geekbudget/internal/amqp"
	"geekbudget/internal/budget"
	"geekbudget/internal/cache"
	"geekbudget/internal/core"
	"geekbudget/internal/log"
	"geekbudget/internal/sources"
)

// TableMonths is the default span of the aggregation tables.
const TableMonths = 12

// EventPublisher announces budget writes to other processes.
type EventPublisher interface {
	PublishBudgetChanged(ctx context.Context, msg *amqp.BudgetChangedMessage) error
}

type (
	ViewServiceConfig struct {
		CacheSize           int
		CacheTTL            time.Duration
		DefaultWindowMonths int
		DefaultCurrency     string
		// Now defaults to time.Now.
		Now func() time.Time
	}

	MatrixRequest struct {
		// Anchor is the last visible month; zero means the current month.
		Anchor     core.Interval
		Months     int
		CurrencyID string
		ShowHidden bool
		// Scope groups requests that supersede each other.
		Scope string
	}

	TableRequest struct {
		// From and To default to the TableMonths ending at the current month.
		From          core.Interval
		To            core.Interval
		CurrencyID    string
		VisibleMonths int
		ShowHidden    bool
		Sort          *aggregation.SortKey
		Scope         string
	}

	// CellEdit sets the planned amount of one account and month.
	CellEdit struct {
		AccountID string
		Month     core.Interval
		Amount    float64
		// BudgetItemID is the record behind the edited cell, if the caller knows it.
		BudgetItemID string
		Description  string
		// View is the matrix rebuilt and returned after the write.
		View MatrixRequest
	}

	// SaveResult is the stored record and the matrix rebuilt after it.
	SaveResult struct {
		Record  core.BudgetRecord
		Created bool
		// Matrix is nil when the rebuild after a successful write failed.
		Matrix *budget.Matrix
	}
)

type ViewService struct {
	store     sources.Store
	publisher EventPublisher
	logger    *log.Logger
	slog      *log.StructuredLogger
	cfg       ViewServiceConfig

	matrices *cache.LRUCache[budget.Matrix]
	tables   *cache.LRUCache[[]aggregation.Table]
	group    singleflight.Group
	inflight *Inflight

	// generation counts budget writes; builds that started before the
	// latest write are neither joined nor cached.
	genMu      sync.Mutex
	generation uint64
}

// NewViewService builds a service over store. publisher may be nil, in which
// case budget writes are not announced.
func NewViewService(store sources.Store, publisher EventPublisher, cfg ViewServiceConfig, logger *log.Logger) *ViewService {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.CacheSize < 1 {
		cfg.CacheSize = 128
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.DefaultWindowMonths == 0 {
		cfg.DefaultWindowMonths = 6
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	l := logger.WithComponent(log.ComponentBudget)
	return &ViewService{
		store:     store,
		publisher: publisher,
		logger:    l,
		slog:      log.NewStructuredLogger(l),
		cfg:       cfg,
		matrices:  cache.NewLRUCache[budget.Matrix](cfg.CacheSize, cfg.CacheTTL),
		tables:    cache.NewLRUCache[[]aggregation.Table](cfg.CacheSize, cfg.CacheTTL),
		inflight:  NewInflight(),
	}
}

// Caches exposes the view caches so a cache.Manager can clean them.
func (s *ViewService) Caches() []cache.Cleaner {
	return []cache.Cleaner{s.matrices, s.tables}
}

// CurrentMonth is the month containing the service clock's now.
func (s *ViewService) CurrentMonth() core.Interval {
	return core.CurrentMonth(s.cfg.Now())
}

func (s *ViewService) normalizeMatrix(req MatrixRequest) MatrixRequest {
	if req.Anchor.IsZero() {
		req.Anchor = s.CurrentMonth()
	}
	if req.Months == 0 {
		req.Months = s.cfg.DefaultWindowMonths
	}
	req.Months = core.ClampWindow(req.Months)
	if req.CurrencyID == "" {
		req.CurrencyID = s.cfg.DefaultCurrency
	}
	return req
}

func (s *ViewService) normalizeTables(req TableRequest) TableRequest {
	if req.To.IsZero() {
		req.To = s.CurrentMonth()
	}
	if req.From.IsZero() {
		req.From = req.To.AddMonths(-(TableMonths - 1))
	}
	if req.CurrencyID == "" {
		req.CurrencyID = s.cfg.DefaultCurrency
	}
	return req
}

func (s *ViewService) currentGeneration() uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generation
}

// storeIfCurrent runs set unless a write happened since gen was read.
func (s *ViewService) storeIfCurrent(gen uint64, set func()) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if gen != s.generation {
		return false
	}
	set()
	return true
}

func flightKey(key string, gen uint64) string {
	return key + "|g" + strconv.FormatUint(gen, 10)
}

// matrixKey includes the current month since virtuality depends on it.
func matrixKey(req MatrixRequest, current core.Interval) string {
	return strings.Join([]string{
		"matrix", req.Anchor.String(), strconv.Itoa(req.Months), req.CurrencyID,
		strconv.FormatBool(req.ShowHidden), current.String(),
	}, "|")
}

func tableKey(req TableRequest) string {
	sortKey := "-"
	if req.Sort != nil {
		sortKey = fmt.Sprintf("%s:%d:%t:%s", req.Sort.Column, req.Sort.Month, req.Sort.Descending, req.Sort.Lang)
	}
	return strings.Join([]string{
		"tables", req.From.String(), req.To.String(), req.CurrencyID,
		strconv.Itoa(req.VisibleMonths), strconv.FormatBool(req.ShowHidden), sortKey,
	}, "|")
}

// BudgetMatrix returns the matrix for req, served from cache when possible.
func (s *ViewService) BudgetMatrix(ctx context.Context, req MatrixRequest) (budget.Matrix, error) {
	req = s.normalizeMatrix(req)
	current := s.CurrentMonth()
	key := matrixKey(req, current)
	gen := s.currentGeneration()
	if m, ok := s.matrices.Get(key); ok {
		return m, nil
	}

	ctx, done := s.inflight.Begin(ctx, req.Scope, key)
	defer done()

	m, shared, err := share(ctx, &s.group, flightKey(key, gen), func(ctx context.Context) (budget.Matrix, error) {
		return s.buildMatrix(ctx, req, current)
	})
	if err != nil {
		return budget.Matrix{}, supersededErr(ctx, err)
	}
	cached := s.storeIfCurrent(gen, func() { s.matrices.Set(key, m) })
	s.logger.DebugContext(ctx, "Budget matrix ready",
		log.FieldRows, len(m.Rows), log.FieldShared, shared, log.FieldScope, req.Scope, "cached", cached)
	return m, nil
}

func (s *ViewService) buildMatrix(ctx context.Context, req MatrixRequest, current core.Interval) (budget.Matrix, error) {
	window := core.Window(req.Anchor, req.Months)
	from, to := window[0], window[len(window)-1]

	var (
		accounts []core.Account
		records  []core.BudgetRecord
		statuses []core.BudgetStatus
		agg      core.Aggregation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		accounts, err = s.store.ListAccounts(gctx)
		return wrap("list accounts", err)
	})
	g.Go(func() (err error) {
		records, err = s.store.ListBudgetRecords(gctx, from, to)
		return wrap("list budget records", err)
	})
	g.Go(func() (err error) {
		statuses, err = s.store.ListBudgetStatus(gctx, from, to, req.CurrencyID)
		return wrap("list budget status", err)
	})
	g.Go(func() (err error) {
		agg, err = s.store.Expenses(gctx, sources.AggregationQuery{From: from, To: to, CurrencyID: req.CurrencyID})
		return wrap("fetch expenses", err)
	})
	if err := g.Wait(); err != nil {
		return budget.Matrix{}, err
	}
	if err := ctx.Err(); err != nil {
		return budget.Matrix{}, err
	}

	for _, r := range budget.OrphanRecords(accounts, records) {
		s.logger.WarnContext(ctx, "Budget record references unknown account",
			log.FieldBudgetItemID, r.ID, log.FieldAccountID, r.AccountID, log.FieldMonth, r.Month.String())
	}

	start := time.Now()
	m := budget.Build(budget.MatrixInput{
		Accounts:   accounts,
		Window:     window,
		Current:    current,
		Records:    records,
		Statuses:   statuses,
		Spend:      budget.SpendFromAggregation(agg, req.CurrencyID),
		ShowHidden: req.ShowHidden,
	})
	s.logger.DebugContext(ctx, "Budget matrix built",
		log.NewFields().WithWindow(from.String(), to.String(), req.CurrencyID, req.Months).WithOperation(log.OpBuildMatrix).ToSlice()...)
	s.logger.DebugContext(ctx, "Budget matrix timing", log.FieldDuration, time.Since(start).Milliseconds())
	return m, nil
}

// AggregationTables returns the heat graded tables for req.
func (s *ViewService) AggregationTables(ctx context.Context, req TableRequest) ([]aggregation.Table, error) {
	req = s.normalizeTables(req)
	if req.To.Before(req.From) {
		return nil, fmt.Errorf("%w: to %s is before from %s", core.ErrInvalidInterval, req.To, req.From)
	}
	key := tableKey(req)
	gen := s.currentGeneration()
	if t, ok := s.tables.Get(key); ok {
		return t, nil
	}

	ctx, done := s.inflight.Begin(ctx, req.Scope, key)
	defer done()

	tables, shared, err := share(ctx, &s.group, flightKey(key, gen), func(ctx context.Context) ([]aggregation.Table, error) {
		return s.buildTables(ctx, req)
	})
	if err != nil {
		return nil, supersededErr(ctx, err)
	}
	cached := s.storeIfCurrent(gen, func() { s.tables.Set(key, tables) })
	s.logger.DebugContext(ctx, "Aggregation tables ready",
		log.FieldTables, len(tables), log.FieldShared, shared, log.FieldScope, req.Scope, "cached", cached)
	return tables, nil
}

func (s *ViewService) buildTables(ctx context.Context, req TableRequest) ([]aggregation.Table, error) {
	var (
		accounts   []core.Account
		currencies []core.Currency
		agg        core.Aggregation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		accounts, err = s.store.ListAccounts(gctx)
		return wrap("list accounts", err)
	})
	g.Go(func() (err error) {
		currencies, err = s.store.ListCurrencies(gctx)
		return wrap("list currencies", err)
	})
	g.Go(func() (err error) {
		agg, err = s.store.Expenses(gctx, sources.AggregationQuery{From: req.From, To: req.To, CurrencyID: req.CurrencyID})
		return wrap("fetch expenses", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tables := aggregation.Build(aggregation.Input{
		Aggregation:   agg,
		Accounts:      accounts,
		Currencies:    currencies,
		VisibleMonths: req.VisibleMonths,
		ShowHidden:    req.ShowHidden,
		Sort:          req.Sort,
	})
	s.logger.DebugContext(ctx, "Aggregation tables built",
		log.NewFields().WithWindow(req.From.String(), req.To.String(), req.CurrencyID, req.VisibleMonths).WithOperation(log.OpBuildTables).ToSlice()...)
	return tables, nil
}

// SaveBudgetCell writes the planned amount of one cell, then rebuilds the
// whole matrix from the refreshed records. Once the write succeeded the
// error is nil; a failed rebuild leaves Matrix nil.
func (s *ViewService) SaveBudgetCell(ctx context.Context, edit CellEdit) (SaveResult, error) {
	if edit.Amount < 0 {
		return SaveResult{}, core.ErrInvalidAmount
	}
	if edit.Month.IsZero() {
		return SaveResult{}, core.ErrInvalidInterval
	}
	if strings.TrimSpace(edit.AccountID) == "" {
		return SaveResult{}, core.ErrEmptyAccount
	}

	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return SaveResult{}, fmt.Errorf("list accounts: %w", err)
	}
	acc, ok := core.AccountsByID(accounts)[edit.AccountID]
	if !ok || !acc.IsExpense() {
		return SaveResult{}, fmt.Errorf("%w: %s", core.ErrUnknownAccount, edit.AccountID)
	}

	cell := budget.Cell{Month: edit.Month, BudgetItemID: edit.BudgetItemID}
	description := edit.Description
	if cell.BudgetItemID == "" {
		existing, err := s.store.ListBudgetRecords(ctx, edit.Month, edit.Month)
		if err != nil {
			return SaveResult{}, fmt.Errorf("list budget records: %w", err)
		}
		// First match wins, as in the matrix.
		for _, r := range existing {
			if r.AccountID == edit.AccountID && r.Month == edit.Month {
				cell.BudgetItemID = r.ID
				if description == "" {
					description = r.Description
				}
				break
			}
		}
	}

	rec := budget.EditRecord(budget.Row{Account: acc}, cell, core.RoundCents(edit.Amount))
	rec.Description = description
	created := rec.ID == ""

	saved, err := s.store.SaveBudgetRecord(ctx, rec)
	if err != nil {
		s.slog.LogError(ctx, "Failed to save budget cell", err, log.OpSaveCell,
			log.NewFields().WithCell(edit.AccountID, edit.Month.String(), edit.Amount))
		return SaveResult{}, fmt.Errorf("save budget record: %w", err)
	}
	s.Invalidate()
	s.slog.LogCellSaved(ctx, saved.AccountID, saved.Month.String(), saved.Amount, saved.ID, created)

	if err := s.publish(ctx, amqp.NewBudgetChangedMessage(saved, created)); err != nil {
		// The write already succeeded; subscribers catch up on their next export.
		s.logger.ErrorContext(ctx, "Failed to publish budget changed message",
			log.FieldBudgetItemID, saved.ID, log.FieldError, err)
	}

	view := edit.View
	view.Scope = ""
	res := SaveResult{Record: saved, Created: created}
	m, err := s.BudgetMatrix(ctx, view)
	if err != nil {
		s.slog.LogError(ctx, "Failed to rebuild matrix after save", err, log.OpBuildMatrix,
			log.NewFields().WithCell(saved.AccountID, saved.Month.String(), saved.Amount))
		return res, nil
	}
	res.Matrix = &m
	return res, nil
}

// Invalidate drops every memoized view and retires in-flight builds.
func (s *ViewService) Invalidate() {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.generation++
	s.matrices.Purge()
	s.tables.Purge()
}

func (s *ViewService) publish(ctx context.Context, msg *amqp.BudgetChangedMessage) error {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping budget changed message")
		return nil
	}
	return s.publisher.PublishBudgetChanged(ctx, msg)
}

// share runs build through the singleflight group. A joined build that was
// cancelled by its own caller is retried with ctx.
func share[T any](ctx context.Context, g *singleflight.Group, key string, build func(context.Context) (T, error)) (T, bool, error) {
	v, err, shared := singleflightBuild(ctx, g, key, func(ctx context.Context) (any, error) {
		return build(ctx)
	})
	if err != nil {
		if shared && ctx.Err() == nil && errors.Is(err, context.Canceled) {
			out, err := build(ctx)
			return out, false, err
		}
		var zero T
		return zero, shared, err
	}
	return v.(T), shared, nil
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
