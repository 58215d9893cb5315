package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geekbudget/internal/aggregation"
	"geekbudget/internal/amqp"
	"geekbudget/internal/core"
	"geekbudget/internal/log"
	"geekbudget/internal/sources"
	"geekbudget/internal/sources/memory"
)

var (
	nov = core.NewInterval(2025, time.November)
	dec = core.NewInterval(2025, time.December)
	// now sits in December 2025.
	now = time.Date(2025, time.December, 15, 12, 0, 0, 0, time.UTC)
)

func testSeed() sources.Seed {
	return sources.Seed{
		Accounts: []core.Account{
			{ID: "food", Name: "🍕 Food", Type: core.AccountTypeExpense},
			{ID: "rent", Name: "Rent", Type: core.AccountTypeExpense},
			{ID: "salary", Name: "Salary", Type: core.AccountTypeIncome},
		},
		Currencies: []core.Currency{{ID: "eur", Name: "Euro"}},
		Records: []core.BudgetRecord{
			{ID: "b1", AccountID: "rent", Month: nov, Amount: 900, Description: "lease"},
			{ID: "b2", AccountID: "ghost", Month: nov, Amount: 10},
		},
		Ledger: []core.LedgerEntry{
			{AccountID: "food", CurrencyID: "eur", Month: nov, Amount: 120},
			{AccountID: "rent", CurrencyID: "eur", Month: nov, Amount: 900},
			{AccountID: "food", CurrencyID: "eur", Month: dec, Amount: 80},
			{AccountID: "salary", CurrencyID: "eur", Month: dec, Amount: 3000},
		},
	}
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.BudgetChangedMessage
	err  error
}

func (p *recordingPublisher) PublishBudgetChanged(_ context.Context, msg *amqp.BudgetChangedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

// countingStore counts aggregation fetches and can hold them until released.
type countingStore struct {
	sources.Store
	expenses atomic.Int32
	gate     chan struct{}
	started  chan struct{}
	failWith error
}

func (s *countingStore) Expenses(ctx context.Context, q sources.AggregationQuery) (core.Aggregation, error) {
	s.expenses.Add(1)
	if s.started != nil {
		select {
		case s.started <- struct{}{}:
		default:
		}
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return core.Aggregation{}, ctx.Err()
		}
	}
	if s.failWith != nil {
		return core.Aggregation{}, s.failWith
	}
	return s.Store.Expenses(ctx, q)
}

func newService(t *testing.T, store sources.Store, pub EventPublisher) *ViewService {
	t.Helper()
	cfg := ViewServiceConfig{DefaultWindowMonths: 2, Now: func() time.Time { return now }}
	return NewViewService(store, pub, cfg, log.Discard())
}

func TestBudgetMatrix(t *testing.T) {
	svc := newService(t, memory.New(testSeed()), nil)

	m, err := svc.BudgetMatrix(context.Background(), MatrixRequest{})
	require.NoError(t, err)

	assert.Equal(t, []core.Interval{nov, dec}, m.Months)
	require.Len(t, m.Rows, 2)

	food, ok := m.Row("food")
	require.True(t, ok)
	novFood, _ := food.Cell(nov)
	assert.True(t, novFood.IsVirtual)
	assert.Equal(t, 120.0, novFood.Amount)
	decFood, _ := food.Cell(dec)
	assert.False(t, decFood.IsVirtual)
	assert.Equal(t, 0.0, decFood.Amount)
	assert.Equal(t, 80.0, decFood.Spent)

	rent, _ := m.Row("rent")
	novRent, _ := rent.Cell(nov)
	assert.Equal(t, "b1", novRent.BudgetItemID)
	assert.Equal(t, 900.0, novRent.Amount)
}

func TestBudgetMatrixIsCached(t *testing.T) {
	store := &countingStore{Store: memory.New(testSeed())}
	svc := newService(t, store, nil)

	for range 3 {
		_, err := svc.BudgetMatrix(context.Background(), MatrixRequest{Anchor: dec, Months: 2})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), store.expenses.Load())

	svc.Invalidate()
	_, err := svc.BudgetMatrix(context.Background(), MatrixRequest{Anchor: dec, Months: 2})
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.expenses.Load())
}

func TestBudgetMatrixDedupesConcurrentBuilds(t *testing.T) {
	store := &countingStore{
		Store:   memory.New(testSeed()),
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	svc := newService(t, store, nil)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.BudgetMatrix(context.Background(), MatrixRequest{Anchor: dec, Months: 2})
		}()
	}
	<-store.started
	time.Sleep(20 * time.Millisecond)
	close(store.gate)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), store.expenses.Load())
}

func TestBudgetMatrixSuperseded(t *testing.T) {
	store := &countingStore{
		Store:   memory.New(testSeed()),
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	svc := newService(t, store, nil)

	errc := make(chan error, 1)
	go func() {
		_, err := svc.BudgetMatrix(context.Background(), MatrixRequest{Anchor: nov, Months: 2, Scope: "tab"})
		errc <- err
	}()
	<-store.started

	// The newer request cancels the older one before it is allowed through.
	newer := make(chan error, 1)
	go func() {
		_, err := svc.BudgetMatrix(context.Background(), MatrixRequest{Anchor: dec, Months: 2, Scope: "tab"})
		newer <- err
	}()

	assert.ErrorIs(t, <-errc, ErrSuperseded)
	close(store.gate)
	assert.NoError(t, <-newer)
}

func TestBudgetMatrixStoreError(t *testing.T) {
	boom := errors.New("boom")
	store := &countingStore{Store: memory.New(testSeed()), failWith: boom}
	svc := newService(t, store, nil)

	_, err := svc.BudgetMatrix(context.Background(), MatrixRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "fetch expenses")
}

func TestAggregationTables(t *testing.T) {
	svc := newService(t, memory.New(testSeed()), nil)

	key, err := aggregation.ParseSortKey("total", "desc")
	require.NoError(t, err)
	tables, err := svc.AggregationTables(context.Background(), TableRequest{From: nov, To: dec, Sort: &key})
	require.NoError(t, err)

	require.Len(t, tables, 1)
	tbl := tables[0]
	assert.Equal(t, "eur", tbl.CurrencyID)
	assert.Equal(t, "Euro", tbl.CurrencyName)
	require.Len(t, tbl.Rows, 2, "income accounts are not expenses")
	assert.Equal(t, "rent", tbl.Rows[0].AccountID)
	assert.Equal(t, "food", tbl.Rows[1].AccountID)
}

func TestAggregationTablesDefaultsToTwelveMonths(t *testing.T) {
	svc := newService(t, memory.New(testSeed()), nil)

	tables, err := svc.AggregationTables(context.Background(), TableRequest{})
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Len(t, tables[0].Months, TableMonths)
	assert.Equal(t, dec, tables[0].Months[TableMonths-1])
}

func TestAggregationTablesRejectsInvertedRange(t *testing.T) {
	svc := newService(t, memory.New(testSeed()), nil)

	_, err := svc.AggregationTables(context.Background(), TableRequest{From: dec, To: nov})
	assert.ErrorIs(t, err, core.ErrInvalidInterval)
}

func TestSaveBudgetCell(t *testing.T) {
	t.Run("creates a record for a virtual cell", func(t *testing.T) {
		pub := &recordingPublisher{}
		svc := newService(t, memory.New(testSeed()), pub)

		res, err := svc.SaveBudgetCell(context.Background(), CellEdit{
			AccountID: "food", Month: nov, Amount: 150.004,
			View: MatrixRequest{Anchor: dec, Months: 2},
		})
		require.NoError(t, err)
		assert.True(t, res.Created)
		assert.NotEmpty(t, res.Record.ID)
		assert.Equal(t, 150.0, res.Record.Amount)

		food, _ := res.Matrix.Row("food")
		cell, _ := food.Cell(nov)
		assert.False(t, cell.IsVirtual)
		assert.Equal(t, res.Record.ID, cell.BudgetItemID)
		assert.Equal(t, 150.0, cell.Amount)

		require.Len(t, pub.msgs, 1)
		assert.Equal(t, "food", pub.msgs[0].AccountID)
		assert.True(t, pub.msgs[0].Created)
	})

	t.Run("updates the existing record and keeps its description", func(t *testing.T) {
		store := memory.New(testSeed())
		svc := newService(t, store, nil)

		res, err := svc.SaveBudgetCell(context.Background(), CellEdit{
			AccountID: "rent", Month: nov, Amount: 950,
			View: MatrixRequest{Anchor: dec, Months: 2},
		})
		require.NoError(t, err)
		assert.False(t, res.Created)
		assert.Equal(t, "b1", res.Record.ID)
		assert.Equal(t, "lease", res.Record.Description)

		rent, _ := res.Matrix.Row("rent")
		cell, _ := rent.Cell(nov)
		assert.Equal(t, 950.0, cell.Amount)
	})

	t.Run("invalidates cached views", func(t *testing.T) {
		store := &countingStore{Store: memory.New(testSeed())}
		svc := newService(t, store, nil)

		_, err := svc.BudgetMatrix(context.Background(), MatrixRequest{Anchor: dec, Months: 2})
		require.NoError(t, err)
		_, err = svc.SaveBudgetCell(context.Background(), CellEdit{
			AccountID: "food", Month: dec, Amount: 50,
			View: MatrixRequest{Anchor: dec, Months: 2},
		})
		require.NoError(t, err)
		assert.Equal(t, int32(2), store.expenses.Load())
	})

	t.Run("publish failure does not fail the save", func(t *testing.T) {
		pub := &recordingPublisher{err: errors.New("broker down")}
		svc := newService(t, memory.New(testSeed()), pub)

		_, err := svc.SaveBudgetCell(context.Background(), CellEdit{AccountID: "food", Month: dec, Amount: 10})
		assert.NoError(t, err)
	})

	tests := []struct {
		name string
		edit CellEdit
		want error
	}{
		{"negative amount", CellEdit{AccountID: "food", Month: nov, Amount: -1}, core.ErrInvalidAmount},
		{"missing month", CellEdit{AccountID: "food", Amount: 1}, core.ErrInvalidInterval},
		{"missing account", CellEdit{Month: nov, Amount: 1}, core.ErrEmptyAccount},
		{"unknown account", CellEdit{AccountID: "ghost", Month: nov, Amount: 1}, core.ErrUnknownAccount},
		{"income account", CellEdit{AccountID: "salary", Month: nov, Amount: 1}, core.ErrUnknownAccount},
		{"unknown record id", CellEdit{AccountID: "food", Month: nov, Amount: 1, BudgetItemID: "nope"}, sources.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &recordingPublisher{}
			svc := newService(t, memory.New(testSeed()), pub)

			_, err := svc.SaveBudgetCell(context.Background(), tt.edit)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, pub.msgs)
		})
	}
}

func TestSaveBudgetCellOverridesStatus(t *testing.T) {
	seed := testSeed()
	seed.Statuses = []core.BudgetStatus{{AccountID: "rent", Month: nov, Spent: 900, Available: 0, Budgeted: 900}}
	svc := newService(t, memory.New(seed), nil)

	res, err := svc.SaveBudgetCell(context.Background(), CellEdit{
		AccountID: "rent", Month: nov, Amount: 500, BudgetItemID: "b1",
		View: MatrixRequest{Anchor: dec, Months: 2},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Matrix)

	rent, _ := res.Matrix.Row("rent")
	cell, _ := rent.Cell(nov)
	assert.Equal(t, 500.0, cell.Amount)
	assert.Equal(t, 500.0, cell.RawAmount)
	assert.Equal(t, -400.0, cell.Available)
}

func TestSaveBudgetCellDoesNotReuseEarlierBuild(t *testing.T) {
	store := &countingStore{
		Store:   memory.New(testSeed()),
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	svc := newService(t, store, nil)
	view := MatrixRequest{Anchor: dec, Months: 2}

	earlier := make(chan error, 1)
	go func() {
		_, err := svc.BudgetMatrix(context.Background(), view)
		earlier <- err
	}()
	<-store.started

	saved := make(chan SaveResult, 1)
	saveErr := make(chan error, 1)
	go func() {
		res, err := svc.SaveBudgetCell(context.Background(), CellEdit{AccountID: "rent", Month: nov, Amount: 500, View: view})
		saved <- res
		saveErr <- err
	}()

	// The rebuild after the write reaches the store on its own.
	select {
	case <-store.started:
	case <-time.After(2 * time.Second):
		t.Error("rebuild joined the build that started before the write")
	}
	close(store.gate)

	require.NoError(t, <-earlier)
	res := <-saved
	require.NoError(t, <-saveErr)
	require.NotNil(t, res.Matrix)
	rent, _ := res.Matrix.Row("rent")
	cell, _ := rent.Cell(nov)
	assert.Equal(t, 500.0, cell.Amount)

	m, err := svc.BudgetMatrix(context.Background(), view)
	require.NoError(t, err)
	rent, _ = m.Row("rent")
	cell, _ = rent.Cell(nov)
	assert.Equal(t, 500.0, cell.Amount, "the earlier build must not be cached")
}

func TestSaveBudgetCellRebuildFailure(t *testing.T) {
	store := &countingStore{Store: memory.New(testSeed()), failWith: errors.New("boom")}
	pub := &recordingPublisher{}
	svc := newService(t, store, pub)

	res, err := svc.SaveBudgetCell(context.Background(), CellEdit{AccountID: "rent", Month: nov, Amount: 500})
	require.NoError(t, err, "the write already succeeded")
	assert.Nil(t, res.Matrix)
	assert.Equal(t, "b1", res.Record.ID)
	assert.Len(t, pub.msgs, 1)

	recs, err := store.ListBudgetRecords(context.Background(), nov, nov)
	require.NoError(t, err)
	for _, r := range recs {
		if r.ID == "b1" {
			assert.Equal(t, 500.0, r.Amount)
		}
	}
}
