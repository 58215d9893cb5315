package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geekbudget/internal/core"
	"geekbudget/internal/sources"
)

var (
	nov = core.NewInterval(2025, time.November)
	dec = core.NewInterval(2025, time.December)
)

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "geekbudget.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testSeed() sources.Seed {
	return sources.Seed{
		Accounts: []core.Account{
			{ID: "rent", Name: "Rent", Type: core.AccountTypeExpense, HideFromReports: true},
			{ID: "food", Name: "Food", Type: core.AccountTypeExpense, Image: "cart.png"},
			{ID: "salary", Name: "Salary", Type: core.AccountTypeIncome},
		},
		Currencies: []core.Currency{{ID: "eur", Name: "Euro"}, {ID: "usd", Name: "Dollar"}},
		Records: []core.BudgetRecord{
			{ID: "b1", AccountID: "food", Month: dec, Amount: 100, Description: "groceries"},
			{ID: "b2", AccountID: "food", Month: nov, Amount: 80.5},
		},
		Ledger: []core.LedgerEntry{
			{AccountID: "food", CurrencyID: "eur", Month: nov, Amount: 30},
			{AccountID: "food", CurrencyID: "eur", Month: nov, Amount: 20},
			{AccountID: "food", CurrencyID: "eur", Month: dec, Amount: 200},
			{AccountID: "salary", CurrencyID: "eur", Month: dec, Amount: 3000},
			{AccountID: "food", CurrencyID: "usd", Month: dec, Amount: 9.99},
		},
		Statuses: []core.BudgetStatus{
			{AccountID: "food", CurrencyID: "eur", Month: dec, Spent: 210, Available: -100, Budgeted: 110},
			{AccountID: "food", Month: nov, Spent: 50, Budgeted: 80.5},
		},
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.db")
	v1, err := RunMigrations(dsn(path))
	require.NoError(t, err)
	v2, err := RunMigrations(dsn(path))
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, uint(1), v1)
}

func TestImportAndRead(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	require.NoError(t, repo.ImportSeed(ctx, testSeed()))
	require.NoError(t, repo.Ping(ctx))

	accounts, err := repo.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	assert.Equal(t, "rent", accounts[0].ID, "catalog order is preserved")
	assert.True(t, accounts[0].HideFromReports)
	assert.Equal(t, "cart.png", accounts[1].Image)
	assert.Equal(t, core.AccountTypeIncome, accounts[2].Type)

	currencies, err := repo.ListCurrencies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Currency{{ID: "eur", Name: "Euro"}, {ID: "usd", Name: "Dollar"}}, currencies)

	agg, err := repo.Expenses(ctx, sources.AggregationQuery{From: nov, To: dec})
	require.NoError(t, err)
	assert.Equal(t, []core.Interval{nov, dec}, agg.Intervals)
	require.Len(t, agg.Currencies, 2)
	eur, ok := agg.Currency("eur")
	require.True(t, ok)
	require.Len(t, eur.Accounts, 1)
	assert.Equal(t, []float64{50, 200}, eur.Accounts[0].Amounts)

	usdOnly, err := repo.Expenses(ctx, sources.AggregationQuery{From: nov, To: dec, CurrencyID: "usd"})
	require.NoError(t, err)
	require.Len(t, usdOnly.Currencies, 1)
	assert.Equal(t, 9.99, usdOnly.Currencies[0].Accounts[0].Amounts[1])

	recs, err := repo.ListBudgetRecords(ctx, nov, dec)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "b1", recs[0].ID)
	assert.Equal(t, "groceries", recs[0].Description)
	assert.Equal(t, 80.5, recs[1].Amount)

	statuses, err := repo.ListBudgetStatus(ctx, nov, dec, "eur")
	require.NoError(t, err)
	assert.Len(t, statuses, 2)
	statuses, err = repo.ListBudgetStatus(ctx, nov, dec, "usd")
	require.NoError(t, err)
	require.Len(t, statuses, 1, "only the currency agnostic status matches")
	assert.Equal(t, nov, statuses[0].Month)
}

func TestSaveBudgetRecord(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	created, err := repo.SaveBudgetRecord(ctx, core.BudgetRecord{AccountID: "food", Month: dec, Amount: 12.345})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	created.Amount = 40
	_, err = repo.SaveBudgetRecord(ctx, created)
	require.NoError(t, err)

	recs, err := repo.ListBudgetRecords(ctx, dec, dec)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 40.0, recs[0].Amount)

	_, err = repo.SaveBudgetRecord(ctx, core.BudgetRecord{ID: "nope", AccountID: "food", Month: dec})
	assert.True(t, errors.Is(err, sources.ErrNotFound))

	_, err = repo.SaveBudgetRecord(ctx, core.BudgetRecord{AccountID: "food", Month: dec, Amount: -1})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestImportSeedReplaces(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	require.NoError(t, repo.ImportSeed(ctx, testSeed()))
	require.NoError(t, repo.ImportSeed(ctx, sources.Seed{Accounts: []core.Account{{ID: "only", Name: "Only"}}}))

	accounts, err := repo.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, core.AccountTypeExpense, accounts[0].Type, "empty type defaults to expense")

	recs, err := repo.ListBudgetRecords(ctx, nov, dec)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestImportSeedRejectsInvalidRecord(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	require.NoError(t, repo.ImportSeed(ctx, testSeed()))

	bad := sources.Seed{Records: []core.BudgetRecord{{AccountID: "", Month: dec}}}
	require.Error(t, repo.ImportSeed(ctx, bad))

	accounts, err := repo.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 3, "failed import rolls back")
}

func TestSaveBudgetRecordRefreshesStatus(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	require.NoError(t, repo.ImportSeed(ctx, testSeed()))

	_, err := repo.SaveBudgetRecord(ctx, core.BudgetRecord{ID: "b1", AccountID: "food", Month: dec, Amount: 150})
	require.NoError(t, err)

	statuses, err := repo.ListBudgetStatus(ctx, dec, dec, "eur")
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, 150.0, statuses[0].Budgeted)
	assert.Equal(t, -60.0, statuses[0].Available)
	assert.Equal(t, 210.0, statuses[0].Spent)

	statuses, err = repo.ListBudgetStatus(ctx, nov, nov, "")
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, 80.5, statuses[0].Budgeted, "other cells are untouched")
}
