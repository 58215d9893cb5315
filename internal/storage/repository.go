// Package storage is the SQLite implementation of the data ports.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"geekbudget/internal/core"
	"geekbudget/internal/sources"
)

var (
	_ sources.Store        = (*SQLiteRepository)(nil)
	_ sources.SeedImporter = (*SQLiteRepository)(nil)
)

type SQLiteRepository struct {
	db *sql.DB
}

func dsn(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dsn(dbPath))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("SQLite database ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, type, show_in_dashboard_summary, hide_from_reports, image
		FROM accounts ORDER BY position, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		var typ string
		if err := rows.Scan(&a.ID, &a.Name, &typ, &a.ShowInDashboardSummary, &a.HideFromReports, &a.Image); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Type = core.AccountType(typ)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListCurrencies(ctx context.Context) ([]core.Currency, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, description FROM currencies ORDER BY position, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list currencies: %w", err)
	}
	defer rows.Close()

	var out []core.Currency
	for rows.Next() {
		var c core.Currency
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, fmt.Errorf("scan currency: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Expenses sums monthly amounts in SQL and folds them with sources.AggregateLedger.
func (r *SQLiteRepository) Expenses(ctx context.Context, q sources.AggregationQuery) (core.Aggregation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT account_id, currency_id, month, SUM(amount_cents)
		FROM monthly_amounts
		WHERE month >= ? AND month <= ? AND (? = '' OR currency_id = ?)
		GROUP BY account_id, currency_id, month
		ORDER BY MIN(rowid)`,
		q.From.String(), q.To.String(), q.CurrencyID, q.CurrencyID)
	if err != nil {
		return core.Aggregation{}, fmt.Errorf("query monthly amounts: %w", err)
	}
	defer rows.Close()

	var entries []core.LedgerEntry
	for rows.Next() {
		var e core.LedgerEntry
		var month string
		var cents int64
		if err := rows.Scan(&e.AccountID, &e.CurrencyID, &month, &cents); err != nil {
			return core.Aggregation{}, fmt.Errorf("scan monthly amount: %w", err)
		}
		if e.Month, err = core.ParseInterval(month); err != nil {
			return core.Aggregation{}, fmt.Errorf("monthly amount for %s: %w", e.AccountID, err)
		}
		e.Amount = fromCents(cents)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return core.Aggregation{}, fmt.Errorf("iterate monthly amounts: %w", err)
	}

	accounts, err := r.ListAccounts(ctx)
	if err != nil {
		return core.Aggregation{}, err
	}
	return sources.AggregateLedger(entries, accounts, q), nil
}

func (r *SQLiteRepository) ListBudgetRecords(ctx context.Context, from, to core.Interval) ([]core.BudgetRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, month, amount_cents, description
		FROM budget_items
		WHERE month >= ? AND month <= ?
		ORDER BY rowid`, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list budget items: %w", err)
	}
	defer rows.Close()

	var out []core.BudgetRecord
	for rows.Next() {
		var rec core.BudgetRecord
		var month string
		var cents int64
		if err := rows.Scan(&rec.ID, &rec.AccountID, &month, &cents, &rec.Description); err != nil {
			return nil, fmt.Errorf("scan budget item: %w", err)
		}
		if rec.Month, err = core.ParseInterval(month); err != nil {
			return nil, fmt.Errorf("budget item %s: %w", rec.ID, err)
		}
		rec.Amount = fromCents(cents)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveBudgetRecord writes the record and moves the status rows of its cell
// onto the new plan in one transaction.
func (r *SQLiteRepository) SaveBudgetRecord(ctx context.Context, rec core.BudgetRecord) (core.BudgetRecord, error) {
	if err := rec.Validate(); err != nil {
		return core.BudgetRecord{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.BudgetRecord{}, fmt.Errorf("begin save budget item: %w", err)
	}
	defer tx.Rollback()

	created := rec.ID == ""
	if created {
		rec.ID = uuid.NewString()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO budget_items (id, account_id, month, amount_cents, description)
			VALUES (?, ?, ?, ?, ?)`,
			rec.ID, rec.AccountID, rec.Month.String(), toCents(rec.Amount), rec.Description)
		if err != nil {
			return core.BudgetRecord{}, fmt.Errorf("create budget item: %w", err)
		}
	} else {
		res, err := tx.ExecContext(ctx, `
			UPDATE budget_items
			SET account_id = ?, month = ?, amount_cents = ?, description = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			rec.AccountID, rec.Month.String(), toCents(rec.Amount), rec.Description, rec.ID)
		if err != nil {
			return core.BudgetRecord{}, fmt.Errorf("update budget item: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return core.BudgetRecord{}, fmt.Errorf("update budget item: %w", err)
		}
		if n == 0 {
			return core.BudgetRecord{}, fmt.Errorf("budget item %q: %w", rec.ID, sources.ErrNotFound)
		}
	}

	cents := toCents(rec.Amount)
	if _, err := tx.ExecContext(ctx, `
		UPDATE budget_status
		SET budgeted_cents = ?, available_cents = ? - spent_cents
		WHERE account_id = ? AND month = ?`,
		cents, cents, rec.AccountID, rec.Month.String()); err != nil {
		return core.BudgetRecord{}, fmt.Errorf("refresh budget status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.BudgetRecord{}, fmt.Errorf("commit budget item: %w", err)
	}
	msg := "Budget item updated in SQLite"
	if created {
		msg = "Budget item created in SQLite"
	}
	slog.InfoContext(ctx, msg,
		"id", rec.ID, "account_id", rec.AccountID, "month", rec.Month.String(), "amount", rec.Amount)
	return rec, nil
}

// ListBudgetStatus returns statuses for currencyID plus currency agnostic ones.
func (r *SQLiteRepository) ListBudgetStatus(ctx context.Context, from, to core.Interval, currencyID string) ([]core.BudgetStatus, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT account_id, currency_id, month, spent_cents, available_cents, budgeted_cents
		FROM budget_status
		WHERE month >= ? AND month <= ? AND (? = '' OR currency_id = '' OR currency_id = ?)
		ORDER BY rowid`, from.String(), to.String(), currencyID, currencyID)
	if err != nil {
		return nil, fmt.Errorf("list budget status: %w", err)
	}
	defer rows.Close()

	var out []core.BudgetStatus
	for rows.Next() {
		var st core.BudgetStatus
		var month string
		var spent, available, budgeted int64
		if err := rows.Scan(&st.AccountID, &st.CurrencyID, &month, &spent, &available, &budgeted); err != nil {
			return nil, fmt.Errorf("scan budget status: %w", err)
		}
		if st.Month, err = core.ParseInterval(month); err != nil {
			return nil, fmt.Errorf("budget status for %s: %w", st.AccountID, err)
		}
		st.Spent, st.Available, st.Budgeted = fromCents(spent), fromCents(available), fromCents(budgeted)
		out = append(out, st)
	}
	return out, rows.Err()
}

// ImportSeed replaces every table's contents inside one transaction.
func (r *SQLiteRepository) ImportSeed(ctx context.Context, seed sources.Seed) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"accounts", "currencies", "budget_items", "monthly_amounts", "budget_status"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for i, a := range seed.Accounts {
		typ := a.Type
		if typ == "" {
			typ = core.AccountTypeExpense
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (id, name, type, show_in_dashboard_summary, hide_from_reports, image, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.Name, string(typ), a.ShowInDashboardSummary, a.HideFromReports, a.Image, i); err != nil {
			return fmt.Errorf("insert account %q: %w", a.ID, err)
		}
	}
	for i, c := range seed.Currencies {
		if _, err := tx.ExecContext(ctx, `INSERT INTO currencies (id, name, description, position) VALUES (?, ?, ?, ?)`,
			c.ID, c.Name, c.Description, i); err != nil {
			return fmt.Errorf("insert currency %q: %w", c.ID, err)
		}
	}
	for _, rec := range seed.Records {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("budget item %q: %w", rec.ID, err)
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO budget_items (id, account_id, month, amount_cents, description) VALUES (?, ?, ?, ?, ?)`,
			rec.ID, rec.AccountID, rec.Month.String(), toCents(rec.Amount), rec.Description); err != nil {
			return fmt.Errorf("insert budget item %q: %w", rec.ID, err)
		}
	}
	for _, e := range seed.Ledger {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO monthly_amounts (account_id, currency_id, month, amount_cents) VALUES (?, ?, ?, ?)`,
			e.AccountID, e.CurrencyID, e.Month.String(), toCents(e.Amount)); err != nil {
			return fmt.Errorf("insert monthly amount for %q: %w", e.AccountID, err)
		}
	}
	for _, st := range seed.Statuses {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO budget_status (account_id, currency_id, month, spent_cents, available_cents, budgeted_cents)
			VALUES (?, ?, ?, ?, ?, ?)`,
			st.AccountID, st.CurrencyID, st.Month.String(), toCents(st.Spent), toCents(st.Available), toCents(st.Budgeted)); err != nil {
			return fmt.Errorf("insert budget status for %q: %w", st.AccountID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	slog.InfoContext(ctx, "Seed imported into SQLite",
		"accounts", len(seed.Accounts),
		"currencies", len(seed.Currencies),
		"budget_items", len(seed.Records),
		"monthly_amounts", len(seed.Ledger),
		"budget_status", len(seed.Statuses))
	return nil
}

func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}

func fromCents(c int64) float64 {
	return float64(c) / 100
}
