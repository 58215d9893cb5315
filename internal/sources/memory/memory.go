// Package memory is an in-process store seeded from JSON files.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"geekbudget/internal/core"
	"geekbudget/internal/sources"
)

// Seed file names inside the data directory.
const (
	AccountsFile     = "accounts.json"
	CurrenciesFile   = "currencies.json"
	BudgetItemsFile  = "budget_items.json"
	LedgerFile       = "ledger.json"
	BudgetStatusFile = "budget_status.json"
)

var (
	_ sources.Store        = (*Store)(nil)
	_ sources.SeedImporter = (*Store)(nil)
)

type Store struct {
	mu         sync.Mutex
	accounts   []core.Account
	currencies []core.Currency
	records    []core.BudgetRecord
	ledger     []core.LedgerEntry
	statuses   []core.BudgetStatus
}

func New(seed sources.Seed) *Store {
	s := &Store{}
	s.load(seed)
	return s
}

// NewFromFiles loads every seed file found in base. Missing files are empty;
// malformed ones are an error.
func NewFromFiles(base string) (*Store, error) {
	seed, err := LoadSeed(base)
	if err != nil {
		return nil, err
	}
	if len(seed.Currencies) == 0 {
		seed.Currencies = []core.Currency{{ID: "eur", Name: "Euro"}}
	}
	return New(seed), nil
}

// LoadSeed reads the seed files of a data directory.
func LoadSeed(base string) (sources.Seed, error) {
	var seed sources.Seed
	files := []struct {
		name string
		dst  any
	}{
		{AccountsFile, &seed.Accounts},
		{CurrenciesFile, &seed.Currencies},
		{BudgetItemsFile, &seed.Records},
		{LedgerFile, &seed.Ledger},
		{BudgetStatusFile, &seed.Statuses},
	}
	for _, f := range files {
		if err := readJSON(filepath.Join(base, f.name), f.dst); err != nil {
			return sources.Seed{}, err
		}
	}
	return seed, nil
}

func (s *Store) ImportSeed(_ context.Context, seed sources.Seed) error {
	for _, r := range seed.Records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("budget item %q: %w", r.ID, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load(seed)
	return nil
}

func (s *Store) load(seed sources.Seed) {
	s.accounts = append([]core.Account(nil), seed.Accounts...)
	s.currencies = append([]core.Currency(nil), seed.Currencies...)
	s.records = make([]core.BudgetRecord, 0, len(seed.Records))
	for _, r := range seed.Records {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		s.records = append(s.records, r)
	}
	s.ledger = append([]core.LedgerEntry(nil), seed.Ledger...)
	s.statuses = append([]core.BudgetStatus(nil), seed.Statuses...)
}

// Snapshot returns a copy of the current contents.
func (s *Store) Snapshot() sources.Seed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sources.Seed{
		Accounts:   append([]core.Account(nil), s.accounts...),
		Currencies: append([]core.Currency(nil), s.currencies...),
		Records:    append([]core.BudgetRecord(nil), s.records...),
		Ledger:     append([]core.LedgerEntry(nil), s.ledger...),
		Statuses:   append([]core.BudgetStatus(nil), s.statuses...),
	}
}

func (s *Store) ListAccounts(_ context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Account(nil), s.accounts...), nil
}

func (s *Store) ListCurrencies(_ context.Context) ([]core.Currency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Currency(nil), s.currencies...), nil
}

func (s *Store) Expenses(_ context.Context, q sources.AggregationQuery) (core.Aggregation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sources.AggregateLedger(s.ledger, s.accounts, q), nil
}

func (s *Store) ListBudgetRecords(_ context.Context, from, to core.Interval) ([]core.BudgetRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.BudgetRecord
	for _, r := range s.records {
		if !r.Month.Before(from) && !r.Month.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

// SaveBudgetRecord appends new records and replaces existing ones in place,
// so list order stays the insertion order.
func (s *Store) SaveBudgetRecord(_ context.Context, r core.BudgetRecord) (core.BudgetRecord, error) {
	if err := r.Validate(); err != nil {
		return core.BudgetRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
		s.records = append(s.records, r)
		s.refreshStatus(r)
		return r, nil
	}
	for i := range s.records {
		if s.records[i].ID == r.ID {
			s.records[i] = r
			s.refreshStatus(r)
			return r, nil
		}
	}
	return core.BudgetRecord{}, fmt.Errorf("budget item %q: %w", r.ID, sources.ErrNotFound)
}

// refreshStatus moves the status rows of the record's cell onto the new plan.
func (s *Store) refreshStatus(r core.BudgetRecord) {
	for i := range s.statuses {
		st := &s.statuses[i]
		if st.AccountID != r.AccountID || st.Month != r.Month {
			continue
		}
		st.Budgeted = r.Amount
		st.Available = core.RoundCents(r.Amount - st.Spent)
	}
}

func (s *Store) ListBudgetStatus(_ context.Context, from, to core.Interval, currencyID string) ([]core.BudgetStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.BudgetStatus
	for _, st := range s.statuses {
		if st.Month.Before(from) || st.Month.After(to) {
			continue
		}
		if currencyID != "" && st.CurrencyID != "" && st.CurrencyID != currencyID {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

func readJSON(path string, dst any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
