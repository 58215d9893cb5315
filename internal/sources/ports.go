// Package sources declares the read contracts the view engine consumes and
// the shared helpers adapters use to satisfy them.
package sources

import (
	"context"
	"errors"

	"geekbudget/internal/core"
)

var ErrNotFound = errors.New("not found")

// Ports for inbound data adapters.
type (
	AggregationQuery struct {
		From core.Interval
		To   core.Interval
		// CurrencyID restricts the result to one currency; empty returns all.
		CurrencyID string
	}

	// AggregationSource supplies monthly expense amounts per currency and account.
	AggregationSource interface {
		Expenses(ctx context.Context, q AggregationQuery) (core.Aggregation, error)
	}

	AccountCatalog interface {
		ListAccounts(ctx context.Context) ([]core.Account, error)
	}

	CurrencyCatalog interface {
		ListCurrencies(ctx context.Context) ([]core.Currency, error)
	}

	BudgetRecordStore interface {
		// ListBudgetRecords returns records with from <= month <= to.
		ListBudgetRecords(ctx context.Context, from, to core.Interval) ([]core.BudgetRecord, error)
		// SaveBudgetRecord creates the record when ID is empty and updates it otherwise.
		SaveBudgetRecord(ctx context.Context, r core.BudgetRecord) (core.BudgetRecord, error)
	}

	BudgetStatusSource interface {
		ListBudgetStatus(ctx context.Context, from, to core.Interval, currencyID string) ([]core.BudgetStatus, error)
	}

	// Store is everything the view service reads and writes.
	Store interface {
		AggregationSource
		AccountCatalog
		CurrencyCatalog
		BudgetRecordStore
		BudgetStatusSource
	}

	// Seed is a full snapshot used to load a store.
	Seed struct {
		Accounts   []core.Account      `json:"accounts"`
		Currencies []core.Currency     `json:"currencies"`
		Records    []core.BudgetRecord `json:"budgetItems"`
		Ledger     []core.LedgerEntry  `json:"ledger"`
		Statuses   []core.BudgetStatus `json:"budgetStatus"`
	}

	// SeedImporter loads a snapshot into a store.
	SeedImporter interface {
		ImportSeed(ctx context.Context, s Seed) error
	}
)
