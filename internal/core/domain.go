package core

import (
	"errors"
	"strings"
)

const (
	AccountTypeExpense AccountType = "expense"
	AccountTypeIncome  AccountType = "income"
	AccountTypeAsset   AccountType = "asset"
)

// Granularity of every aggregation consumed by the view engine.
const GranularityMonth = "month"

type (
	AccountType string

	Account struct {
		ID                     string      `json:"id"`
		Name                   string      `json:"name"`
		Type                   AccountType `json:"type"`
		ShowInDashboardSummary bool        `json:"showInDashboardSummary,omitempty"`
		HideFromReports        bool        `json:"hideFromReports,omitempty"`
		Image                  string      `json:"image,omitempty"`
	}

	Currency struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}

	// BudgetRecord is an explicitly entered planned amount for one account and month.
	BudgetRecord struct {
		ID          string   `json:"id"`
		AccountID   string   `json:"accountId"`
		Month       Interval `json:"date"`
		Amount      float64  `json:"amount"`
		Description string   `json:"description,omitempty"`
	}

	// BudgetStatus carries server computed, currency converted figures for one account and month.
	BudgetStatus struct {
		AccountID  string   `json:"accountId"`
		CurrencyID string   `json:"currencyId,omitempty"`
		Month      Interval `json:"date"`
		Spent      float64  `json:"spent"`
		Available  float64  `json:"available"`
		Budgeted   float64  `json:"budgeted"`
	}

	// LedgerEntry is the amount booked on an account in one currency and month.
	LedgerEntry struct {
		AccountID  string   `json:"accountId"`
		CurrencyID string   `json:"currencyId"`
		Month      Interval `json:"date"`
		Amount     float64  `json:"amount"`
	}

	// AccountAggregation holds monthly amounts aligned with Aggregation.Intervals.
	AccountAggregation struct {
		AccountID     string    `json:"accountId"`
		Amounts       []float64 `json:"amounts"`
		Total         *float64  `json:"total,omitempty"`
		ChangePercent *float64  `json:"changePercent,omitempty"`
	}

	CurrencyAggregation struct {
		CurrencyID string               `json:"currencyId"`
		Accounts   []AccountAggregation `json:"accounts"`
	}

	Aggregation struct {
		From        Interval              `json:"from"`
		To          Interval              `json:"to"`
		Granularity string                `json:"granularity"`
		Intervals   []Interval            `json:"intervals"`
		Currencies  []CurrencyAggregation `json:"currencies"`
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidInterval = errors.New("invalid interval")
	ErrEmptyAccount    = errors.New("empty account id")
	ErrUnknownAccount  = errors.New("unknown account")
)

// IsExpense reports whether the account takes part in budgeting.
func (a Account) IsExpense() bool {
	return a.Type == AccountTypeExpense
}

// Amount returns the amount at index i, or 0 when the upstream array is short.
func (a AccountAggregation) Amount(i int) float64 {
	if i < 0 || i >= len(a.Amounts) {
		return 0
	}
	return a.Amounts[i]
}

// IntervalIndex maps every interval identity to its position in Intervals.
// On duplicates the first position wins.
func (a Aggregation) IntervalIndex() map[Interval]int {
	idx := make(map[Interval]int, len(a.Intervals))
	for i, iv := range a.Intervals {
		if _, ok := idx[iv]; !ok {
			idx[iv] = i
		}
	}
	return idx
}

// Currency returns the aggregation block for the given currency.
func (a Aggregation) Currency(id string) (CurrencyAggregation, bool) {
	for _, c := range a.Currencies {
		if c.CurrencyID == id {
			return c, true
		}
	}
	return CurrencyAggregation{}, false
}

func (r BudgetRecord) Validate() error {
	if strings.TrimSpace(r.AccountID) == "" {
		return ErrEmptyAccount
	}
	if r.Month.IsZero() {
		return ErrInvalidInterval
	}
	if r.Amount < 0 {
		return ErrInvalidAmount
	}
	if len(r.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

// AccountsByID indexes a catalog by account id.
func AccountsByID(accounts []Account) map[string]Account {
	out := make(map[string]Account, len(accounts))
	for _, a := range accounts {
		out[a.ID] = a
	}
	return out
}

// CurrencyName resolves a display name, falling back to the id.
func CurrencyName(currencies []Currency, id string) string {
	for _, c := range currencies {
		if c.ID == id && strings.TrimSpace(c.Name) != "" {
			return c.Name
		}
	}
	return id
}
