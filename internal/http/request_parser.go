// Package http provides the JSON API over the view service.
//
// This file parses and validates query strings and edit payloads.
package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"geekbudget/internal/aggregation"
	"geekbudget/internal/core"
	"geekbudget/internal/services"
)

const (
	// ScopeHeader names the view a request belongs to; a newer request in the
	// same scope supersedes an older one still in flight.
	ScopeHeader = "X-View-Scope"

	maxBodyBytes = 1 << 16
)

// ParseMatrixRequest reads anchor, months, currency and hidden.
func ParseMatrixRequest(r *http.Request) (services.MatrixRequest, error) {
	q := r.URL.Query()
	req := services.MatrixRequest{
		CurrencyID: strings.TrimSpace(q.Get("currency")),
		Scope:      scopeOf(r),
	}
	var err error
	if req.Anchor, err = parseMonthParam(q, "anchor"); err != nil {
		return req, err
	}
	if req.Months, err = parseIntParam(q, "months"); err != nil {
		return req, err
	}
	if req.Months < 0 || req.Months > core.MaxWindowMonths {
		return req, fmt.Errorf("months must be between %d and %d", core.MinWindowMonths, core.MaxWindowMonths)
	}
	req.ShowHidden = parseBool(q.Get("hidden"))
	return req, nil
}

// ParseTableRequest reads from, to, currency, narrow, months, sort, order and
// hidden. Name sorting follows lang or the Accept-Language header.
func ParseTableRequest(r *http.Request) (services.TableRequest, error) {
	q := r.URL.Query()
	req := services.TableRequest{
		CurrencyID: strings.TrimSpace(q.Get("currency")),
		ShowHidden: parseBool(q.Get("hidden")),
		Scope:      scopeOf(r),
	}
	var err error
	if req.From, err = parseMonthParam(q, "from"); err != nil {
		return req, err
	}
	if req.To, err = parseMonthParam(q, "to"); err != nil {
		return req, err
	}
	if !req.From.IsZero() && !req.To.IsZero() && req.To.Before(req.From) {
		return req, fmt.Errorf("to %s is before from %s", req.To, req.From)
	}
	if req.VisibleMonths, err = parseIntParam(q, "months"); err != nil {
		return req, err
	}
	if req.VisibleMonths < 0 {
		return req, errors.New("months must not be negative")
	}
	if parseBool(q.Get("narrow")) {
		req.VisibleMonths = aggregation.NarrowMonths
	}

	if col := q.Get("sort"); col != "" {
		key, err := aggregation.ParseSortKey(col, q.Get("order"))
		if err != nil {
			return req, err
		}
		key.Lang = requestLanguage(r)
		req.Sort = &key
	}
	return req, nil
}

type cellEditBody struct {
	AccountID    string          `json:"accountId"`
	Month        string          `json:"month"`
	Amount       json.RawMessage `json:"amount"`
	BudgetItemID string          `json:"budgetItemId"`
	Description  string          `json:"description"`
	// The view to rebuild after saving.
	Anchor     string `json:"anchor"`
	Months     int    `json:"months"`
	CurrencyID string `json:"currency"`
	ShowHidden bool   `json:"hidden"`
}

// DecodeCellEdit reads a JSON cell edit. The amount may be a number or a
// string using either decimal separator.
func DecodeCellEdit(r *http.Request) (services.CellEdit, error) {
	var body cellEditBody
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return services.CellEdit{}, fmt.Errorf("invalid request body: %w", err)
	}

	edit := services.CellEdit{
		AccountID:    sanitizeInput(body.AccountID),
		BudgetItemID: sanitizeInput(body.BudgetItemID),
		Description:  sanitizeInput(body.Description),
		View: services.MatrixRequest{
			Months:     body.Months,
			CurrencyID: sanitizeInput(body.CurrencyID),
			ShowHidden: body.ShowHidden,
		},
	}
	if edit.AccountID == "" {
		return edit, core.ErrEmptyAccount
	}
	month, err := core.ParseInterval(body.Month)
	if err != nil {
		return edit, fmt.Errorf("month: %w", err)
	}
	edit.Month = month
	if body.Anchor != "" {
		if edit.View.Anchor, err = core.ParseInterval(body.Anchor); err != nil {
			return edit, fmt.Errorf("anchor: %w", err)
		}
	}

	amount, err := parseAmountJSON(body.Amount)
	if err != nil {
		return edit, err
	}
	edit.Amount = amount
	return edit, nil
}

func parseAmountJSON(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, core.ErrInvalidAmount
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, core.ErrInvalidAmount
		}
	}
	return core.ParseAmount(text)
}

func parseMonthParam(q url.Values, name string) (core.Interval, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return core.Interval{}, nil
	}
	m, err := core.ParseInterval(v)
	if err != nil {
		return core.Interval{}, fmt.Errorf("%s: %w", name, err)
	}
	return m, nil
}

func parseIntParam(q url.Values, name string) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func scopeOf(r *http.Request) string {
	scope := sanitizeInput(r.Header.Get(ScopeHeader))
	if len(scope) > 128 {
		scope = scope[:128]
	}
	return scope
}

// requestLanguage picks the lang parameter, then the first Accept-Language tag.
func requestLanguage(r *http.Request) language.Tag {
	if v := strings.TrimSpace(r.URL.Query().Get("lang")); v != "" {
		if tag, err := language.Parse(v); err == nil {
			return tag
		}
	}
	if tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language")); err == nil && len(tags) > 0 {
		return tags[0]
	}
	return language.Und
}
