package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	MinWindowMonths = 1
	MaxWindowMonths = 12

	intervalKeyLayout  = "2006-01"
	intervalJSONLayout = "2006-01-02T15:04:05Z"
)

// Interval identifies a calendar month in UTC.
// Two intervals are equal when year and month match, whatever timestamp produced them.
type Interval struct {
	Year  int
	Month time.Month
}

// NewInterval normalizes month overflow, so NewInterval(2025, 13) is January 2026.
func NewInterval(year int, month time.Month) Interval {
	return MonthOf(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))
}

// MonthOf converts t to UTC and truncates it to its month.
func MonthOf(t time.Time) Interval {
	u := t.UTC()
	return Interval{Year: u.Year(), Month: u.Month()}
}

// CurrentMonth returns the month containing now.
func CurrentMonth(now time.Time) Interval {
	return MonthOf(now)
}

// ParseInterval accepts "2006-01", "2006-01-02" and RFC 3339 timestamps.
func ParseInterval(s string) (Interval, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Interval{}, ErrInvalidInterval
	}
	for _, layout := range []string{intervalKeyLayout, time.DateOnly, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return MonthOf(t), nil
		}
	}
	return Interval{}, fmt.Errorf("%w: %q", ErrInvalidInterval, s)
}

func (i Interval) IsZero() bool {
	return i.Year == 0 && i.Month == 0
}

// Start is the first instant of the month in UTC.
func (i Interval) Start() time.Time {
	return time.Date(i.Year, i.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the first instant of the following month.
func (i Interval) End() time.Time {
	return i.Start().AddDate(0, 1, 0)
}

func (i Interval) AddMonths(n int) Interval {
	return NewInterval(i.Year, i.Month+time.Month(n))
}

func (i Interval) Compare(o Interval) int {
	switch {
	case i.Year < o.Year:
		return -1
	case i.Year > o.Year:
		return 1
	case i.Month < o.Month:
		return -1
	case i.Month > o.Month:
		return 1
	}
	return 0
}

func (i Interval) Before(o Interval) bool { return i.Compare(o) < 0 }
func (i Interval) After(o Interval) bool  { return i.Compare(o) > 0 }

// String returns the "2006-01" key.
func (i Interval) String() string {
	return fmt.Sprintf("%04d-%02d", i.Year, int(i.Month))
}

// Label is a short human label such as "Nov 2025".
func (i Interval) Label() string {
	return i.Start().Format("Jan 2006")
}

func (i Interval) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.Start().Format(intervalJSONLayout))
}

func (i *Interval) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInterval, err)
	}
	parsed, err := ParseInterval(s)
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// ClampWindow bounds a month count to [MinWindowMonths, MaxWindowMonths].
func ClampWindow(n int) int {
	if n < MinWindowMonths {
		return MinWindowMonths
	}
	if n > MaxWindowMonths {
		return MaxWindowMonths
	}
	return n
}

// Window returns the n consecutive months ending at anchor, oldest first.
// n is clamped with ClampWindow.
func Window(anchor Interval, n int) []Interval {
	n = ClampWindow(n)
	out := make([]Interval, n)
	for k := 0; k < n; k++ {
		out[k] = anchor.AddMonths(k - n + 1)
	}
	return out
}

// MonthsBetween enumerates every month from from to to inclusive.
// It returns nil when to is before from.
func MonthsBetween(from, to Interval) []Interval {
	if to.Before(from) {
		return nil
	}
	var out []Interval
	for cur := from; !cur.After(to); cur = cur.AddMonths(1) {
		out = append(out, cur)
	}
	return out
}
