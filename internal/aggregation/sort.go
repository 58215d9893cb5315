package aggregation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type SortColumn string

const (
	SortByName  SortColumn = "name"
	SortByMonth SortColumn = "month"
	SortByTotal SortColumn = "total"
)

// SortKey selects the column rows are ordered by.
type SortKey struct {
	Column SortColumn
	// Month indexes the visible months when Column is SortByMonth.
	Month      int
	Descending bool
	// Lang drives name collation; the zero tag uses the root collation.
	Lang language.Tag
}

// ParseSortKey reads "name", "total" or "month:<index>" plus an "asc"/"desc" order.
func ParseSortKey(column, order string) (SortKey, error) {
	var key SortKey
	switch c := strings.ToLower(strings.TrimSpace(column)); {
	case c == "" || c == string(SortByName):
		key.Column = SortByName
	case c == string(SortByTotal):
		key.Column = SortByTotal
	case strings.HasPrefix(c, string(SortByMonth)+":"):
		idx, err := strconv.Atoi(strings.TrimPrefix(c, string(SortByMonth)+":"))
		if err != nil || idx < 0 {
			return SortKey{}, fmt.Errorf("invalid month sort column %q", column)
		}
		key.Column, key.Month = SortByMonth, idx
	default:
		return SortKey{}, fmt.Errorf("unknown sort column %q", column)
	}
	switch o := strings.ToLower(strings.TrimSpace(order)); o {
	case "", "asc":
	case "desc":
		key.Descending = true
	default:
		return SortKey{}, fmt.Errorf("unknown sort order %q", order)
	}
	return key, nil
}

// Sort orders rows in place. Rows with equal keys keep their relative order
// in both directions.
func Sort(rows []Row, key SortKey) {
	less := lessFunc(rows, key)
	sort.SliceStable(rows, func(i, j int) bool {
		if key.Descending {
			return less(j, i)
		}
		return less(i, j)
	})
}

func lessFunc(rows []Row, key SortKey) func(i, j int) bool {
	switch key.Column {
	case SortByTotal:
		return func(i, j int) bool { return rows[i].Total.Value < rows[j].Total.Value }
	case SortByMonth:
		value := func(r Row) float64 {
			if key.Month < 0 || key.Month >= len(r.Cells) {
				return 0
			}
			return r.Cells[key.Month].Value
		}
		return func(i, j int) bool { return value(rows[i]) < value(rows[j]) }
	default:
		col := collate.New(key.Lang)
		return func(i, j int) bool {
			return col.CompareString(StripLeadingEmoji(rows[i].AccountName), StripLeadingEmoji(rows[j].AccountName)) < 0
		}
	}
}

// StripLeadingEmoji drops leading pictographs, their modifiers and spacing.
func StripLeadingEmoji(s string) string {
	return strings.TrimLeftFunc(s, func(r rune) bool {
		switch {
		case unicode.IsSpace(r):
			return true
		case unicode.Is(unicode.So, r):
			return true
		case r == 0x200D, r == 0x20E3, r == 0xFE0F, r == 0xFE0E:
			return true
		case r >= 0x1F3FB && r <= 0x1F3FF:
			return true
		case r >= 0x1F1E6 && r <= 0x1F1FF:
			return true
		case r >= 0xE0020 && r <= 0xE007F:
			return true
		}
		return false
	})
}
