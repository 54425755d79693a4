// Package filter narrows a record set for display and aggregation.
package filter

import (
	"strings"

	"ledger/internal/core"
)

// Criteria are AND-combined; an empty field matches everything.
type Criteria struct {
	From     string `json:"from,omitempty"` // inclusive lower date bound, ISO
	To       string `json:"to,omitempty"`   // inclusive upper date bound, ISO
	Spender  string `json:"spender,omitempty"`
	Category string `json:"category,omitempty"`
	Query    string `json:"q,omitempty"` // case-insensitive substring
}

// IsZero reports whether no criterion is set.
func (c Criteria) IsZero() bool {
	return c == Criteria{}
}

// Match reports whether e satisfies every active criterion.
// Dates compare lexically, which is chronological for ISO dates.
func (c Criteria) Match(e core.Expense) bool {
	if c.From != "" && e.Date < c.From {
		return false
	}
	if c.To != "" && e.Date > c.To {
		return false
	}
	if c.Spender != "" && e.Spender != c.Spender {
		return false
	}
	if c.Category != "" && e.Category != c.Category {
		return false
	}
	if c.Query != "" {
		haystack := strings.ToLower(strings.Join([]string{e.From, e.To, e.Category, e.Spender, e.Note}, " "))
		if !strings.Contains(haystack, strings.ToLower(c.Query)) {
			return false
		}
	}
	return true
}

// Apply returns the matching records in input order. The input is not modified.
func Apply(records []core.Expense, c Criteria) []core.Expense {
	if c.IsZero() {
		return append(make([]core.Expense, 0, len(records)), records...)
	}
	out := make([]core.Expense, 0, len(records))
	for _, e := range records {
		if c.Match(e) {
			out = append(out, e)
		}
	}
	return out
}
