// Package report derives totals, monthly series and the payer x month pivot
// from a record sequence. Every function is pure: inputs are never modified
// and edge inputs yield empty or zero results.
package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// Field selects the record field a group-by aggregation keys on.
type Field int

const (
	BySpender Field = iota
	ByCategory
)

func (f Field) value(e core.Expense) string {
	switch f {
	case ByCategory:
		return e.Category
	default:
		return e.Spender
	}
}

// GroupTotals sums amounts per value of field. Records with an empty key are
// reported under sentinel. Buckets appear in first-seen order; callers that
// need a particular order sort the result.
func GroupTotals(records []core.Expense, field Field, sentinel string) []core.Total {
	index := map[string]int{}
	var out []core.Total
	for _, e := range records {
		label := field.value(e)
		if label == "" {
			label = sentinel
		}
		i, ok := index[label]
		if !ok {
			i = len(out)
			index[label] = i
			out = append(out, core.Total{Label: label, Amount: decimal.Zero})
		}
		out[i].Amount = out[i].Amount.Add(e.Amount)
	}
	return out
}

// MonthlyTotals sums amounts per YYYY-MM bucket in ascending month order.
// Records whose date cannot be parsed belong to no bucket.
func MonthlyTotals(records []core.Expense) []core.MonthTotal {
	sums := map[string]decimal.Decimal{}
	for _, e := range records {
		m := core.MonthKey(e.Date)
		if m == "" {
			continue
		}
		if cur, ok := sums[m]; ok {
			sums[m] = cur.Add(e.Amount)
		} else {
			sums[m] = e.Amount
		}
	}
	months := sortedKeys(sums)
	out := make([]core.MonthTotal, len(months))
	for i, m := range months {
		out[i] = core.MonthTotal{Month: m, Amount: sums[m]}
	}
	return out
}

// SpenderMonthPivot cross-tabulates months (ascending) and spenders (lexical).
// Records without a spender or a parsable date do not appear in the pivot.
func SpenderMonthPivot(records []core.Expense) core.Pivot {
	cells := map[string]map[string]decimal.Decimal{}
	spenderSet := map[string]struct{}{}
	for _, e := range records {
		m := core.MonthKey(e.Date)
		if m == "" {
			continue
		}
		row, ok := cells[m]
		if !ok {
			row = map[string]decimal.Decimal{}
			cells[m] = row
		}
		if e.Spender == "" {
			continue
		}
		spenderSet[e.Spender] = struct{}{}
		row[e.Spender] = row[e.Spender].Add(e.Amount)
	}

	p := core.Pivot{
		Months:   sortedKeys(cells),
		Spenders: sortedKeys(spenderSet),
	}
	p.Rows = make([]core.PivotRow, len(p.Months))
	for i, m := range p.Months {
		row := core.PivotRow{Month: m, Cells: make([]decimal.Decimal, len(p.Spenders))}
		for j, s := range p.Spenders {
			row.Cells[j] = cells[m][s]
		}
		p.Rows[i] = row
	}
	return p
}

// GrandTotal sums every amount.
func GrandTotal(records []core.Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range records {
		total = total.Add(e.Amount)
	}
	return total
}

// DistinctSpenders lists the non-empty spenders in lexical order.
func DistinctSpenders(records []core.Expense) []string {
	return distinct(records, BySpender)
}

// DistinctCategories lists the non-empty categories in lexical order.
func DistinctCategories(records []core.Expense) []string {
	return distinct(records, ByCategory)
}

func distinct(records []core.Expense, field Field) []string {
	set := map[string]struct{}{}
	for _, e := range records {
		if v := field.value(e); v != "" {
			set[v] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
