package core

import "github.com/shopspring/decimal"

type (
	// Total is one labeled bucket of a group-by aggregation.
	Total struct {
		Label  string          `json:"label"`
		Amount decimal.Decimal `json:"amount"`
	}

	// MonthTotal is the sum of one YYYY-MM bucket.
	MonthTotal struct {
		Month  string          `json:"month"`
		Amount decimal.Decimal `json:"amount"`
	}

	// PivotRow holds one month of the payer x month pivot, one cell per spender
	// in the order of the owning Pivot's Spenders.
	PivotRow struct {
		Month string            `json:"month"`
		Cells []decimal.Decimal `json:"cells"`
	}

	// Pivot is the payer x month cross tabulation used for stacked reporting.
	Pivot struct {
		Months   []string   `json:"months"`
		Spenders []string   `json:"spenders"`
		Rows     []PivotRow `json:"rows"`
	}
)

// Cell returns the amount for a month/spender pair, zero if either is absent.
func (p Pivot) Cell(month, spender string) decimal.Decimal {
	col := -1
	for i, s := range p.Spenders {
		if s == spender {
			col = i
			break
		}
	}
	if col < 0 {
		return decimal.Zero
	}
	for _, r := range p.Rows {
		if r.Month == month {
			return r.Cells[col]
		}
	}
	return decimal.Zero
}
