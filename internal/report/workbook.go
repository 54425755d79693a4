package report

import (
	"fmt"

	"ledger/internal/core"
	"ledger/internal/sheets"
)

// Column widths of the raw expenses sheet, in characters.
var expenseColumnWidths = []float64{10, 14, 18, 16, 10, 12, 30}

// BuildWorkbook lays out the four export sheets for a filtered record set:
// raw rows, spender totals, category totals and monthly totals.
func BuildWorkbook(records []core.Expense, l Labels, today string) sheets.Workbook {
	raw := sheets.Sheet{
		Title:        l.SheetExpenses,
		Header:       []string{l.Date, l.From, l.To, l.Category, l.Amount, l.Spender, l.Note},
		ColumnWidths: expenseColumnWidths,
		Rows:         make([][]any, 0, len(records)),
	}
	for _, e := range records {
		raw.Rows = append(raw.Rows, []any{e.Date, e.From, e.To, e.Category, e.Amount.InexactFloat64(), e.Spender, e.Note})
	}

	return sheets.Workbook{
		Name: WorkbookName(today),
		Sheets: []sheets.Sheet{
			raw,
			totalsSheet(l.SheetBySpender, l.Name, l.Amount, GroupTotals(records, BySpender, l.Unspecified)),
			totalsSheet(l.SheetByCategory, l.Category, l.Amount, GroupTotals(records, ByCategory, l.Uncategorized)),
			monthsSheet(l, MonthlyTotals(records)),
		},
	}
}

func totalsSheet(title, keyHeader, amountHeader string, totals []core.Total) sheets.Sheet {
	s := sheets.Sheet{Title: title, Header: []string{keyHeader, amountHeader}, Rows: make([][]any, 0, len(totals))}
	for _, t := range totals {
		s.Rows = append(s.Rows, []any{t.Label, t.Amount.InexactFloat64()})
	}
	return s
}

func monthsSheet(l Labels, months []core.MonthTotal) sheets.Sheet {
	s := sheets.Sheet{Title: l.SheetByMonth, Header: []string{l.Month, l.Total}, Rows: make([][]any, 0, len(months))}
	for _, m := range months {
		s.Rows = append(s.Rows, []any{m.Month, m.Amount.InexactFloat64()})
	}
	return s
}

// WorkbookName is the suggested file name of a workbook exported on today.
func WorkbookName(today string) string {
	return fmt.Sprintf("expenses_%s.xlsx", today)
}

// CSVName is the suggested file name of a CSV export made on today.
func CSVName(today string) string {
	return fmt.Sprintf("expenses_%s.csv", today)
}
