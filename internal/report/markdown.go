package report

import (
	"fmt"
	"sort"
	"strings"

	"ledger/internal/core"
)

// Markdown renders a summary of records as GitHub-flavoured markdown tables,
// suitable for a terminal renderer. Totals are ordered by amount, largest first.
func Markdown(records []core.Expense, l Labels, currency string) string {
	var b strings.Builder
	money := func(t core.Total) string { return core.FormatMoney(t.Amount, currency) }

	fmt.Fprintf(&b, "# %s: %s\n\n", l.Total, core.FormatMoney(GrandTotal(records), currency))

	writeTotals(&b, l.SheetBySpender, l.Name, l.Amount, byAmountDesc(GroupTotals(records, BySpender, l.Unspecified)), money)
	writeTotals(&b, l.SheetByCategory, l.Category, l.Amount, byAmountDesc(GroupTotals(records, ByCategory, l.Uncategorized)), money)

	fmt.Fprintf(&b, "## %s\n\n| %s | %s |\n|---|---:|\n", l.SheetByMonth, l.Month, l.Total)
	for _, m := range MonthlyTotals(records) {
		fmt.Fprintf(&b, "| %s | %s |\n", m.Month, core.FormatMoney(m.Amount, currency))
	}
	b.WriteString("\n")

	p := SpenderMonthPivot(records)
	if len(p.Spenders) > 0 {
		fmt.Fprintf(&b, "## %s / %s\n\n| %s |", l.Month, l.Spender, l.Month)
		for _, s := range p.Spenders {
			fmt.Fprintf(&b, " %s |", escapeCell(s))
		}
		b.WriteString("\n|---|" + strings.Repeat("---:|", len(p.Spenders)) + "\n")
		for _, row := range p.Rows {
			fmt.Fprintf(&b, "| %s |", row.Month)
			for _, c := range row.Cells {
				fmt.Fprintf(&b, " %s |", core.FormatMoney(c, currency))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func writeTotals(b *strings.Builder, title, keyHeader, amountHeader string, totals []core.Total, money func(core.Total) string) {
	fmt.Fprintf(b, "## %s\n\n| %s | %s |\n|---|---:|\n", title, keyHeader, amountHeader)
	for _, t := range totals {
		fmt.Fprintf(b, "| %s | %s |\n", escapeCell(t.Label), money(t))
	}
	b.WriteString("\n")
}

func byAmountDesc(totals []core.Total) []core.Total {
	sort.SliceStable(totals, func(i, j int) bool {
		return totals[i].Amount.GreaterThan(totals[j].Amount)
	})
	return totals
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// RecordsMarkdown renders records as one markdown table with a trailing
// count and total line. The id column is kept so rows can be edited.
func RecordsMarkdown(records []core.Expense, l Labels, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "| id | %s | %s | %s | %s | %s | %s | %s |\n", l.Date, l.From, l.To, l.Category, l.Amount, l.Spender, l.Note)
	b.WriteString("|---|---|---|---|---|---:|---|---|\n")
	for _, e := range records {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s |\n",
			escapeCell(e.ID), e.Date, escapeCell(e.From), escapeCell(e.To), escapeCell(e.Category),
			core.FormatMoney(e.Amount, currency), escapeCell(e.Spender), escapeCell(e.Note))
	}
	fmt.Fprintf(&b, "\n%d · %s: %s\n", len(records), l.Total, core.FormatMoney(GrandTotal(records), currency))
	return b.String()
}
