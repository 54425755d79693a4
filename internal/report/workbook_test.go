package report

import (
	"strings"
	"testing"

	"ledger/internal/core"
)

func TestBuildWorkbook(t *testing.T) {
	records := []core.Expense{
		exp("2025-02-01", "Anna", "Food", 10),
		exp("2025-01-01", "", "Rent", 5),
	}
	records[0].Note = "n"

	wb := BuildWorkbook(records, LabelsFor("ru"), "2025-02-03")
	if wb.Name != "expenses_2025-02-03.xlsx" {
		t.Fatalf("name = %q", wb.Name)
	}
	titles := []string{"Расходы", "По именам", "По категориям", "По месяцам"}
	if len(wb.Sheets) != len(titles) {
		t.Fatalf("got %d sheets", len(wb.Sheets))
	}
	for i, title := range titles {
		if wb.Sheets[i].Title != title {
			t.Errorf("sheet %d = %q, want %q", i, wb.Sheets[i].Title, title)
		}
	}

	raw := wb.Sheets[0]
	if strings.Join(raw.Header, ",") != "Дата,От,До,Категория,Сумма,Кем,Примечание" {
		t.Fatalf("raw header = %v", raw.Header)
	}
	if len(raw.ColumnWidths) != 7 || raw.ColumnWidths[6] != 30 {
		t.Fatalf("column widths = %v", raw.ColumnWidths)
	}
	if len(raw.Rows) != 2 || raw.Rows[0][0] != "2025-02-01" || raw.Rows[0][4] != 10.0 || raw.Rows[0][6] != "n" {
		t.Fatalf("raw rows = %v", raw.Rows)
	}

	payers := wb.Sheets[1]
	if len(payers.Rows) != 2 || payers.Rows[1][0] != "(не указано)" {
		t.Fatalf("payer rows = %v", payers.Rows)
	}

	months := wb.Sheets[3]
	if months.Header[1] != "Итого" || len(months.Rows) != 2 || months.Rows[0][0] != "2025-01" {
		t.Fatalf("month sheet = %+v", months)
	}
	if got := len(months.Values()); got != 3 {
		t.Fatalf("Values() rows = %d, want 3", got)
	}
}

func TestLabelsFor(t *testing.T) {
	cases := map[string]string{"ru": "ru", "RU-ru": "ru", "en_US": "en", "": "en", "fr": "en"}
	for in, want := range cases {
		if got := LabelsFor(in).Locale; got != want {
			t.Errorf("LabelsFor(%q) = %q, want %q", in, got, want)
		}
	}
	if got := Locales(); len(got) != 2 || got[0] != "en" || got[1] != "ru" {
		t.Fatalf("Locales() = %v", got)
	}
}

func TestCSVName(t *testing.T) {
	if got := CSVName("2025-01-09"); got != "expenses_2025-01-09.csv" {
		t.Fatalf("CSVName() = %q", got)
	}
}

func TestMarkdown(t *testing.T) {
	records := []core.Expense{
		exp("2025-01-01", "A|B", "Food", 3),
		exp("2025-01-02", "C", "Food", 7),
	}
	md := Markdown(records, LabelsFor("en"), "EUR")
	for _, want := range []string{"# Total: €10.00", "| A\\|B | €3.00 |", "| 2025-01 | €10.00 |", "## By spender"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Index(md, "| C |") > strings.Index(md, "| A\\|B |") {
		t.Errorf("spender totals should be ordered by amount:\n%s", md)
	}
}

func TestRecordsMarkdown(t *testing.T) {
	records := []core.Expense{exp("2025-01-02", "Anna", "Food", 7)}
	records[0].ID = "abc"
	records[0].Note = "bread | milk"

	md := RecordsMarkdown(records, LabelsFor("en"), "EUR")
	for _, want := range []string{"| id | Date |", "| abc | 2025-01-02 |", "€7.00", `bread \| milk`, "1 · Total: €7.00"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if md := RecordsMarkdown(nil, LabelsFor("en"), "EUR"); !strings.Contains(md, "0 · Total: €0.00") {
		t.Errorf("empty markdown:\n%s", md)
	}
}

func TestLocalesAreComplete(t *testing.T) {
	for _, loc := range Locales() {
		l := LabelsFor(loc)
		if l.MissingFields == "" || l.Unspecified == "" || l.SheetByMonth == "" {
			t.Errorf("locale %q has empty labels: %+v", loc, l)
		}
	}
}
