package report

import "strings"

// Labels carries the user-facing strings of reports and exports.
type Labels struct {
	Locale string

	Unspecified   string // spender sentinel
	Uncategorized string // category sentinel

	Date     string
	From     string
	To       string
	Category string
	Amount   string
	Spender  string
	Note     string
	Name     string
	Month    string
	Total    string

	SheetExpenses   string
	SheetBySpender  string
	SheetByCategory string
	SheetByMonth    string

	// MissingFields explains a rejected submit.
	MissingFields string
}

var locales = map[string]Labels{
	"en": {
		Locale:          "en",
		Unspecified:     "(unspecified)",
		Uncategorized:   "(uncategorized)",
		Date:            "Date",
		From:            "From",
		To:              "To",
		Category:        "Category",
		Amount:          "Amount",
		Spender:         "Spent by",
		Note:            "Note",
		Name:            "Name",
		Month:           "Month",
		Total:           "Total",
		SheetExpenses:   "Expenses",
		SheetBySpender:  "By spender",
		SheetByCategory: "By category",
		SheetByMonth:    "By month",
		MissingFields:   "Please fill in the date, amount, category and name (spent by).",
	},
	"ru": {
		Locale:          "ru",
		Unspecified:     "(не указано)",
		Uncategorized:   "(без категории)",
		Date:            "Дата",
		From:            "От",
		To:              "До",
		Category:        "Категория",
		Amount:          "Сумма",
		Spender:         "Кем",
		Note:            "Примечание",
		Name:            "Имя",
		Month:           "Месяц",
		Total:           "Итого",
		SheetExpenses:   "Расходы",
		SheetBySpender:  "По именам",
		SheetByCategory: "По категориям",
		SheetByMonth:    "По месяцам",
		MissingFields:   "Пожалуйста, заполните дату, сумму, категорию и имя (кем потрачено).",
	},
}

// DefaultLocale is used for unknown or empty locale names.
const DefaultLocale = "en"

// LabelsFor returns the labels of a locale such as "ru" or "en-GB".
func LabelsFor(locale string) Labels {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		locale = locale[:i]
	}
	if l, ok := locales[locale]; ok {
		return l
	}
	return locales[DefaultLocale]
}

// Locales lists the supported locale names.
func Locales() []string {
	return sortedKeys(locales)
}
