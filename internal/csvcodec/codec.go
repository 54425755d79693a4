// Package csvcodec converts expense records to and from CSV text.
//
// Encoded files always carry the header id,date,from,to,category,amount,spender,note
// and quote every field. Decoding resolves columns by header name, so partial or
// reordered files still import, and it never fails: malformed rows degrade to a
// naive comma split and missing values get defaults.
package csvcodec

import (
	"strings"

	"ledger/internal/core"
)

// Columns is the fixed column order of encoded files.
var Columns = []string{"id", "date", "from", "to", "category", "amount", "spender", "note"}

// Options supplies the defaults used for values missing from a decoded row.
// Nil functions fall back to core.NewID and core.Today.
type Options struct {
	NewID func() string
	Today func() string
}

// Encode renders records as CSV text. Rows are joined by "\n" without a trailing newline.
func Encode(records []core.Expense) string {
	var b strings.Builder
	b.WriteString(strings.Join(Columns, ","))
	for _, e := range records {
		b.WriteByte('\n')
		for i, v := range fieldsOf(e) {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(v, `"`, `""`))
			b.WriteByte('"')
		}
	}
	return b.String()
}

func fieldsOf(e core.Expense) []string {
	return []string{e.ID, e.Date, e.From, e.To, e.Category, e.Amount.String(), e.Spender, e.Note}
}

// Decode parses CSV text into records. The first non-empty row is the header.
func Decode(text string, opts Options) []core.Expense {
	if opts.NewID == nil {
		opts.NewID = core.NewID
	}
	if opts.Today == nil {
		opts.Today = core.Today
	}

	rows := splitRows(text)
	if len(rows) == 0 {
		return nil
	}

	header := splitFields(rows[0])
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(h, `"`, "")))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	out := make([]core.Expense, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cols := splitFields(row)
		get := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(cols) {
				return ""
			}
			return cols[i]
		}

		e := core.Expense{
			ID:       get("id"),
			Date:     get("date"),
			From:     get("from"),
			To:       get("to"),
			Category: get("category"),
			Amount:   core.ParseAmountLenient(get("amount")),
			Spender:  get("spender"),
			Note:     get("note"),
		}
		if e.ID == "" {
			e.ID = opts.NewID()
		}
		if e.Date == "" {
			e.Date = opts.Today()
		}
		out = append(out, e)
	}
	return out
}

// splitRows breaks text into logical rows. A line break inside a quoted
// field belongs to the field; a quote only opens a field at its start.
// Blank rows are dropped and a trailing "\r" is stripped from each row.
func splitRows(text string) []string {
	var (
		rows       []string
		start      int
		inQuotes   bool
		fieldStart = true
	)
	emit := func(end int) {
		row := strings.TrimSuffix(text[start:end], "\r")
		if strings.TrimSpace(row) != "" {
			rows = append(rows, row)
		}
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inQuotes {
			if c == '"' {
				if i+1 < len(text) && text[i+1] == '"' {
					i++
					continue
				}
				inQuotes = false
			}
			continue
		}
		switch c {
		case '"':
			inQuotes = fieldStart
		case ',':
			fieldStart = true
			continue
		case '\n':
			emit(i)
			start = i + 1
			fieldStart = true
			continue
		}
		fieldStart = false
	}
	if start < len(text) {
		if inQuotes {
			// Unterminated quote: the rest is split on physical lines.
			for _, line := range strings.Split(text[start:], "\n") {
				line = strings.TrimSuffix(line, "\r")
				if strings.TrimSpace(line) != "" {
					rows = append(rows, line)
				}
			}
		} else {
			emit(len(text))
		}
	}
	return rows
}

// splitFields parses one logical row. Quoted fields keep their bytes, line
// breaks included. Malformed rows fall back to a plain comma split with
// surrounding quotes removed.
func splitFields(row string) []string {
	if fields, ok := parseFields(row); ok {
		return fields
	}
	return naiveSplit(row)
}

// parseFields reports false when a quoted field is unterminated or followed
// by anything but a comma, or when a bare quote appears in an unquoted field.
func parseFields(row string) ([]string, bool) {
	var fields []string
	i := 0
	for {
		if i < len(row) && row[i] == '"' {
			var b strings.Builder
			i++
			for {
				j := strings.IndexByte(row[i:], '"')
				if j < 0 {
					return nil, false
				}
				b.WriteString(row[i : i+j])
				i += j + 1
				if i < len(row) && row[i] == '"' {
					b.WriteByte('"')
					i++
					continue
				}
				break
			}
			fields = append(fields, b.String())
			if i == len(row) {
				return fields, true
			}
			if row[i] != ',' {
				return nil, false
			}
			i++
			continue
		}

		j := strings.IndexByte(row[i:], ',')
		field := row[i:]
		if j >= 0 {
			field = row[i : i+j]
		}
		if strings.Contains(field, `"`) {
			return nil, false
		}
		fields = append(fields, field)
		if j < 0 {
			return fields, true
		}
		i += j + 1
	}
}

func naiveSplit(row string) []string {
	parts := strings.Split(row, ",")
	for i, p := range parts {
		p = strings.TrimPrefix(p, `"`)
		p = strings.TrimSuffix(p, `"`)
		parts[i] = strings.ReplaceAll(p, `""`, `"`)
	}
	return parts
}
