package sheets

import "context"

type (
	// Sheet is one tab of a workbook: a header row followed by data rows.
	Sheet struct {
		Title        string
		Header       []string
		Rows         [][]any
		ColumnWidths []float64 // in characters, optional
	}

	// Workbook is a named, ordered set of sheets ready to be written by an adapter.
	Workbook struct {
		Name   string
		Sheets []Sheet
	}
)

// Ports for outbound adapters.
type (
	// WorkbookWriter persists a workbook and returns a reference to the result
	// (a file path, a spreadsheet URL, ...).
	WorkbookWriter interface {
		WriteWorkbook(ctx context.Context, wb Workbook) (ref string, err error)
	}
)

// Values returns header and rows as a single grid.
func (s Sheet) Values() [][]any {
	out := make([][]any, 0, len(s.Rows)+1)
	if len(s.Header) > 0 {
		head := make([]any, len(s.Header))
		for i, h := range s.Header {
			head[i] = h
		}
		out = append(out, head)
	}
	return append(out, s.Rows...)
}
