// Package xlsx writes workbooks as Office Open XML spreadsheet files.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	ports "ledger/internal/sheets"
)

var _ ports.WorkbookWriter = (*Writer)(nil)

var ErrEmptyWorkbook = errors.New("workbook has no sheets")

// Writer saves each workbook as <dir>/<workbook name>.
type Writer struct {
	dir string
}

func New(dir string) *Writer {
	return &Writer{dir: dir}
}

// WriteWorkbook saves wb and returns the written file path.
func (w *Writer) WriteWorkbook(ctx context.Context, wb ports.Workbook) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := build(wb)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(w.dir, wb.Name)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	return path, nil
}

// Encode writes wb to out as an .xlsx stream.
func Encode(out io.Writer, wb ports.Workbook) error {
	f, err := build(wb)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func build(wb ports.Workbook) (*excelize.File, error) {
	if len(wb.Sheets) == 0 {
		return nil, ErrEmptyWorkbook
	}

	f := excelize.NewFile()
	// A new file starts with one default sheet, reused for the first tab.
	first := f.GetSheetName(0)
	for i, s := range wb.Sheets {
		if i == 0 {
			if err := f.SetSheetName(first, s.Title); err != nil {
				f.Close()
				return nil, fmt.Errorf("rename sheet %q: %w", s.Title, err)
			}
		} else if _, err := f.NewSheet(s.Title); err != nil {
			f.Close()
			return nil, fmt.Errorf("add sheet %q: %w", s.Title, err)
		}
		if err := writeSheet(f, s); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeSheet(f *excelize.File, s ports.Sheet) error {
	for i, row := range s.Values() {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(s.Title, cell, &row); err != nil {
			return fmt.Errorf("write %s!%s: %w", s.Title, cell, err)
		}
	}
	for i, width := range s.ColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(s.Title, col, col, width); err != nil {
			return fmt.Errorf("set width of %s!%s: %w", s.Title, col, err)
		}
	}
	return nil
}
