package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/subcommands"

	"ledger/internal/cli"
)

const (
	formatCSV      = "csv"
	formatWorkbook = "workbook"
)

type exportCmd struct {
	format string
	out    string
	filter criteriaFlags
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export expenses as CSV or as a report workbook" }
func (*exportCmd) Usage() string {
	return `ledger export [-format csv|workbook] [-o <file | ->] [filters]

  csv writes every expense to expenses_<date>.csv in LEDGER_EXPORT_DIR, or to -o.
  workbook writes the report sheets of the filtered expenses to an .xlsx file,
  or to Google Sheets when GOOGLE_SPREADSHEET_ID is set.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.format, "format", formatCSV, "csv or workbook")
	f.StringVar(&c.out, "o", "", "csv output file, - for stdout")
	c.filter.register(f)
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.format != formatCSV && c.format != formatWorkbook {
		fmt.Fprintf(stderr, "unknown format %q\n", c.format)
		return subcommands.ExitUsageError
	}

	return withLedger(ctx, func(ctx context.Context, l *cli.Ledger) error {
		if c.format == formatWorkbook {
			ref, err := l.Service.ExportWorkbook(ctx, c.filter.criteria())
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, ref)
			return nil
		}

		export := l.Service.ExportCSV(ctx)
		switch c.out {
		case "-":
			_, err := fmt.Fprint(stdout, export.Content)
			return err
		case "":
			c.out = filepath.Join(l.Config.ExportDir, export.Name)
		}
		if err := os.WriteFile(c.out, []byte(export.Content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", c.out, err)
		}
		fmt.Fprintln(stdout, c.out)
		return nil
	})
}
