package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"ledger/internal/cli"
)

type importCmd struct{}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "merge expenses from a CSV file" }
func (*importCmd) Usage() string {
	return `ledger import <file.csv | ->

  Merges the rows of a CSV export into the ledger. Rows with a known id
  replace the existing expense; rows without an id get a new one.
`
}

func (*importCmd) SetFlags(*flag.FlagSet) {}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	text, err := readInput(f.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Error reading %s: %v\n", f.Arg(0), err)
		return subcommands.ExitFailure
	}

	return withLedger(ctx, func(ctx context.Context, l *cli.Ledger) error {
		n := l.Service.ImportCSV(ctx, text)
		fmt.Fprintf(stdout, "%d imported\n", n)
		return nil
	})
}

func readInput(name string) (string, error) {
	if name == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(name)
	return string(b), err
}
