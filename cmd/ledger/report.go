package main

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"ledger/internal/cli"
	"ledger/internal/report"
)

type reportCmd struct {
	filter criteriaFlags
	plain  bool
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "totals by spender, category and month" }
func (*reportCmd) Usage() string {
	return `ledger report [filters] [-plain]

  Prints the grand total, per spender, per category and per month totals
  and the month by spender table of the filtered expenses.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	c.filter.register(f)
	f.BoolVar(&c.plain, "plain", false, "print raw markdown")
}

func (c *reportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withLedger(ctx, func(ctx context.Context, l *cli.Ledger) error {
		records := l.Service.Records(c.filter.criteria())
		printMarkdown(report.Markdown(records, l.Service.Labels(), l.Config.Currency), c.plain)
		return nil
	})
}
