package main

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"ledger/internal/cli"
	"ledger/internal/report"
)

type listCmd struct {
	filter criteriaFlags
	plain  bool
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list expenses, newest first" }
func (*listCmd) Usage() string {
	return `ledger list [-since <date>] [-until <date>] [-spender <name>] [-category <category>] [-q <text>] [-plain]

  Lists the expenses matching every given filter.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	c.filter.register(f)
	f.BoolVar(&c.plain, "plain", false, "print raw markdown")
}

func (c *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withLedger(ctx, func(ctx context.Context, l *cli.Ledger) error {
		records := l.Service.Records(c.filter.criteria())
		printMarkdown(report.RecordsMarkdown(records, l.Service.Labels(), l.Config.Currency), c.plain)
		return nil
	})
}
