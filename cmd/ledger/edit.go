package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"ledger/internal/cli"
	"ledger/internal/core"
)

type editCmd struct {
	fields draftFlags
}

func (*editCmd) Name() string     { return "edit" }
func (*editCmd) Synopsis() string { return "change fields of an expense" }
func (*editCmd) Usage() string {
	return `ledger edit [-date <date>] [-amount <amount>] [...] <id>

  Replaces the given fields of an expense; fields without a flag keep their value.
`
}

func (c *editCmd) SetFlags(f *flag.FlagSet) {
	c.fields.register(f, "")
}

func (c *editCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	id := f.Arg(0)

	return withLedger(ctx, func(ctx context.Context, l *cli.Ledger) error {
		current, ok := l.Service.Get(id)
		if !ok {
			return fmt.Errorf("no expense with id %q", id)
		}
		e, err := l.Service.Edit(ctx, id, c.fields.overlay(f, core.DraftFrom(current)))
		if err != nil {
			return submitError(l, err)
		}
		fmt.Fprintln(stdout, e.ID)
		return nil
	})
}
