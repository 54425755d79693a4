package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"ledger/internal/cli"
	"ledger/internal/core"
)

type addCmd struct {
	fields draftFlags
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record a new expense" }
func (*addCmd) Usage() string {
	return `ledger add -amount <amount> -category <category> -spender <name> [-date <date>] [-from <from>] [-to <to>] [-note <note>]

  Records a new expense and prints its id.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	c.fields.register(f, core.Today())
}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withLedger(ctx, func(ctx context.Context, l *cli.Ledger) error {
		e, err := l.Service.Submit(ctx, c.fields.draft)
		if err != nil {
			return submitError(l, err)
		}
		fmt.Fprintln(stdout, e.ID)
		return nil
	})
}

// submitError turns a validation failure into the localized usage message.
func submitError(l *cli.Ledger, err error) error {
	for _, v := range []error{core.ErrInvalidDate, core.ErrEmptyCategory, core.ErrEmptySpender, core.ErrInvalidAmount, core.ErrZeroAmount} {
		if errors.Is(err, v) {
			return usageErrorf("%s (%v)", l.Service.Labels().MissingFields, err)
		}
	}
	return err
}
