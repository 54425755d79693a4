package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"ledger/internal/cli"
)

type householdCmd struct {
	local bool
}

func (*householdCmd) Name() string     { return "household" }
func (*householdCmd) Synopsis() string { return "show or switch the shared household" }
func (*householdCmd) Usage() string {
	return `ledger household [-local | <name>]

  Without arguments prints the active household.
  With a name, discards the local records and loads that household instead.
  -local stops sharing and keeps working on an empty local ledger.
`
}

func (c *householdCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.local, "local", false, "return to local-only use")
}

func (c *householdCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 1 || (c.local && f.NArg() != 0) {
		fmt.Fprint(stderr, c.Usage())
		return subcommands.ExitUsageError
	}

	return withLedger(ctx, func(ctx context.Context, l *cli.Ledger) error {
		switch {
		case c.local:
			return l.Service.SwitchHousehold(ctx, "")
		case f.NArg() == 1:
			if err := l.Service.SwitchHousehold(ctx, f.Arg(0)); err != nil {
				return err
			}
			<-l.Service.Ready()
			fmt.Fprintf(stdout, "%s: %d expenses\n", l.Service.Household(ctx), l.Store.Len())
			return nil
		}

		if h := l.Service.Household(ctx); h != "" {
			fmt.Fprintln(stdout, h)
		} else {
			fmt.Fprintln(stdout, "(local only)")
		}
		return nil
	})
}
