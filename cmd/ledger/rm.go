package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"ledger/internal/cli"
)

type rmCmd struct{}

func (*rmCmd) Name() string     { return "rm" }
func (*rmCmd) Synopsis() string { return "delete expenses" }
func (*rmCmd) Usage() string {
	return `ledger rm <id>...

  Deletes the expenses with the given ids. Unknown ids are ignored.
`
}

func (*rmCmd) SetFlags(*flag.FlagSet) {}

func (c *rmCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprint(stderr, c.Usage())
		return subcommands.ExitUsageError
	}

	return withLedger(ctx, func(ctx context.Context, l *cli.Ledger) error {
		deleted := 0
		for _, id := range f.Args() {
			if l.Service.Delete(ctx, id) {
				deleted++
			}
		}
		fmt.Fprintf(stdout, "%d deleted\n", deleted)
		return nil
	})
}
