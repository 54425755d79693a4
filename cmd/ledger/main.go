// Command ledger records household expenses locally and, when a remote is
// configured, shares them with the other members of a household.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"ledger/internal/cli"
)

func main() {
	cli.LoadEnvFile()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	register(commander)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// register adds the ledger subcommands to c.
func register(c *subcommands.Commander) {
	c.Register(&addCmd{}, "expenses")
	c.Register(&editCmd{}, "expenses")
	c.Register(&rmCmd{}, "expenses")
	c.Register(&listCmd{}, "expenses")

	c.Register(&importCmd{}, "files")
	c.Register(&exportCmd{}, "files")

	c.Register(&reportCmd{}, "reports")
	c.Register(&watchCmd{}, "reports")

	c.Register(&householdCmd{}, "sharing")
}
