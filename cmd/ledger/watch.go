package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/subcommands"

	"ledger/internal/cli"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/worker"
)

type watchCmd struct {
	filter criteriaFlags
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "follow the household and print totals as they change" }
func (*watchCmd) Usage() string {
	return `ledger watch [filters]

  Keeps the ledger open, replicating with the shared household, and prints
  the count and total of the filtered expenses after every change.
`
}

func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	c.filter.register(f)
}

func (c *watchCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	l, logger, err := openLedger(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening ledger: %v\n", err)
		return subcommands.ExitFailure
	}

	dash := services.NewDashboard(l.Store, l.Service.Labels())
	printView(l, dash.SetFilter(c.filter.criteria()))
	dash.OnChange(func(v services.View) { printView(l, v) })

	runCtx, done := cli.GracefulShutdown(logger, l.Config.RemoteTimeout, func(ctx context.Context) {
		dash.Close()
		if err := l.Service.Close(ctx); err != nil {
			logger.Error("Failed to close ledger", log.FieldError, err)
		}
	})
	if l.Service.SharingEnabled() {
		go worker.NewResyncWorker(l.Service, l.Config.ResyncInterval, logger).Run(runCtx)
	}
	cli.WaitForShutdown(runCtx, done)
	return subcommands.ExitSuccess
}

func printView(l *cli.Ledger, v services.View) {
	labels := l.Service.Labels()
	fmt.Fprintf(stdout, "%s  %d  %s: %s\n",
		time.Now().Format(time.TimeOnly), v.Count, labels.Total, core.FormatMoney(v.Total, l.Config.Currency))
}
