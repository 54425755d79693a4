package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"ledger/internal/cli"
	"ledger/internal/core"
	"ledger/internal/filter"
	"ledger/internal/log"
)

// Short lived process: the streams are package variables so tests can capture them.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

var errUsage = errors.New("usage")

func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// openLedger loads the configuration and opens the local ledger, waiting
// for the initial pull of a shared household.
func openLedger(ctx context.Context) (*cli.Ledger, *log.Logger, error) {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := cli.SetupLogger(cfg, stderr)

	l, err := cli.OpenLedger(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	waitReady(l, cfg.RemoteTimeout, logger)
	return l, logger, nil
}

func waitReady(l *cli.Ledger, timeout time.Duration, logger *log.Logger) {
	select {
	case <-l.Service.Ready():
	case <-time.After(timeout):
		logger.Warn("Initial pull still running, showing local records")
	}
}

// withLedger runs fn against an open ledger and closes it afterwards, which
// delivers the pushes queued by fn.
func withLedger(ctx context.Context, fn func(ctx context.Context, l *cli.Ledger) error) subcommands.ExitStatus {
	l, _, err := openLedger(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening ledger: %v\n", err)
		return subcommands.ExitFailure
	}

	runErr := fn(ctx, l)

	closeCtx, cancel := context.WithTimeout(context.Background(), l.Config.RemoteTimeout)
	defer cancel()
	if err := l.Service.Close(closeCtx); err != nil {
		fmt.Fprintf(stderr, "Error closing ledger: %v\n", err)
	}

	return exitStatus(runErr)
}

func exitStatus(err error) subcommands.ExitStatus {
	switch {
	case err == nil:
		return subcommands.ExitSuccess
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "%v\n", err)
		return subcommands.ExitUsageError
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
}

// criteriaFlags are the filter flags shared by list, report, export and watch.
type criteriaFlags struct {
	from, to, spender, category, query string
}

func (c *criteriaFlags) register(f *flag.FlagSet) {
	f.StringVar(&c.from, "since", "", "only expenses on or after this ISO date")
	f.StringVar(&c.to, "until", "", "only expenses on or before this ISO date")
	f.StringVar(&c.spender, "spender", "", "only expenses paid by this person")
	f.StringVar(&c.category, "category", "", "only expenses of this category")
	f.StringVar(&c.query, "q", "", "case-insensitive text search over category, from, to, note and spender")
}

func (c *criteriaFlags) criteria() filter.Criteria {
	return filter.Criteria{From: c.from, To: c.to, Spender: c.spender, Category: c.category, Query: c.query}
}

// draftFlags are the record fields of add and edit.
type draftFlags struct {
	draft core.Draft
}

func (d *draftFlags) register(f *flag.FlagSet, defaultDate string) {
	f.StringVar(&d.draft.Date, "date", defaultDate, "ISO date of the expense")
	f.StringVar(&d.draft.From, "from", "", "where the money came from")
	f.StringVar(&d.draft.To, "to", "", "who was paid")
	f.StringVar(&d.draft.Category, "category", "", "expense category")
	f.StringVar(&d.draft.Amount, "amount", "", "amount, with ',' or '.' as decimal separator")
	f.StringVar(&d.draft.Spender, "spender", "", "who paid")
	f.StringVar(&d.draft.Note, "note", "", "free text note")
}

// overlay returns base with the fields whose flags were set on f replaced.
func (d *draftFlags) overlay(f *flag.FlagSet, base core.Draft) core.Draft {
	f.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "date":
			base.Date = d.draft.Date
		case "from":
			base.From = d.draft.From
		case "to":
			base.To = d.draft.To
		case "category":
			base.Category = d.draft.Category
		case "amount":
			base.Amount = d.draft.Amount
		case "spender":
			base.Spender = d.draft.Spender
		case "note":
			base.Note = d.draft.Note
		}
	})
	return base
}

// printMarkdown renders md for the terminal, or writes it as is when plain.
func printMarkdown(md string, plain bool) {
	if plain {
		fmt.Fprint(stdout, md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err != nil {
		fmt.Fprint(stdout, md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Fprint(stdout, md)
		return
	}
	fmt.Fprint(stdout, out)
}
