package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/google/subcommands"

	"ledger/internal/cli"
	"ledger/internal/hub"
)

type mintKeyCmd struct {
	subject    string
	households string
	ttl        time.Duration
}

func (*mintKeyCmd) Name() string     { return "mint-key" }
func (*mintKeyCmd) Synopsis() string { return "issue a client key signed with HUB_JWT_SECRET" }
func (*mintKeyCmd) Usage() string {
	return `ledger-hub mint-key -subject <name> [-households a,b] [-ttl 720h]

  Prints a key for LEDGER_REMOTE_KEY. Without -households the key grants
  every household. A zero -ttl never expires.
`
}

func (c *mintKeyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.subject, "subject", "", "who the key is issued to")
	f.StringVar(&c.households, "households", "", "comma separated households the key may access")
	f.DurationVar(&c.ttl, "ttl", 0, "key lifetime, 0 for no expiry")
}

func (c *mintKeyCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.subject == "" {
		fmt.Fprint(stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	cfg, err := cli.LoadAndValidateHubConfig()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration validation failed: %v\n", err)
		return subcommands.ExitFailure
	}

	keys, err := hub.NewKeyManager(cfg.HubJWTSecret)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	key, err := keys.Mint(c.subject, splitList(c.households), c.ttl)
	if err != nil {
		fmt.Fprintf(stderr, "Error minting key: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(stdout, key)
	return subcommands.ExitSuccess
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
