package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ledger/internal/amqp"
	"ledger/internal/backend"
	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/hub"
	"ledger/internal/log"
)

type serveCmd struct {
	addr string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the hub" }
func (*serveCmd) Usage() string {
	return `ledger-hub serve [-addr <host:port>]

  Serves the household partitions of HUB_DATABASE_URL (in memory when unset).
  With AMQP_URL set, writes are announced to and relayed from other replicas.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", "", "listen address (default :$HUB_PORT)")
}

func (c *serveCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := cli.LoadAndValidateHubConfig()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration validation failed: %v\n", err)
		return subcommands.ExitFailure
	}
	logger := cli.SetupLogger(cfg, stderr)

	addr := c.addr
	if addr == "" {
		addr = ":" + cfg.HubPort
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	if err := serve(ctx, cfg, addr, logger); err != nil {
		logger.Error("Hub failed", log.FieldError, err)
		return subcommands.ExitFailure
	}
	cli.WaitForShutdown(ctx, done)
	return subcommands.ExitSuccess
}

// serve runs the hub and, when configured, the replica relay until ctx ends.
func serve(ctx context.Context, cfg *config.Config, addr string, logger *log.Logger) error {
	keys, err := hub.NewKeyManager(cfg.HubJWTSecret)
	if err != nil {
		return err
	}

	storeCfg, err := backend.FromHubConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger).CreateRemote(ctx, storeCfg)
	if err != nil {
		return err
	}
	defer res.Cleanup.Close()

	var (
		publisher hub.Publisher
		relay     *amqp.Client
	)
	if cfg.AMQPURL != "" {
		relay, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, replicaID(), logger)
		if err != nil {
			return fmt.Errorf("connect to broker: %w", err)
		}
		defer relay.Close()
		publisher = relay
		logger.Info("Replica relay enabled", "exchange", cfg.AMQPExchange, "source", relay.Source())
	}

	srv := hub.New(res.Store, keys, hub.Config{
		AllowedOrigins: cfg.HubAllowedOrigins,
		CacheTTL:       cfg.HubCacheTTL,
		RateLimit:      cfg.HubRateLimit,
	}, publisher, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx, addr) })
	if relay != nil {
		g.Go(func() error {
			err := relay.ConsumeChanges(gctx, srv.HandleRelay)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

func replicaID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "hub"
	}
	return host + "-" + uuid.NewString()[:8]
}
