// Package cli provides common CLI initialization utilities shared by
// cmd/ledger and cmd/ledger-hub.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ledger/internal/backend"
	"ledger/internal/config"
	"ledger/internal/ledger"
	"ledger/internal/log"
	"ledger/internal/report"
	"ledger/internal/services"
	"ledger/internal/storage"
)

// SetupLogger initializes structured logging from the configured level and
// format, writing to w. It also becomes the default logger.
func SetupLogger(cfg *config.Config, w io.Writer) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    w,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads the client configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadAndValidateHubConfig loads the configuration and validates the hub settings.
func LoadAndValidateHubConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.ValidateHub(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InitSQLite initializes a SQLite repository with the given path.
func InitSQLite(logger *log.Logger, dbPath string) (*storage.SQLiteRepository, error) {
	sqliteRepo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		return nil, err
	}
	return sqliteRepo, nil
}

// ReconcilerConfig maps the sharing settings to a reconciler config.
func ReconcilerConfig(cfg *config.Config) services.ReconcilerConfig {
	rc := services.DefaultReconcilerConfig()
	rc.QueueSize = cfg.PushQueue
	rc.Timeout = cfg.RemoteTimeout
	if cfg.PullPolicy == config.PullPolicyMerge {
		rc.Policy = services.MergePending
	}
	return rc
}

// Ledger is a fully wired local ledger.
type Ledger struct {
	Service *services.LedgerService
	Store   *ledger.Store
	Config  *config.Config
}

// OpenLedger wires the SQLite slots, the store, the remote selected by the
// configured URL (if any) and the workbook writer, then opens the service.
func OpenLedger(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Ledger, error) {
	if logger == nil {
		logger = log.Discard()
	}
	repo, err := InitSQLite(logger, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	factory := backend.NewFactory(logger)
	store := ledger.NewStore(repo, storage.ExpensesKey, logger)

	var reconciler *services.Reconciler
	closers := []io.Closer{}

	remoteCfg, err := backend.FromAppConfig(cfg)
	switch {
	case errors.Is(err, backend.ErrSharingDisabled):
	case err != nil:
		repo.Close()
		return nil, err
	default:
		res, err := factory.CreateRemote(ctx, remoteCfg)
		if err != nil {
			repo.Close()
			return nil, err
		}
		reconciler = services.NewReconciler(store, res.Store, ReconcilerConfig(cfg), logger)
		closers = append(closers, res.Cleanup)
	}
	closers = append(closers, repo)

	workbooks, err := factory.CreateWorkbookWriter(ctx, backend.WorkbookFromAppConfig(cfg))
	if err != nil {
		logger.Warn("Workbook export unavailable", log.FieldError, err)
		workbooks = nil
	}

	svc := services.NewLedgerService(store, repo, reconciler, workbooks, services.LedgerServiceConfig{
		Labels:    report.LabelsFor(cfg.Locale),
		Household: cfg.Household,
	}, logger, closers...)

	if err := svc.Open(ctx); err != nil {
		_ = svc.Close(ctx)
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return &Ledger{Service: svc, Store: store, Config: cfg}, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
