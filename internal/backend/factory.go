package backend

import (
	"context"
	"fmt"
	"net/http"

	"ledger/internal/log"
	"ledger/internal/remote/hub"
	"ledger/internal/remote/memory"
	"ledger/internal/remote/postgres"
	"ledger/internal/sheets"
	gsheet "ledger/internal/sheets/google"
	"ledger/internal/sheets/xlsx"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateRemote implements Factory.CreateRemote
func (f *DefaultFactory) CreateRemote(ctx context.Context, config Config) (*RemoteResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case HubBackend:
		return f.createHubRemote(config)
	case PostgresBackend:
		return f.createPostgresRemote(ctx, config)
	case MemoryBackend:
		return f.createMemoryRemote()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createHubRemote(config Config) (*RemoteResult, error) {
	opts := []hub.Option{hub.WithLogger(f.logger)}
	if config.Timeout > 0 {
		opts = append(opts, hub.WithHTTPClient(&http.Client{Timeout: config.Timeout}))
	}
	client, err := hub.New(config.URL, config.Key, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize hub client: %w", err)
	}

	f.logger.Info("Initialized hub remote", "url", config.URL)

	return &RemoteResult{Store: client}, nil
}

func (f *DefaultFactory) createPostgresRemote(ctx context.Context, config Config) (*RemoteResult, error) {
	store, err := postgres.Open(ctx, config.URL, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres remote: %w", err)
	}

	f.logger.Info("Initialized postgres remote")

	return &RemoteResult{
		Store:   store,
		Cleanup: store.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryRemote() (*RemoteResult, error) {
	f.logger.Info("Initialized in-process memory remote")

	return &RemoteResult{Store: memory.New()}, nil
}

// CreateWorkbookWriter implements Factory.CreateWorkbookWriter
func (f *DefaultFactory) CreateWorkbookWriter(ctx context.Context, config WorkbookConfig) (sheets.WorkbookWriter, error) {
	if config.GoogleSpreadsheetID == "" {
		dir := config.Dir
		if dir == "" {
			dir = "."
		}
		f.logger.Debug("Workbook export to xlsx files", "dir", dir)
		return xlsx.New(dir), nil
	}

	w, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
		ServiceAccountFile: config.GoogleServiceAccountFile,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets writer: %w", err)
	}

	f.logger.Info("Initialized Google Sheets workbook export")

	return w, nil
}
