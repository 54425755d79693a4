// Package backend builds the outbound adapters selected by configuration:
// the shared remote store and the workbook writer.
package backend

import (
	"context"

	"ledger/internal/remote"
	"ledger/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Close makes a CleanupFunc usable as an io.Closer. A nil func is a no-op.
func (f CleanupFunc) Close() error {
	if f == nil {
		return nil
	}
	return f()
}

// RemoteResult contains the remote store and optional cleanup function
type RemoteResult struct {
	Store   remote.Store
	Cleanup CleanupFunc
}

// Factory creates adapters based on configuration
type Factory interface {
	// CreateRemote creates a remote store for the provided config
	CreateRemote(ctx context.Context, config Config) (*RemoteResult, error)
	// CreateWorkbookWriter creates the workbook export adapter
	CreateWorkbookWriter(ctx context.Context, config WorkbookConfig) (sheets.WorkbookWriter, error)
}

// BackendType represents the type of remote store
type BackendType string

const (
	HubBackend      BackendType = "hub"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case HubBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
