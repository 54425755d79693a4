package backend

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"ledger/internal/config"
)

// Config holds configuration for remote store creation
type Config struct {
	Type BackendType
	// URL is the hub base URL or the Postgres DSN.
	URL string
	// Key is the hub bearer key. Unused by the other backends.
	Key     string
	Timeout time.Duration
}

// WorkbookConfig selects the workbook export adapter. A spreadsheet id
// selects Google Sheets; otherwise .xlsx files are written to Dir.
type WorkbookConfig struct {
	Dir                      string
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

var ErrSharingDisabled = errors.New("sharing is not configured")

// TypeForURL maps a remote URL scheme to a backend type.
func TypeForURL(raw string) (BackendType, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse remote url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		return HubBackend, nil
	case "postgres", "postgresql":
		return PostgresBackend, nil
	case "memory":
		return MemoryBackend, nil
	default:
		return "", fmt.Errorf("unsupported remote url scheme: %q", u.Scheme)
	}
}

// FromAppConfig converts the client config to a remote config. It returns
// ErrSharingDisabled when no remote is configured.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	if !appConfig.SharingEnabled() {
		return Config{}, ErrSharingDisabled
	}

	backendType, err := TypeForURL(appConfig.RemoteURL)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Type:    backendType,
		URL:     appConfig.RemoteURL,
		Key:     appConfig.RemoteKey,
		Timeout: appConfig.RemoteTimeout,
	}, nil
}

// FromHubConfig converts the hub config to the config of the store the hub
// serves. An empty database URL selects an in-process memory store.
func FromHubConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	if appConfig.HubDatabaseURL == "" {
		return Config{Type: MemoryBackend}, nil
	}

	backendType, err := TypeForURL(appConfig.HubDatabaseURL)
	if err != nil {
		return Config{}, err
	}
	if backendType == HubBackend {
		return Config{}, fmt.Errorf("hub cannot be backed by another hub")
	}
	return Config{Type: backendType, URL: appConfig.HubDatabaseURL}, nil
}

// WorkbookFromAppConfig extracts the workbook export settings.
func WorkbookFromAppConfig(appConfig *config.Config) WorkbookConfig {
	return WorkbookConfig{
		Dir:                      appConfig.ExportDir,
		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
	}
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case HubBackend:
		if c.URL == "" {
			return fmt.Errorf("hub URL is required for hub backend")
		}
		if c.Key == "" {
			return fmt.Errorf("hub key is required for hub backend")
		}
	case PostgresBackend:
		if c.URL == "" {
			return fmt.Errorf("database URL is required for postgres backend")
		}
	case MemoryBackend:
		// Memory backend doesn't require additional validation
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{HubBackend, PostgresBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}
