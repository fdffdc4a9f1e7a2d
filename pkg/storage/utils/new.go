package storageutils

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eduspark/portal/pkg/storage"
	"github.com/eduspark/portal/pkg/storage/inmemory"
	"github.com/eduspark/portal/pkg/storage/postgres"
	"github.com/eduspark/portal/pkg/storage/sqlite"
)

// Providers accepted by NewDriver.
const (
	ProviderMemory   = "memory"
	ProviderSQLite   = "sqlite"
	ProviderPostgres = "postgres"
)

type NewDriverOpts struct {
	// ProviderType selects the driver. Empty means memory, unless SQLitePath
	// or PostgresDSN is set.
	ProviderType string
	SQLitePath   string
	PostgresDSN  string
	Logger       *slog.Logger
}

// NewDriver opens the record store described by o.
func NewDriver(ctx context.Context, o *NewDriverOpts) (storage.Driver, error) {
	log := o.Logger
	if log == nil {
		log = slog.Default()
	}

	provider := o.ProviderType
	if provider == "" || provider == ProviderMemory {
		switch {
		case o.PostgresDSN != "" && provider == "":
			provider = ProviderPostgres
		case o.SQLitePath != "" && provider == "":
			provider = ProviderSQLite
		default:
			provider = ProviderMemory
		}
	}

	switch provider {
	case ProviderMemory:
		log.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	case ProviderSQLite:
		if o.SQLitePath == "" {
			return nil, errors.New("sqlite storage requires a database path")
		}
		driver, err := sqlite.NewDriver(ctx, o.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		log.Info("using SQLite storage", "path", o.SQLitePath)
		return driver, nil

	case ProviderPostgres:
		if o.PostgresDSN == "" {
			return nil, errors.New("postgres storage requires a connection string")
		}
		driver, err := postgres.NewDriver(ctx, o.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		log.Info("using PostgreSQL storage")
		return driver, nil

	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", provider)
	}
}
