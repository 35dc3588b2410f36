package core

import (
	"bizdesk/internal/infra/persistence/memory"
	"bizdesk/internal/infra/persistence/postgres"
	"bizdesk/internal/infra/persistence/sqlite"
	"bizdesk/pkg/domain"
	"context"
	"fmt"
	"log/slog"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and parameterizes the storage backend.
type StorageConfig struct {
	Driver            StorageDriver
	SQLitePath        string
	PostgresDSN       string
	TransitiveCascade bool
	// Logger receives snapshot failures from the sqlite and postgres mirrors.
	Logger *slog.Logger
}

// OpenPersistentStore builds the configured backend. An empty driver means
// memory. Backends holding a connection implement io.Closer.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig, engine *domain.RulesEngine) (domain.PersistentStore, error) {
	opts := []memory.Option{memory.WithTransitiveCascade(cfg.TransitiveCascade)}
	switch cfg.Driver {
	case "", StorageMemory:
		return memory.NewStore(engine, opts...), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath, engine, opts...)
		if err != nil {
			return nil, err
		}
		store.SetLogger(cfg.Logger)
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, engine, opts...)
		if err != nil {
			return nil, err
		}
		store.SetLogger(cfg.Logger)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
