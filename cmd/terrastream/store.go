package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/udisondev/terrastream/internal/config"
	"github.com/udisondev/terrastream/internal/db"
	"github.com/udisondev/terrastream/internal/terrain"
)

// heightFieldStore is the configured cache plus its cleanup. A nil
// HeightFieldStore means caching is disabled.
type heightFieldStore struct {
	terrain.HeightFieldStore
	closeFn func()
}

func (s heightFieldStore) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

func openStore(ctx context.Context, cfg config.Store) (heightFieldStore, error) {
	switch cfg.Driver {
	case config.StoreSQLite:
		store, err := db.OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return heightFieldStore{}, fmt.Errorf("opening sqlite store: %w", err)
		}
		slog.Info("height field store opened", "driver", cfg.Driver, "path", cfg.Path)
		closeFn := func() {
			if err := store.Close(); err != nil {
				slog.Warn("closing sqlite store", "err", err)
			}
		}
		return heightFieldStore{HeightFieldStore: store, closeFn: closeFn}, nil

	case config.StorePostgres:
		dsn := cfg.Database.DSN()
		database, err := db.New(ctx, dsn)
		if err != nil {
			return heightFieldStore{}, fmt.Errorf("connecting to database: %w", err)
		}
		slog.Info("database connected")

		if err := db.RunMigrations(ctx, dsn); err != nil {
			database.Close()
			return heightFieldStore{}, fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database migrations applied")

		return heightFieldStore{HeightFieldStore: database.HeightFields(), closeFn: database.Close}, nil

	default:
		return heightFieldStore{}, nil
	}
}
