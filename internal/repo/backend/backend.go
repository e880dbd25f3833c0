// Package backend picks the store implementation from configuration.
package backend

import (
	"context"

	"go.uber.org/zap"

	"github.com/hamed0406/securemon/internal/repo"
	"github.com/hamed0406/securemon/internal/repo/memory"
	"github.com/hamed0406/securemon/internal/repo/postgres"
	"github.com/hamed0406/securemon/internal/repo/sqlite"
)

// MemoryPath selects the in-process store. Nothing survives a restart.
const MemoryPath = "memory"

// Open returns a Postgres store when databaseURL is set, otherwise a SQLite
// store at dbPath (or the in-memory store for MemoryPath).
func Open(ctx context.Context, databaseURL, dbPath string, log *zap.Logger) (repo.Store, error) {
	switch {
	case databaseURL != "":
		log.Info("store_backend", zap.String("kind", "postgres"))
		s, err := postgres.New(ctx, databaseURL, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case dbPath == MemoryPath:
		log.Info("store_backend", zap.String("kind", "memory"))
		return memory.New(), nil
	default:
		log.Info("store_backend", zap.String("kind", "sqlite"), zap.String("path", dbPath))
		s, err := sqlite.New(ctx, dbPath, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
