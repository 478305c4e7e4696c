// Package store persists the blacklist and the playlist registry.
package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"playlistgen/internal/core"
)

// Backend is a blacklist store that also keeps the playlist registry.
type Backend interface {
	core.BlacklistStore
	core.PlaylistRegistry
	Close() error
}

// Open connects the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg *core.StorageConfig, logger *zap.Logger) (Backend, error) {
	logger = logger.Named("store")

	switch cfg.Driver {
	case core.StorageDriverSQLite, "":
		return NewSQLiteStore(cfg.SQLitePath, logger)
	case core.StorageDriverFile:
		return NewFileStore(cfg.FilePath, logger)
	case core.StorageDriverPostgres:
		return NewPostgresStore(ctx, cfg.PostgresDSN, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func filterEntries(entries []core.BlacklistEntry, kind *core.Kind) []core.BlacklistEntry {
	out := make([]core.BlacklistEntry, 0, len(entries))
	for _, entry := range entries {
		if kind == nil || entry.Kind == *kind {
			out = append(out, entry)
		}
	}
	return out
}
