package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	"go.uber.org/zap"

	"playlistgen/internal/core"
)

const (
	postgresConnectAttempts = 5
	postgresRetryDelay      = 2 * time.Second
)

type blacklistRow struct {
	bun.BaseModel `bun:"table:blacklist"`

	SpotifyID string    `bun:"spotify_id,pk"`
	IDType    string    `bun:"id_type,pk"`
	Title     string    `bun:"title,notnull"`
	Artist    *string   `bun:"artist"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func (r *blacklistRow) entry() core.BlacklistEntry {
	return core.BlacklistEntry{
		ID:     r.SpotifyID,
		Kind:   core.Kind(r.IDType),
		Title:  r.Title,
		Artist: r.Artist,
	}
}

type playlistRow struct {
	bun.BaseModel `bun:"table:playlists"`

	SpotifyID string    `bun:"spotify_id,pk"`
	Creator   string    `bun:"creator,notnull"`
	Title     string    `bun:"title,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// PostgresStore is the shared backend for multi-instance deployments.
type PostgresStore struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewPostgresStore connects with retries and creates missing tables.
func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	var lastErr error
	for attempt := 1; attempt <= postgresConnectAttempts; attempt++ {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		sqldb.SetMaxOpenConns(10)
		sqldb.SetConnMaxLifetime(5 * time.Minute)

		db := bun.NewDB(sqldb, pgdialect.New())
		if logger.Core().Enabled(zap.DebugLevel) {
			db.AddQueryHook(bundebug.NewQueryHook(
				bundebug.WithVerbose(true),
				bundebug.FromEnv("BUNDEBUG"),
			))
		}

		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		lastErr = db.PingContext(pingCtx)
		cancel()

		if lastErr == nil {
			s := &PostgresStore{db: db, logger: logger}
			if err := s.migrate(ctx); err != nil {
				db.Close()
				return nil, fmt.Errorf("migration failed: %w", err)
			}
			logger.Info("Connected to PostgreSQL store", zap.Int("attempt", attempt))
			return s, nil
		}

		logger.Warn("Failed to connect to database",
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
		if err := db.Close(); err != nil {
			logger.Warn("Failed to close database connection", zap.Error(err))
		}

		if attempt == postgresConnectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(postgresRetryDelay):
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", postgresConnectAttempts, lastErr)
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	for _, model := range []any{(*blacklistRow)(nil), (*playlistRow)(nil)} {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Get(ctx context.Context, kind *core.Kind) ([]core.BlacklistEntry, error) {
	var rows []blacklistRow
	query := s.db.NewSelect().Model(&rows).Order("created_at ASC")
	if kind != nil {
		query = query.Where("id_type = ?", string(*kind))
	}

	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to query blacklist: %w", err)
	}

	entries := make([]core.BlacklistEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].entry())
	}
	return entries, nil
}

func (s *PostgresStore) Add(ctx context.Context, entry core.BlacklistEntry) (core.AddResult, error) {
	entry, err := core.ValidateEntry(entry)
	if err != nil {
		return core.AddResult{}, err
	}

	row := &blacklistRow{
		SpotifyID: entry.ID,
		IDType:    string(entry.Kind),
		Title:     entry.Title,
		Artist:    entry.Artist,
		CreatedAt: time.Now(),
	}

	res, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (spotify_id, id_type) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return core.AddResult{}, fmt.Errorf("failed to insert blacklist entry: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return core.AddResult{}, fmt.Errorf("failed to insert blacklist entry: %w", err)
	}
	if affected == 1 {
		return core.AddResult{Created: true, Entry: entry}, nil
	}

	existing := new(blacklistRow)
	err = s.db.NewSelect().
		Model(existing).
		Where("spotify_id = ?", entry.ID).
		Where("id_type = ?", string(entry.Kind)).
		Scan(ctx)
	if err != nil {
		return core.AddResult{}, fmt.Errorf("failed to load existing blacklist entry: %w", err)
	}

	return core.AddResult{Created: false, Entry: existing.entry()}, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string, kind core.Kind) (bool, error) {
	res, err := s.db.NewDelete().
		Model((*blacklistRow)(nil)).
		Where("spotify_id = ?", id).
		Where("id_type = ?", string(kind)).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to delete blacklist entry: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete blacklist entry: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) Playlists(ctx context.Context, creator string) ([]core.RegisteredPlaylist, error) {
	var rows []playlistRow
	query := s.db.NewSelect().Model(&rows).Order("created_at ASC")
	if creator != "" {
		query = query.Where("creator = ?", creator)
	}

	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}

	playlists := make([]core.RegisteredPlaylist, 0, len(rows))
	for _, r := range rows {
		playlists = append(playlists, core.RegisteredPlaylist{ID: r.SpotifyID, Creator: r.Creator, Title: r.Title})
	}
	return playlists, nil
}

func (s *PostgresStore) RegisterPlaylist(ctx context.Context, playlist core.RegisteredPlaylist) (bool, error) {
	if playlist.ID == "" {
		return false, errors.New("playlist id is required")
	}

	res, err := s.db.NewInsert().
		Model(&playlistRow{
			SpotifyID: playlist.ID,
			Creator:   playlist.Creator,
			Title:     playlist.Title,
			CreatedAt: time.Now(),
		}).
		On("CONFLICT (spotify_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to register playlist: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to register playlist: %w", err)
	}
	return affected == 1, nil
}
