package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
	"go.uber.org/zap"

	"playlistgen/internal/core"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS blacklist (
	spotify_id TEXT NOT NULL,
	id_type TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	artist TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (spotify_id, id_type)
);

CREATE TABLE IF NOT EXISTS playlists (
	spotify_id TEXT PRIMARY KEY,
	creator TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore is the default backend. The (spotify_id, id_type) primary key
// makes concurrent inserts of the same entry collapse into one row.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens the database at path and migrates the schema.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("Opened SQLite store", zap.String("path", path))
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, kind *core.Kind) ([]core.BlacklistEntry, error) {
	query := "SELECT spotify_id, id_type, title, artist FROM blacklist"
	var args []any
	if kind != nil {
		query += " WHERE id_type = ?"
		args = append(args, string(*kind))
	}
	query += " ORDER BY created_at, rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query blacklist: %w", err)
	}
	defer rows.Close()

	entries := []core.BlacklistEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate blacklist: %w", err)
	}

	return entries, nil
}

func (s *SQLiteStore) Add(ctx context.Context, entry core.BlacklistEntry) (core.AddResult, error) {
	entry, err := core.ValidateEntry(entry)
	if err != nil {
		return core.AddResult{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO blacklist (spotify_id, id_type, title, artist)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (spotify_id, id_type) DO NOTHING`,
		entry.ID, string(entry.Kind), entry.Title, nullString(entry.Artist))
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

	row := s.db.QueryRowContext(ctx,
		"SELECT spotify_id, id_type, title, artist FROM blacklist WHERE spotify_id = ? AND id_type = ?",
		entry.ID, string(entry.Kind))
	existing, err := scanEntry(row)
	if err != nil {
		return core.AddResult{}, err
	}

	s.logger.Debug("Blacklist entry already exists",
		zap.String("id", entry.ID), zap.String("kind", string(entry.Kind)))
	return core.AddResult{Created: false, Entry: existing}, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string, kind core.Kind) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM blacklist WHERE spotify_id = ? AND id_type = ?", id, string(kind))
	if err != nil {
		return false, fmt.Errorf("failed to delete blacklist entry: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete blacklist entry: %w", err)
	}
	return affected > 0, nil
}

func (s *SQLiteStore) Playlists(ctx context.Context, creator string) ([]core.RegisteredPlaylist, error) {
	query := "SELECT spotify_id, creator, title FROM playlists"
	var args []any
	if creator != "" {
		query += " WHERE creator = ?"
		args = append(args, creator)
	}
	query += " ORDER BY created_at, rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	playlists := []core.RegisteredPlaylist{}
	for rows.Next() {
		var p core.RegisteredPlaylist
		if err := rows.Scan(&p.ID, &p.Creator, &p.Title); err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate playlists: %w", err)
	}

	return playlists, nil
}

func (s *SQLiteStore) RegisterPlaylist(ctx context.Context, playlist core.RegisteredPlaylist) (bool, error) {
	if playlist.ID == "" {
		return false, errors.New("playlist id is required")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO playlists (spotify_id, creator, title)
		VALUES (?, ?, ?)
		ON CONFLICT (spotify_id) DO NOTHING`,
		playlist.ID, playlist.Creator, playlist.Title)
	if err != nil {
		return false, fmt.Errorf("failed to register playlist: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to register playlist: %w", err)
	}
	return affected == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (core.BlacklistEntry, error) {
	var (
		entry  core.BlacklistEntry
		kind   string
		artist sql.NullString
	)
	if err := row.Scan(&entry.ID, &kind, &entry.Title, &artist); err != nil {
		return core.BlacklistEntry{}, fmt.Errorf("failed to scan blacklist entry: %w", err)
	}
	entry.Kind = core.Kind(kind)
	if artist.Valid {
		entry.Artist = &artist.String
	}
	return entry, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
