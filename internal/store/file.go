package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"playlistgen/internal/core"
)

// fileDocument is the on-disk layout. Tracks mirrors the track-kind ids so
// readers of the older {"tracks": [...]} layout keep working.
type fileDocument struct {
	Tracks    []string                  `json:"tracks"`
	Entries   []core.BlacklistEntry     `json:"entries,omitempty"`
	Playlists []core.RegisteredPlaylist `json:"playlists,omitempty"`
}

// FileStore keeps everything in one JSON document, rewritten atomically on
// every change. It suits single-process deployments.
type FileStore struct {
	path   string
	logger *zap.Logger
	mutex  sync.Mutex
}

func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("blacklist file path is required")
	}

	s := &FileStore{path: path, logger: logger}
	if _, err := s.load(); err != nil {
		return nil, err
	}

	logger.Info("Opened file store", zap.String("path", path))
	return s, nil
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) Get(_ context.Context, kind *core.Kind) ([]core.BlacklistEntry, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return filterEntries(doc.Entries, kind), nil
}

func (s *FileStore) Add(_ context.Context, entry core.BlacklistEntry) (core.AddResult, error) {
	entry, err := core.ValidateEntry(entry)
	if err != nil {
		return core.AddResult{}, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, err := s.load()
	if err != nil {
		return core.AddResult{}, err
	}

	for _, existing := range doc.Entries {
		if existing.ID == entry.ID && existing.Kind == entry.Kind {
			return core.AddResult{Created: false, Entry: existing}, nil
		}
	}

	doc.Entries = append(doc.Entries, entry)
	if err := s.save(doc); err != nil {
		return core.AddResult{}, err
	}
	return core.AddResult{Created: true, Entry: entry}, nil
}

func (s *FileStore) Delete(_ context.Context, id string, kind core.Kind) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, err := s.load()
	if err != nil {
		return false, err
	}

	for i, existing := range doc.Entries {
		if existing.ID == id && existing.Kind == kind {
			doc.Entries = append(doc.Entries[:i], doc.Entries[i+1:]...)
			return true, s.save(doc)
		}
	}
	return false, nil
}

func (s *FileStore) Playlists(_ context.Context, creator string) ([]core.RegisteredPlaylist, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	playlists := make([]core.RegisteredPlaylist, 0, len(doc.Playlists))
	for _, p := range doc.Playlists {
		if creator == "" || p.Creator == creator {
			playlists = append(playlists, p)
		}
	}
	return playlists, nil
}

func (s *FileStore) RegisterPlaylist(_ context.Context, playlist core.RegisteredPlaylist) (bool, error) {
	if playlist.ID == "" {
		return false, errors.New("playlist id is required")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, err := s.load()
	if err != nil {
		return false, err
	}

	for _, p := range doc.Playlists {
		if p.ID == playlist.ID {
			return false, nil
		}
	}

	doc.Playlists = append(doc.Playlists, playlist)
	return true, s.save(doc)
}

// load reads the document, upgrading bare legacy track ids to entries.
// A missing file is an empty store.
func (s *FileStore) load() (*fileDocument, error) {
	doc := &fileDocument{}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blacklist file: %w", err)
	}

	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse blacklist file %s: %w", s.path, err)
	}

	known := make(map[string]struct{}, len(doc.Entries))
	for _, entry := range doc.Entries {
		if entry.Kind == core.KindTrack {
			known[entry.ID] = struct{}{}
		}
	}
	for _, id := range doc.Tracks {
		if _, ok := known[id]; ok || id == "" {
			continue
		}
		known[id] = struct{}{}
		doc.Entries = append(doc.Entries, core.BlacklistEntry{ID: id, Kind: core.KindTrack})
	}

	return doc, nil
}

func (s *FileStore) save(doc *fileDocument) error {
	doc.Tracks = make([]string, 0, len(doc.Entries))
	for _, entry := range doc.Entries {
		if entry.Kind == core.KindTrack {
			doc.Tracks = append(doc.Tracks, entry.ID)
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create blacklist directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".blacklist-*.json")
	if err != nil {
		return fmt.Errorf("failed to write blacklist file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write blacklist file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write blacklist file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace blacklist file: %w", err)
	}
	return nil
}
