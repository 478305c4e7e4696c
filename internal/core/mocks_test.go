package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Mock implementations for testing

type mockTrackSource struct {
	saved     []TrackRef
	playlists map[string][]PlaylistItem

	savedErr    error
	playlistErr map[string]error
	replaceErr  error
	// appendErrAt fails the n-th append call (1-based); zero never fails.
	appendErrAt int

	mutex        sync.Mutex
	savedLimits  []int
	fetched      []string
	replaceCalls [][]string
	appendCalls  [][]string
	callSequence []string
}

func (m *mockTrackSource) SavedTracks(_ context.Context, limit int) ([]TrackRef, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.savedLimits = append(m.savedLimits, limit)
	if m.savedErr != nil {
		return nil, m.savedErr
	}
	if limit < len(m.saved) {
		return m.saved[:limit], nil
	}
	return m.saved, nil
}

func (m *mockTrackSource) PlaylistTracks(_ context.Context, playlistID string) ([]PlaylistItem, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.fetched = append(m.fetched, playlistID)
	if err := m.playlistErr[playlistID]; err != nil {
		return nil, err
	}
	items, ok := m.playlists[playlistID]
	if !ok {
		return nil, errors.New("playlist not found")
	}
	return items, nil
}

func (m *mockTrackSource) ReplacePlaylistTracks(_ context.Context, _ string, trackIDs []string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.callSequence = append(m.callSequence, "replace")
	m.replaceCalls = append(m.replaceCalls, trackIDs)
	return m.replaceErr
}

func (m *mockTrackSource) AppendPlaylistTracks(_ context.Context, _ string, trackIDs []string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.callSequence = append(m.callSequence, "append")
	batch := make([]string, len(trackIDs))
	copy(batch, trackIDs)
	m.appendCalls = append(m.appendCalls, batch)
	if m.appendErrAt > 0 && len(m.appendCalls) == m.appendErrAt {
		return errors.New("upstream 502")
	}
	return nil
}

type mockBlacklistStore struct {
	entries []BlacklistEntry
	getErr  error
}

func (m *mockBlacklistStore) Get(_ context.Context, kind *Kind) ([]BlacklistEntry, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []BlacklistEntry
	for _, e := range m.entries {
		if kind == nil || e.Kind == *kind {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockBlacklistStore) Add(_ context.Context, entry BlacklistEntry) (AddResult, error) {
	for _, e := range m.entries {
		if e.ID == entry.ID && e.Kind == entry.Kind {
			return AddResult{Created: false, Entry: e}, nil
		}
	}
	m.entries = append(m.entries, entry)
	return AddResult{Created: true, Entry: entry}, nil
}

func (m *mockBlacklistStore) Delete(_ context.Context, id string, kind Kind) (bool, error) {
	for i, e := range m.entries {
		if e.ID == id && e.Kind == kind {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type mockRegistry struct {
	playlists []RegisteredPlaylist
	err       error
}

func (m *mockRegistry) Playlists(_ context.Context, _ string) ([]RegisteredPlaylist, error) {
	return m.playlists, m.err
}

func (m *mockRegistry) RegisterPlaylist(_ context.Context, p RegisteredPlaylist) (bool, error) {
	m.playlists = append(m.playlists, p)
	return true, nil
}

type mockRecorder struct {
	mutex    sync.Mutex
	runs     []string
	written  []int
	errTypes []string
}

func (m *mockRecorder) RecordRun(status string, _ time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.runs = append(m.runs, status)
}

func (m *mockRecorder) RecordTracksWritten(count int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.written = append(m.written, count)
}

func (m *mockRecorder) RecordError(_, errorType string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.errTypes = append(m.errTypes, errorType)
}

func track(id, albumID string, artistIDs ...string) TrackRef {
	return TrackRef{ID: id, Name: "Song " + id, AlbumID: albumID, ArtistIDs: artistIDs}
}

func items(tracks ...TrackRef) []PlaylistItem {
	out := make([]PlaylistItem, 0, len(tracks))
	for i := range tracks {
		t := tracks[i]
		out = append(out, PlaylistItem{Track: &t})
	}
	return out
}
