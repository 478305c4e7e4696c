package core

import (
	"context"
	"time"

	"playlistgen/pkg/idset"
)

// Kind is the granularity a blacklist entry applies to.
type Kind string

const (
	// KindTrack blacklists a single track id
	KindTrack Kind = "track"
	// KindAlbum blacklists every track whose album id matches
	KindAlbum Kind = "album"
	// KindArtist blacklists every track with a matching contributing artist
	KindArtist Kind = "artist"
)

// Kinds returns the supported blacklist kinds in a stable order.
func Kinds() []Kind {
	return []Kind{KindTrack, KindAlbum, KindArtist}
}

// TrackRef is a provider track reduced to the identifiers the aggregation needs.
type TrackRef struct {
	ID          string
	Name        string
	AlbumID     string
	AlbumName   string
	ArtistIDs   []string
	ArtistNames []string
}

// PlaylistItem is one slot of a playlist listing. Track is nil for slots that
// carry no usable track (removed tracks, podcast episodes, local files).
type PlaylistItem struct {
	Track *TrackRef
}

type BlacklistEntry struct {
	ID     string  `json:"spotify_id"`
	Kind   Kind    `json:"id_type"`
	Title  string  `json:"title"`
	Artist *string `json:"artist"`
}

// AddResult reports the outcome of an idempotent blacklist insert.
// Created is false when an entry with the same (ID, Kind) already existed;
// Entry then holds the stored record.
type AddResult struct {
	Created bool           `json:"created"`
	Entry   BlacklistEntry `json:"entry"`
}

type RegisteredPlaylist struct {
	ID      string `json:"spotify_id"`
	Creator string `json:"creator"`
	Title   string `json:"title"`
}

// BlacklistSet is a per-run snapshot of denied ids, split by kind.
type BlacklistSet struct {
	TrackIDs  *idset.Set
	AlbumIDs  *idset.Set
	ArtistIDs *idset.Set
}

// AggregationRequest is the immutable input of one aggregation run.
// A nil SourcePlaylistIDs means "not given" and the generator falls back to
// the registered and configured playlists. An empty slice means saved tracks
// only.
type AggregationRequest struct {
	TargetPlaylistID  string
	SourcePlaylistIDs []string
	SavedTracksLimit  int
	// PlaylistItemLimit truncates every source playlist listing to its first
	// N items. Zero or negative means unbounded.
	PlaylistItemLimit int
	// IncludeTarget prepends the target playlist to the sources unless it is
	// already listed.
	IncludeTarget bool
}

// TrackSource is the streaming-service capability the core consumes.
type TrackSource interface {
	SavedTracks(ctx context.Context, limit int) ([]TrackRef, error)
	PlaylistTracks(ctx context.Context, playlistID string) ([]PlaylistItem, error)
	ReplacePlaylistTracks(ctx context.Context, playlistID string, trackIDs []string) error
	AppendPlaylistTracks(ctx context.Context, playlistID string, trackIDs []string) error
}

// BlacklistStore is implemented by every blacklist persistence backend.
// Get with a nil kind returns all entries.
type BlacklistStore interface {
	Get(ctx context.Context, kind *Kind) ([]BlacklistEntry, error)
	Add(ctx context.Context, entry BlacklistEntry) (AddResult, error)
	Delete(ctx context.Context, id string, kind Kind) (bool, error)
}

type PlaylistRegistry interface {
	Playlists(ctx context.Context, creator string) ([]RegisteredPlaylist, error)
	RegisterPlaylist(ctx context.Context, playlist RegisteredPlaylist) (bool, error)
}

// Recorder receives run telemetry. The HTTP server provides a prometheus-backed one.
type Recorder interface {
	RecordRun(status string, duration time.Duration)
	RecordTracksWritten(count int)
	RecordError(component, errorType string)
}

type nopRecorder struct{}

func (nopRecorder) RecordRun(string, time.Duration) {}
func (nopRecorder) RecordTracksWritten(int)         {}
func (nopRecorder) RecordError(string, string)      {}
