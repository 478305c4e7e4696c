package core

import (
	"context"

	"go.uber.org/zap"
)

// MaxItemsPerRequest is the Spotify Web API limit for track ids per playlist call.
const MaxItemsPerRequest = 100

// WriteResult summarizes a successful playlist write.
type WriteResult struct {
	Batches int
	Added   int
}

// PlaylistWriter replaces a playlist's contents in two phases: clear, then
// append in batches. The write is not atomic; a failed batch leaves the
// playlist holding the prefix that was already appended.
type PlaylistWriter struct {
	logger *zap.Logger
}

func NewPlaylistWriter(logger *zap.Logger) *PlaylistWriter {
	return &PlaylistWriter{logger: logger.Named("writer")}
}

// Write clears targetID and appends tracks in order. Provider errors are
// returned immediately without retry.
func (w *PlaylistWriter) Write(
	ctx context.Context,
	targetID string,
	tracks []string,
	source TrackSource,
) (WriteResult, error) {
	if err := source.ReplacePlaylistTracks(ctx, targetID, nil); err != nil {
		return WriteResult{}, &ClearError{PlaylistID: targetID, Err: err}
	}

	var result WriteResult
	for i, batch := range Chunk(tracks, MaxItemsPerRequest) {
		if err := source.AppendPlaylistTracks(ctx, targetID, batch); err != nil {
			w.logger.Warn("Batch append failed, playlist left partially updated",
				zap.String("playlist", targetID),
				zap.Int("batch", i+1),
				zap.Int("added", result.Added),
				zap.Int("total", len(tracks)),
				zap.Error(err))
			return result, &PartialAddError{
				PlaylistID: targetID,
				Batch:      i + 1,
				Added:      result.Added,
				Total:      len(tracks),
				Err:        err,
			}
		}
		result.Batches++
		result.Added += len(batch)
	}

	w.logger.Info("Playlist written",
		zap.String("playlist", targetID),
		zap.Int("tracks", result.Added),
		zap.Int("batches", result.Batches))

	return result, nil
}

// Chunk splits ids into consecutive slices of at most size elements.
// The returned slices share the backing array of ids.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 || len(ids) == 0 {
		return nil
	}

	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end:end])
	}
	return chunks
}
