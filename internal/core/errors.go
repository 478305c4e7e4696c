package core

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthUnavailable means no authenticated streaming-service client exists for the caller.
	ErrAuthUnavailable = errors.New("spotify authentication required")
	// ErrSourceFetch marks a failed saved-tracks or playlist listing fetch.
	ErrSourceFetch = errors.New("source fetch failed")
	// ErrClearFailed marks a failed attempt to empty the target playlist.
	ErrClearFailed = errors.New("clearing playlist failed")
	// ErrPartialAdd marks a batch append that failed after the playlist was cleared.
	ErrPartialAdd = errors.New("playlist partially updated")
	// ErrInvalidEntry is returned for blacklist entries without a usable (id, kind) key.
	ErrInvalidEntry = errors.New("invalid blacklist entry")
	// ErrRunInProgress is returned when another run is already writing the same playlist.
	ErrRunInProgress = errors.New("playlist generation already running")
)

// SourceFetchError describes which source could not be read.
// PlaylistID is empty for the saved-tracks library.
type SourceFetchError struct {
	PlaylistID string
	Err        error
}

func (e *SourceFetchError) Error() string {
	if e.PlaylistID == "" {
		return fmt.Sprintf("fetching saved tracks: %v", e.Err)
	}
	return fmt.Sprintf("fetching playlist %s: %v", e.PlaylistID, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

func (e *SourceFetchError) Is(target error) bool {
	return target == ErrSourceFetch
}

type ClearError struct {
	PlaylistID string
	Err        error
}

func (e *ClearError) Error() string {
	return fmt.Sprintf("can't empty playlist %s: %v", e.PlaylistID, e.Err)
}

func (e *ClearError) Unwrap() error { return e.Err }

func (e *ClearError) Is(target error) bool {
	return target == ErrClearFailed
}

// PartialAddError is returned after the target was cleared and at least one
// append failed. The playlist then holds the first Added ids of the intended list.
type PartialAddError struct {
	PlaylistID string
	Batch      int
	Added      int
	Total      int
	Err        error
}

func (e *PartialAddError) Error() string {
	return fmt.Sprintf("can't add batch %d to playlist %s (%d of %d tracks written): %v",
		e.Batch, e.PlaylistID, e.Added, e.Total, e.Err)
}

func (e *PartialAddError) Unwrap() error { return e.Err }

func (e *PartialAddError) Is(target error) bool {
	return target == ErrPartialAdd
}
