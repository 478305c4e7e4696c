package core

import (
	"context"
	"fmt"
	"strings"

	"playlistgen/pkg/idset"
	"playlistgen/pkg/spotifylink"
)

// ParseKind validates a kind string. The empty string is not a kind.
func ParseKind(raw string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(raw))); k {
	case KindTrack, KindAlbum, KindArtist:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidEntry, raw)
	}
}

// ValidateEntry normalizes an entry before it reaches a store. It runs before
// any I/O so backends never see an entry without an (id, kind) key.
// The id may be a Spotify URI or share link; its kind fills an empty Kind.
func ValidateEntry(entry BlacklistEntry) (BlacklistEntry, error) {
	entry.ID = strings.TrimSpace(entry.ID)
	if entry.ID == "" && strings.TrimSpace(string(entry.Kind)) == "" {
		return entry, fmt.Errorf("%w: id and kind are required", ErrInvalidEntry)
	}
	if entry.ID == "" {
		return entry, fmt.Errorf("%w: id is required", ErrInvalidEntry)
	}

	link, err := spotifylink.Parse(entry.ID)
	if err != nil {
		return entry, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	entry.ID = link.ID
	if link.Kind != "" {
		if strings.TrimSpace(string(entry.Kind)) == "" {
			entry.Kind = Kind(link.Kind)
		} else if Kind(strings.ToLower(strings.TrimSpace(string(entry.Kind)))) != Kind(link.Kind) {
			return entry, fmt.Errorf("%w: %s link given for kind %q", ErrInvalidEntry, link.Kind, entry.Kind)
		}
	}

	kind, err := ParseKind(string(entry.Kind))
	if err != nil {
		return entry, err
	}
	entry.Kind = kind
	return entry, nil
}

// NewBlacklistSet builds a snapshot from entries, ignoring ids of unknown kinds.
func NewBlacklistSet(entries []BlacklistEntry) BlacklistSet {
	set := BlacklistSet{
		TrackIDs:  idset.New(len(entries)),
		AlbumIDs:  idset.New(len(entries)),
		ArtistIDs: idset.New(len(entries)),
	}

	for _, entry := range entries {
		switch entry.Kind {
		case KindTrack:
			set.TrackIDs.Add(entry.ID)
		case KindAlbum:
			set.AlbumIDs.Add(entry.ID)
		case KindArtist:
			set.ArtistIDs.Add(entry.ID)
		}
	}

	return set
}

// LoadBlacklistSet materializes a fresh snapshot from the store.
func LoadBlacklistSet(ctx context.Context, store BlacklistStore) (BlacklistSet, error) {
	entries, err := store.Get(ctx, nil)
	if err != nil {
		return BlacklistSet{}, fmt.Errorf("loading blacklist: %w", err)
	}
	return NewBlacklistSet(entries), nil
}

// Denies reports whether any of the three vetoes rejects the track.
func (b BlacklistSet) Denies(track *TrackRef) bool {
	if b.TrackIDs.Has(track.ID) || b.AlbumIDs.Has(track.AlbumID) {
		return true
	}
	for _, artistID := range track.ArtistIDs {
		if b.ArtistIDs.Has(artistID) {
			return true
		}
	}
	return false
}
