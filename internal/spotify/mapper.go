package spotify

import (
	"github.com/zmb3/spotify/v2"

	"playlistgen/internal/core"
)

// trackRef reduces a full track to the identifiers the aggregation needs.
// Tracks without an id (local files) are reported as unusable.
func trackRef(track *spotify.FullTrack) (core.TrackRef, bool) {
	if track == nil || track.ID == "" {
		return core.TrackRef{}, false
	}

	ref := core.TrackRef{
		ID:          string(track.ID),
		Name:        track.Name,
		AlbumID:     string(track.Album.ID),
		AlbumName:   track.Album.Name,
		ArtistIDs:   make([]string, 0, len(track.Artists)),
		ArtistNames: make([]string, 0, len(track.Artists)),
	}
	for _, artist := range track.Artists {
		if artist.ID != "" {
			ref.ArtistIDs = append(ref.ArtistIDs, string(artist.ID))
		}
		ref.ArtistNames = append(ref.ArtistNames, artist.Name)
	}
	return ref, true
}

func playlistItem(item *spotify.PlaylistItem) core.PlaylistItem {
	if item.IsLocal {
		return core.PlaylistItem{}
	}
	ref, ok := trackRef(item.Track.Track)
	if !ok {
		return core.PlaylistItem{}
	}
	return core.PlaylistItem{Track: &ref}
}

func toIDs(ids []string) []spotify.ID {
	out := make([]spotify.ID, len(ids))
	for i, id := range ids {
		out[i] = spotify.ID(id)
	}
	return out
}
