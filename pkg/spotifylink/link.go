// Package spotifylink extracts ids from Spotify URIs and share links.
package spotifylink

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

type Kind string

const (
	KindTrack    Kind = "track"
	KindAlbum    Kind = "album"
	KindArtist   Kind = "artist"
	KindPlaylist Kind = "playlist"
)

var (
	// ErrNotSpotify is returned for URLs that do not point at open.spotify.com.
	ErrNotSpotify = errors.New("not a spotify link")

	spotifyDomains = map[string]bool{
		"open.spotify.com": true,
		"play.spotify.com": true,
		"spotify.com":      true,
	}

	knownKinds = map[string]Kind{
		"track":    KindTrack,
		"album":    KindAlbum,
		"artist":   KindArtist,
		"playlist": KindPlaylist,
	}
)

// Link is a parsed reference. Kind is empty for bare ids.
type Link struct {
	Kind Kind
	ID   string
}

// Parse accepts a bare id, a spotify:<kind>:<id> URI or a share URL such as
// https://open.spotify.com/intl-de/track/<id>?si=...
func Parse(raw string) (Link, error) {
	raw = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(raw), ".,!?;"))
	if raw == "" {
		return Link{}, errors.New("empty spotify reference")
	}

	switch {
	case strings.HasPrefix(raw, "spotify:"):
		return parseURI(raw)
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return parseURL(raw)
	case strings.ContainsAny(raw, ":/?# "):
		return Link{}, fmt.Errorf("invalid spotify id %q", raw)
	default:
		return Link{ID: raw}, nil
	}
}

// PlaylistID resolves raw to a playlist id. Links to anything but a playlist are rejected.
func PlaylistID(raw string) (string, error) {
	link, err := Parse(raw)
	if err != nil {
		return "", err
	}
	if link.Kind != "" && link.Kind != KindPlaylist {
		return "", fmt.Errorf("%q is a %s link, not a playlist", raw, link.Kind)
	}
	return link.ID, nil
}

// PlaylistIDs resolves every entry of raw, skipping blanks.
func PlaylistIDs(raw []string) ([]string, error) {
	ids := make([]string, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		id, err := PlaylistID(r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseURI(raw string) (Link, error) {
	// spotify:track:<id> and the legacy spotify:user:<name>:playlist:<id>
	parts := strings.Split(raw, ":")
	if len(parts) < 3 {
		return Link{}, fmt.Errorf("invalid spotify URI %q", raw)
	}
	return lookup(parts[len(parts)-2], parts[len(parts)-1], raw)
}

func parseURL(raw string) (Link, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Link{}, fmt.Errorf("invalid spotify URL %q: %w", raw, err)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if !spotifyDomains[host] {
		return Link{}, fmt.Errorf("%w: %s", ErrNotSpotify, u.Hostname())
	}

	pathParts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, part := range pathParts {
		if _, ok := knownKinds[part]; ok && i+1 < len(pathParts) {
			return lookup(part, pathParts[i+1], raw)
		}
	}
	return Link{}, fmt.Errorf("no track, album, artist or playlist in %q", raw)
}

func lookup(kind, id, raw string) (Link, error) {
	k, ok := knownKinds[strings.ToLower(kind)]
	if !ok {
		return Link{}, fmt.Errorf("unsupported spotify link type %q in %q", kind, raw)
	}
	if id == "" {
		return Link{}, fmt.Errorf("missing id in %q", raw)
	}
	return Link{Kind: k, ID: id}, nil
}
