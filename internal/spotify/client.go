// Package spotify adapts the Spotify Web API to the track source the playlist generator consumes.
package spotify

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"playlistgen/internal/core"
)

const (
	// SavedTracksPageSize is the Web API maximum for /me/tracks
	SavedTracksPageSize = 50
	// PlaylistItemsPageSize is the Web API maximum for playlist item listings
	PlaylistItemsPageSize = 100
)

var errNotAuthenticated = errors.New("client not authenticated")

// Client is one user's authenticated view of the Web API.
type Client struct {
	logger *zap.Logger
	client *spotify.Client
}

// NewClient wraps an API client that already carries the user's credentials.
func NewClient(api *spotify.Client, logger *zap.Logger) *Client {
	return &Client{
		logger: logger.Named("spotify"),
		client: api,
	}
}

// User is the subset of the Spotify profile the service displays.
type User struct {
	ID          string
	DisplayName string
}

func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	if c.client == nil {
		return nil, errNotAuthenticated
	}

	user, err := c.client.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	return &User{ID: user.ID, DisplayName: user.DisplayName}, nil
}

// SavedTracks returns up to limit tracks from the user's library, newest first.
func (c *Client) SavedTracks(ctx context.Context, limit int) ([]core.TrackRef, error) {
	if c.client == nil {
		return nil, errNotAuthenticated
	}
	if limit <= 0 {
		return nil, nil
	}

	tracks := make([]core.TrackRef, 0, limit)
	offset := 0

	for len(tracks) < limit {
		pageSize := min(SavedTracksPageSize, limit-len(tracks))
		page, err := c.client.CurrentUsersTracks(ctx, spotify.Limit(pageSize), spotify.Offset(offset))
		if err != nil {
			return nil, fmt.Errorf("failed to get saved tracks at offset %d: %w", offset, err)
		}

		for i := range page.Tracks {
			if ref, ok := trackRef(&page.Tracks[i].FullTrack); ok {
				tracks = append(tracks, ref)
			}
		}

		if len(page.Tracks) < pageSize {
			break
		}
		offset += pageSize
	}

	c.logger.Debug("Retrieved saved tracks", zap.Int("count", len(tracks)), zap.Int("limit", limit))
	return tracks, nil
}

// PlaylistTracks lists every slot of a playlist. Slots without a usable track
// (episodes, local files, removed tracks) are returned with a nil Track.
func (c *Client) PlaylistTracks(ctx context.Context, playlistID string) ([]core.PlaylistItem, error) {
	if c.client == nil {
		return nil, errNotAuthenticated
	}

	var items []core.PlaylistItem
	offset := 0

	for {
		page, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
			spotify.Limit(PlaylistItemsPageSize), spotify.Offset(offset))
		if err != nil {
			return nil, fmt.Errorf("failed to get playlist items at offset %d: %w", offset, err)
		}

		for i := range page.Items {
			items = append(items, playlistItem(&page.Items[i]))
		}

		if len(page.Items) < PlaylistItemsPageSize {
			break
		}
		offset += PlaylistItemsPageSize
	}

	c.logger.Debug("Retrieved playlist tracks",
		zap.String("playlistID", playlistID),
		zap.Int("count", len(items)))

	return items, nil
}

// ReplacePlaylistTracks overwrites the playlist with trackIDs. An empty list clears it.
func (c *Client) ReplacePlaylistTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if c.client == nil {
		return errNotAuthenticated
	}
	if len(trackIDs) > core.MaxItemsPerRequest {
		return fmt.Errorf("cannot replace with %d tracks, limit is %d", len(trackIDs), core.MaxItemsPerRequest)
	}

	if err := c.client.ReplacePlaylistTracks(ctx, spotify.ID(playlistID), toIDs(trackIDs)...); err != nil {
		return fmt.Errorf("failed to replace playlist tracks: %w", err)
	}
	return nil
}

// AppendPlaylistTracks adds one batch of at most core.MaxItemsPerRequest ids.
func (c *Client) AppendPlaylistTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if c.client == nil {
		return errNotAuthenticated
	}
	if len(trackIDs) == 0 {
		return nil
	}
	if len(trackIDs) > core.MaxItemsPerRequest {
		return fmt.Errorf("cannot add %d tracks in one request, limit is %d", len(trackIDs), core.MaxItemsPerRequest)
	}

	if _, err := c.client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), toIDs(trackIDs)...); err != nil {
		return fmt.Errorf("failed to add tracks to playlist: %w", err)
	}
	return nil
}

// UploadPlaylistCoverImage sets a JPEG cover. The API client base64-encodes
// the body, so jpeg holds the raw image bytes.
func (c *Client) UploadPlaylistCoverImage(ctx context.Context, playlistID string, jpeg []byte) error {
	if c.client == nil {
		return errNotAuthenticated
	}

	if err := c.client.SetPlaylistImage(ctx, spotify.ID(playlistID), bytes.NewReader(jpeg)); err != nil {
		return fmt.Errorf("failed to upload playlist cover: %w", err)
	}

	c.logger.Info("Uploaded playlist cover", zap.String("playlistID", playlistID), zap.Int("bytes", len(jpeg)))
	return nil
}

// Token returns the current, possibly refreshed, OAuth token.
func (c *Client) Token() (*oauth2.Token, error) {
	if c.client == nil {
		return nil, errNotAuthenticated
	}
	return c.client.Token()
}
