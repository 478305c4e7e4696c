package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"playlistgen/internal/core"
	"playlistgen/internal/cover"
	"playlistgen/pkg/spotifylink"
)

type generateRequest struct {
	PlaylistID            string   `json:"playlist_id"`
	AdditionalPlaylistIDs []string `json:"additional_playlist_ids"`
	UseTotalSavedTracks   *int     `json:"use_total_saved_tracks"`
	PlaylistItemLimit     *int     `json:"playlist_item_limit"`
	IncludeTarget         *bool    `json:"include_target"`
	DryRun                bool     `json:"dry_run"`
}

type generateResponse struct {
	Status     string   `json:"status"`
	PlaylistID string   `json:"playlist_id"`
	Tracks     int      `json:"tracks"`
	Batches    int      `json:"batches"`
	Sources    []string `json:"sources,omitempty"`
	DurationMS int64    `json:"duration_ms"`
	Partial    bool     `json:"partial,omitempty"`
	Error      string   `json:"error,omitempty"`
}

type previewResponse struct {
	Status   string   `json:"status"`
	Tracks   int      `json:"tracks"`
	TrackIDs []string `json:"track_ids"`
}

type coverRequest struct {
	PlaylistID string  `json:"playlist_id"`
	Title      *string `json:"title"`
	FontSize   *int    `json:"fontsize"`
}

type blacklistResponse struct {
	Entries []core.BlacklistEntry `json:"entries"`
	Count   int                   `json:"count"`
}

type playlistsResponse struct {
	Playlists []core.RegisteredPlaylist `json:"playlists"`
	Count     int                       `json:"count"`
}

// handleAuthenticate starts the OAuth flow for the caller's session.
func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	if s.deps.OAuth == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("spotify login is not configured"))
		return
	}

	session := s.ensureSession(w, r)
	state := uuid.NewString()
	s.states.Add(state, session)

	http.Redirect(w, r, s.deps.OAuth.AuthURL(state), http.StatusFound)
}

// handleCallback completes the OAuth flow and stores the session's token.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	session, ok := s.states.Get(state)
	if state == "" || !ok {
		writeError(w, http.StatusBadRequest, errors.New("unknown or expired login state"))
		return
	}
	s.states.Remove(state)

	token, err := s.deps.OAuth.Exchange(r.Context(), state, r)
	if err != nil {
		s.logger.Warn("OAuth exchange failed", zap.String("session", session), zap.Error(err))
		s.metrics.RecordError("auth", "exchange")
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	if err := s.deps.Tokens.Save(session, token); err != nil {
		s.logger.Error("Failed to save token", zap.String("session", session), zap.Error(err))
		s.metrics.RecordError("auth", "token_save")
		writeError(w, http.StatusInternalServerError, errors.New("failed to save token"))
		return
	}

	s.logger.Info("Session authenticated", zap.String("session", session))
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if session := sessionID(r); session != "" && s.deps.Tokens != nil {
		if err := s.deps.Tokens.Delete(session); err != nil {
			s.logger.Warn("Failed to delete token", zap.String("session", session), zap.Error(err))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.Server.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

// handleGenerate handles POST /api/generate
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, "generate") {
		return
	}

	var body generateRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, err := s.aggregationRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	client := s.client(r)
	var source core.TrackSource
	if client != nil {
		source = client
	}

	if body.DryRun {
		ids, err := s.deps.Generator.Preview(r.Context(), source, req)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, previewResponse{Status: "preview", Tracks: len(ids), TrackIDs: ids})
		return
	}

	result, err := s.deps.Generator.Generate(r.Context(), source, req)
	if client != nil {
		s.persistToken(r, client)
	}

	resp := generateResponse{
		Status:     core.RunStatus(err),
		PlaylistID: result.PlaylistID,
		Tracks:     result.Tracks,
		Batches:    result.Batches,
		Sources:    result.Sources,
		DurationMS: result.Duration.Milliseconds(),
	}
	if err != nil {
		resp.Error = err.Error()
		resp.Partial = errors.Is(err, core.ErrPartialAdd)
		writeJSON(w, statusFor(err), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) aggregationRequest(body generateRequest) (core.AggregationRequest, error) {
	target, err := playlistRef(body.PlaylistID, s.config.Spotify.PlaylistID)
	if err != nil {
		return core.AggregationRequest{}, err
	}

	req := s.config.Generate.Request(target)
	if body.AdditionalPlaylistIDs != nil {
		sources, err := spotifylink.PlaylistIDs(body.AdditionalPlaylistIDs)
		if err != nil {
			return req, err
		}
		req.SourcePlaylistIDs = sources
	}
	if body.UseTotalSavedTracks != nil {
		if *body.UseTotalSavedTracks < 0 {
			return req, errors.New("use_total_saved_tracks must not be negative")
		}
		req.SavedTracksLimit = *body.UseTotalSavedTracks
	}
	if body.PlaylistItemLimit != nil {
		req.PlaylistItemLimit = *body.PlaylistItemLimit
	}
	if body.IncludeTarget != nil {
		req.IncludeTarget = *body.IncludeTarget
	}
	return req, nil
}

// handleCover handles POST /api/cover
func (s *Server) handleCover(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, "cover") {
		return
	}

	var body coverRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	playlistID, err := playlistRef(body.PlaylistID, s.config.Spotify.PlaylistID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	spec := cover.SpecFromConfig(&s.config.Cover)
	if body.Title != nil {
		spec.Text = *body.Title
	}
	if body.FontSize != nil {
		if *body.FontSize <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("fontsize must be positive"))
			return
		}
		spec.FontSize = *body.FontSize
	}

	var uploader cover.Uploader
	if client := s.client(r); client != nil {
		uploader = client
	}

	data, err := s.deps.Renderer.Publish(r.Context(), uploader, playlistID, spec)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, core.ErrAuthUnavailable):
			status = http.StatusUnauthorized
		case errors.Is(err, cover.ErrInvalidSpec):
			status = http.StatusBadRequest
		}
		s.metrics.RecordCover("failed")
		s.logger.Warn("Cover upload failed", zap.String("playlist", playlistID), zap.Error(err))
		writeError(w, status, err)
		return
	}

	s.metrics.RecordCover("success")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"playlist_id": playlistID,
		"bytes":       len(data),
	})
}

// handleListBlacklist handles GET /api/blacklist?type=&q=
func (s *Server) handleListBlacklist(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var kind *core.Kind
	if raw := query.Get("type"); raw != "" {
		parsed, err := core.ParseKind(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		kind = &parsed
	}

	q := query.Get("q")
	if utf8.RuneCountInString(q) > maxQueryRunes {
		writeError(w, http.StatusBadRequest, fmt.Errorf("q must not exceed %d characters", maxQueryRunes))
		return
	}

	entries, err := s.deps.Blacklist.Get(r.Context(), kind)
	if err != nil {
		s.metrics.RecordError("store", "blacklist_get")
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if q != "" {
		matched := make([]core.BlacklistEntry, 0, len(entries))
		for _, entry := range entries {
			artist := ""
			if entry.Artist != nil {
				artist = *entry.Artist
			}
			if s.normalizer.Matches(q, entry.Title, artist) {
				matched = append(matched, entry)
			}
		}
		entries = matched
	}

	writeJSON(w, http.StatusOK, blacklistResponse{Entries: entries, Count: len(entries)})
}

// handleAddBlacklist handles POST /api/blacklist
func (s *Server) handleAddBlacklist(w http.ResponseWriter, r *http.Request) {
	var entry core.BlacklistEntry
	if err := decodeJSON(w, r, &entry); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.deps.Blacklist.Add(r.Context(), entry)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

// handleDeleteBlacklist handles DELETE /api/blacklist/{type}/{id}
func (s *Server) handleDeleteBlacklist(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseKind(r.PathValue("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id := r.PathValue("id")
	deleted, err := s.deps.Blacklist.Delete(r.Context(), id, kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, fmt.Errorf("%s %s is not blacklisted", kind, id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// handleListPlaylists handles GET /api/playlists?creator=
func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := s.deps.Registry.Playlists(r.Context(), r.URL.Query().Get("creator"))
	if err != nil {
		s.metrics.RecordError("store", "playlists_get")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, playlistsResponse{Playlists: playlists, Count: len(playlists)})
}

// handleAddPlaylist handles POST /api/playlists
func (s *Server) handleAddPlaylist(w http.ResponseWriter, r *http.Request) {
	var playlist core.RegisteredPlaylist
	if err := decodeJSON(w, r, &playlist); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id, err := playlistRef(playlist.ID, "")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	playlist.ID = id

	created, err := s.deps.Registry.RegisterPlaylist(r.Context(), playlist)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"created": created, "playlist": playlist})
}

// playlistRef resolves a playlist id or share link, falling back to def when raw is blank.
func playlistRef(raw, def string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		raw = def
	}
	if strings.TrimSpace(raw) == "" {
		return "", errors.New("playlist_id is required")
	}
	return spotifylink.PlaylistID(raw)
}

// statusFor maps core error kinds onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrAuthUnavailable):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidEntry):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrSourceFetch),
		errors.Is(err, core.ErrClearFailed),
		errors.Is(err, core.ErrPartialAdd):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
