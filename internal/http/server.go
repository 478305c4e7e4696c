package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"playlistgen/internal/core"
	"playlistgen/internal/cover"
	"playlistgen/internal/flood"
	"playlistgen/pkg/fuzzy"
)

const (
	// SessionCookie carries the browser session id
	SessionCookie = "playlistgen_session"
	// StateTTL is how long a pending OAuth state stays valid
	StateTTL       = 10 * time.Minute
	maxStates      = 1024
	maxBodyBytes   = 1 << 20
	maxQueryRunes  = 200
	sessionMaxAge  = 30 * 24 * time.Hour
	shutdownPeriod = 10 * time.Second
)

// SpotifyClient is what a logged-in session can do.
type SpotifyClient interface {
	core.TrackSource
	cover.Uploader
}

// OAuth runs the authorization-code flow.
type OAuth interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, state string, r *http.Request) (*oauth2.Token, error)
}

// TokenStore persists one token per session.
type TokenStore interface {
	Load(session string) (*oauth2.Token, error)
	Save(session string, token *oauth2.Token) error
	Delete(session string) error
}

// ClientFunc builds a client that refreshes token as needed.
type ClientFunc func(ctx context.Context, token *oauth2.Token) SpotifyClient

// Dependencies are the services behind the HTTP surface.
type Dependencies struct {
	OAuth     OAuth
	Tokens    TokenStore
	Connect   ClientFunc
	Generator *core.Generator
	Blacklist core.BlacklistStore
	Registry  core.PlaylistRegistry
	Renderer  *cover.Renderer
	Limiter   *flood.Floodgate
}

type Server struct {
	config     *core.Config
	deps       Dependencies
	logger     *zap.Logger
	server     *http.Server
	metrics    *Metrics
	gatherer   prometheus.Gatherer
	states     *expirable.LRU[string, string]
	normalizer *fuzzy.Normalizer
}

// NewServer wires the routes. metrics must be registered with gatherer.
func NewServer(
	config *core.Config,
	deps Dependencies,
	metrics *Metrics,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) *Server {
	s := &Server{
		config:     config,
		deps:       deps,
		logger:     logger.Named("http"),
		metrics:    metrics,
		gatherer:   gatherer,
		states:     expirable.NewLRU[string, string](maxStates, nil, StateTTL),
		normalizer: fuzzy.NewNormalizer(),
	}
	s.server = createHTTPServer(&config.Server, s.setupRoutes())
	return s
}

func createHTTPServer(config *core.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", healthzHandler)
	mux.HandleFunc("GET /readyz", readyzHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /{$}", homeHandler(s.logger))

	s.handle(mux, "GET /authenticate", "authenticate", s.handleAuthenticate)
	s.handle(mux, "GET /callback", "callback", s.handleCallback)
	s.handle(mux, "GET /logout", "logout", s.handleLogout)

	s.handle(mux, "POST /api/generate", "generate", s.handleGenerate)
	s.handle(mux, "POST /api/cover", "cover", s.handleCover)
	s.handle(mux, "GET /api/blacklist", "blacklist_list", s.handleListBlacklist)
	s.handle(mux, "POST /api/blacklist", "blacklist_add", s.handleAddBlacklist)
	s.handle(mux, "DELETE /api/blacklist/{type}/{id}", "blacklist_delete", s.handleDeleteBlacklist)
	s.handle(mux, "GET /api/playlists", "playlists_list", s.handleListPlaylists)
	s.handle(mux, "POST /api/playlists", "playlists_add", s.handleAddPlaylist)

	return mux
}

func (s *Server) handle(mux *http.ServeMux, pattern, name string, handler http.HandlerFunc) {
	counter := s.metrics.RequestsTotal.MustCurryWith(prometheus.Labels{"handler": name})
	mux.Handle(pattern, promhttp.InstrumentHandlerCounter(counter, handler))
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownPeriod)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","service":"playlistgen"}`))
}

func readyzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready","service":"playlistgen"}`))
}

func homeHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(homePage)); err != nil {
			logger.Debug("Failed to write home page", zap.Error(err))
		}
	}
}

const homePage = `<!DOCTYPE html>
<html>
<head>
    <title>playlistgen</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .header { color: #333; }
        .endpoint { margin: 10px 0; }
        .endpoint a { text-decoration: none; color: #0066cc; }
        .endpoint a:hover { text-decoration: underline; }
    </style>
</head>
<body>
    <h1 class="header">playlistgen</h1>
    <p>Rebuilds a Spotify playlist from your saved tracks and source playlists, minus the blacklist.</p>

    <h2>Account</h2>
    <div class="endpoint"><a href="/authenticate">Log in with Spotify</a></div>
    <div class="endpoint"><a href="/logout">Log out</a></div>

    <h2>API</h2>
    <div class="endpoint">POST /api/generate - Rebuild the target playlist</div>
    <div class="endpoint">POST /api/cover - Render and upload a cover image</div>
    <div class="endpoint"><a href="/api/blacklist">/api/blacklist</a> - Blacklist entries</div>
    <div class="endpoint"><a href="/api/playlists">/api/playlists</a> - Registered source playlists</div>

    <h2>Operations</h2>
    <div class="endpoint"><a href="/metrics">Metrics</a> - Prometheus metrics</div>
    <div class="endpoint"><a href="/healthz">Health</a> - Health check</div>
    <div class="endpoint"><a href="/readyz">Ready</a> - Readiness check</div>
</body>
</html>`

// sessionID returns the caller's session id, or "" when the cookie is absent or malformed.
func sessionID(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return ""
	}
	return cookie.Value
}

func (s *Server) ensureSession(w http.ResponseWriter, r *http.Request) string {
	if id := sessionID(r); id != "" {
		return id
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.config.Server.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// client returns the session's Spotify client, or nil when the caller is not logged in.
func (s *Server) client(r *http.Request) SpotifyClient {
	session := sessionID(r)
	if session == "" || s.deps.Tokens == nil || s.deps.Connect == nil {
		return nil
	}

	token, err := s.deps.Tokens.Load(session)
	if err != nil {
		s.logger.Debug("No usable token for session", zap.String("session", session), zap.Error(err))
		return nil
	}
	return s.deps.Connect(r.Context(), token)
}

type tokenHolder interface {
	Token() (*oauth2.Token, error)
}

// persistToken saves a refreshed access token back to the session's file.
func (s *Server) persistToken(r *http.Request, client SpotifyClient) {
	holder, ok := client.(tokenHolder)
	if !ok {
		return
	}
	token, err := holder.Token()
	if err != nil || token == nil {
		return
	}
	if err := s.deps.Tokens.Save(sessionID(r), token); err != nil {
		s.logger.Warn("Failed to persist refreshed token", zap.Error(err))
	}
}

// allow applies the per-session action limit and writes a 429 when it is exceeded.
func (s *Server) allow(w http.ResponseWriter, r *http.Request, action string) bool {
	if s.deps.Limiter == nil {
		return true
	}

	key := sessionID(r)
	if key == "" {
		key = r.RemoteAddr
	}
	if s.deps.Limiter.Allow(action, key) {
		return true
	}

	wait := s.deps.Limiter.RetryAfter(action, key)
	seconds := int((wait + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	s.metrics.RecordRateLimited(action)
	writeError(w, http.StatusTooManyRequests, fmt.Errorf("too many %s requests, retry in %ds", action, seconds))
	return false
}
