package core

import (
	"time"
)

const (
	// DefaultServerPort is the HTTP listen port
	DefaultServerPort = 8080
	// DefaultSavedTracksLimit is how many saved library tracks feed a run
	DefaultSavedTracksLimit = 30
	// DefaultFetchConcurrency keeps source playlist fetches sequential
	DefaultFetchConcurrency = 1
	// DefaultActionLimitPerMinute caps generate/cover actions per session
	DefaultActionLimitPerMinute = 6
	// DefaultCoverFontSize is the cover title point size
	DefaultCoverFontSize = 120
	// DefaultCoverSize is the cover edge length in pixels
	DefaultCoverSize = 1500

	StorageDriverSQLite   = "sqlite"
	StorageDriverFile     = "file"
	StorageDriverPostgres = "postgres"
)

type Config struct {
	Spotify  SpotifyConfig
	Storage  StorageConfig
	Generate GenerateConfig
	Cover    CoverConfig
	Server   ServerConfig
	Log      LogConfig
	App      AppConfig
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	PlaylistID   string
	TokenDir     string
}

type StorageConfig struct {
	Driver      string
	SQLitePath  string
	FilePath    string
	PostgresDSN string
}

type GenerateConfig struct {
	SourcePlaylistIDs []string
	SavedTracksLimit  int
	PlaylistItemLimit int
	IncludeTarget     bool
	FetchConcurrency  int
}

type CoverConfig struct {
	Text     string
	FontSize int
	FontPath string
	Size     int
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SecureCookie bool
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

type AppConfig struct {
	ActionLimitPerMinute int
}

func DefaultConfig() *Config {
	return &Config{
		Spotify: SpotifyConfig{
			RedirectURL: "http://127.0.0.1:8080/callback",
			TokenDir:    "./.spotify_caches",
		},
		Storage: StorageConfig{
			Driver:     StorageDriverSQLite,
			SQLitePath: "./playlistgen.db",
			FilePath:   "./data/blacklist.json",
		},
		Generate: GenerateConfig{
			SavedTracksLimit: DefaultSavedTracksLimit,
			IncludeTarget:    true,
			FetchConcurrency: DefaultFetchConcurrency,
		},
		Cover: CoverConfig{
			Text:     "Generated Power",
			FontSize: DefaultCoverFontSize,
			FontPath: "Roboto-Black.ttf",
			Size:     DefaultCoverSize,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         DefaultServerPort,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		App: AppConfig{
			ActionLimitPerMinute: DefaultActionLimitPerMinute,
		},
	}
}

// Request builds an aggregation request for target from the configured
// defaults. Sources are left unset so the generator resolves the registered
// and configured playlists.
func (c *GenerateConfig) Request(target string) AggregationRequest {
	return AggregationRequest{
		TargetPlaylistID:  target,
		SavedTracksLimit:  c.SavedTracksLimit,
		PlaylistItemLimit: c.PlaylistItemLimit,
		IncludeTarget:     c.IncludeTarget,
	}
}
