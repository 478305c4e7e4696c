// Package main provides the playlistgen CLI application entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"playlistgen/internal/core"
	"playlistgen/pkg/spotifylink"
)

const (
	defaultServerHost = "0.0.0.0"
	envPrefix         = "PLAYLISTGEN"
	version           = "1.0.0"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "playlistgen",
	Short: "playlistgen - Blacklist-aware Spotify playlist generator",
	Long: `playlistgen rebuilds a Spotify playlist from your saved tracks and a set of source
playlists, drops everything on the track/album/artist blacklist and shuffles the rest.
Without a subcommand it serves the web interface and JSON API.`,
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	defer func() {
		if logger != nil {
			_ = logger.Sync()
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .env)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "json", "log format (json, console)")
	flags.String("log-file", "", "also write logs to this file, rotated by size")

	flags.String("spotify-client-id", "", "Spotify client ID")
	flags.String("spotify-client-secret", "", "Spotify client secret")
	flags.String("spotify-redirect-url", "", "OAuth callback URL (default: derived from server host and port)")
	flags.String("spotify-playlist-id", "", "Target playlist ID")
	flags.String("spotify-token-dir", "./.spotify_caches", "Directory holding one token file per session")

	flags.String("storage-driver", core.StorageDriverSQLite, "Blacklist storage (sqlite, file, postgres)")
	flags.String("storage-sqlite-path", "./playlistgen.db", "SQLite database path")
	flags.String("storage-file-path", "./data/blacklist.json", "JSON blacklist file path")
	flags.String("storage-postgres-dsn", "", "Postgres connection string")

	flags.StringSlice("source-playlist-ids", nil, "Default source playlists, comma separated")
	flags.Int("saved-tracks-limit", core.DefaultSavedTracksLimit, "Saved library tracks per run (0 skips the library)")
	flags.Int("playlist-item-limit", 0, "Items read per source playlist (0 reads all)")
	flags.Bool("include-target", true, "Use the target playlist's current tracks as a source")
	flags.Int("fetch-concurrency", core.DefaultFetchConcurrency, "Source playlists fetched in parallel")

	flags.String("cover-text", "Generated Power", "Cover title")
	flags.Int("cover-font-size", core.DefaultCoverFontSize, "Cover title font size")
	flags.String("cover-font-path", "Roboto-Black.ttf", "Cover font file (built-in font when missing)")
	flags.Int("cover-size", core.DefaultCoverSize, "Cover edge length in pixels")

	flags.String("server-host", defaultServerHost, "HTTP server host")
	flags.Int("server-port", core.DefaultServerPort, "HTTP server port")
	flags.Bool("server-secure-cookie", false, "Mark the session cookie Secure (serve behind HTTPS)")
	flags.Int("action-limit-per-minute", core.DefaultActionLimitPerMinute, "Generate/cover actions per session per minute (0 disables)")

	flags.Bool("generate-env-example", false, "Generate .env.example file from current configuration and exit")

	if err := viper.BindPFlags(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(
		serveCmd,
		loginCmd,
		generateCmd,
		coverCmd,
		blacklistCmd,
		playlistsCmd,
	)
}

func initConfig() {
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(&config.Log)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	configureServer(cfg)
	configureSpotify(cfg)
	configureStorage(cfg)
	configureGenerate(cfg)
	configureCover(cfg)
	configureApp(cfg)

	return cfg
}

func configureServer(cfg *core.Config) {
	cfg.Server.Host = viper.GetString("server-host")
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaultServerHost
	}
	cfg.Server.Port = viper.GetInt("server-port")
	cfg.Server.SecureCookie = viper.GetBool("server-secure-cookie")

	cfg.Log.Level = viper.GetString("log-level")
	cfg.Log.Format = viper.GetString("log-format")
	cfg.Log.File = viper.GetString("log-file")
}

func configureSpotify(cfg *core.Config) {
	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = viper.GetString("spotify-client-secret")
	cfg.Spotify.RedirectURL = viper.GetString("spotify-redirect-url")
	cfg.Spotify.PlaylistID = playlistOrRaw(viper.GetString("spotify-playlist-id"))
	if dir := viper.GetString("spotify-token-dir"); dir != "" {
		cfg.Spotify.TokenDir = dir
	}

	if cfg.Spotify.RedirectURL == "" {
		serverHost := cfg.Server.Host
		if serverHost == defaultServerHost {
			serverHost = "127.0.0.1" // Use localhost for OAuth callback
		}
		cfg.Spotify.RedirectURL = fmt.Sprintf("http://%s:%d/callback", serverHost, cfg.Server.Port)
	}
}

func configureStorage(cfg *core.Config) {
	if driver := viper.GetString("storage-driver"); driver != "" {
		cfg.Storage.Driver = driver
	}
	if path := viper.GetString("storage-sqlite-path"); path != "" {
		cfg.Storage.SQLitePath = path
	}
	if path := viper.GetString("storage-file-path"); path != "" {
		cfg.Storage.FilePath = path
	}
	cfg.Storage.PostgresDSN = viper.GetString("storage-postgres-dsn")
}

func configureGenerate(cfg *core.Config) {
	for _, raw := range splitList(viper.GetStringSlice("source-playlist-ids")) {
		cfg.Generate.SourcePlaylistIDs = append(cfg.Generate.SourcePlaylistIDs, playlistOrRaw(raw))
	}
	cfg.Generate.SavedTracksLimit = viper.GetInt("saved-tracks-limit")
	if cfg.Generate.SavedTracksLimit < 0 {
		cfg.Generate.SavedTracksLimit = 0
	}
	cfg.Generate.PlaylistItemLimit = viper.GetInt("playlist-item-limit")
	cfg.Generate.IncludeTarget = viper.GetBool("include-target")
	cfg.Generate.FetchConcurrency = viper.GetInt("fetch-concurrency")
	if cfg.Generate.FetchConcurrency <= 0 {
		cfg.Generate.FetchConcurrency = core.DefaultFetchConcurrency
	}
}

func configureCover(cfg *core.Config) {
	cfg.Cover.Text = viper.GetString("cover-text")
	cfg.Cover.FontPath = viper.GetString("cover-font-path")
	cfg.Cover.FontSize = viper.GetInt("cover-font-size")
	if cfg.Cover.FontSize <= 0 {
		cfg.Cover.FontSize = core.DefaultCoverFontSize
	}
	cfg.Cover.Size = viper.GetInt("cover-size")
	if cfg.Cover.Size <= 0 {
		cfg.Cover.Size = core.DefaultCoverSize
	}
}

func configureApp(cfg *core.Config) {
	cfg.App.ActionLimitPerMinute = viper.GetInt("action-limit-per-minute")
	if cfg.App.ActionLimitPerMinute < 0 {
		cfg.App.ActionLimitPerMinute = 0
	}
}

// splitList accepts both repeated flags and comma separated env values.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// playlistOrRaw accepts playlist share links in config. Values that do not
// parse are kept so the run reports them against Spotify.
func playlistOrRaw(raw string) string {
	if raw == "" {
		return ""
	}
	if id, err := spotifylink.PlaylistID(raw); err == nil {
		return id
	}
	return raw
}

func buildLogger(cfg *core.LogConfig) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), zapLevel),
	}
	if cfg.File != "" {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    100, // MB
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			}),
			zapLevel,
		))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func validateSpotifyConfig() error {
	if config.Spotify.ClientID == "" {
		return fmt.Errorf("spotify client ID is required")
	}
	if config.Spotify.ClientSecret == "" {
		return fmt.Errorf("spotify client secret is required")
	}
	return nil
}
