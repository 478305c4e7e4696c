package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"playlistgen/internal/core"
	"playlistgen/internal/cover"
	"playlistgen/internal/flood"
	httpserver "playlistgen/internal/http"
	"playlistgen/internal/spotify"
	"playlistgen/internal/store"
	"playlistgen/pkg/fuzzy"
	"playlistgen/pkg/spotifylink"
)

// cliSession is the token file used by the console login.
const cliSession = "cli"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web interface and JSON API (default)",
	RunE:  runServe,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize the CLI with Spotify",
	RunE:  runLogin,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Rebuild the target playlist once",
	RunE:  runGenerate,
}

var coverCmd = &cobra.Command{
	Use:   "cover",
	Short: "Render the cover image and upload it to the target playlist",
	RunE:  runCover,
}

var blacklistCmd = &cobra.Command{
	Use:   "blacklist",
	Short: "Manage blacklisted tracks, albums and artists",
}

var playlistsCmd = &cobra.Command{
	Use:   "playlists",
	Short: "Manage registered source playlists",
}

func init() {
	generateCmd.Flags().Bool("dry-run", false, "Print the aggregated track ids without writing the playlist")
	generateCmd.Flags().StringSlice("sources", nil, "Source playlists for this run (default: registered and configured ones)")

	coverCmd.Flags().String("title", "", "Cover title (default: --cover-text)")
	coverCmd.Flags().Int("font-size", 0, "Cover font size (default: --cover-font-size)")
	coverCmd.Flags().String("save", "", "Also write the JPEG to this path")
	coverCmd.Flags().Bool("upload", true, "Upload the cover to the target playlist")

	blacklistListCmd.Flags().String("type", "", "Only list entries of this kind (track, album, artist)")
	blacklistListCmd.Flags().String("query", "", "Only list entries whose title or artist matches")
	blacklistAddCmd.Flags().String("title", "", "Display title")
	blacklistAddCmd.Flags().String("artist", "", "Display artist")
	blacklistCmd.AddCommand(blacklistListCmd, blacklistAddCmd, blacklistDeleteCmd)

	playlistsListCmd.Flags().String("creator", "", "Only list playlists registered by this creator")
	playlistsAddCmd.Flags().String("creator", "", "Who registered the playlist")
	playlistsAddCmd.Flags().String("title", "", "Display title")
	playlistsCmd.AddCommand(playlistsListCmd, playlistsAddCmd)
}

type services struct {
	store     store.Backend
	generator *core.Generator
	renderer  *cover.Renderer
	auth      *spotify.Authenticator
	tokens    *spotify.TokenStore
}

func initializeServices(ctx context.Context, recorder core.Recorder) (*services, error) {
	backend, err := store.Open(ctx, &config.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", config.Storage.Driver, err)
	}

	aggregator := core.NewAggregator(logger, core.WithFetchConcurrency(config.Generate.FetchConcurrency))
	generator := core.NewGenerator(
		config.Generate,
		aggregator,
		core.NewPlaylistWriter(logger),
		backend,
		backend,
		recorder,
		logger,
	)

	return &services{
		store:     backend,
		generator: generator,
		renderer:  cover.NewRenderer(logger),
		auth:      spotify.NewAuthenticator(&config.Spotify, logger.Named("spotify")),
		tokens:    spotify.NewTokenStore(config.Spotify.TokenDir),
	}, nil
}

func (s *services) close() {
	if err := s.store.Close(); err != nil {
		logger.Warn("Failed to close store", zap.Error(err))
	}
}

// cliClient returns the client of the console login session.
func (s *services) cliClient(ctx context.Context) (*spotify.Client, error) {
	token, err := s.tokens.Load(cliSession)
	if errors.Is(err, spotify.ErrNoToken) {
		return nil, fmt.Errorf("%w: run `playlistgen login` first", core.ErrAuthUnavailable)
	}
	if err != nil {
		return nil, err
	}
	return s.auth.Client(ctx, token), nil
}

// saveToken writes back a token the client refreshed during the command.
func (s *services) saveToken(client *spotify.Client) {
	token, err := client.Token()
	if err != nil {
		logger.Debug("No token to persist", zap.Error(err))
		return
	}
	if err := s.tokens.Save(cliSession, token); err != nil {
		logger.Warn("Failed to persist refreshed token", zap.Error(err))
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	if viper.GetBool("generate-env-example") {
		return generateEnvExample(cmd)
	}

	ctx, cancel := signalContext()
	defer cancel()

	logger.Info("Starting playlistgen",
		zap.String("version", version),
		zap.String("spotify_playlist", config.Spotify.PlaylistID),
		zap.String("storage", config.Storage.Driver),
		zap.Int("action_limit_per_minute", config.App.ActionLimitPerMinute))

	if err := validateSpotifyConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := httpserver.NewMetrics(reg)

	svcs, err := initializeServices(ctx, metrics)
	if err != nil {
		return err
	}
	defer svcs.close()

	limiter := flood.New(config.App.ActionLimitPerMinute)
	defer func() {
		stats := limiter.GetStats()
		logger.Debug("Stopping action limiter",
			zap.Int("active_sessions", stats.ActiveSessions),
			zap.Int("limit_per_minute", stats.LimitPerMinute))
		limiter.Stop()
	}()

	server := httpserver.NewServer(config, httpserver.Dependencies{
		OAuth:  svcs.auth,
		Tokens: svcs.tokens,
		Connect: func(ctx context.Context, token *oauth2.Token) httpserver.SpotifyClient {
			return svcs.auth.Client(ctx, token)
		},
		Generator: svcs.generator,
		Blacklist: svcs.store,
		Registry:  svcs.store,
		Renderer:  svcs.renderer,
		Limiter:   limiter,
	}, metrics, reg, logger)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gCtx)
	})

	logger.Info("playlistgen started",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)),
		zap.String("redirect_url", config.Spotify.RedirectURL))

	if err := g.Wait(); err != nil {
		logger.Error("playlistgen stopped with error", zap.Error(err))
		return err
	}
	logger.Info("playlistgen stopped gracefully")
	return nil
}

func runLogin(cmd *cobra.Command, _ []string) error {
	if err := validateSpotifyConfig(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	auth := spotify.NewAuthenticator(&config.Spotify, logger.Named("spotify"))
	token, err := auth.ConsoleLogin(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}

	if err := spotify.NewTokenStore(config.Spotify.TokenDir).Save(cliSession, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	user, err := auth.Client(ctx, token).CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("token saved but fetching the user failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", user.DisplayName, user.ID)
	return nil
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	if config.Spotify.PlaylistID == "" {
		return errors.New("spotify playlist ID is required")
	}

	svcs, err := initializeServices(ctx, nil)
	if err != nil {
		return err
	}
	defer svcs.close()

	client, err := svcs.cliClient(ctx)
	if err != nil {
		return err
	}
	defer svcs.saveToken(client)

	req := config.Generate.Request(config.Spotify.PlaylistID)
	if sources, _ := cmd.Flags().GetStringSlice("sources"); len(sources) > 0 {
		ids, err := spotifylink.PlaylistIDs(splitList(sources))
		if err != nil {
			return err
		}
		req.SourcePlaylistIDs = ids
	}

	out := cmd.OutOrStdout()
	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		ids, err := svcs.generator.Preview(ctx, client, req)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		fmt.Fprintf(out, "%d tracks would be written to %s\n", len(ids), req.TargetPlaylistID)
		return nil
	}

	result, err := svcs.generator.Generate(ctx, client, req)
	if err != nil {
		var partial *core.PartialAddError
		if errors.As(err, &partial) {
			fmt.Fprintf(out, "Playlist %s holds only %d of %d tracks\n", partial.PlaylistID, partial.Added, partial.Total)
		}
		return err
	}

	fmt.Fprintf(out, "Wrote %d tracks to %s in %d batches (%s)\n",
		result.Tracks, result.PlaylistID, result.Batches, result.Duration.Round(time.Millisecond))
	return nil
}

func runCover(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	spec := cover.SpecFromConfig(&config.Cover)
	if title, _ := cmd.Flags().GetString("title"); title != "" {
		spec.Text = title
	}
	if size, _ := cmd.Flags().GetInt("font-size"); size > 0 {
		spec.FontSize = size
	}
	savePath, _ := cmd.Flags().GetString("save")
	upload, _ := cmd.Flags().GetBool("upload")
	if !upload && savePath == "" {
		return errors.New("nothing to do: pass --save or keep --upload")
	}

	renderer := cover.NewRenderer(logger)
	var data []byte
	if upload {
		if config.Spotify.PlaylistID == "" {
			return errors.New("spotify playlist ID is required")
		}
		svcs, err := initializeServices(ctx, nil)
		if err != nil {
			return err
		}
		defer svcs.close()

		client, err := svcs.cliClient(ctx)
		if err != nil {
			return err
		}
		defer svcs.saveToken(client)

		data, err = renderer.Publish(ctx, client, config.Spotify.PlaylistID, spec)
		if err != nil {
			return fmt.Errorf("failed to publish cover: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded cover to %s\n", config.Spotify.PlaylistID)
	} else {
		var err error
		data, err = renderer.Render(spec)
		if err != nil {
			return err
		}
	}

	if savePath != "" {
		if err := os.WriteFile(savePath, data, 0o600); err != nil {
			return fmt.Errorf("failed to save cover: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved cover to %s (%d bytes)\n", savePath, len(data))
	}
	return nil
}

// withStore opens only the configured backend; blacklist and registry
// commands need no Spotify access.
func withStore(fn func(ctx context.Context, backend store.Backend) error) error {
	ctx, cancel := signalContext()
	defer cancel()

	backend, err := store.Open(ctx, &config.Storage, logger)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", config.Storage.Driver, err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("Failed to close store", zap.Error(err))
		}
	}()

	return fn(ctx, backend)
}

var blacklistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List blacklist entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var kind *core.Kind
		if raw, _ := cmd.Flags().GetString("type"); raw != "" {
			parsed, err := core.ParseKind(raw)
			if err != nil {
				return err
			}
			kind = &parsed
		}
		query, _ := cmd.Flags().GetString("query")
		normalizer := fuzzy.NewNormalizer()

		return withStore(func(ctx context.Context, backend store.Backend) error {
			entries, err := backend.Get(ctx, kind)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tID\tTITLE\tARTIST")
			for _, entry := range entries {
				artist := ""
				if entry.Artist != nil {
					artist = *entry.Artist
				}
				if !normalizer.Matches(query, entry.Title, artist) {
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", entry.Kind, entry.ID, entry.Title, artist)
			}
			return w.Flush()
		})
	},
}

var blacklistAddCmd = &cobra.Command{
	Use:   "add [kind] <id|link>",
	Short: "Blacklist a track, album or artist",
	Long: `Blacklist a track, album or artist by id, spotify: URI or open.spotify.com link.
The kind may be omitted when a URI or link is given.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry := core.BlacklistEntry{ID: args[len(args)-1]}
		if len(args) == 2 {
			entry.Kind = core.Kind(args[0])
		}
		entry.Title, _ = cmd.Flags().GetString("title")
		if artist, _ := cmd.Flags().GetString("artist"); artist != "" {
			entry.Artist = &artist
		}

		return withStore(func(ctx context.Context, backend store.Backend) error {
			result, err := backend.Add(ctx, entry)
			if err != nil {
				return err
			}
			if result.Created {
				fmt.Fprintf(cmd.OutOrStdout(), "Blacklisted %s %s\n", result.Entry.Kind, result.Entry.ID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s is already blacklisted\n", result.Entry.Kind, result.Entry.ID)
			}
			return nil
		})
	},
}

var blacklistDeleteCmd = &cobra.Command{
	Use:   "delete <kind> <id>",
	Short: "Remove a blacklist entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := core.ParseKind(args[0])
		if err != nil {
			return err
		}

		return withStore(func(ctx context.Context, backend store.Backend) error {
			deleted, err := backend.Delete(ctx, args[1], kind)
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("%s %s is not blacklisted", kind, args[1])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s %s\n", kind, args[1])
			return nil
		})
	},
}

var playlistsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered source playlists",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		creator, _ := cmd.Flags().GetString("creator")

		return withStore(func(ctx context.Context, backend store.Backend) error {
			playlists, err := backend.Playlists(ctx, creator)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATOR\tTITLE")
			for _, p := range playlists {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Creator, p.Title)
			}
			return w.Flush()
		})
	},
}

var playlistsAddCmd = &cobra.Command{
	Use:   "add <id|link>",
	Short: "Register a source playlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := spotifylink.PlaylistID(args[0])
		if err != nil {
			return err
		}
		playlist := core.RegisteredPlaylist{ID: id}
		playlist.Creator, _ = cmd.Flags().GetString("creator")
		playlist.Title, _ = cmd.Flags().GetString("title")

		return withStore(func(ctx context.Context, backend store.Backend) error {
			created, err := backend.RegisterPlaylist(ctx, playlist)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "Registered playlist %s\n", playlist.ID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Playlist %s is already registered\n", playlist.ID)
			}
			return nil
		})
	},
}
