package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RunResult describes a completed generation run.
type RunResult struct {
	PlaylistID string
	Tracks     int
	Batches    int
	Sources    []string
	Duration   time.Duration
}

// Generator runs one aggregation followed by one playlist write. At most one
// run per target playlist is in flight; overlapping runs fail fast.
type Generator struct {
	aggregator *Aggregator
	writer     *PlaylistWriter
	blacklist  BlacklistStore
	registry   PlaylistRegistry
	defaults   GenerateConfig
	recorder   Recorder
	logger     *zap.Logger

	running      map[string]struct{}
	runningMutex sync.Mutex
}

// NewGenerator wires a generator. registry and recorder may be nil.
func NewGenerator(
	defaults GenerateConfig,
	aggregator *Aggregator,
	writer *PlaylistWriter,
	blacklist BlacklistStore,
	registry PlaylistRegistry,
	recorder Recorder,
	logger *zap.Logger,
) *Generator {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Generator{
		aggregator: aggregator,
		writer:     writer,
		blacklist:  blacklist,
		registry:   registry,
		defaults:   defaults,
		recorder:   recorder,
		logger:     logger.Named("generator"),
		running:    make(map[string]struct{}),
	}
}

// Generate rebuilds req.TargetPlaylistID from its sources. source is the
// caller's authenticated client; nil means the caller is not logged in.
func (g *Generator) Generate(ctx context.Context, source TrackSource, req AggregationRequest) (RunResult, error) {
	start := time.Now()
	result, err := g.generate(ctx, source, req)
	result.Duration = time.Since(start)

	status := RunStatus(err)
	g.recorder.RecordRun(status, result.Duration)
	if err != nil {
		g.recorder.RecordError("generator", status)
		g.logger.Warn("Generation failed",
			zap.String("playlist", req.TargetPlaylistID),
			zap.String("status", status),
			zap.Error(err))
		return result, err
	}

	g.recorder.RecordTracksWritten(result.Tracks)
	g.logger.Info("Generation complete",
		zap.String("playlist", result.PlaylistID),
		zap.Int("tracks", result.Tracks),
		zap.Int("batches", result.Batches),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// Preview runs the aggregation without touching the target playlist and
// returns the ids in collection order.
func (g *Generator) Preview(ctx context.Context, source TrackSource, req AggregationRequest) ([]string, error) {
	if source == nil {
		return nil, ErrAuthUnavailable
	}

	req, err := g.resolveSources(ctx, req)
	if err != nil {
		return nil, err
	}

	blacklist, err := LoadBlacklistSet(ctx, g.blacklist)
	if err != nil {
		return nil, err
	}
	return g.aggregator.Collect(ctx, req, blacklist, source)
}

func (g *Generator) generate(ctx context.Context, source TrackSource, req AggregationRequest) (RunResult, error) {
	result := RunResult{PlaylistID: req.TargetPlaylistID}

	if source == nil {
		return result, ErrAuthUnavailable
	}
	if req.TargetPlaylistID == "" {
		return result, errors.New("target playlist id is required")
	}

	unlock, ok := g.tryLock(req.TargetPlaylistID)
	if !ok {
		return result, ErrRunInProgress
	}
	defer unlock()

	req, err := g.resolveSources(ctx, req)
	if err != nil {
		return result, err
	}
	result.Sources = SourcePlaylists(req)

	blacklist, err := LoadBlacklistSet(ctx, g.blacklist)
	if err != nil {
		return result, err
	}

	tracks, err := g.aggregator.Aggregate(ctx, req, blacklist, source)
	if err != nil {
		return result, err
	}

	written, err := g.writer.Write(ctx, req.TargetPlaylistID, tracks, source)
	result.Tracks = written.Added
	result.Batches = written.Batches
	return result, err
}

// resolveSources falls back to the registered playlists and the configured
// defaults when the request leaves the source playlists unset.
func (g *Generator) resolveSources(ctx context.Context, req AggregationRequest) (AggregationRequest, error) {
	if req.SourcePlaylistIDs != nil {
		return req, nil
	}

	sources := make([]string, 0, len(g.defaults.SourcePlaylistIDs))
	if g.registry != nil {
		registered, err := g.registry.Playlists(ctx, "")
		if err != nil {
			return req, fmt.Errorf("loading registered playlists: %w", err)
		}
		for _, p := range registered {
			sources = append(sources, p.ID)
		}
	}
	sources = append(sources, g.defaults.SourcePlaylistIDs...)

	req.SourcePlaylistIDs = dedupeIDs(sources)
	return req, nil
}

// tryLock marks playlistID as running. The entry is removed on unlock so the
// map only holds targets with a run in flight.
func (g *Generator) tryLock(playlistID string) (func(), bool) {
	g.runningMutex.Lock()
	defer g.runningMutex.Unlock()

	if _, busy := g.running[playlistID]; busy {
		return nil, false
	}
	g.running[playlistID] = struct{}{}

	return func() {
		g.runningMutex.Lock()
		delete(g.running, playlistID)
		g.runningMutex.Unlock()
	}, true
}

// RunStatus maps a run error onto a short metrics label.
func RunStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrAuthUnavailable):
		return "auth_unavailable"
	case errors.Is(err, ErrRunInProgress):
		return "in_progress"
	case errors.Is(err, ErrSourceFetch):
		return "source_fetch_failed"
	case errors.Is(err, ErrClearFailed):
		return "clear_failed"
	case errors.Is(err, ErrPartialAdd):
		return "partial_add"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
