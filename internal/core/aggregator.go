package core

import (
	"context"
	"math/rand/v2"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"playlistgen/pkg/idset"
)

// Aggregator pools tracks from a user's saved library and a set of source
// playlists into one filtered, deduplicated and shuffled list of track ids.
// It holds no per-run state and is safe for concurrent use when no custom
// random source is injected.
type Aggregator struct {
	logger           *zap.Logger
	rng              *rand.Rand
	fetchConcurrency int
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithRand injects the random source used for the final shuffle.
// A *rand.Rand is not safe for concurrent use, so share it only in tests.
func WithRand(rng *rand.Rand) AggregatorOption {
	return func(a *Aggregator) {
		a.rng = rng
	}
}

// WithFetchConcurrency bounds how many source playlists are fetched in parallel.
func WithFetchConcurrency(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.fetchConcurrency = n
		}
	}
}

func NewAggregator(logger *zap.Logger, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		logger:           logger.Named("aggregator"),
		fetchConcurrency: DefaultFetchConcurrency,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate returns the shuffled result of Collect.
func (a *Aggregator) Aggregate(
	ctx context.Context,
	req AggregationRequest,
	blacklist BlacklistSet,
	source TrackSource,
) ([]string, error) {
	ids, err := a.Collect(ctx, req, blacklist, source)
	if err != nil {
		return nil, err
	}

	a.shuffle(ids)
	return ids, nil
}

// Collect fetches every source and returns the filtered, deduplicated ids in
// collection order: saved tracks first, then each source playlist in order.
// Any fetch failure aborts the run without a partial result.
func (a *Aggregator) Collect(
	ctx context.Context,
	req AggregationRequest,
	blacklist BlacklistSet,
	source TrackSource,
) ([]string, error) {
	var saved []TrackRef
	if req.SavedTracksLimit > 0 {
		tracks, err := source.SavedTracks(ctx, req.SavedTracksLimit)
		if err != nil {
			return nil, &SourceFetchError{Err: err}
		}
		saved = tracks
	}

	playlistIDs := SourcePlaylists(req)
	listings, err := a.fetchPlaylists(ctx, source, playlistIDs, req.PlaylistItemLimit)
	if err != nil {
		return nil, err
	}

	seen := idset.New(len(saved) + 100*len(listings))
	var blocked int
	keep := func(track *TrackRef) {
		if track == nil || track.ID == "" {
			return
		}
		if blacklist.Denies(track) {
			blocked++
			return
		}
		seen.Add(track.ID)
	}

	for i := range saved {
		keep(&saved[i])
	}
	for _, items := range listings {
		for _, item := range items {
			keep(item.Track)
		}
	}

	ids := seen.Slice()
	a.logger.Debug("Collected tracks",
		zap.String("target", req.TargetPlaylistID),
		zap.Int("saved", len(saved)),
		zap.Int("playlists", len(playlistIDs)),
		zap.Int("blacklisted", blocked),
		zap.Int("tracks", len(ids)))

	return ids, nil
}

// SourcePlaylists resolves the ordered list of playlists a request pools from.
// With IncludeTarget the target is prepended unless the caller already listed it.
func SourcePlaylists(req AggregationRequest) []string {
	ids := make([]string, 0, len(req.SourcePlaylistIDs)+1)
	listed := false
	for _, id := range req.SourcePlaylistIDs {
		if id == req.TargetPlaylistID {
			listed = true
		}
	}
	if req.IncludeTarget && !listed && req.TargetPlaylistID != "" {
		ids = append(ids, req.TargetPlaylistID)
	}
	for _, id := range req.SourcePlaylistIDs {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// fetchPlaylists reads every listing with bounded parallelism. Results are
// slotted by index so the caller-supplied order survives the fan-out.
func (a *Aggregator) fetchPlaylists(
	ctx context.Context,
	source TrackSource,
	playlistIDs []string,
	itemLimit int,
) ([][]PlaylistItem, error) {
	listings := make([][]PlaylistItem, len(playlistIDs))
	if len(playlistIDs) == 0 {
		return listings, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.fetchConcurrency)

	for i, id := range playlistIDs {
		g.Go(func() error {
			items, err := source.PlaylistTracks(gctx, id)
			if err != nil {
				return &SourceFetchError{PlaylistID: id, Err: err}
			}
			if itemLimit > 0 && len(items) > itemLimit {
				items = items[:itemLimit]
			}
			listings[i] = items
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return listings, nil
}

func (a *Aggregator) shuffle(ids []string) {
	swap := func(i, j int) { ids[i], ids[j] = ids[j], ids[i] }
	if a.rng != nil {
		a.rng.Shuffle(len(ids), swap)
		return
	}
	rand.Shuffle(len(ids), swap)
}
