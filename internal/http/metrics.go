package http

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service collectors. It implements core.Recorder.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	TracksWritten prometheus.Counter
	CoversTotal   *prometheus.CounterVec
	ErrorsTotal   *prometheus.CounterVec
	RequestsTotal *prometheus.CounterVec
	RateLimited   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playlistgen_runs_total",
				Help: "Total number of playlist generation runs",
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "playlistgen_run_duration_seconds",
				Help:    "Time spent aggregating and writing a playlist",
				Buckets: prometheus.DefBuckets,
			},
		),
		TracksWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "playlistgen_tracks_written_total",
				Help: "Total number of tracks written to target playlists",
			},
		),
		CoversTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playlistgen_covers_total",
				Help: "Total number of cover uploads",
			},
			[]string{"status"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playlistgen_errors_total",
				Help: "Total number of errors",
			},
			[]string{"component", "type"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playlistgen_http_requests_total",
				Help: "Total number of HTTP requests by handler and status code",
			},
			[]string{"handler", "code", "method"},
		),
		RateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playlistgen_rate_limited_total",
				Help: "Total number of requests rejected by the action limiter",
			},
			[]string{"action"},
		),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.TracksWritten,
		m.CoversTotal,
		m.ErrorsTotal,
		m.RequestsTotal,
		m.RateLimited,
	)

	return m
}

func (m *Metrics) RecordRun(status string, duration time.Duration) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordTracksWritten(count int) {
	m.TracksWritten.Add(float64(count))
}

func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

func (m *Metrics) RecordCover(status string) {
	m.CoversTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordRateLimited(action string) {
	m.RateLimited.WithLabelValues(action).Inc()
}
