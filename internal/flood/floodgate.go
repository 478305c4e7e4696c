// Package flood limits how often a session may trigger expensive actions.
package flood

import (
	"sync"
	"time"
)

const (
	// windowDuration is the fixed time window for rate limiting (always 1 minute)
	windowDuration = 60 * time.Second
	// cleanupInterval is how often idle sessions are evicted
	cleanupInterval = 10 * time.Minute
	// idleTimeout is how long before we remove idle session entries
	idleTimeout = 10 * time.Minute
)

// Floodgate provides per-session, per-action sliding window rate limiting.
// A limit of zero or less disables limiting.
type Floodgate struct {
	limitPerMinute int
	entries        map[string]*sessionEntry // Key: "action:session"
	mutex          sync.RWMutex
	stopCleanup    chan struct{}
	stopOnce       sync.Once
}

type sessionEntry struct {
	timestamps []time.Time // Sliding window of accepted actions
	lastSeen   time.Time
}

// New creates a Floodgate and starts its background cleanup.
func New(limitPerMinute int) *Floodgate {
	fg := &Floodgate{
		limitPerMinute: limitPerMinute,
		entries:        make(map[string]*sessionEntry),
		stopCleanup:    make(chan struct{}),
	}

	go fg.cleanup()

	return fg
}

// Stop stops the background cleanup goroutine. It is safe to call more than once.
func (fg *Floodgate) Stop() {
	fg.stopOnce.Do(func() { close(fg.stopCleanup) })
}

// Allow records an attempt of action by session and reports whether it is
// within the limit. Rejected attempts are not recorded.
func (fg *Floodgate) Allow(action, session string) bool {
	if fg.limitPerMinute <= 0 {
		return true
	}

	key := action + ":" + session
	now := time.Now()

	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	entry, exists := fg.entries[key]
	if !exists {
		entry = &sessionEntry{
			timestamps: make([]time.Time, 0, fg.limitPerMinute+1),
		}
		fg.entries[key] = entry
	}

	entry.lastSeen = now
	entry.prune(now)

	if len(entry.timestamps) >= fg.limitPerMinute {
		return false
	}

	entry.timestamps = append(entry.timestamps, now)
	return true
}

// RetryAfter returns how long session must wait before action is allowed again.
func (fg *Floodgate) RetryAfter(action, session string) time.Duration {
	if fg.limitPerMinute <= 0 {
		return 0
	}

	now := time.Now()

	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	entry, exists := fg.entries[action+":"+session]
	if !exists {
		return 0
	}
	entry.prune(now)
	if len(entry.timestamps) < fg.limitPerMinute {
		return 0
	}
	return entry.timestamps[0].Add(windowDuration).Sub(now)
}

// prune drops timestamps outside the window, reusing the slice.
func (e *sessionEntry) prune(now time.Time) {
	windowStart := now.Add(-windowDuration)
	valid := e.timestamps[:0]
	for _, ts := range e.timestamps {
		if ts.After(windowStart) {
			valid = append(valid, ts)
		}
	}
	e.timestamps = valid
}

func (fg *Floodgate) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			fg.evictIdle(now)
		case <-fg.stopCleanup:
			return
		}
	}
}

// evictIdle forgets sessions not seen since idleTimeout before now.
func (fg *Floodgate) evictIdle(now time.Time) int {
	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	evicted := 0
	for key, entry := range fg.entries {
		if now.Sub(entry.lastSeen) > idleTimeout {
			delete(fg.entries, key)
			evicted++
		}
	}
	return evicted
}

// GetStats returns statistics about the floodgate for monitoring
func (fg *Floodgate) GetStats() Stats {
	fg.mutex.RLock()
	defer fg.mutex.RUnlock()

	return Stats{
		ActiveSessions: len(fg.entries),
		LimitPerMinute: fg.limitPerMinute,
		WindowSeconds:  int(windowDuration.Seconds()),
	}
}

// Stats contains floodgate statistics
type Stats struct {
	ActiveSessions int `json:"active_sessions"`
	LimitPerMinute int `json:"limit_per_minute"`
	WindowSeconds  int `json:"window_seconds"`
}
