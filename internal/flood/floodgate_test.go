package flood

import (
	"sync"
	"testing"
	"time"
)

func TestFloodgate_Allow_WithinLimit(t *testing.T) {
	fg := New(3) // 3 actions per minute
	defer fg.Stop()

	for i := 0; i < 3; i++ {
		if !fg.Allow("generate", "session1") {
			t.Errorf("Action %d should be allowed", i+1)
		}
	}

	if fg.Allow("generate", "session1") {
		t.Error("4th action should be blocked")
	}
}

func TestFloodgate_Allow_SlidingWindow(t *testing.T) {
	fg := New(2)
	defer fg.Stop()

	if !fg.Allow("generate", "session1") || !fg.Allow("generate", "session1") {
		t.Fatal("First two actions should be allowed")
	}
	if fg.Allow("generate", "session1") {
		t.Error("Third action should be blocked")
	}

	// Move timestamps back by 61 seconds to simulate window expiry
	fg.mutex.Lock()
	if entry, exists := fg.entries["generate:session1"]; exists {
		pastTime := time.Now().Add(-61 * time.Second)
		for i := range entry.timestamps {
			entry.timestamps[i] = pastTime
		}
	}
	fg.mutex.Unlock()

	if !fg.Allow("generate", "session1") {
		t.Error("Action after window slide should be allowed")
	}
}

func TestFloodgate_Allow_PerSessionPerAction(t *testing.T) {
	fg := New(1)
	defer fg.Stop()

	if !fg.Allow("generate", "session1") {
		t.Error("generate for session1 should be allowed")
	}
	if !fg.Allow("cover", "session1") {
		t.Error("cover for session1 should have its own limit")
	}
	if !fg.Allow("generate", "session2") {
		t.Error("session2 should have its own limit")
	}

	if fg.Allow("generate", "session1") {
		t.Error("Extra generate for session1 should be blocked")
	}
	if fg.Allow("cover", "session1") {
		t.Error("Extra cover for session1 should be blocked")
	}
}

func TestFloodgate_RetryAfter(t *testing.T) {
	fg := New(1)
	defer fg.Stop()

	if wait := fg.RetryAfter("generate", "session1"); wait != 0 {
		t.Errorf("Unknown session should not wait, got %v", wait)
	}

	fg.Allow("generate", "session1")
	wait := fg.RetryAfter("generate", "session1")
	if wait <= 50*time.Second || wait > windowDuration {
		t.Errorf("RetryAfter() = %v, want just under %v", wait, windowDuration)
	}

	fg.mutex.Lock()
	fg.entries["generate:session1"].timestamps[0] = time.Now().Add(-61 * time.Second)
	fg.mutex.Unlock()

	if wait := fg.RetryAfter("generate", "session1"); wait != 0 {
		t.Errorf("Expired window should not wait, got %v", wait)
	}
}

func TestFloodgate_GetStats(t *testing.T) {
	fg := New(5)
	defer fg.Stop()

	stats := fg.GetStats()
	if stats.ActiveSessions != 0 {
		t.Errorf("Expected 0 active sessions initially, got %d", stats.ActiveSessions)
	}
	if stats.LimitPerMinute != 5 {
		t.Errorf("Expected limit per minute 5, got %d", stats.LimitPerMinute)
	}
	if stats.WindowSeconds != 60 {
		t.Errorf("Expected window seconds 60, got %d", stats.WindowSeconds)
	}

	fg.Allow("generate", "session1")
	fg.Allow("generate", "session2")
	fg.Allow("cover", "session1")

	stats = fg.GetStats()
	if stats.ActiveSessions != 3 {
		t.Errorf("Expected 3 active entries, got %d", stats.ActiveSessions)
	}
}

func TestFloodgate_EdgeCases(t *testing.T) {
	t.Run("Zero limit disables limiting", func(t *testing.T) {
		fg := New(0)
		defer fg.Stop()

		for i := 0; i < 100; i++ {
			if !fg.Allow("generate", "session1") {
				t.Fatal("Zero limit should never block")
			}
		}
		if fg.RetryAfter("generate", "session1") != 0 {
			t.Error("Zero limit should never ask to wait")
		}
	})

	t.Run("Empty identifiers", func(t *testing.T) {
		fg := New(1)
		defer fg.Stop()

		if !fg.Allow("", "") {
			t.Error("Should allow action with empty identifiers")
		}
		if fg.Allow("", "") {
			t.Error("Second action with empty identifiers should be blocked")
		}
	})

	t.Run("Stop twice", func(t *testing.T) {
		fg := New(1)
		fg.Stop()
		fg.Stop()
	})
}

func TestFloodgate_Cleanup(t *testing.T) {
	fg := New(1)
	defer fg.Stop()

	fg.Allow("generate", "session1")
	fg.Allow("generate", "session2")

	fg.mutex.Lock()
	fg.entries["generate:session1"].lastSeen = time.Now().Add(-idleTimeout - time.Minute)
	fg.mutex.Unlock()

	if evicted := fg.evictIdle(time.Now()); evicted != 1 {
		t.Errorf("Expected one evicted session, got %d", evicted)
	}
	if stats := fg.GetStats(); stats.ActiveSessions != 1 {
		t.Errorf("Expected idle entry to be removed, %d remain", stats.ActiveSessions)
	}
	if !fg.Allow("generate", "session1") {
		t.Error("Cleaned up session should start with a fresh window")
	}
}

func TestFloodgate_ConcurrentAccess(t *testing.T) {
	fg := New(10)
	defer fg.Stop()

	var wg sync.WaitGroup
	var mutex sync.Mutex
	allowed := 0

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if fg.Allow("generate", "session1") {
					mutex.Lock()
					allowed++
					mutex.Unlock()
				}
				fg.GetStats()
			}
		}()
	}
	wg.Wait()

	if allowed != 10 {
		t.Errorf("Expected exactly 10 allowed actions, got %d", allowed)
	}
}
