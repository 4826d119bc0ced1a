package ratelimit

import (
	"testing"
	"time"
)

func newTestLimiter(limit int, window time.Duration, now *time.Time) *Limiter {
	l := &Limiter{
		entries: make(map[string]*entry),
		limit:   limit,
		window:  window,
		now:     func() time.Time { return *now },
	}
	return l
}

func TestAllowWithinLimit(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(3, time.Minute, &now)

	for i := 0; i < 3; i++ {
		if !l.Allow("user-a") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("user-a") {
		t.Fatal("fourth request should be denied")
	}

	// Other keys are independent.
	if !l.Allow("user-b") {
		t.Fatal("different key should be allowed")
	}
}

func TestWindowReset(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(1, time.Minute, &now)

	if !l.Allow("user-a") {
		t.Fatal("first request should be allowed")
	}
	if l.Allow("user-a") {
		t.Fatal("second request in window should be denied")
	}

	now = now.Add(time.Minute + time.Second)
	if !l.Allow("user-a") {
		t.Fatal("request after window reset should be allowed")
	}
}

func TestCleanupStaleEntries(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(10, time.Minute, &now)

	l.Allow("user-a")
	l.Allow("user-b")
	if got := l.ActiveKeys(); got != 2 {
		t.Fatalf("active keys = %d, want 2", got)
	}

	now = now.Add(3 * time.Minute)
	l.cleanupStaleEntries()
	if got := l.ActiveKeys(); got != 0 {
		t.Fatalf("active keys after cleanup = %d, want 0", got)
	}
}
