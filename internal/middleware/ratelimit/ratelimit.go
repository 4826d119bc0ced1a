// Package ratelimit provides a fixed-window request limiter keyed by an
// opaque string, usually the authenticated user ID. The limiter is injected
// into the HTTP layer behind the KeyLimiter interface so tests can swap in
// a deterministic one.
package ratelimit

import (
	"sync"
	"time"
)

// KeyLimiter decides whether a request under the given key may proceed.
type KeyLimiter interface {
	Allow(key string) bool
}

// Limiter is the in-memory fixed-window implementation of KeyLimiter.
type Limiter struct {
	mu           sync.Mutex
	entries      map[string]*entry
	stopCleanup  chan struct{}
	shutdownOnce sync.Once

	limit           int
	window          time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
}

type entry struct {
	windowStart time.Time
	requests    int
}

// Config holds rate limiter configuration
type Config struct {
	Requests        int
	Window          time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Requests:        100,
		Window:          time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewLimiter creates a new rate limiter and starts its cleanup loop.
func NewLimiter(config Config) *Limiter {
	if config.Requests <= 0 || config.Window <= 0 {
		config = DefaultConfig()
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}

	l := &Limiter{
		entries:         make(map[string]*entry),
		stopCleanup:     make(chan struct{}),
		limit:           config.Requests,
		window:          config.Window,
		cleanupInterval: config.CleanupInterval,
		now:             time.Now,
	}
	go l.startCleanup()
	return l
}

// Allow reports whether a request under key fits in the current window.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, exists := l.entries[key]
	if !exists || now.Sub(e.windowStart) > l.window {
		l.entries[key] = &entry{windowStart: now, requests: 1}
		return true
	}

	e.requests++
	return e.requests <= l.limit
}

func (l *Limiter) startCleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanupStaleEntries()
		case <-l.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries drops keys idle for two full windows.
func (l *Limiter) cleanupStaleEntries() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-2 * l.window)
	for key, e := range l.entries {
		if e.windowStart.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}

// ActiveKeys returns the number of currently tracked keys.
func (l *Limiter) ActiveKeys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Stop shuts down the cleanup goroutine.
func (l *Limiter) Stop() {
	l.shutdownOnce.Do(func() {
		close(l.stopCleanup)
	})
}
