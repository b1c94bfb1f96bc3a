// Package ratelimit provides a per-source sliding window rate limiter.
// State is in-memory only: throttling history is intentionally lost on
// restart, while the cost ledger stays durable.
package ratelimit

import (
	"sync"
	"time"

	"github.com/jarvis-proto/jarvisd/pkg/config"
	"github.com/jarvis-proto/jarvisd/pkg/models"
)

// DefaultLimit applies to sources with no configured limit.
var DefaultLimit = config.RateLimit{Max: 15, Window: time.Minute}

// Limiter throttles requests per source with independent sliding windows.
// Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	limits  map[string]config.RateLimit
	now     func() time.Time
}

// New creates a Limiter with the given per-source limits. Sources absent
// from the map fall back to DefaultLimit.
func New(limits map[string]config.RateLimit) *Limiter {
	l := &Limiter{
		windows: make(map[string][]time.Time),
		limits:  make(map[string]config.RateLimit, len(limits)),
		now:     time.Now,
	}
	for source, rl := range limits {
		l.limits[source] = rl
	}
	return l
}

// Configure sets or replaces the limit for a source.
func (l *Limiter) Configure(source string, max int, window time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limits[source] = config.RateLimit{Max: max, Window: window}
}

// Check prunes the source's window and either records the request or
// rejects it with the time until the oldest entry expires.
func (l *Limiter) Check(source string) models.RateResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit := l.limitFor(source)
	now := l.now()
	window := l.prune(source, now, limit.Window)

	if len(window) >= limit.Max {
		retryAfter := window[0].Add(limit.Window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return models.RateResult{
			Source:     source,
			Allowed:    false,
			Limit:      limit.Max,
			Remaining:  0,
			RetryAfter: retryAfter,
		}
	}

	l.windows[source] = append(window, now)
	return models.RateResult{
		Source:    source,
		Allowed:   true,
		Limit:     limit.Max,
		Remaining: limit.Max - len(l.windows[source]),
	}
}

// Reset clears the window for one source.
func (l *Limiter) Reset(source string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, source)
}

// ResetAll clears every window.
func (l *Limiter) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.windows = make(map[string][]time.Time)
}

// Status reports current utilization per source for observability.
func (l *Limiter) Status() map[string]models.SourceStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	status := make(map[string]models.SourceStatus, len(l.windows))
	for source := range l.windows {
		limit := l.limitFor(source)
		active := len(l.prune(source, now, limit.Window))
		var utilization float64
		if limit.Max > 0 {
			utilization = float64(active) / float64(limit.Max)
		}
		status[source] = models.SourceStatus{
			Active:      active,
			Limit:       limit.Max,
			Utilization: utilization,
		}
	}
	return status
}

// prune drops entries older than the window. Must be called with the lock
// held; returns the surviving entries, which are also stored back.
func (l *Limiter) prune(source string, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	entries := l.windows[source]
	i := 0
	for i < len(entries) && !entries[i].After(cutoff) {
		i++
	}
	entries = entries[i:]
	l.windows[source] = entries
	return entries
}

func (l *Limiter) limitFor(source string) config.RateLimit {
	if rl, ok := l.limits[source]; ok {
		return rl
	}
	return DefaultLimit
}
