// Package ratelimit provides client-side admission control for outbound
// API calls.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultLimit and DefaultWindow match the service's documented
	// request quota for a single client.
	DefaultLimit  = 200
	DefaultWindow = time.Minute
)

// Limiter admits requests against a fixed window that restarts when it
// elapses. Compared to a sliding log this can slightly over-admit at window
// boundaries; acceptable for client-side throttling where the service
// enforces the real quota.
//
// A retry-after hint from the service (see SetRetryAfter) is authoritative
// over the local window: while it is in force every admission fails.
type Limiter struct {
	mu           sync.Mutex
	limit        int
	window       time.Duration
	windowStart  time.Time
	count        int
	blockedUntil time.Time
	now          func() time.Time
}

// New creates a limiter admitting up to limit calls per window.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Admit reports whether a call may proceed, recording the usage when it
// does. A false return has no side effect; the caller must surface a
// rate-limit error or wait and try again.
func (l *Limiter) Admit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Before(l.blockedUntil) {
		return false
	}
	if now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.count = 0
	}
	if l.count >= l.limit {
		return false
	}
	l.count++
	return true
}

// SetRetryAfter applies a hold reported by the service. All admission fails
// until the delay elapses, regardless of local window accounting.
func (l *Limiter) SetRetryAfter(d time.Duration) {
	if d <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	until := l.now().Add(d)
	if until.After(l.blockedUntil) {
		l.blockedUntil = until
	}
}

// Delay returns how long a denied caller should wait before trying again:
// the remainder of a remote hold when one is in force, otherwise the time
// until the local window restarts.
func (l *Limiter) Delay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Before(l.blockedUntil) {
		return l.blockedUntil.Sub(now)
	}
	if l.count >= l.limit {
		if remaining := l.window - now.Sub(l.windowStart); remaining > 0 {
			return remaining
		}
	}
	return 0
}
