// Package limiter enforces the per-run API call budget and the short-term
// sliding-window rate limit shared by every analyzer in a run.
package limiter

import (
	"context"
	"sync"
	"time"

	"github.com/flowmetrics/pipecheck/domain"
)

// Defaults for the call budget and rate window
const (
	DefaultMaxCalls = 100
	DefaultWindow   = 300 * time.Second

	DefaultInitialBackoff = 1 * time.Second
	DefaultMaxBackoff     = 60 * time.Second
	DefaultMultiplier     = 2.0
)

// BackoffConfig holds the exponential backoff parameters applied after
// consecutive request failures
type BackoffConfig struct {
	Enabled    bool
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoff returns the standard backoff configuration
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		Enabled:    true,
		Initial:    DefaultInitialBackoff,
		Max:        DefaultMaxBackoff,
		Multiplier: DefaultMultiplier,
	}
}

// RateLimiter tracks the hard call ceiling and the sliding window of call
// timestamps. All mutation goes through Acquire/RecordSuccess/RecordFailure,
// which are safe for concurrent use; the counters are guarded by a single
// mutex per instance.
type RateLimiter struct {
	mu sync.Mutex

	maxCalls int
	window   time.Duration
	backoff  BackoffConfig

	timestamps []time.Time
	totalCalls int

	consecutiveFailures int

	// Overridable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a rate limiter with the given ceiling and window.
// Non-positive arguments fall back to the defaults.
func New(maxCalls int, window time.Duration, backoff BackoffConfig) *RateLimiter {
	if maxCalls <= 0 {
		maxCalls = DefaultMaxCalls
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RateLimiter{
		maxCalls: maxCalls,
		window:   window,
		backoff:  backoff,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Acquire claims one budget unit. It fails permanently with a
// BUDGET_EXHAUSTED error once the ceiling is reached, and suspends the
// caller while the sliding window is full. On success the call timestamp
// is recorded and the total is incremented.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.totalCalls >= l.maxCalls {
		return domain.NewBudgetExhaustedError(l.totalCalls, l.maxCalls)
	}

	l.prune()

	for len(l.timestamps) >= l.maxCalls {
		// Wait until the oldest call exits the window, then re-check.
		oldest := l.timestamps[0]
		wait := oldest.Add(l.window).Sub(l.now())
		if wait > 0 {
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
		}
		l.prune()
	}

	l.timestamps = append(l.timestamps, l.now())
	l.totalCalls++
	return nil
}

// prune drops timestamps older than the window. Callers must hold the mutex.
func (l *RateLimiter) prune() {
	cutoff := l.now().Add(-l.window)
	kept := l.timestamps[:0]
	for _, ts := range l.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.timestamps = kept
}

// RecordSuccess resets the consecutive-failure counter
func (l *RateLimiter) RecordSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.consecutiveFailures = 0
}

// RecordFailure increments the consecutive-failure counter and, if backoff
// is enabled, suspends for min(initial * multiplier^(failures-1), max)
// before returning control to the caller. The caller decides whether to
// retry.
func (l *RateLimiter) RecordFailure(ctx context.Context) error {
	l.mu.Lock()
	l.consecutiveFailures++
	failures := l.consecutiveFailures
	cfg := l.backoff
	l.mu.Unlock()

	if !cfg.Enabled {
		return nil
	}

	delay := cfg.Initial
	for i := 1; i < failures; i++ {
		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay >= cfg.Max {
			delay = cfg.Max
			break
		}
	}
	if delay > cfg.Max {
		delay = cfg.Max
	}

	return l.sleep(ctx, delay)
}

// Used returns the number of budget units consumed
func (l *RateLimiter) Used() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalCalls
}

// Remaining returns the number of budget units left
func (l *RateLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rem := l.maxCalls - l.totalCalls; rem > 0 {
		return rem
	}
	return 0
}

// Max returns the configured ceiling
func (l *RateLimiter) Max() int {
	return l.maxCalls
}

// InWindow returns the number of calls inside the current window
func (l *RateLimiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune()
	return len(l.timestamps)
}

// ConsecutiveFailures returns the current failure streak
func (l *RateLimiter) ConsecutiveFailures() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.consecutiveFailures
}

// Reset clears all tracking and backoff state
func (l *RateLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timestamps = nil
	l.totalCalls = 0
	l.consecutiveFailures = 0
}
