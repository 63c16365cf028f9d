// Package ratelimit throttles repeated failed attempts per client key.  It
// counts failures, not requests: a key is blocked once it has collected
// MaxFailures failed outcomes inside one window, and a success clears it.
package ratelimit

import (
	"context"
	"math"
	"time"
)

// Entry is the failure counter of one key.  The window is active while
// now is before ResetAt.
type Entry struct {
	Count   int
	ResetAt time.Time
}

// Store persists entries.  Implementations must drop, or refuse to
// return, entries whose window has ended.
type Store interface {
	// Get returns the active entry for key.
	Get(ctx context.Context, key string, now time.Time) (Entry, bool, error)
	// Increment adds one failure, opening a window of length window when
	// none is active.
	Increment(ctx context.Context, key string, window time.Duration, now time.Time) (Entry, error)
	// Delete forgets key.
	Delete(ctx context.Context, key string) error
	// Sweep removes expired entries and reports how many went.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Decision is the outcome of Allow.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, minimum 1 when
// blocked.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Limiter applies the failure policy over a Store.
type Limiter struct {
	store       Store
	maxFailures int
	window      time.Duration
	now         func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(l *Limiter) { l.now = now } }

// New builds a limiter that blocks a key after maxFailures failures within
// window.
func New(store Store, maxFailures int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{store: store, maxFailures: maxFailures, window: window, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow reports whether key may attempt again.  It does not count the
// attempt; call RecordFailure or Reset once the outcome is known.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	e, ok, err := l.store.Get(ctx, key, now)
	if err != nil {
		return Decision{Allowed: true, Remaining: l.maxFailures}, err
	}
	if !ok {
		return Decision{Allowed: true, Remaining: l.maxFailures}, nil
	}
	if e.Count >= l.maxFailures {
		return Decision{Allowed: false, RetryAfter: e.ResetAt.Sub(now)}, nil
	}
	return Decision{Allowed: true, Remaining: l.maxFailures - e.Count}, nil
}

// RecordFailure counts one failed attempt for key.
func (l *Limiter) RecordFailure(ctx context.Context, key string) (Entry, error) {
	return l.store.Increment(ctx, key, l.window, l.now())
}

// Reset clears key after a successful attempt.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Delete(ctx, key)
}

// Sweep removes expired entries from the store.
func (l *Limiter) Sweep(ctx context.Context) (int, error) {
	return l.store.Sweep(ctx, l.now())
}

// RunSweeper sweeps every interval until ctx is done.  onErr, if set,
// receives sweep errors.
func (l *Limiter) RunSweeper(ctx context.Context, interval time.Duration, onErr func(error)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := l.Sweep(ctx); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}
