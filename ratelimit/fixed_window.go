package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/marcelsud/plop-reliability/store"
	"github.com/rs/zerolog"
)

/* FixedWindow counts requests per identifier in windows aligned to the epoch.
 * Keys look like ratelimit:{identifier}:{window number} and expire with the window.
 * Any store error demotes the shared Health and the call fails open.
 */
type FixedWindow struct {
	counter store.Counter
	health  *store.Health
	limit   int
	window  time.Duration
	prefix  string
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	logger  zerolog.Logger
}

// Option configures a FixedWindow
type Option func(*FixedWindow)

// WithLimit sets the number of requests per window
func WithLimit(limit int) Option {
	return func(fw *FixedWindow) { fw.limit = limit }
}

// WithWindow sets the window length
func WithWindow(window time.Duration) Option {
	return func(fw *FixedWindow) { fw.window = window }
}

// WithPrefix sets the key prefix
func WithPrefix(prefix string) Option {
	return func(fw *FixedWindow) { fw.prefix = prefix }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(fw *FixedWindow) { fw.now = now }
}

// WithSleep replaces the wait used by BlockUntilReady
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(fw *FixedWindow) { fw.sleep = sleep }
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(fw *FixedWindow) { fw.logger = logger }
}

// NewFixedWindow creates a fixed-window limiter over counter
func NewFixedWindow(counter store.Counter, health *store.Health, opts ...Option) *FixedWindow {
	fw := &FixedWindow{
		counter: counter,
		health:  health,
		limit:   DefaultLimit,
		window:  DefaultWindow,
		prefix:  DefaultPrefix,
		now:     time.Now,
		sleep:   sleepContext,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(fw)
	}
	if fw.window <= 0 {
		fw.window = DefaultWindow
	}
	return fw
}

// Limit consumes one request from the identifier's current window
func (fw *FixedWindow) Limit(ctx context.Context, identifier string) Decision {
	now := fw.now()
	bucket := fw.bucket(now)

	count, err := fw.counter.IncrWindow(ctx, fw.key(identifier, bucket), fw.window)
	if err != nil {
		return fw.failOpen(err, "limit")
	}
	return fw.decide(count, bucket, count <= int64(fw.limit))
}

// BlockUntilReady waits for the next window until a request is allowed or
// timeout elapses. A timed out decision carries ReasonTimeout.
func (fw *FixedWindow) BlockUntilReady(ctx context.Context, identifier string, timeout time.Duration) Decision {
	deadline := fw.now().Add(timeout)
	for {
		decision := fw.Limit(ctx, identifier)
		if decision.Success || !decision.Enforced() {
			return decision
		}

		now := fw.now()
		if !now.Before(deadline) {
			decision.Reason = ReasonTimeout
			return decision
		}
		wait := decision.Reset.Sub(now)
		if until := deadline.Sub(now); wait > until {
			wait = until
		}
		if err := fw.sleep(ctx, wait); err != nil {
			decision.Reason = ReasonTimeout
			return decision
		}
	}
}

// ResetUsedTokens forgets the windows recorded for identifier. A window key
// lives at most one window past its start, so only the current and previous
// buckets can still exist. Keys are deleted exactly, never by pattern.
func (fw *FixedWindow) ResetUsedTokens(ctx context.Context, identifier string) {
	bucket := fw.bucket(fw.now())
	if err := fw.counter.DelCounters(ctx, fw.key(identifier, bucket), fw.key(identifier, bucket-1)); err != nil {
		fw.failOpen(err, "reset")
	}
}

// GetRemaining reports the budget left in the current window without consuming it
func (fw *FixedWindow) GetRemaining(ctx context.Context, identifier string) Decision {
	bucket := fw.bucket(fw.now())

	count, err := fw.counter.Count(ctx, fw.key(identifier, bucket))
	if err != nil {
		return fw.failOpen(err, "remaining")
	}
	return fw.decide(count, bucket, count < int64(fw.limit))
}

func (fw *FixedWindow) decide(count, bucket int64, success bool) Decision {
	remaining := int64(fw.limit) - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Success:   success,
		Limit:     fw.limit,
		Remaining: int(remaining),
		Reset:     time.UnixMilli((bucket + 1) * fw.window.Milliseconds()),
		Pending:   done,
	}
}

func (fw *FixedWindow) failOpen(err error, op string) Decision {
	if !fw.health.MarkUnhealthy(err) {
		fw.logger.Debug().Err(err).Str("op", op).Msg("rate limit store error after demotion")
	}
	return disabled()
}

func (fw *FixedWindow) bucket(now time.Time) int64 {
	return now.UnixMilli() / fw.window.Milliseconds()
}

func (fw *FixedWindow) key(identifier string, bucket int64) string {
	return fmt.Sprintf("%s:%s:%d", fw.prefix, identifier, bucket)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
