// Package ratelimit is a coarse fixed-window abuse guard.
//
// The default budget is 10 requests per 10 seconds per identifier. A caller
// can burst up to twice the limit across a window boundary; sliding windows
// and token buckets are not offered.
package ratelimit

import (
	"context"
	"time"
)

const (
	DefaultLimit  = 10
	DefaultWindow = 10 * time.Second
	DefaultPrefix = "ratelimit"

	ReasonDisabled = "disabled"
	ReasonTimeout  = "timeout"
)

/* Decision is produced fresh per call and never persisted.
 * With Reason == ReasonDisabled, Limit and Remaining are 0 and mean
 * "limiting is off", not "no budget left".
 */
type Decision struct {
	Success   bool
	Limit     int
	Remaining int
	Reset     time.Time
	/* Pending is closed once any bookkeeping triggered by the call is done */
	Pending <-chan struct{}
	Reason  string
}

// Enforced reports whether the decision came from an active limiter
func (d Decision) Enforced() bool {
	return d.Reason != ReasonDisabled
}

// Limiter is the rate limiting API used on the request path
type Limiter interface {
	Limit(ctx context.Context, identifier string) Decision
	/* BlockUntilReady retries Limit until it succeeds or timeout elapses */
	BlockUntilReady(ctx context.Context, identifier string, timeout time.Duration) Decision
	ResetUsedTokens(ctx context.Context, identifier string)
	GetRemaining(ctx context.Context, identifier string) Decision
}

var done = func() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()
