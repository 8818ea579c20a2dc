package store

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

/* Health is the one-way circuit breaker shared by every user of a Handle.
 * It starts equal to "enabled" and only ever moves from healthy to unhealthy.
 * A new process (or a new Health) is required to try the store again.
 */
type Health struct {
	name    string
	healthy atomic.Bool
	logger  zerolog.Logger
}

// NewHealth creates a Health that starts out healthy when enabled is true
func NewHealth(name string, enabled bool, logger zerolog.Logger) *Health {
	h := &Health{name: name, logger: logger}
	h.healthy.Store(enabled)
	return h
}

// Healthy reports whether the store is still considered reachable
func (h *Health) Healthy() bool {
	if h == nil {
		return false
	}
	return h.healthy.Load()
}

// MarkUnhealthy demotes the store. It returns true only for the call that
// performed the transition; concurrent callers racing on the same failure
// see false and log nothing.
func (h *Health) MarkUnhealthy(err error) bool {
	if h == nil || !h.healthy.CompareAndSwap(true, false) {
		return false
	}
	h.logger.Warn().
		Err(err).
		Str("store", h.name).
		Msg("backing store marked unhealthy, falling back to in-process state")
	return true
}
