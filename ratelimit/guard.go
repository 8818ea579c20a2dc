package ratelimit

import (
	"context"
	"time"

	"github.com/marcelsud/plop-reliability/store"
)

/* guard re-checks the store on every call and routes to Noop whenever it is
 * disabled or has been demoted. Nothing is cached, so a demotion in the middle
 * of the process turns enforcement off from the next call on.
 */
type guard struct {
	handle *store.Handle
	fixed  *FixedWindow
}

// New returns the limiter the application should use
func New(handle *store.Handle, opts ...Option) Limiter {
	if handle == nil {
		handle = store.Disabled()
	}
	g := &guard{handle: handle}
	if handle.Enabled() {
		g.fixed = NewFixedWindow(handle.Counter(), handle.Health(), opts...)
	}
	return g
}

func (g *guard) active() Limiter {
	if g.fixed == nil || !g.handle.Available() {
		return Noop{}
	}
	return g.fixed
}

func (g *guard) Limit(ctx context.Context, identifier string) Decision {
	return g.active().Limit(ctx, identifier)
}

func (g *guard) BlockUntilReady(ctx context.Context, identifier string, timeout time.Duration) Decision {
	return g.active().BlockUntilReady(ctx, identifier, timeout)
}

func (g *guard) ResetUsedTokens(ctx context.Context, identifier string) {
	g.active().ResetUsedTokens(ctx, identifier)
}

func (g *guard) GetRemaining(ctx context.Context, identifier string) Decision {
	return g.active().GetRemaining(ctx, identifier)
}
