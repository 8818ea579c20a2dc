package ratelimit

import (
	"context"
	"time"
)

// Noop allows everything and accounts for nothing
type Noop struct{}

func disabled() Decision {
	return Decision{Success: true, Pending: done, Reason: ReasonDisabled}
}

func (Noop) Limit(context.Context, string) Decision {
	return disabled()
}

func (Noop) BlockUntilReady(context.Context, string, time.Duration) Decision {
	return disabled()
}

func (Noop) ResetUsedTokens(context.Context, string) {}

func (Noop) GetRemaining(context.Context, string) Decision {
	return disabled()
}
