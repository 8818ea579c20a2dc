package cache

import (
	"context"
	"fmt"

	"github.com/marcelsud/plop-reliability/store"
)

const (
	TeamFlagPrefix     = "team:"
	TeamFlagTTLSeconds = 300
)

// TeamFlags caches a boolean fact about a tenant to avoid repeated lookups
type TeamFlags struct {
	cache *Cache
}

// NewTeamFlags creates a team flag cache on top of handle
func NewTeamFlags(handle *store.Handle, opts ...Option) *TeamFlags {
	return &TeamFlags{cache: New(handle, TeamFlagPrefix, TeamFlagTTLSeconds, opts...)}
}

// Get returns the cached flag; found=false means the caller must look it up
func (f *TeamFlags) Get(ctx context.Context, teamID string) (value bool, found bool) {
	return GetAs[bool](ctx, f.cache, teamID)
}

// Set caches the flag for teamID
func (f *TeamFlags) Set(ctx context.Context, teamID string, value bool) {
	_ = f.cache.Set(ctx, teamID, value)
}

// Invalidate forgets the flag for teamID
func (f *TeamFlags) Invalidate(ctx context.Context, teamID string) {
	f.cache.Delete(ctx, teamID)
}

// Resolve returns the cached flag or calls load and caches its result.
// A load error is returned as is and nothing is cached.
func (f *TeamFlags) Resolve(ctx context.Context, teamID string, load func(context.Context) (bool, error)) (bool, error) {
	if value, found := f.Get(ctx, teamID); found {
		return value, nil
	}
	value, err := load(ctx)
	if err != nil {
		return false, fmt.Errorf("loading team flag: %w", err)
	}
	f.Set(ctx, teamID, value)
	return value, nil
}
