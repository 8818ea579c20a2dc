package cache

import (
	"context"

	"github.com/marcelsud/plop-reliability/store"
)

const (
	ReplicationPrefix     = "replication:"
	ReplicationTTLSeconds = 15
)

/* ReplicationMarker remembers that a scope (team, mailbox...) was written to
 * recently, so reads for that scope can go to the primary instead of a replica
 * that may still be lagging. Markers expire on their own.
 */
type ReplicationMarker struct {
	cache *Cache
}

// NewReplicationMarker creates a marker cache on top of handle
func NewReplicationMarker(handle *store.Handle, opts ...Option) *ReplicationMarker {
	return &ReplicationMarker{cache: New(handle, ReplicationPrefix, ReplicationTTLSeconds, opts...)}
}

// MarkWrite records a write for scope
func (m *ReplicationMarker) MarkWrite(ctx context.Context, scope string) {
	_ = m.cache.Set(ctx, scope, true)
}

// RecentlyWritten reports whether scope was written within the marker TTL
func (m *ReplicationMarker) RecentlyWritten(ctx context.Context, scope string) bool {
	written, ok := GetAs[bool](ctx, m.cache, scope)
	return ok && written
}

// Clear drops the marker for scope
func (m *ReplicationMarker) Clear(ctx context.Context, scope string) {
	m.cache.Delete(ctx, scope)
}
