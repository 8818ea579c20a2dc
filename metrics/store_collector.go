package metrics

import (
	"context"
	"time"

	"github.com/marcelsud/plop-reliability/store"
	"github.com/redis/go-redis/v9"
)

type poolStatser interface {
	PoolStats() *redis.PoolStats
}

// StoreCollector implements Collector over a store.Handle
type StoreCollector struct {
	handle *store.Handle
	now    func() time.Time
}

// NewStoreCollector creates a collector for handle
func NewStoreCollector(handle *store.Handle) *StoreCollector {
	return &StoreCollector{
		handle: handle,
		now:    time.Now,
	}
}

// Collect gathers the store state and pool usage
func (c *StoreCollector) Collect(ctx context.Context) (Snapshot, error) {
	snapshot := Snapshot{
		Store:     c.GetStoreState(ctx),
		Timestamp: c.now(),
	}
	if pool, ok := c.GetPoolStats(ctx); ok {
		snapshot.Pool = &pool
	}
	return snapshot, nil
}

// GetStoreState reads the handle flags; it never touches the network
func (c *StoreCollector) GetStoreState(_ context.Context) StoreState {
	return StoreState{
		Enabled: c.handle.Enabled(),
		Healthy: c.handle.Healthy(),
	}
}

// GetPoolStats returns the go-redis pool statistics when the backend has a pool
func (c *StoreCollector) GetPoolStats(_ context.Context) (PoolStats, bool) {
	backend, ok := c.handle.Backend().(poolStatser)
	if !ok {
		return PoolStats{}, false
	}
	stats := backend.PoolStats()
	if stats == nil {
		return PoolStats{}, false
	}
	return PoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
		StaleConns: stats.StaleConns,
	}, true
}
