package metrics

import (
	"context"
	"time"
)

// Snapshot represents the current state of the reliability layer.
type Snapshot struct {
	// Store is the backing store state as seen by this process
	Store StoreState `json:"store"`

	// Pool is the connection pool usage, nil when the store is disabled
	Pool *PoolStats `json:"pool,omitempty"`

	// Timestamp when the snapshot was collected
	Timestamp time.Time `json:"timestamp"`
}

// StoreState mirrors store.Handle.
type StoreState struct {
	// Enabled is fixed at startup from configuration
	Enabled bool `json:"enabled"`

	// Healthy only ever moves from true to false
	Healthy bool `json:"healthy"`
}

// PoolStats is the connection pool usage of the backing store client.
type PoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
	StaleConns uint32 `json:"stale_conns"`
}

// Collector defines the interface for collecting process-local state.
type Collector interface {
	// Collect gathers a full snapshot
	Collect(ctx context.Context) (Snapshot, error)

	// GetStoreState returns the enabled/healthy flags
	GetStoreState(ctx context.Context) StoreState

	// GetPoolStats returns pool usage; false when there is no pool
	GetPoolStats(ctx context.Context) (PoolStats, bool)
}
