package cache

import (
	"sync"
	"time"
)

/* entry is the in-process fallback record; zero expiresAt means no expiry */
type entry struct {
	value     string
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

/* memory is the per-cache fallback map
 * Expiry is lazy: entries are checked and dropped on read, there is no sweeper
 */
type memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func newMemory(now func() time.Time) *memory {
	return &memory{entries: make(map[string]entry), now: now}
}

func (m *memory) get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return "", false
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		return "", false
	}
	return e.value, true
}

func (m *memory) set(key, value string, ttl time.Duration) {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
}

func (m *memory) delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

func (m *memory) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
