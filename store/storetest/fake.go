// Package storetest provides an in-memory store.Backend for tests.
package storetest

import (
	"context"
	"strconv"
	"sync"
	"time"
)

/* Fake is a map-backed store.Backend that counts calls and can be told to fail.
 * TTLs are recorded but never enforced.
 */
type Fake struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	calls  int
	err    error
}

// NewFake creates an empty, healthy fake
func NewFake() *Fake {
	return &Fake{values: make(map[string]string), ttls: make(map[string]time.Duration)}
}

// NewFailing creates a fake whose every call returns err
func NewFailing(err error) *Fake {
	f := NewFake()
	f.err = err
	return f
}

// FailWith makes every subsequent call return err; nil restores the fake
func (f *Fake) FailWith(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Calls returns the number of operations attempted against the fake
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Raw returns the stored value for key, bypassing call accounting
func (f *Fake) Raw(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

// TTL returns the expiry recorded for key
func (f *Fake) TTL(key string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ttls[key]
}

// Put stores a raw value, bypassing call accounting
func (f *Fake) Put(key, value string) {
	f.mu.Lock()
	f.values[key] = value
	f.mu.Unlock()
}

func (f *Fake) begin() error {
	f.calls++
	return f.err
}

func (f *Fake) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return "", false, err
	}
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *Fake) Set(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return err
	}
	f.values[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *Fake) Del(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return err
	}
	delete(f.values, key)
	delete(f.ttls, key)
	return nil
}

func (f *Fake) IncrWindow(_ context.Context, key string, window time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return 0, err
	}
	n := parse(f.values[key]) + 1
	f.values[key] = format(n)
	if n == 1 {
		f.ttls[key] = window
	}
	return n, nil
}

func (f *Fake) Count(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return 0, err
	}
	return parse(f.values[key]), nil
}

func (f *Fake) DelCounters(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return err
	}
	for _, key := range keys {
		delete(f.values, key)
		delete(f.ttls, key)
	}
	return nil
}

// Keys returns every stored key, bypassing call accounting
func (f *Fake) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.values))
	for key := range f.values {
		keys = append(keys, key)
	}
	return keys
}

func (f *Fake) Close() error {
	return nil
}

func parse(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func format(n int64) string {
	return strconv.FormatInt(n, 10)
}
