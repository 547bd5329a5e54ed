// Package metrics provides an in-memory TTL store used for view counting and
// request deduplication. It is injected into services rather than accessed as
// a global so tests can use isolated instances.
package metrics

import (
	"context"
	"sync"
	"time"
)

type item struct {
	value     interface{}
	expiresAt time.Time
}

func (i item) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// TTLStore is a concurrency-safe key/value store with per-entry expiry.
type TTLStore struct {
	mu   sync.RWMutex
	data map[string]item
}

func NewTTLStore() *TTLStore {
	return &TTLStore{data: make(map[string]item)}
}

// Set stores a value with the given TTL. A zero TTL means no expiry.
func (s *TTLStore) Set(key string, value interface{}, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	s.mu.Lock()
	s.data[key] = item{value: value, expiresAt: expiresAt}
	s.mu.Unlock()
}

// Get returns the value for key if present and unexpired.
func (s *TTLStore) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	it, ok := s.data[key]
	s.mu.RUnlock()
	if !ok || it.expired(time.Now()) {
		return nil, false
	}
	return it.value, true
}

// SetNX stores the key only if it is absent or expired. It returns true when
// the key was set, false when a live entry already existed.
func (s *TTLStore) SetNX(key string, ttl time.Duration) bool {
	now := time.Now()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.data[key]; ok && !it.expired(now) {
		return false
	}
	s.data[key] = item{value: struct{}{}, expiresAt: expiresAt}
	return true
}

// Increment adds delta to the int64 counter at key and returns the new value.
// An expired or non-counter entry is reset before incrementing. A zero TTL
// means the counter never expires.
func (s *TTLStore) Increment(key string, delta int64, ttl time.Duration) int64 {
	now := time.Now()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var current int64
	if it, ok := s.data[key]; ok && !it.expired(now) {
		if v, ok := it.value.(int64); ok {
			current = v
		}
		// keep the original expiry for live counters
		expiresAt = it.expiresAt
	}
	current += delta
	s.data[key] = item{value: current, expiresAt: expiresAt}
	return current
}

// Counters returns a snapshot of all live int64 counters.
func (s *TTLStore) Counters() map[string]int64 {
	now := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64)
	for k, it := range s.data {
		if it.expired(now) {
			continue
		}
		if v, ok := it.value.(int64); ok {
			out[k] = v
		}
	}
	return out
}

// Delete removes a key.
func (s *TTLStore) Delete(key string) {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
}

// Len returns the number of stored entries, including expired ones not yet
// swept by the janitor.
func (s *TTLStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// sweep removes expired entries.
func (s *TTLStore) sweep() {
	now := time.Now()
	s.mu.Lock()
	for k, it := range s.data {
		if it.expired(now) {
			delete(s.data, k)
		}
	}
	s.mu.Unlock()
}

// StartJanitor sweeps expired entries every interval until ctx is canceled.
func (s *TTLStore) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}
