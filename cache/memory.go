// Package cache resolves batches of keys across a process-local memory tier,
// a durable store and a caller-supplied creator.
package cache

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// DefaultMaxEntries is the memory tier capacity used when none is given.
const DefaultMaxEntries = 100_000

// Entry is a value held by the memory tier together with its deadline.
// A zero ExpiresAt never expires.
type Entry struct {
	Value     any
	ExpiresAt time.Time
}

// Expired reports whether e must no longer be served at now.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Memory is the process-local tier, backed by ristretto. It is shared by
// every namespace; see [Namespace] for typed, collision-free access.
type Memory struct {
	rc  *ristretto.Cache[string, Entry]
	now func() time.Time
}

// NewMemory creates a memory tier holding up to maxEntries entries (each
// entry has a cost of 1).
func NewMemory(maxEntries int64) (*Memory, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	rc, err := ristretto.NewCache(&ristretto.Config[string, Entry]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Memory{rc: rc, now: time.Now}, nil
}

// Get returns the live entry stored under key. Expired entries are reported
// as a miss; ristretto's TTL sweep removes them.
func (m *Memory) Get(key string) (Entry, bool) {
	e, ok := m.rc.Get(key)
	if !ok {
		return Entry{}, false
	}
	if e.Expired(m.now()) {
		return Entry{}, false
	}
	return e, true
}

// Set stores v under key for ttl. A zero ttl never expires; a negative ttl
// stores nothing. Set reports whether the entry was admitted.
func (m *Memory) Set(key string, v any, ttl time.Duration) bool {
	if ttl < 0 {
		return false
	}
	e := Entry{Value: v}
	if ttl > 0 {
		e.ExpiresAt = m.now().Add(ttl)
	}
	ok := m.rc.SetWithTTL(key, e, 1, ttl)
	m.rc.Wait()
	return ok
}

// Delete removes key.
func (m *Memory) Delete(key string) {
	m.rc.Del(key)
}

// Close stops the ristretto goroutines. The tier must not be used afterwards.
func (m *Memory) Close() {
	m.rc.Close()
}
