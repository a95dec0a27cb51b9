package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/golang/glog"
)

// Memcache is a Store backed by memcached. memcached may evict under memory
// pressure, so it only suits deployments that accept re-creating evicted
// records. Get is a single GetMulti. Row keys are opaque, while memcached
// only takes short keys without spaces or control characters, so items are
// stored under the hex SHA-256 of "<partition>/<row>".
type Memcache struct {
	mc *memcache.Client
}

// NewMemcache creates a store talking to the given memcached servers.
func NewMemcache(servers ...string) *Memcache {
	return &Memcache{mc: memcache.New(servers...)}
}

// Get implements Store. memcached has no context support; ctx is only
// checked before the round trip.
func (m *Memcache) Get(ctx context.Context, partition string, keys []string) ([]Record, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows := make(map[string]string, len(keys))
	skeys := make([]string, len(keys))
	for i, k := range keys {
		skeys[i] = memcacheKey(partition, k)
		rows[skeys[i]] = k
	}

	items, err := m.mc.GetMulti(skeys)
	if err != nil {
		return nil, fmt.Errorf("store: memcache getmulti: %w", err)
	}

	out := make([]Record, 0, len(items))
	for skey, it := range items {
		rec, err := openEnvelope(partition, rows[skey], it.Value)
		if err != nil {
			glog.Warningf("memcache store: %v", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Upsert implements Store.
func (m *Memcache) Upsert(ctx context.Context, partition, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := sealEnvelope(value)
	if err != nil {
		return err
	}
	if err := m.mc.Set(&memcache.Item{Key: memcacheKey(partition, key), Value: raw}); err != nil {
		return fmt.Errorf("store: memcache set %s/%s: %w", partition, key, err)
	}
	return nil
}

// Ping checks that every memcached server answers.
func (m *Memcache) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.mc.Ping()
}

// memcacheKey maps a row key to a 64 character memcached key.
func memcacheKey(partition, key string) string {
	sum := sha256.Sum256([]byte(storageKey(partition, key)))
	return hex.EncodeToString(sum[:])
}
