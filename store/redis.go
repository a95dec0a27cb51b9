package store

import (
	"context"
	"fmt"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a Redis server. Each record is one string key,
// "<partition>/<row>", holding a JSON envelope. Get is a single MGET.
type Redis struct {
	rdb *redis.Client
}

// NewRedis creates a Redis-backed store.
func NewRedis(addr, password string, db int) *Redis {
	return NewRedisFromClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}))
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, partition string, keys []string) ([]Record, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	skeys := make([]string, len(keys))
	for i, k := range keys {
		skeys[i] = storageKey(partition, k)
	}

	vals, err := r.rdb.MGet(ctx, skeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("store: redis mget: %w", err)
	}

	out := make([]Record, 0, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue // nil: missing key
		}
		rec, err := openEnvelope(partition, keys[i], []byte(s))
		if err != nil {
			glog.Warningf("redis store: %v", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Upsert implements Store. Records never expire in Redis.
func (r *Redis) Upsert(ctx context.Context, partition, key string, value []byte) error {
	raw, err := sealEnvelope(value)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, storageKey(partition, key), raw, 0).Err(); err != nil {
		return fmt.Errorf("store: redis set %s/%s: %w", partition, key, err)
	}
	return nil
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
