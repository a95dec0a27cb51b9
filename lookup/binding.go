package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Keksclan/goRawrStash/cache"
)

// Binding resolves keys of one namespace for the service.
type Binding interface {
	Namespace() string
	Resolve(ctx context.Context, keys []string) (*ResolveResponse, error)
}

type binding[V any] struct {
	tiered     *cache.Tiered[V]
	creator    cache.Creator[V]
	ttl        time.Duration
	useDurable bool
}

// Bind exposes t through the service. Every request resolves with creator,
// ttl and useDurable; values are sent as JSON.
func Bind[V any](t *cache.Tiered[V], creator cache.Creator[V], ttl time.Duration, useDurable bool) Binding {
	return &binding[V]{tiered: t, creator: creator, ttl: ttl, useDurable: useDurable}
}

func (b *binding[V]) Namespace() string { return b.tiered.Namespace() }

// Resolve runs one batch. Per-key failures, including those reported by a
// strict Tiered, end up in ResolveResponse.Failed; any other error is
// returned.
func (b *binding[V]) Resolve(ctx context.Context, keys []string) (*ResolveResponse, error) {
	res, err := b.tiered.ResolveBatch(ctx, keys, b.useDurable, b.ttl, b.creator)
	var batchErr *cache.BatchError
	if err != nil && !errors.As(err, &batchErr) {
		return nil, err
	}

	resp := &ResolveResponse{
		Values: make(map[string]json.RawMessage, len(res)),
		Failed: make(map[string]string),
	}
	for k, o := range res {
		if !o.OK() {
			resp.Failed[k] = o.Err.Error()
			continue
		}
		raw, err := json.Marshal(o.Value)
		if err != nil {
			resp.Failed[k] = fmt.Sprintf("encode: %v", err)
			continue
		}
		resp.Values[k] = raw
	}
	return resp, nil
}
