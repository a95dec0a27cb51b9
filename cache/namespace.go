package cache

import (
	"time"

	"github.com/Keksclan/goRawrStash/store"
)

// Namespace is a typed view of a [Memory] tier for one entity type. Keys of
// different namespaces never collide, even when their key spaces overlap.
type Namespace[V any] struct {
	mem  *Memory
	name string
}

// NewNamespace returns the view of mem for the entity type called name. name
// must pass [store.CheckNamespace]; [New] enforces that for orchestrators.
func NewNamespace[V any](mem *Memory, name string) *Namespace[V] {
	return &Namespace[V]{mem: mem, name: name}
}

// Name returns the namespace identifier.
func (n *Namespace[V]) Name() string { return n.name }

// Key returns the qualified key under which key is stored. It matches the
// durable row key.
func (n *Namespace[V]) Key(key string) string {
	return store.RowKey(n.name, key)
}

// Get returns the live value cached for key.
func (n *Namespace[V]) Get(key string) (V, bool) {
	var zero V
	e, ok := n.mem.Get(n.Key(key))
	if !ok {
		return zero, false
	}
	v, ok := e.Value.(V)
	if !ok {
		return zero, false
	}
	return v, true
}

// GetMany splits keys into cached values and misses, preserving the order
// of misses.
func (n *Namespace[V]) GetMany(keys []string) (map[string]V, []string) {
	hits := make(map[string]V, len(keys))
	var misses []string
	for _, k := range keys {
		if v, ok := n.Get(k); ok {
			hits[k] = v
			continue
		}
		misses = append(misses, k)
	}
	return hits, misses
}

// Set caches v under key for ttl.
func (n *Namespace[V]) Set(key string, v V, ttl time.Duration) bool {
	return n.mem.Set(n.Key(key), v, ttl)
}

// Delete drops key from the memory tier.
func (n *Namespace[V]) Delete(key string) {
	n.mem.Delete(n.Key(key))
}
