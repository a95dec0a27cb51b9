// Package store defines the durable tier of the stash and its backends.
//
// A Store is a partitioned, batch-capable key/value store with per-key
// read-after-write consistency. The stash uses a single partition
// ([DefaultPartition]) and namespaces row keys by entity type.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultPartition is the partition shared by every namespace.
const DefaultPartition = "stash"

// Record is a durable entry. Timestamp and ETag are assigned by the store on
// every write.
type Record struct {
	PartitionKey string
	RowKey       string
	Value        []byte
	Timestamp    time.Time
	ETag         string
}

// Store is the durable tier contract.
type Store interface {
	// Get returns the records that exist for keys in partition, in no
	// particular order. Missing keys are simply absent; that is not an error.
	Get(ctx context.Context, partition string, keys []string) ([]Record, error)

	// Upsert creates or overwrites the record for key. Concurrent writers of
	// the same key are resolved last-write-wins.
	Upsert(ctx context.Context, partition, key string, value []byte) error
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KeySeparator joins a namespace and a key. Namespace names must not contain
// it, or "a:b"/"c" and "a"/"b:c" would share a row.
const KeySeparator = ":"

// CheckNamespace rejects names that cannot be told apart inside row keys.
func CheckNamespace(namespace string) error {
	if namespace == "" {
		return errors.New("store: empty namespace")
	}
	if strings.Contains(namespace, KeySeparator) {
		return fmt.Errorf("store: namespace %q contains %q", namespace, KeySeparator)
	}
	return nil
}

// RowKey qualifies key with the namespace it belongs to. namespace must pass
// [CheckNamespace].
func RowKey(namespace, key string) string {
	return namespace + KeySeparator + key
}
