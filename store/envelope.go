package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// envelope is the serialized form of a record in stores that only hold an
// opaque blob per key (Redis, Memcached).
type envelope struct {
	Value     []byte    `json:"v"`
	Timestamp time.Time `json:"ts"`
	ETag      string    `json:"etag"`
}

func sealEnvelope(value []byte) ([]byte, error) {
	return json.Marshal(envelope{
		Value:     value,
		Timestamp: time.Now().UTC(),
		ETag:      uuid.NewString(),
	})
}

func openEnvelope(partition, key string, raw []byte) (Record, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Record{}, fmt.Errorf("store: corrupt record %s/%s: %w", partition, key, err)
	}
	return Record{
		PartitionKey: partition,
		RowKey:       key,
		Value:        env.Value,
		Timestamp:    env.Timestamp,
		ETag:         env.ETag,
	}, nil
}

// storageKey joins partition and row key for flat key spaces.
func storageKey(partition, key string) string {
	return partition + "/" + key
}
