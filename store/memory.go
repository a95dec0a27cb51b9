package store

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store. It keeps nothing across restarts and is
// meant for tests and single-process deployments without a backing service.
type Memory struct {
	mu      sync.RWMutex
	records map[string]map[string]Record
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]map[string]Record)}
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, partition string, keys []string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.records[partition]
	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		if r, ok := rows[k]; ok {
			r.Value = bytes.Clone(r.Value)
			out = append(out, r)
		}
	}
	return out, nil
}

// Upsert implements Store.
func (m *Memory) Upsert(ctx context.Context, partition, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, ok := m.records[partition]
	if !ok {
		rows = make(map[string]Record)
		m.records[partition] = rows
	}
	rows[key] = Record{
		PartitionKey: partition,
		RowKey:       key,
		Value:        bytes.Clone(value),
		Timestamp:    time.Now().UTC(),
		ETag:         uuid.NewString(),
	}
	return nil
}

// Len returns the number of records in partition.
func (m *Memory) Len(partition string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records[partition])
}
