package store

import (
	"bytes"
	"sync"
	"testing"
)

// runStoreSuite checks the Store contract against s. partition should be
// unique per run when s is backed by a shared external service.
func runStoreSuite(t *testing.T, s Store, partition string) {
	t.Helper()
	ctx := t.Context()

	t.Run("MissingKeysAreAbsent", func(t *testing.T) {
		recs, err := s.Get(ctx, partition, []string{"thing:missing-1", "thing:missing-2"})
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		if len(recs) != 0 {
			t.Fatalf("expected no records, got %d", len(recs))
		}
	})

	t.Run("UpsertThenGet", func(t *testing.T) {
		if err := s.Upsert(ctx, partition, "thing:7", []byte("Catan")); err != nil {
			t.Fatalf("Upsert error: %v", err)
		}
		recs, err := s.Get(ctx, partition, []string{"thing:7", "thing:8"})
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		if len(recs) != 1 {
			t.Fatalf("expected 1 record, got %d", len(recs))
		}
		r := recs[0]
		if r.RowKey != "thing:7" || r.PartitionKey != partition {
			t.Fatalf("unexpected address %s/%s", r.PartitionKey, r.RowKey)
		}
		if !bytes.Equal(r.Value, []byte("Catan")) {
			t.Fatalf("got %q, want %q", r.Value, "Catan")
		}
		if r.ETag == "" || r.Timestamp.IsZero() {
			t.Fatalf("expected store-assigned etag and timestamp, got %q %v", r.ETag, r.Timestamp)
		}
	})

	t.Run("UpsertOverwrites", func(t *testing.T) {
		if err := s.Upsert(ctx, partition, "thing:9", []byte("old")); err != nil {
			t.Fatalf("Upsert error: %v", err)
		}
		first, _ := s.Get(ctx, partition, []string{"thing:9"})
		if err := s.Upsert(ctx, partition, "thing:9", []byte("new")); err != nil {
			t.Fatalf("Upsert error: %v", err)
		}
		recs, err := s.Get(ctx, partition, []string{"thing:9"})
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		if len(recs) != 1 || string(recs[0].Value) != "new" {
			t.Fatalf("expected overwritten value, got %+v", recs)
		}
		if len(first) == 1 && first[0].ETag == recs[0].ETag {
			t.Fatal("expected etag to change on overwrite")
		}
	})

	t.Run("ConcurrentUpsertsSameKey", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v := []byte{byte('a' + i)}
				if err := s.Upsert(ctx, partition, "thing:race", v); err != nil {
					t.Errorf("Upsert error: %v", err)
				}
			}()
		}
		wg.Wait()
		recs, err := s.Get(ctx, partition, []string{"thing:race"})
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		if len(recs) != 1 || len(recs[0].Value) != 1 {
			t.Fatalf("expected exactly one surviving value, got %+v", recs)
		}
	})
}
