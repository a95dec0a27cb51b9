package store

import "testing"

func TestMemory_Contract(t *testing.T) {
	runStoreSuite(t, NewMemory(), DefaultPartition)
}

func TestMemory_PartitionsAreSeparate(t *testing.T) {
	m := NewMemory()
	ctx := t.Context()

	if err := m.Upsert(ctx, "a", "k", []byte("1")); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	recs, err := m.Get(ctx, "b", []string{"k"})
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected no record in partition b, got %d", len(recs))
	}
	if n := m.Len("a"); n != 1 {
		t.Fatalf("Len(a) = %d, want 1", n)
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := t.Context()

	val := []byte("Catan")
	_ = m.Upsert(ctx, DefaultPartition, "thing:7", val)
	val[0] = 'X'

	recs, _ := m.Get(ctx, DefaultPartition, []string{"thing:7"})
	recs[0].Value[1] = 'Y'

	again, _ := m.Get(ctx, DefaultPartition, []string{"thing:7"})
	if string(again[0].Value) != "Catan" {
		t.Fatalf("stored value was aliased: %q", again[0].Value)
	}
}

func TestMemory_CanceledContext(t *testing.T) {
	m := NewMemory()
	ctx, cancel := contextWithCancel(t)
	cancel()
	if _, err := m.Get(ctx, DefaultPartition, []string{"k"}); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestRowKey(t *testing.T) {
	if got := RowKey("thing", "7"); got != "thing:7" {
		t.Fatalf("RowKey = %q, want %q", got, "thing:7")
	}
}
