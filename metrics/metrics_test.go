package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheus_CountsResolvedBySource(t *testing.T) {
	p := NewPrometheus(prometheus.NewRegistry())

	p.Resolved("thing", "memory", 3)
	p.Resolved("thing", "memory", 2)
	p.Resolved("thing", "created", 1)
	p.Resolved("thing", "durable", 0) // zero is ignored

	if got := testutil.ToFloat64(p.resolved.WithLabelValues("thing", "memory")); got != 5 {
		t.Fatalf("memory hits = %v, want 5", got)
	}
	if got := testutil.ToFloat64(p.resolved.WithLabelValues("thing", "created")); got != 1 {
		t.Fatalf("created = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(p.resolved); n != 2 {
		t.Fatalf("expected 2 label sets, got %d", n)
	}
}

func TestPrometheus_FailuresAndUpstream(t *testing.T) {
	p := NewPrometheus(prometheus.NewRegistry())

	p.CreatorFailed("thing")
	p.CreatorFailed("thing")
	p.WriteThroughFailed("family")
	p.UpstreamAttempt("not_ready", 40*time.Millisecond)
	p.UpstreamAttempt("ready", 120*time.Millisecond)
	p.PacingWait(time.Second)

	if got := testutil.ToFloat64(p.creatorFails.WithLabelValues("thing")); got != 2 {
		t.Fatalf("creator failures = %v, want 2", got)
	}
	if got := testutil.ToFloat64(p.writeFails.WithLabelValues("family")); got != 1 {
		t.Fatalf("write-through failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.attempts.WithLabelValues("ready")); got != 1 {
		t.Fatalf("ready attempts = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(p.attemptTime); n != 1 {
		t.Fatalf("expected attempt histogram to be collected, got %d", n)
	}
}

func TestNoopSatisfiesRecorder(t *testing.T) {
	var r Recorder = Noop{}
	r.Resolved("x", "memory", 1)
	r.UpstreamAttempt("ready", time.Millisecond)
}
