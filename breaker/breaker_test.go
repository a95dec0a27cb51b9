package breaker

import (
	"testing"
	"time"
)

func newTestBreaker(cfg Config) (*Breaker, *time.Time) {
	b := New(cfg)
	now := time.Now()
	b.nowFunc = func() time.Time { return now }
	return b, &now
}

func TestClosedToOpen(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3, OpenTimeout: 5 * time.Second})

	if s := b.State(); s != Closed {
		t.Fatalf("expected Closed, got %v", s)
	}

	b.OnFailure()
	b.OnFailure()
	if s := b.State(); s != Closed {
		t.Fatalf("expected Closed after 2 failures, got %v", s)
	}

	b.OnFailure() // 3rd failure => trip
	if s := b.State(); s != Open {
		t.Fatalf("expected Open after 3 failures, got %v", s)
	}
	if b.Allow() {
		t.Fatal("expected Allow()=false in Open state")
	}
}

func TestOpenToHalfOpenAfterTimeout(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 1, OpenTimeout: 5 * time.Second})

	b.OnFailure()
	*now = now.Add(4 * time.Second)
	if b.Allow() {
		t.Fatal("expected blocked before OpenTimeout")
	}

	*now = now.Add(2 * time.Second)
	if s := b.State(); s != HalfOpen {
		t.Fatalf("expected HalfOpen after timeout, got %v", s)
	}
	if !b.Allow() {
		t.Fatal("expected probe allowed in HalfOpen")
	}
}

func TestHalfOpenAllowsSingleProbe(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 1, OpenTimeout: time.Second})

	b.OnFailure()
	*now = now.Add(2 * time.Second)

	if !b.Allow() {
		t.Fatal("expected first probe allowed")
	}
	if b.Allow() {
		t.Fatal("expected second concurrent probe rejected")
	}

	b.Abort()
	if !b.Allow() {
		t.Fatal("expected probe allowed again after Abort")
	}
}

func TestHalfOpenSuccessesClose(t *testing.T) {
	b, now := newTestBreaker(Config{
		FailureThreshold:   1,
		OpenTimeout:        5 * time.Second,
		HalfOpenMaxSuccess: 2,
	})

	b.OnFailure()
	*now = now.Add(6 * time.Second)

	if !b.Allow() {
		t.Fatal("expected first probe allowed")
	}
	b.OnSuccess()
	if s := b.State(); s != HalfOpen {
		t.Fatalf("expected still HalfOpen after 1 success, got %v", s)
	}

	if !b.Allow() {
		t.Fatal("expected second probe allowed")
	}
	b.OnSuccess()
	if s := b.State(); s != Closed {
		t.Fatalf("expected Closed after 2 successes, got %v", s)
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 1, OpenTimeout: 5 * time.Second})

	b.OnFailure()
	*now = now.Add(6 * time.Second)

	if !b.Allow() {
		t.Fatal("expected probe allowed")
	}
	b.OnFailure()
	if s := b.State(); s != Open {
		t.Fatalf("expected Open after HalfOpen failure, got %v", s)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3, OpenTimeout: 5 * time.Second})

	b.OnFailure()
	b.OnFailure()
	b.OnSuccess() // resets count
	b.OnFailure()
	b.OnFailure()
	if s := b.State(); s != Closed {
		t.Fatalf("expected Closed, got %v", s)
	}
}
