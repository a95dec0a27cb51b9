// Package ratelimit provides token-bucket rate limiters backed by
// golang.org/x/time/rate, used to gate inbound lookup traffic per namespace.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter wraps a token-bucket limiter that decides whether an incoming
// request should be allowed.
type Limiter struct {
	lim *rate.Limiter
}

// NewLimiter creates a Limiter that permits rps requests per second with the
// given burst size.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Allow reports whether a single request may proceed.
func (l *Limiter) Allow() bool {
	return l.lim.Allow()
}

// Wait blocks until a request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.lim.Wait(ctx)
}

// Rule describes the limit applied to one key of a [Set].
type Rule struct {
	RPS   float64
	Burst int
}

// Set holds lazily created limiters keyed by name (a namespace, typically).
// Keys without a rule share the fallback limiter; a nil fallback admits them.
type Set struct {
	fallback *Limiter
	rules    map[string]Rule

	mu       sync.Mutex
	limiters map[string]*Limiter
}

// NewSet creates a Set. rules may be nil.
func NewSet(fallback *Limiter, rules map[string]Rule) *Set {
	own := make(map[string]Rule, len(rules))
	for k, r := range rules {
		own[k] = r
	}
	return &Set{
		fallback: fallback,
		rules:    own,
		limiters: make(map[string]*Limiter),
	}
}

// SetRule adds or replaces the rule of key. A replaced rule starts with a
// fresh bucket.
func (s *Set) SetRule(key string, r Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[key] = r
	delete(s.limiters, key)
}

// For returns the limiter applying to key, or nil when nothing limits it.
func (s *Set) For(key string) *Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[key]
	if !ok {
		return s.fallback
	}
	if l, ok := s.limiters[key]; ok {
		return l
	}
	l := NewLimiter(r.RPS, r.Burst)
	s.limiters[key] = l
	return l
}

// Allow reports whether a request for key may proceed.
func (s *Set) Allow(key string) bool {
	l := s.For(key)
	return l == nil || l.Allow()
}
