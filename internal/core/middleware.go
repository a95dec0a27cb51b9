// Package core holds the wiring shared by the root server: ordered
// interceptor collection and server option assembly.
package core

import (
	"cmp"
	"slices"

	"google.golang.org/grpc"
)

// Fixed positions of the built-in interceptors. Lower values run first.
const (
	OrderRecovery  = 10
	OrderRequestID = 20
	OrderTracing   = 30
	OrderRateLimit = 40
)

// middleware is a single interceptor with a deterministic execution order.
type middleware struct {
	Unary grpc.UnaryServerInterceptor
	Order int
}

// MiddlewareBuilder collects interceptors and produces them sorted, ready
// for chaining.
type MiddlewareBuilder struct {
	entries []middleware
}

// Add registers an interceptor at the given order. A nil interceptor is
// ignored.
func (b *MiddlewareBuilder) Add(order int, unary grpc.UnaryServerInterceptor) {
	if unary == nil {
		return
	}
	b.entries = append(b.entries, middleware{Unary: unary, Order: order})
}

// Len reports how many interceptors were added.
func (b *MiddlewareBuilder) Len() int { return len(b.entries) }

// Build sorts the collected interceptors by Order (stable) and returns them.
func (b *MiddlewareBuilder) Build() []grpc.UnaryServerInterceptor {
	slices.SortStableFunc(b.entries, func(a, c middleware) int {
		return cmp.Compare(a.Order, c.Order)
	})

	unary := make([]grpc.UnaryServerInterceptor, 0, len(b.entries))
	for _, m := range b.entries {
		unary = append(unary, m.Unary)
	}
	return unary
}
