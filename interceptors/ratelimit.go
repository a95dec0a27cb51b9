package interceptors

import (
	"context"

	"github.com/Keksclan/goRawrStash/contextx"
	"github.com/Keksclan/goRawrStash/ratelimit"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// errRateLimited is allocated once to avoid per-request allocations on the hot path.
var errRateLimited = status.Error(codes.ResourceExhausted, "rate limit exceeded")

// RateLimitUnary returns a unary server interceptor that rejects requests when
// the limiter of the addressed namespace has been exhausted. Requests without
// a namespace are checked against the limiter for "". The namespace is also
// stored on the context for downstream log lines.
func RateLimitUnary(set *ratelimit.Set) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ns := namespaceOf(req)
		if ns != "" {
			ctx = contextx.WithNamespace(ctx, ns)
		}
		if !set.Allow(ns) {
			return nil, errRateLimited
		}
		return handler(ctx, req)
	}
}
