// Package interceptors holds the unary server interceptors of the lookup
// service.
package interceptors

import (
	"context"

	"github.com/Keksclan/goRawrStash/contextx"
	"google.golang.org/grpc"
)

// namespaced is implemented by requests addressed to one namespace, such as
// lookup.ResolveRequest.
type namespaced interface {
	GetNamespace() string
}

// namespaceOf returns the namespace req is addressed to, or "".
func namespaceOf(req any) string {
	if r, ok := req.(namespaced); ok {
		return r.GetNamespace()
	}
	return ""
}

// ChainUnary composes the lookup interceptors into one. They run in slice
// order; nil entries are skipped. The namespace of a namespaced request is
// put on the context before the first interceptor, so every log line of the
// chain carries it.
func ChainUnary(interceptors []grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	chain := make([]grpc.UnaryServerInterceptor, 0, len(interceptors))
	for _, ic := range interceptors {
		if ic != nil {
			chain = append(chain, ic)
		}
	}
	if len(chain) == 0 {
		return nil
	}

	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if ns := namespaceOf(req); ns != "" {
			ctx = contextx.WithNamespace(ctx, ns)
		}
		next := handler
		for i := len(chain) - 1; i > 0; i-- {
			ic, inner := chain[i], next
			next = func(ctx context.Context, req any) (any, error) {
				return ic(ctx, req, info, inner)
			}
		}
		return chain[0](ctx, req, info, next)
	}
}
