package interceptors

import (
	"context"

	"github.com/Keksclan/goRawrStash/contextx"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// RequestIDHeader is the metadata key carrying the request id in both
// directions.
const RequestIDHeader = "x-request-id"

// ensureRequestID returns the context enriched with a request ID. An id sent
// by the client is kept; otherwise a new one is generated.
func ensureRequestID(ctx context.Context) context.Context {
	if contextx.RequestID(ctx) != "" {
		return ctx
	}
	id := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vs := md.Get(RequestIDHeader); len(vs) > 0 {
			id = vs[0]
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	return contextx.WithRequestID(ctx, id)
}

// RequestIDUnary returns a unary server interceptor that ensures a request ID
// is present in the context and echoes it back as response header.
func RequestIDUnary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx = ensureRequestID(ctx)
		// Fails only outside a real transport stream, e.g. in unit tests.
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, contextx.RequestID(ctx)))
		return handler(ctx, req)
	}
}
