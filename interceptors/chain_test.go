package interceptors

import (
	"context"
	"slices"
	"testing"

	"github.com/Keksclan/goRawrStash/contextx"
	"google.golang.org/grpc"
)

// tagged records its name, and the namespace it saw, around the handler.
func tagged(tag string, log *[]string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		*log = append(*log, tag+":"+contextx.Namespace(ctx))
		resp, err := handler(ctx, req)
		*log = append(*log, tag+":after")
		return resp, err
	}
}

func TestChainUnary_OrderAndNamespace(t *testing.T) {
	var log []string
	chained := ChainUnary([]grpc.UnaryServerInterceptor{
		tagged("recovery", &log),
		nil,
		tagged("ratelimit", &log),
	})

	handler := func(ctx context.Context, _ any) (any, error) {
		log = append(log, "resolve:"+contextx.Namespace(ctx))
		return "ok", nil
	}

	resp, err := chained(t.Context(), nsRequest("thing"), resolveInfo, handler)
	if err != nil || resp != "ok" {
		t.Fatalf("chained call = %v, %v", resp, err)
	}

	want := []string{"recovery:thing", "ratelimit:thing", "resolve:thing", "ratelimit:after", "recovery:after"}
	if !slices.Equal(log, want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
}

func TestChainUnary_PingCarriesNoNamespace(t *testing.T) {
	var log []string
	chained := ChainUnary([]grpc.UnaryServerInterceptor{tagged("recovery", &log)})
	pingInfo := &grpc.UnaryServerInfo{FullMethod: "/stash.Lookup/Ping"}
	if _, err := chained(t.Context(), struct{}{}, pingInfo, okHandler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log[0] != "recovery:" {
		t.Fatalf("log = %v", log)
	}
}

func TestChainUnary_Empty(t *testing.T) {
	if ChainUnary(nil) != nil {
		t.Fatal("ChainUnary(nil) should return nil")
	}
	if ChainUnary([]grpc.UnaryServerInterceptor{nil, nil}) != nil {
		t.Fatal("a chain of nil interceptors should be nil")
	}
}
