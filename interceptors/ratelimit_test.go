package interceptors

import (
	"context"
	"testing"

	"github.com/Keksclan/goRawrStash/contextx"
	"github.com/Keksclan/goRawrStash/ratelimit"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// okHandler is a trivial handler that always succeeds.
func okHandler(_ context.Context, _ any) (any, error) { return "ok", nil }

func codeOf(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	st, _ := status.FromError(err)
	return st.Code()
}

type nsRequest string

func (r nsRequest) GetNamespace() string { return string(r) }

var resolveInfo = &grpc.UnaryServerInfo{FullMethod: "/stash.Lookup/Resolve"}

func TestRateLimitUnary_FallbackOnly(t *testing.T) {
	set := ratelimit.NewSet(ratelimit.NewLimiter(0.001, 2), nil) // burst 2, nearly no refill
	ic := RateLimitUnary(set)

	// First two should pass (burst).
	for i := range 2 {
		if _, err := ic(t.Context(), nsRequest("thing"), resolveInfo, okHandler); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}

	// Third should be rejected.
	_, err := ic(t.Context(), nsRequest("family"), resolveInfo, okHandler)
	if codeOf(err) != codes.ResourceExhausted {
		t.Fatalf("expected ResourceExhausted, got %v", codeOf(err))
	}
}

func TestRateLimitUnary_PerNamespaceRule(t *testing.T) {
	set := ratelimit.NewSet(ratelimit.NewLimiter(1000, 100), map[string]ratelimit.Rule{
		"thing": {RPS: 0.001, Burst: 2},
	})
	ic := RateLimitUnary(set)

	for i := range 2 {
		if _, err := ic(t.Context(), nsRequest("thing"), resolveInfo, okHandler); err != nil {
			t.Fatalf("thing request %d: unexpected error: %v", i, err)
		}
	}
	_, err := ic(t.Context(), nsRequest("thing"), resolveInfo, okHandler)
	if codeOf(err) != codes.ResourceExhausted {
		t.Fatalf("expected ResourceExhausted for thing, got %v", codeOf(err))
	}

	// Other namespaces still use the generous fallback.
	if _, err := ic(t.Context(), nsRequest("family"), resolveInfo, okHandler); err != nil {
		t.Fatalf("family request: unexpected error: %v", err)
	}
}

func TestRateLimitUnary_NoFallbackAdmitsUnruled(t *testing.T) {
	ic := RateLimitUnary(ratelimit.NewSet(nil, nil))
	for i := range 50 {
		if _, err := ic(t.Context(), "ping", resolveInfo, okHandler); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}
}

func TestRateLimitUnary_StoresNamespace(t *testing.T) {
	ic := RateLimitUnary(ratelimit.NewSet(nil, nil))

	var got string
	handler := func(ctx context.Context, _ any) (any, error) {
		got = contextx.Namespace(ctx)
		return nil, nil
	}
	if _, err := ic(t.Context(), nsRequest("thing"), resolveInfo, handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "thing" {
		t.Fatalf("namespace on context = %q, want thing", got)
	}
}
