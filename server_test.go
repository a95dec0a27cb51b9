package gorawrstash

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Keksclan/goRawrStash/cache"
	"github.com/Keksclan/goRawrStash/fetch"
	"github.com/Keksclan/goRawrStash/lookup"
	"github.com/Keksclan/goRawrStash/policy"
	"github.com/Keksclan/goRawrStash/ratelimit"
	"github.com/Keksclan/goRawrStash/store"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	s, err := NewServer(opts...)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func serve(t *testing.T, s *Server) *lookup.Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	go func() { _ = s.GRPC().Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufconn",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return lookup.NewClient(conn)
}

func TestNewServer(t *testing.T) {
	s := newTestServer(t)
	if s.GRPC() == nil {
		t.Fatal("GRPC() returned nil")
	}
	if s.Fetcher() == nil || s.Memory() == nil {
		t.Fatal("expected shared fetcher and memory tier")
	}
	if s.Store() != nil {
		t.Fatal("expected no durable store by default")
	}
	var h http.Handler = s.MetricsHandler()
	if h == nil {
		t.Fatal("MetricsHandler() returned nil")
	}
	if _, ok := s.GRPC().GetServiceInfo()["stash.Lookup"]; !ok {
		t.Fatal("stash.Lookup service not registered")
	}
}

func TestRegister_EndToEnd(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") == "13" {
			_, _ = w.Write([]byte("Catan"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(upstream.Close)

	reg := prometheus.NewRegistry()
	st := store.NewMemory()
	s := newTestServer(t,
		WithStore(st),
		WithMetrics(reg),
		WithFetcher(fetch.WithMinimumInterval(time.Millisecond)),
	)

	creator := FetchCreator(s.Fetcher(),
		func(key string) fetch.Request {
			return fetch.Request{Endpoint: upstream.URL, Params: url.Values{"id": {key}}}
		},
		func(_ string, body []byte) (string, error) { return string(body), nil },
	)
	if _, err := Register(s, "thing", creator, time.Minute, true); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := Register(s, "thing", creator, time.Minute, true); err == nil {
		t.Fatal("expected duplicate namespace to be rejected")
	}

	client := serve(t, s)
	resp, err := client.Resolve(t.Context(), &lookup.ResolveRequest{Namespace: "thing", Keys: []string{"13", "99"}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := string(resp.Values["13"]); got != `"Catan"` {
		t.Fatalf("value of 13 = %s", got)
	}
	if _, ok := resp.Failed["99"]; !ok {
		t.Fatalf("expected 99 to fail, got %+v", resp)
	}
	if st.Len(store.DefaultPartition) != 1 {
		t.Fatalf("expected one durable record, got %d", st.Len(store.DefaultPartition))
	}

	rec := httptest.NewRecorder()
	s.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`gorawrstash_resolved_keys_total{namespace="thing",source="created"} 1`,
		`gorawrstash_creator_failures_total{namespace="thing"} 1`,
		`gorawrstash_upstream_attempts_total{outcome="ready"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}

func TestRegister_NamespacesShareOneUpstreamSlot(t *testing.T) {
	var inflight, peak, hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		cur := inflight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inflight.Add(-1)
		_, _ = w.Write([]byte(r.URL.Path + "/" + r.URL.Query().Get("id")))
	}))
	t.Cleanup(upstream.Close)

	s := newTestServer(t,
		WithStore(store.NewMemory()),
		WithFetcher(fetch.WithMinimumInterval(time.Millisecond)),
		WithCacheOptions(cache.WithCreatorConcurrency(4)),
	)
	creatorFor := func(path string) cache.Creator[string] {
		return FetchCreator(s.Fetcher(),
			func(key string) fetch.Request {
				return fetch.Request{Endpoint: upstream.URL + path, Params: url.Values{"id": {key}}}
			},
			func(_ string, body []byte) (string, error) { return string(body), nil },
		)
	}
	games, gameCreator := mustRegister(t, s, "thing", creatorFor("/thing"))
	families, familyCreator := mustRegister(t, s, "family", creatorFor("/family"))

	keys := []string{"1", "2", "3", "4", "5", "6"}
	var wg sync.WaitGroup
	results := make([]cache.Result[string], 2)
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0], errs[0] = games.ResolveBatch(t.Context(), keys, true, time.Minute, gameCreator)
	}()
	go func() {
		defer wg.Done()
		results[1], errs[1] = families.ResolveBatch(t.Context(), keys, true, time.Minute, familyCreator)
	}()
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("batch %d: %v", i, err)
		}
	}
	if got := results[0].Values()["3"]; got != "/thing/3" {
		t.Fatalf("thing 3 = %q", got)
	}
	if got := results[1].Values()["3"]; got != "/family/3" {
		t.Fatalf("family 3 = %q", got)
	}
	if n := hits.Load(); n != int32(2*len(keys)) {
		t.Fatalf("upstream hits = %d, want %d", n, 2*len(keys))
	}
	if p := peak.Load(); p != 1 {
		t.Fatalf("peak concurrent upstream calls = %d, want 1", p)
	}
}

func mustRegister(t *testing.T, s *Server, ns string, creator cache.Creator[string]) (*cache.Tiered[string], cache.Creator[string]) {
	t.Helper()
	tc, err := Register(s, ns, creator, time.Minute, true)
	if err != nil {
		t.Fatalf("Register %s: %v", ns, err)
	}
	return tc, creator
}

func TestInterceptorOrder_RecoveryWrapsUserInterceptors(t *testing.T) {
	panicky := func(context.Context, any, *grpc.UnaryServerInfo, grpc.UnaryHandler) (any, error) {
		panic("boom")
	}
	// Registered before WithRecovery; the fixed order still puts recovery first.
	s := newTestServer(t, WithUnaryInterceptor(panicky), WithRecovery())
	client := serve(t, s)

	_, err := client.Ping(t.Context(), &lookup.PingRequest{Message: "hi"})
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}
}

func TestWithRateLimit(t *testing.T) {
	s := newTestServer(t, WithRateLimit(0, 0, map[string]ratelimit.Rule{"thing": {RPS: 0.001, Burst: 1}}))
	creator := func(_ context.Context, key string) (string, error) { return key, nil }
	if _, err := Register(s, "thing", creator, time.Minute, false); err != nil {
		t.Fatalf("Register: %v", err)
	}
	client := serve(t, s)

	req := &lookup.ResolveRequest{Namespace: "thing", Keys: []string{"1"}}
	if _, err := client.Resolve(t.Context(), req); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	if _, err := client.Resolve(t.Context(), req); status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("expected ResourceExhausted, got %v", err)
	}
}

func TestWithPolicies(t *testing.T) {
	s := newTestServer(t, WithPolicies(
		policy.Group("limited").Exact("thing").Policy(policy.Policy{
			RateLimit: &ratelimit.Rule{RPS: 0.001, Burst: 1},
		}),
		policy.Group("slow").Prefix("slow.").Policy(policy.Policy{
			CreatorTimeout: 20 * time.Millisecond,
		}),
	))
	echo := func(_ context.Context, key string) (string, error) { return key, nil }
	blocking := func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if _, err := Register(s, "thing", echo, time.Minute, false); err != nil {
		t.Fatalf("Register thing: %v", err)
	}
	if _, err := Register(s, "family", echo, time.Minute, false); err != nil {
		t.Fatalf("Register family: %v", err)
	}
	slow, err := Register(s, "slow.items", blocking, time.Minute, false)
	if err != nil {
		t.Fatalf("Register slow.items: %v", err)
	}
	client := serve(t, s)

	thing := &lookup.ResolveRequest{Namespace: "thing", Keys: []string{"1"}}
	if _, err := client.Resolve(t.Context(), thing); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	if _, err := client.Resolve(t.Context(), thing); status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("expected ResourceExhausted, got %v", err)
	}
	family := &lookup.ResolveRequest{Namespace: "family", Keys: []string{"1"}}
	for i := 0; i < 3; i++ {
		if _, err := client.Resolve(t.Context(), family); err != nil {
			t.Fatalf("unmatched namespace should be unlimited: %v", err)
		}
	}

	resp, err := client.Resolve(t.Context(), &lookup.ResolveRequest{Namespace: "slow.items", Keys: []string{"1"}})
	if err != nil {
		t.Fatalf("slow Resolve: %v", err)
	}
	if _, ok := resp.Failed["1"]; !ok {
		t.Fatalf("expected the creator timeout to fail key 1, got %+v", resp)
	}
	if slow.Namespace() != "slow.items" {
		t.Fatalf("namespace = %q", slow.Namespace())
	}
}

func TestDefaultOptions(t *testing.T) {
	if n := len(DefaultOptions()); n != 2 {
		t.Fatalf("expected 2 default options, got %d", n)
	}
	newTestServer(t, DefaultOptions()...)
}
