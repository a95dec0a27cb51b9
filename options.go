package gorawrstash

import (
	"github.com/Keksclan/goRawrStash/cache"
	"github.com/Keksclan/goRawrStash/fetch"
	"github.com/Keksclan/goRawrStash/interceptors"
	"github.com/Keksclan/goRawrStash/internal/core"
	"github.com/Keksclan/goRawrStash/policy"
	"github.com/Keksclan/goRawrStash/ratelimit"
	"github.com/Keksclan/goRawrStash/store"
	"github.com/Keksclan/goRawrStash/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
)

// orderUser places interceptors added with WithUnaryInterceptor after every
// built-in one.
const orderUser = 100

// Option configures a Server.
type Option func(*config)

// WithUnaryInterceptor appends a unary server interceptor to the lookup
// service chain, after the built-in interceptors.
func WithUnaryInterceptor(i grpc.UnaryServerInterceptor) Option {
	return func(c *config) {
		c.middlewares.Add(orderUser, i)
	}
}

// WithRecovery installs panic recovery so that a panic inside a handler
// returns codes.Internal instead of crashing the process.
func WithRecovery() Option {
	return func(c *config) {
		c.middlewares.Add(core.OrderRecovery, interceptors.RecoveryUnary())
	}
}

// WithRequestID attaches a request id to every call, taken from the
// x-request-id metadata when the client sends one.
func WithRequestID() Option {
	return func(c *config) {
		c.middlewares.Add(core.OrderRequestID, interceptors.RequestIDUnary())
	}
}

// WithRateLimit limits lookup calls per namespace. Namespaces without a rule
// share a limiter of rps requests per second with the given burst; rps <= 0
// leaves them unlimited.
func WithRateLimit(rps float64, burst int, rules map[string]ratelimit.Rule) Option {
	return func(c *config) {
		var fallback *ratelimit.Limiter
		if rps > 0 {
			fallback = ratelimit.NewLimiter(rps, burst)
		}
		c.limits = ratelimit.NewSet(fallback, rules)
	}
}

// WithPolicies applies per-namespace policies to namespaces registered
// later. A group's rate limit overrides the WithRateLimit fallback for each
// namespace it matches; its creator timeout wraps the namespace's creator.
func WithPolicies(groups ...*policy.GroupBuilder) Option {
	return func(c *config) { c.policies = policy.NewResolver(groups...) }
}

// WithOpenTelemetry traces lookup calls, resolutions and upstream fetches.
func WithOpenTelemetry(cfg tracing.Config) Option {
	return func(c *config) {
		c.tracing = &cfg
	}
}

// WithMetrics registers the stash collectors on reg and serves reg from
// [Server.MetricsHandler].
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) { c.registry = reg }
}

// WithMemoryEntries sizes the memory tier created by NewServer.
func WithMemoryEntries(n int64) Option {
	return func(c *config) { c.memoryEntries = n }
}

// WithMemory shares an existing memory tier instead of creating one.
func WithMemory(m *cache.Memory) Option {
	return func(c *config) { c.memory = m }
}

// WithStore sets the durable tier. Without it resolutions use the memory
// tier and creators only.
func WithStore(s store.Store) Option {
	return func(c *config) { c.store = s }
}

// WithFetcher configures the shared upstream fetcher.
func WithFetcher(opts ...fetch.Option) Option {
	return func(c *config) { c.fetchOpts = append(c.fetchOpts, opts...) }
}

// WithCacheOptions applies opts to every namespace registered on the server.
func WithCacheOptions(opts ...cache.Option) Option {
	return func(c *config) { c.cacheOpts = append(c.cacheOpts, opts...) }
}

// WithServerOption passes an option through to grpc.NewServer.
func WithServerOption(o grpc.ServerOption) Option {
	return func(c *config) { c.serverOpts = append(c.serverOpts, o) }
}
