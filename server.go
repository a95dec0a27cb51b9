// Package gorawrstash wires the stash together: one memory tier, one
// durable store and one paced upstream fetcher shared by every namespace,
// plus the stash.Lookup gRPC service exposing the registered namespaces.
//
//	srv, err := gorawrstash.NewServer(
//		gorawrstash.WithRecovery(),
//		gorawrstash.WithStore(store.NewRedis("localhost:6379", "", 0)),
//	)
//	games, err := gorawrstash.Register(srv, "thing", creator, 10*time.Minute, true)
package gorawrstash

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Keksclan/goRawrStash/cache"
	"github.com/Keksclan/goRawrStash/fetch"
	"github.com/Keksclan/goRawrStash/interceptors"
	"github.com/Keksclan/goRawrStash/internal/core"
	"github.com/Keksclan/goRawrStash/lookup"
	"github.com/Keksclan/goRawrStash/metrics"
	"github.com/Keksclan/goRawrStash/policy"
	"github.com/Keksclan/goRawrStash/ratelimit"
	"github.com/Keksclan/goRawrStash/store"
	"github.com/Keksclan/goRawrStash/tracing"
	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
)

// Server owns the shared tiers and the lookup service.
//
// After construction the underlying gRPC server is available through
// [Server.GRPC] so that it can be served, or extended with other services.
type Server struct {
	grpcServer *grpc.Server
	lookup     *lookup.Service

	memory    *cache.Memory
	ownMemory bool
	store     store.Store
	fetcher   *fetch.Fetcher

	limits    *ratelimit.Set
	policies  *policy.Resolver
	recorder  metrics.Recorder
	tracing   *tracing.Config
	cacheOpts []cache.Option
	metrics   http.Handler
}

// NewServer creates a [Server] by applying the supplied functional [Option]
// values. Interceptor execution order is fixed (recovery, request id,
// tracing, rate limit, then user interceptors), not given by the order
// options are passed.
func NewServer(opts ...Option) (*Server, error) {
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}

	s := &Server{
		lookup:    lookup.NewService(),
		memory:    cfg.memory,
		store:     cfg.store,
		limits:    cfg.limits,
		policies:  cfg.policies,
		recorder:  metrics.Noop{},
		tracing:   cfg.tracing,
		cacheOpts: cfg.cacheOpts,
		metrics:   promhttp.Handler(),
	}
	if cfg.registry != nil {
		s.recorder = metrics.NewPrometheus(cfg.registry)
		s.metrics = promhttp.HandlerFor(cfg.registry, promhttp.HandlerOpts{})
	}

	if s.memory == nil {
		m, err := cache.NewMemory(cfg.memoryEntries)
		if err != nil {
			return nil, fmt.Errorf("gorawrstash: memory tier: %w", err)
		}
		s.memory, s.ownMemory = m, true
	}

	fetchOpts := append([]fetch.Option{
		fetch.WithRecorder(s.recorder),
		fetch.WithTracing(cfg.tracing),
	}, cfg.fetchOpts...)
	s.fetcher = fetch.New(fetchOpts...)

	if cfg.tracing != nil {
		cfg.middlewares.Add(core.OrderTracing, tracing.UnaryServerInterceptor(cfg.tracing))
	}
	if s.limits == nil && s.policies != nil {
		s.limits = ratelimit.NewSet(nil, nil)
	}
	if s.limits != nil {
		cfg.middlewares.Add(core.OrderRateLimit, interceptors.RateLimitUnary(s.limits))
	}
	serverOpts := core.BuildServerOptions(cfg.middlewares.Build(), interceptors.ChainUnary, cfg.serverOpts...)

	s.grpcServer = grpc.NewServer(serverOpts...)
	lookup.Register(s.grpcServer, s.lookup)
	return s, nil
}

// Register creates the orchestrator for namespace on the shared tiers and
// exposes it through the lookup service, resolving with creator, ttl and
// useDurable. opts are applied after the server-wide cache options. A policy
// matching namespace adds its rate limit and creator timeout.
func Register[V any](s *Server, namespace string, creator cache.Creator[V], ttl time.Duration, useDurable bool, opts ...cache.Option) (*cache.Tiered[V], error) {
	group, pol, matched := s.policies.Resolve(namespace)
	if matched && pol.CreatorTimeout > 0 {
		creator = Wrap(creator, Timeout[V](pol.CreatorTimeout))
	}

	all := append([]cache.Option{
		cache.WithRecorder(s.recorder),
		cache.WithTracing(s.tracing),
	}, s.cacheOpts...)
	all = append(all, opts...)

	t, err := cache.New[V](s.memory, s.store, namespace, all...)
	if err != nil {
		return nil, err
	}
	if err := s.lookup.Add(lookup.Bind(t, creator, ttl, useDurable)); err != nil {
		return nil, err
	}
	if matched {
		if pol.RateLimit != nil {
			s.limits.SetRule(namespace, *pol.RateLimit)
		}
		glog.V(1).Infof("gorawrstash: namespace %s uses policy group %s", namespace, group)
	}
	return t, nil
}

// GRPC returns the underlying *grpc.Server.
func (s *Server) GRPC() *grpc.Server {
	return s.grpcServer
}

// Fetcher returns the upstream fetcher shared by every creator.
func (s *Server) Fetcher() *fetch.Fetcher {
	return s.fetcher
}

// Memory returns the shared memory tier.
func (s *Server) Memory() *cache.Memory {
	return s.memory
}

// Store returns the durable tier, or nil when none was configured.
func (s *Server) Store() store.Store {
	return s.store
}

// Namespaces lists the registered namespaces.
func (s *Server) Namespaces() []string {
	return s.lookup.Namespaces()
}

// MetricsHandler returns an http.Handler that serves Prometheus metrics.
func (s *Server) MetricsHandler() http.Handler {
	return s.metrics
}

// Close stops the gRPC server and releases the memory tier if the server
// created it.
func (s *Server) Close() {
	s.grpcServer.Stop()
	if s.ownMemory {
		s.memory.Close()
	}
}
