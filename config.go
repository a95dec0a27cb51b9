package gorawrstash

import (
	"github.com/Keksclan/goRawrStash/cache"
	"github.com/Keksclan/goRawrStash/fetch"
	"github.com/Keksclan/goRawrStash/internal/core"
	"github.com/Keksclan/goRawrStash/policy"
	"github.com/Keksclan/goRawrStash/ratelimit"
	"github.com/Keksclan/goRawrStash/store"
	"github.com/Keksclan/goRawrStash/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
)

// config holds the internal configuration assembled via functional options.
type config struct {
	middlewares core.MiddlewareBuilder

	memoryEntries int64
	memory        *cache.Memory
	store         store.Store

	fetchOpts []fetch.Option
	cacheOpts []cache.Option

	limits   *ratelimit.Set
	policies *policy.Resolver
	tracing  *tracing.Config
	registry *prometheus.Registry

	serverOpts []grpc.ServerOption
}
