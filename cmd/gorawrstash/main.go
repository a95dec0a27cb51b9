// Command gorawrstash serves the stash.Lookup gRPC service for the "thing"
// namespace, backed by a memory tier, a configurable durable store and a
// paced HTTP upstream. Prometheus metrics and a store health report are
// served over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	gs "github.com/Keksclan/goRawrStash"
	"github.com/Keksclan/goRawrStash/fetch"
	"github.com/Keksclan/goRawrStash/store"
	"github.com/Keksclan/goRawrStash/tracing"
	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var (
	configPath = flag.String("config", "/etc/gorawrstash/stash.ini", "path to the ini configuration file")
	grpcAddr   = flag.String("grpc_addr", "", "overrides grpc_addr from the configuration file")
	httpAddr   = flag.String("http_addr", "", "overrides http_addr from the configuration file")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	if err := run(); err != nil {
		glog.Errorf("gorawrstash: %v", err)
		glog.Flush()
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadSettings(*configPath)
	if err != nil {
		return err
	}
	if *grpcAddr != "" {
		cfg.GRPCAddr = *grpcAddr
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()

	opts := append(gs.DefaultOptions(),
		gs.WithStore(st),
		gs.WithMemoryEntries(cfg.MemoryEntries),
		gs.WithFetcher(
			fetch.WithMinimumInterval(cfg.MinimumInterval),
			fetch.WithUserAgent(cfg.UserAgent),
		),
		gs.WithMetrics(reg),
		gs.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, nil),
	)
	if cfg.TraceStdout {
		tp, err := stdoutTracer()
		if err != nil {
			return err
		}
		defer func() { _ = tp.Shutdown(context.Background()) }()
		opts = append(opts, gs.WithOpenTelemetry(tracing.Config{
			TracerProvider: tp,
			Propagators:    propagation.TraceContext{},
		}))
	}

	srv, err := gs.NewServer(opts...)
	if err != nil {
		return err
	}
	defer srv.Close()

	upstream := cfg.UpstreamURL
	creator := gs.FetchCreator(srv.Fetcher(),
		func(key string) fetch.Request {
			return fetch.Request{Endpoint: upstream, Params: url.Values{"id": {key}}}
		},
		func(_ string, body []byte) (string, error) { return string(body), nil },
	)
	if _, err := gs.Register(srv, "thing", creator, cfg.TTL, true); err != nil {
		return err
	}

	h := newHealth(pingerOf(st))
	h.check()
	c := cron.New()
	if err := c.AddFunc(cfg.HealthSchedule, h.check); err != nil {
		return fmt.Errorf("health schedule %q: %w", cfg.HealthSchedule, err)
	}
	c.Start()
	defer c.Stop()

	r := mux.NewRouter()
	r.Handle("/metrics", srv.MetricsHandler()).Methods(http.MethodGet)
	r.Handle("/healthz", h).Methods(http.MethodGet)
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}

	errc := make(chan error, 2)
	go func() {
		glog.Infof("gorawrstash: lookup service listening on %s (store %s)", lis.Addr(), cfg.Store)
		errc <- srv.GRPC().Serve(lis)
	}()
	go func() {
		glog.Infof("gorawrstash: metrics and health on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
		glog.Info("gorawrstash: shutting down")
	case err := <-errc:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	srv.GRPC().GracefulStop()
	return nil
}

// openStore builds the configured durable store and returns a func
// releasing it.
func openStore(ctx context.Context, cfg settings) (store.Store, func(), error) {
	noop := func() {}
	switch cfg.Store {
	case storeRedis:
		r := store.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		return r, func() { _ = r.Close() }, nil
	case storeMemcache:
		return store.NewMemcache(cfg.MemcacheServers...), noop, nil
	case storePostgres:
		p, err := store.OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, noop, err
		}
		if err := p.EnsureSchema(ctx); err != nil {
			_ = p.Close()
			return nil, noop, fmt.Errorf("postgres schema: %w", err)
		}
		return p, func() { _ = p.Close() }, nil
	case storeS3:
		o, err := store.NewObjects(store.ObjectsConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Secure:    cfg.S3Secure,
		})
		if err != nil {
			return nil, noop, err
		}
		if err := o.EnsureBucket(ctx); err != nil {
			return nil, noop, fmt.Errorf("s3 bucket: %w", err)
		}
		return o, noop, nil
	default:
		return store.NewMemory(), noop, nil
	}
}

func pingerOf(st store.Store) store.Pinger {
	p, _ := st.(store.Pinger)
	return p
}

func stdoutTracer() (*sdktrace.TracerProvider, error) {
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("stdout exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp)), nil
}
