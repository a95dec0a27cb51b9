package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/config"
)

// section is the ini section holding every setting.
const section = "stash"

// Config file keys.
const (
	keyGRPCAddr        = "grpc_addr"
	keyHTTPAddr        = "http_addr"
	keyStore           = "store"
	keyRedisAddr       = "redis_addr"
	keyRedisPassword   = "redis_password"
	keyRedisDB         = "redis_db"
	keyMemcacheServers = "memcache_servers"
	keyPostgresDSN     = "postgres_dsn"
	keyS3Endpoint      = "s3_endpoint"
	keyS3AccessKey     = "s3_access_key"
	keyS3SecretKey     = "s3_secret_key"
	keyS3Bucket        = "s3_bucket"
	keyS3Secure        = "s3_secure"
	keyUpstreamURL     = "upstream_url"
	keyUserAgent       = "user_agent"
	keyMemoryEntries   = "memory_entries"
	keyTTL             = "ttl"
	keyMinInterval     = "minimum_interval"
	keyRateLimitRPS    = "rate_limit_rps"
	keyRateLimitBurst  = "rate_limit_burst"
	keyTraceStdout     = "trace_stdout"
	keyHealthSchedule  = "health_schedule"
)

// Supported durable stores.
const (
	storeMemory   = "memory"
	storeRedis    = "redis"
	storeMemcache = "memcache"
	storePostgres = "postgres"
	storeS3       = "s3"
)

type settings struct {
	GRPCAddr string
	HTTPAddr string

	Store           string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	MemcacheServers []string
	PostgresDSN     string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3Secure        bool

	UpstreamURL     string
	UserAgent       string
	MemoryEntries   int64
	TTL             time.Duration
	MinimumInterval time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
	TraceStdout     bool
	HealthSchedule  string
}

func defaultSettings() settings {
	return settings{
		GRPCAddr:        ":7070",
		HTTPAddr:        ":7071",
		Store:           storeMemory,
		RedisAddr:       "localhost:6379",
		MemcacheServers: []string{"localhost:11211"},
		S3Bucket:        "gorawrstash",
		UserAgent:       "gorawrstash",
		TTL:             10 * time.Minute,
		MinimumInterval: 1100 * time.Millisecond,
		RateLimitBurst:  10,
		HealthSchedule:  "@every 30s",
	}
}

// loadSettings reads path over the defaults. Keys missing from the file keep
// their default; upstream_url is required.
func loadSettings(path string) (settings, error) {
	s := defaultSettings()
	c, err := config.ReadDefault(path)
	if err != nil {
		return s, fmt.Errorf("read %s: %w", path, err)
	}
	r := reader{c: c}

	r.str(keyGRPCAddr, &s.GRPCAddr)
	r.str(keyHTTPAddr, &s.HTTPAddr)
	r.str(keyStore, &s.Store)
	r.str(keyRedisAddr, &s.RedisAddr)
	r.str(keyRedisPassword, &s.RedisPassword)
	r.integer(keyRedisDB, &s.RedisDB)
	r.list(keyMemcacheServers, &s.MemcacheServers)
	r.str(keyPostgresDSN, &s.PostgresDSN)
	r.str(keyS3Endpoint, &s.S3Endpoint)
	r.str(keyS3AccessKey, &s.S3AccessKey)
	r.str(keyS3SecretKey, &s.S3SecretKey)
	r.str(keyS3Bucket, &s.S3Bucket)
	r.boolean(keyS3Secure, &s.S3Secure)
	r.str(keyUpstreamURL, &s.UpstreamURL)
	r.str(keyUserAgent, &s.UserAgent)
	var entries int
	r.integer(keyMemoryEntries, &entries)
	s.MemoryEntries = int64(entries)
	r.duration(keyTTL, &s.TTL)
	r.duration(keyMinInterval, &s.MinimumInterval)
	r.float(keyRateLimitRPS, &s.RateLimitRPS)
	r.integer(keyRateLimitBurst, &s.RateLimitBurst)
	r.boolean(keyTraceStdout, &s.TraceStdout)
	r.str(keyHealthSchedule, &s.HealthSchedule)

	if r.err != nil {
		return s, r.err
	}
	return s, s.validate()
}

func (s settings) validate() error {
	if s.UpstreamURL == "" {
		return fmt.Errorf("%s is required", keyUpstreamURL)
	}
	switch s.Store {
	case storeMemory, storeRedis, storeMemcache, storeS3:
	case storePostgres:
		if s.PostgresDSN == "" {
			return fmt.Errorf("%s is required for store %s", keyPostgresDSN, storePostgres)
		}
	default:
		return fmt.Errorf("unknown store %q", s.Store)
	}
	if s.TTL < 0 {
		return fmt.Errorf("%s must not be negative", keyTTL)
	}
	return nil
}

// reader copies present options into settings and keeps the first error.
type reader struct {
	c   *config.Config
	err error
}

func (r *reader) has(key string) bool {
	return r.err == nil && r.c.HasOption(section, key)
}

func (r *reader) fail(key string, err error) {
	r.err = fmt.Errorf("[%s] %s: %w", section, key, err)
}

func (r *reader) str(key string, dst *string) {
	if !r.has(key) {
		return
	}
	v, err := r.c.String(section, key)
	if err != nil {
		r.fail(key, err)
		return
	}
	*dst = v
}

func (r *reader) list(key string, dst *[]string) {
	var raw string
	r.str(key, &raw)
	if raw == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func (r *reader) integer(key string, dst *int) {
	if !r.has(key) {
		return
	}
	v, err := r.c.Int(section, key)
	if err != nil {
		r.fail(key, err)
		return
	}
	*dst = v
}

func (r *reader) float(key string, dst *float64) {
	if !r.has(key) {
		return
	}
	v, err := r.c.Float(section, key)
	if err != nil {
		r.fail(key, err)
		return
	}
	*dst = v
}

func (r *reader) boolean(key string, dst *bool) {
	if !r.has(key) {
		return
	}
	v, err := r.c.Bool(section, key)
	if err != nil {
		r.fail(key, err)
		return
	}
	*dst = v
}

func (r *reader) duration(key string, dst *time.Duration) {
	var raw string
	r.str(key, &raw)
	if raw == "" {
		return
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		r.fail(key, err)
		return
	}
	*dst = d
}
