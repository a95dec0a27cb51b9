package fetch

import (
	"net/http"
	"time"

	"github.com/Keksclan/goRawrStash/breaker"
	"github.com/Keksclan/goRawrStash/metrics"
	"github.com/Keksclan/goRawrStash/tracing"
)

// Defaults match the pacing the upstream tolerates.
const (
	DefaultMinimumInterval = 1100 * time.Millisecond
	DefaultTimeout         = 15 * time.Second
	DefaultMaxAttempts     = 60
	DefaultNotReadyPause   = 50 * time.Millisecond
	DefaultMaxBodyBytes    = 32 << 20
)

// Doer performs HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// NotReadyFunc reports whether a response means "accepted, try later".
type NotReadyFunc func(status int, body []byte) bool

// StatusAccepted is the default NotReadyFunc: HTTP 202 means not ready.
func StatusAccepted(status int, _ []byte) bool {
	return status == http.StatusAccepted
}

type config struct {
	client      Doer
	interval    time.Duration
	timeout     time.Duration
	maxAttempts int
	pause       time.Duration
	maxBody     int64
	userAgent   string
	notReady    NotReadyFunc
	breaker     *breaker.Config
	recorder    metrics.Recorder
	tracing     *tracing.Config
}

func defaultConfig() config {
	return config{
		client:      http.DefaultClient,
		interval:    DefaultMinimumInterval,
		timeout:     DefaultTimeout,
		maxAttempts: DefaultMaxAttempts,
		pause:       DefaultNotReadyPause,
		maxBody:     DefaultMaxBodyBytes,
		notReady:    StatusAccepted,
		recorder:    metrics.Noop{},
	}
}

// Option configures a Fetcher.
type Option func(*config)

// WithClient sets the HTTP client used for upstream calls.
func WithClient(d Doer) Option {
	return func(c *config) { c.client = d }
}

// WithMinimumInterval sets the minimum gap between the completion of one
// upstream call and the start of the next.
func WithMinimumInterval(d time.Duration) Option {
	return func(c *config) { c.interval = d }
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithMaxAttempts sets the polling budget of one logical fetch.
func WithMaxAttempts(n int) Option {
	return func(c *config) { c.maxAttempts = n }
}

// WithNotReadyPause sets the pause between releasing the slot after a
// not-ready answer and queueing for it again.
func WithNotReadyPause(d time.Duration) Option {
	return func(c *config) { c.pause = d }
}

// WithNotReady replaces the not-ready classification.
func WithNotReady(fn NotReadyFunc) Option {
	return func(c *config) { c.notReady = fn }
}

// WithMaxBodyBytes caps the accepted response size.
func WithMaxBodyBytes(n int64) Option {
	return func(c *config) { c.maxBody = n }
}

// WithUserAgent sets the User-Agent header sent upstream.
func WithUserAgent(ua string) Option {
	return func(c *config) { c.userAgent = ua }
}

// WithBreaker guards the upstream with a circuit breaker. Network errors
// and unexpected statuses count as failures; not-ready answers do not.
func WithBreaker(cfg breaker.Config) Option {
	return func(c *config) { c.breaker = &cfg }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *config) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithTracing enables spans for every logical fetch.
func WithTracing(cfg *tracing.Config) Option {
	return func(c *config) { c.tracing = cfg }
}
