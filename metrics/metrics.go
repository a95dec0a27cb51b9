// Package metrics records what the stash does: which tier answered a key,
// how often creators and write-throughs fail, and how the upstream behaves.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder receives stash events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// Resolved counts keys of namespace answered by source ("memory",
	// "durable", "created", "recheck").
	Resolved(namespace, source string, n int)
	// CreatorFailed counts a creator error for one key.
	CreatorFailed(namespace string)
	// WriteThroughFailed counts a durable upsert that failed after a
	// successful creation.
	WriteThroughFailed(namespace string)
	// UpstreamAttempt records one upstream call with its outcome ("ready",
	// "not_ready", "error") and duration.
	UpstreamAttempt(outcome string, d time.Duration)
	// PacingWait records how long a fetch waited for the pacing interval.
	PacingWait(d time.Duration)
}

// Noop discards every event.
type Noop struct{}

func (Noop) Resolved(string, string, int)          {}
func (Noop) CreatorFailed(string)                  {}
func (Noop) WriteThroughFailed(string)             {}
func (Noop) UpstreamAttempt(string, time.Duration) {}
func (Noop) PacingWait(time.Duration)              {}

// Prometheus is a Recorder backed by Prometheus collectors.
type Prometheus struct {
	resolved     *prometheus.CounterVec
	creatorFails *prometheus.CounterVec
	writeFails   *prometheus.CounterVec
	attempts     *prometheus.CounterVec
	attemptTime  prometheus.Histogram
	pacingWait   prometheus.Histogram
}

// NewPrometheus registers the stash collectors with reg. A nil reg uses
// prometheus.DefaultRegisterer. Registering twice on the same registry
// panics, as with any Prometheus collector.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Prometheus{
		resolved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gorawrstash",
			Name:      "resolved_keys_total",
			Help:      "Keys resolved, by namespace and answering tier.",
		}, []string{"namespace", "source"}),
		creatorFails: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gorawrstash",
			Name:      "creator_failures_total",
			Help:      "Creator invocations that returned an error.",
		}, []string{"namespace"}),
		writeFails: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gorawrstash",
			Name:      "write_through_failures_total",
			Help:      "Durable upserts that failed after a successful creation.",
		}, []string{"namespace"}),
		attempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gorawrstash",
			Name:      "upstream_attempts_total",
			Help:      "Upstream calls, by outcome.",
		}, []string{"outcome"}),
		attemptTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gorawrstash",
			Name:      "upstream_attempt_seconds",
			Help:      "Duration of single upstream calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		pacingWait: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gorawrstash",
			Name:      "pacing_wait_seconds",
			Help:      "Time spent waiting for the minimum upstream interval.",
			Buckets:   prometheus.LinearBuckets(0, 0.25, 8),
		}),
	}
}

func (p *Prometheus) Resolved(namespace, source string, n int) {
	if n > 0 {
		p.resolved.WithLabelValues(namespace, source).Add(float64(n))
	}
}

func (p *Prometheus) CreatorFailed(namespace string) {
	p.creatorFails.WithLabelValues(namespace).Inc()
}

func (p *Prometheus) WriteThroughFailed(namespace string) {
	p.writeFails.WithLabelValues(namespace).Inc()
}

func (p *Prometheus) UpstreamAttempt(outcome string, d time.Duration) {
	p.attempts.WithLabelValues(outcome).Inc()
	p.attemptTime.Observe(d.Seconds())
}

func (p *Prometheus) PacingWait(d time.Duration) {
	p.pacingWait.Observe(d.Seconds())
}
