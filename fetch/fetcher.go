// Package fetch talks to a slow, rate-sensitive upstream on behalf of every
// caller in the process.
//
// A [Fetcher] owns a single slot: only the caller holding it may have a
// request in flight. While holding the slot the caller first waits until the
// minimum interval has passed since the previous call completed, then makes
// its call. An upstream answer of "accepted, not ready yet" releases the slot,
// pauses briefly so queued callers get their turn, and polls again within a
// bounded budget.
//
// Create one Fetcher per upstream at the composition root and hand it to
// every creator that needs it; separate Fetchers do not pace each other.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Keksclan/goRawrStash/breaker"
	"github.com/Keksclan/goRawrStash/contextx"
	"github.com/Keksclan/goRawrStash/retry"
	"github.com/Keksclan/goRawrStash/tracing"
	"github.com/golang/glog"
	"go.opentelemetry.io/otel/attribute"
)

// Fetcher serializes and paces upstream calls. It is safe for concurrent use.
type Fetcher struct {
	cfg     config
	breaker *breaker.Breaker

	// slot holds one token while a caller owns the upstream.
	slot chan struct{}
	// lastDone is the completion time of the previous attempt. Only the slot
	// holder reads or writes it.
	lastDone time.Time

	now func() time.Time
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	f := &Fetcher{
		cfg:  cfg,
		slot: make(chan struct{}, 1),
		now:  time.Now,
	}
	if cfg.breaker != nil {
		f.breaker = breaker.New(*cfg.breaker)
	}
	return f
}

// MinimumInterval returns the configured pacing interval.
func (f *Fetcher) MinimumInterval() time.Duration { return f.cfg.interval }

// Fetch returns the payload for req once the upstream reports it ready.
//
// Errors: network failures and per-attempt timeouts are returned as soon as
// they happen, wrapped with the request URL; unexpected statuses as
// *StatusError; an exhausted polling budget as *UnavailableError (matching
// ErrUnavailable); an open breaker as ErrCircuitOpen. Cancelling ctx aborts
// any wait for the slot, the pacing interval or the next poll.
func (f *Fetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	ctx, done := f.cfg.tracing.Start(ctx, "fetch", attribute.String("stash.endpoint", req.Endpoint))

	attempts := 0
	body, err := retry.Do(ctx, retry.Config{
		MaxAttempts: f.cfg.maxAttempts,
		BaseDelay:   f.cfg.pause,
		MaxDelay:    f.cfg.pause,
		Retryable:   retry.Is(ErrNotReady),
		OnRetry: func(attempt int, _ error) {
			if glog.V(2) {
				glog.Infof("%sfetch: %s not ready (attempt %d/%d)", contextx.LogPrefix(ctx), req.URL(), attempt, f.cfg.maxAttempts)
			}
		},
	}, func(ctx context.Context) ([]byte, error) {
		attempts++
		return f.attempt(ctx, req)
	})

	if errors.Is(err, ErrNotReady) {
		err = &UnavailableError{URL: req.URL(), Attempts: attempts}
		glog.Warningf("%s%v", contextx.LogPrefix(ctx), err)
	}
	tracing.AddEvent(ctx, "fetch.attempts", attribute.Int("stash.attempts", attempts))
	done(err)
	return body, err
}

// attempt performs one upstream call while holding the slot.
func (f *Fetcher) attempt(ctx context.Context, req Request) ([]byte, error) {
	if f.breaker != nil && !f.breaker.Allow() {
		return nil, ErrCircuitOpen
	}

	if err := f.acquire(ctx); err != nil {
		f.abortBreaker()
		return nil, err
	}
	defer f.release()

	if err := f.pace(ctx); err != nil {
		f.abortBreaker()
		return nil, err
	}

	start := f.now()
	body, err := f.roundTrip(ctx, req)
	f.lastDone = f.now()

	outcome := "ready"
	switch {
	case errors.Is(err, ErrNotReady):
		outcome = "not_ready"
	case err != nil:
		outcome = "error"
	}
	f.cfg.recorder.UpstreamAttempt(outcome, f.lastDone.Sub(start))

	if f.breaker != nil {
		switch {
		case err == nil || errors.Is(err, ErrNotReady):
			f.breaker.OnSuccess()
		case ctx.Err() != nil:
			// The caller gave up; that says nothing about the upstream.
			f.breaker.Abort()
		default:
			f.breaker.OnFailure()
			if f.breaker.State() == breaker.Open {
				glog.Warningf("%sfetch: breaker open after %v", contextx.LogPrefix(ctx), err)
			}
		}
	}
	return body, err
}

func (f *Fetcher) acquire(ctx context.Context) error {
	select {
	case f.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Fetcher) release() {
	<-f.slot
}

// pace blocks until the minimum interval since the last completion has
// elapsed. Must be called with the slot held.
func (f *Fetcher) pace(ctx context.Context) error {
	if f.lastDone.IsZero() {
		return nil
	}
	wait := f.cfg.interval - f.now().Sub(f.lastDone)
	if wait <= 0 {
		return nil
	}
	f.cfg.recorder.PacingWait(wait)

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (f *Fetcher) roundTrip(ctx context.Context, req Request) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.timeout)
	defer cancel()

	u := req.URL()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if f.cfg.userAgent != "" {
		httpReq.Header.Set("User-Agent", f.cfg.userAgent)
	}

	resp, err := f.cfg.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch: %s: %w", u, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("fetch: read %s: %w", u, err)
	}
	if int64(len(body)) > f.cfg.maxBody {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrBodyTooLarge, u, f.cfg.maxBody)
	}

	if f.cfg.notReady(resp.StatusCode, body) {
		return nil, ErrNotReady
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: u, Code: resp.StatusCode}
	}
	return body, nil
}

func (f *Fetcher) abortBreaker() {
	if f.breaker != nil {
		f.breaker.Abort()
	}
}
