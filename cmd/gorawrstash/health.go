package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Keksclan/goRawrStash/store"
	"github.com/golang/glog"
)

// health tracks the reachability of the durable store, refreshed by a cron
// job, and serves it on /healthz.
type health struct {
	pinger  store.Pinger
	timeout time.Duration

	mu      sync.RWMutex
	lastErr error
	checked time.Time
}

func newHealth(p store.Pinger) *health {
	return &health{pinger: p, timeout: 5 * time.Second}
}

// check pings the store once. It is registered as a cron job.
func (h *health) check() {
	if h.pinger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	err := h.pinger.Ping(ctx)

	h.mu.Lock()
	prev := h.lastErr
	h.lastErr, h.checked = err, time.Now()
	h.mu.Unlock()

	switch {
	case err != nil && prev == nil:
		glog.Warningf("health: durable store unreachable: %v", err)
	case err == nil && prev != nil:
		glog.Info("health: durable store reachable again")
	}
}

type healthReport struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Checked string `json:"checked,omitempty"`
}

func (h *health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	err, checked := h.lastErr, h.checked
	h.mu.RUnlock()

	rep := healthReport{Status: "ok"}
	if !checked.IsZero() {
		rep.Checked = checked.UTC().Format(time.RFC3339)
	}
	code := http.StatusOK
	if err != nil {
		rep.Status, rep.Error = "degraded", err.Error()
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(rep)
}
