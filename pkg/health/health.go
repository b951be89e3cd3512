// Package health serves the liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds one readiness probe, all checks included.
const checkTimeout = 5 * time.Second

// Checker returns nil when the dependency it probes is usable.
type Checker func(ctx context.Context) error

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Response is the probe body. Checks is only filled by readiness.
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

type CheckResult struct {
	Status    Status  `json:"status"`
	Critical  bool    `json:"critical"`
	Error     string  `json:"error,omitempty"`
	LatencyMS float64 `json:"latency_ms"`
}

type check struct {
	fn       Checker
	critical bool
}

// Handler holds named checks. A failing critical check makes readiness
// answer 503; a failing non-critical one only marks it degraded.
type Handler struct {
	mu     sync.RWMutex
	checks map[string]check
}

func NewHandler() *Handler {
	return &Handler{checks: make(map[string]check)}
}

// Register is RegisterCritical.
func (h *Handler) Register(name string, fn Checker) { h.RegisterCritical(name, fn) }

// RegisterCritical adds or replaces a check that gates readiness.
func (h *Handler) RegisterCritical(name string, fn Checker) { h.add(name, fn, true) }

// RegisterNonCritical adds or replaces a check that can only degrade.
func (h *Handler) RegisterNonCritical(name string, fn Checker) { h.add(name, fn, false) }

func (h *Handler) add(name string, fn Checker, critical bool) {
	h.mu.Lock()
	h.checks[name] = check{fn: fn, critical: critical}
	h.mu.Unlock()
}

// LivenessHandler answers 200 while the process can serve HTTP at all.
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		write(w, http.StatusOK, Response{Status: StatusUp, Timestamp: time.Now().UTC()})
	}
}

// ReadinessHandler runs every check in parallel under the request context,
// capped at checkTimeout.
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()

		h.mu.RLock()
		checks := maps.Clone(h.checks)
		h.mu.RUnlock()

		results := h.run(ctx, checks)
		overall := summarize(results)

		code := http.StatusOK
		if overall == StatusDown {
			code = http.StatusServiceUnavailable
		}
		write(w, code, Response{Status: overall, Timestamp: time.Now().UTC(), Checks: results})
	}
}

func (h *Handler) run(ctx context.Context, checks map[string]check) map[string]CheckResult {
	var (
		mu      sync.Mutex
		g       errgroup.Group
		results = make(map[string]CheckResult, len(checks))
	)
	for name, c := range checks {
		g.Go(func() error {
			start := time.Now()
			err := c.fn(ctx)
			res := CheckResult{
				Status:    StatusUp,
				Critical:  c.critical,
				LatencyMS: float64(time.Since(start).Microseconds()) / 1000,
			}
			if err != nil {
				res.Status, res.Error = StatusDown, err.Error()
			}
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func summarize(results map[string]CheckResult) Status {
	overall := StatusUp
	for _, res := range results {
		switch {
		case res.Status != StatusDown:
		case res.Critical:
			return StatusDown
		default:
			overall = StatusDegraded
		}
	}
	return overall
}

func write(w http.ResponseWriter, code int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
