package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Checker probes a single dependency. A nil error means the dependency is
// reachable and serving.
type Checker func(ctx context.Context) error

// Status is the reported state of the service or one of its dependencies.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

const checkTimeout = 5 * time.Second

// Response is the body returned by the liveness and readiness endpoints.
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of probing one dependency.
type CheckResult struct {
	Status   Status `json:"status"`
	Critical bool   `json:"critical"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

type check struct {
	probe    Checker
	critical bool
}

// Handler serves liveness and readiness probes. Dependencies are registered
// by name and probed concurrently on each readiness request. A failing
// critical dependency makes the service not ready; a failing non-critical
// one only degrades it.
type Handler struct {
	mu     sync.RWMutex
	checks map[string]check
}

// NewHandler creates a health handler with no registered checks.
func NewHandler() *Handler {
	return &Handler{
		checks: make(map[string]check),
	}
}

// Register adds or replaces a named dependency check. The check is treated
// as critical.
func (h *Handler) Register(name string, checker Checker) {
	h.RegisterCritical(name, checker)
}

// RegisterCritical adds a dependency whose failure makes the service not
// ready.
func (h *Handler) RegisterCritical(name string, checker Checker) {
	h.register(name, checker, true)
}

// RegisterNonCritical adds a dependency whose failure degrades the service
// without taking it out of rotation.
func (h *Handler) RegisterNonCritical(name string, checker Checker) {
	h.register(name, checker, false)
}

func (h *Handler) register(name string, checker Checker, critical bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check{probe: checker, critical: critical}
}

// LivenessHandler reports that the process is running. It never probes
// dependencies, so a dead database cannot get the pod restarted.
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, http.StatusOK, Response{
			Status:    StatusUp,
			Timestamp: time.Now().UTC(),
		})
	}
}

// ReadinessHandler probes every registered dependency. It returns 503 when a
// critical dependency is down and 200 with a degraded status when only
// non-critical ones are.
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()

		h.mu.RLock()
		names := make([]string, 0, len(h.checks))
		probes := make([]check, 0, len(h.checks))
		for name, c := range h.checks {
			names = append(names, name)
			probes = append(probes, c)
		}
		h.mu.RUnlock()

		results := make([]CheckResult, len(probes))
		var wg sync.WaitGroup
		for i, c := range probes {
			wg.Add(1)
			go func(i int, c check) {
				defer wg.Done()
				started := time.Now()
				err := c.probe(ctx)
				result := CheckResult{
					Status:   StatusUp,
					Critical: c.critical,
					Duration: time.Since(started).Round(time.Millisecond).String(),
				}
				if err != nil {
					result.Status = StatusDown
					result.Error = err.Error()
				}
				results[i] = result
			}(i, c)
		}
		wg.Wait()

		overall := StatusUp
		checks := make(map[string]CheckResult, len(names))
		for i, name := range names {
			checks[name] = results[i]
			if results[i].Status != StatusDown {
				continue
			}
			if results[i].Critical {
				overall = StatusDown
			} else if overall == StatusUp {
				overall = StatusDegraded
			}
		}

		code := http.StatusOK
		if overall == StatusDown {
			code = http.StatusServiceUnavailable
		}
		writeResponse(w, code, Response{
			Status:    overall,
			Timestamp: time.Now().UTC(),
			Checks:    checks,
		})
	}
}

func writeResponse(w http.ResponseWriter, code int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}
