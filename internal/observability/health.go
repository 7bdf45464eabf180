package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// worse reports whether a ranks below b.
func (a HealthStatus) worse(b HealthStatus) bool {
	rank := map[HealthStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	return rank[a] > rank[b]
}

type ComponentHealth struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Latency string       `json:"latency,omitempty"`
}

type HealthResponse struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
}

// HealthCheck probes one component. A non-nil error marks it unhealthy
// whatever status is returned.
type HealthCheck func(context.Context) (HealthStatus, string, error)

// StateCheck maps a named state, such as a stream status or breaker state,
// onto a health status. States missing from levels are unhealthy.
func StateCheck(state func() string, levels map[string]HealthStatus) HealthCheck {
	return func(context.Context) (HealthStatus, string, error) {
		s := state()
		if status, ok := levels[s]; ok {
			return status, s, nil
		}
		return StatusUnhealthy, s, nil
	}
}

type HealthChecker struct {
	mu        sync.RWMutex
	checks    map[string]HealthCheck
	logger    *zap.Logger
	startTime time.Time
	version   string
}

func NewHealthChecker(logger *zap.Logger, version string) *HealthChecker {
	return &HealthChecker{
		checks:    make(map[string]HealthCheck),
		logger:    logger,
		startTime: time.Now(),
		version:   version,
	}
}

func (h *HealthChecker) RegisterCheck(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

func (h *HealthChecker) registered() map[string]HealthCheck {
	h.mu.RLock()
	defer h.mu.RUnlock()

	checks := make(map[string]HealthCheck, len(h.checks))
	for name, check := range h.checks {
		checks[name] = check
	}
	return checks
}

// Check runs every registered probe concurrently and folds the results into
// the worst status seen.
func (h *HealthChecker) Check(ctx context.Context) HealthResponse {
	checks := h.registered()

	var mu sync.Mutex
	components := make(map[string]ComponentHealth, len(checks))

	var g errgroup.Group
	for name, check := range checks {
		g.Go(func() error {
			start := time.Now()
			status, message, err := check(ctx)
			if err != nil {
				status, message = StatusUnhealthy, err.Error()
			}

			mu.Lock()
			components[name] = ComponentHealth{
				Status:  status,
				Message: message,
				Latency: time.Since(start).String(),
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	overall := StatusHealthy
	for _, c := range components {
		if c.Status.worse(overall) {
			overall = c.Status
		}
	}

	return HealthResponse{
		Status:     overall,
		Timestamp:  time.Now(),
		Components: components,
		Version:    h.version,
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
	}
}

// Ready reports whether no component is unhealthy. Degraded counts as ready.
func (h *HealthChecker) Ready(ctx context.Context) bool {
	return h.Check(ctx).Status != StatusUnhealthy
}

func (h *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if response.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode health response", zap.Error(err))
	}
}

func (h *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if !h.Ready(ctx) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (h *HealthChecker) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}
