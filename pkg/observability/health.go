package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Probe checks a single dependency. Implementations are expected to respect
// the context deadline.
type Probe interface {
	Ping(ctx context.Context) error
}

// ProbeFunc adapts a function to the Probe interface
type ProbeFunc func(ctx context.Context) error

func (f ProbeFunc) Ping(ctx context.Context) error { return f(ctx) }

type dependency struct {
	name     string
	probe    Probe
	critical bool
}

// HealthChecker aggregates the health of all backing stores into one status.
// Critical dependencies (the primary store) make the service unhealthy when
// down; non-critical ones (the migration target, Redis) only degrade it.
type HealthChecker struct {
	deps []dependency
}

// NewHealthChecker creates an empty health checker
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

// AddCritical registers a dependency the service cannot serve without
func (h *HealthChecker) AddCritical(name string, probe Probe) {
	h.deps = append(h.deps, dependency{name: name, probe: probe, critical: true})
}

// AddOptional registers a dependency whose failure only degrades the service
func (h *HealthChecker) AddOptional(name string, probe Probe) {
	h.deps = append(h.deps, dependency{name: name, probe: probe, critical: false})
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ms,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Check probes every registered dependency and folds the results
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Dependencies: make(map[string]DependencyStatus),
	}

	for _, dep := range h.deps {
		start := time.Now()
		err := dep.probe.Ping(ctx)
		depStatus := DependencyStatus{
			Status:    StatusHealthy,
			Latency:   time.Since(start) / time.Millisecond,
			Timestamp: time.Now(),
		}
		if err != nil {
			depStatus.Status = StatusUnhealthy
			depStatus.Message = err.Error()
		}
		status.Dependencies[dep.name] = depStatus

		if err == nil {
			continue
		}
		if dep.critical {
			status.Status = StatusUnhealthy
		} else if status.Status != StatusUnhealthy {
			status.Status = StatusDegraded
		}
	}

	return status
}

// DependencyNames returns the registered dependency names, sorted
func (h *HealthChecker) DependencyNames() []string {
	names := make([]string, 0, len(h.deps))
	for _, dep := range h.deps {
		names = append(names, dep.name)
	}
	sort.Strings(names)
	return names
}

// Liveness returns a simple liveness probe (200 whenever the server runs)
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness probes all dependencies; 503 only when a critical one is down
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if status.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(status)
}
