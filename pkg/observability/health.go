package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

const probeTimeout = 5 * time.Second

// DependencyStatus is the probe result for one backing service.
type DependencyStatus struct {
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ms,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// HealthStatus aggregates every dependency probe into one verdict.
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// HealthChecker probes the storage backends. Either dependency may be
// nil (the filesystem deployment has neither); nil dependencies are
// skipped rather than reported.
type HealthChecker struct {
	db    *sql.DB
	redis *redis.Client
}

func NewHealthChecker(db *sql.DB, redis *redis.Client) *HealthChecker {
	return &HealthChecker{db: db, redis: redis}
}

// Check probes every configured dependency. A dead database makes the
// service unhealthy; a dead Redis only degrades it, since the cache
// layer falls through to the database.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	overall := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Dependencies: map[string]DependencyStatus{},
	}

	if h.db != nil {
		ds := h.probeDatabase(ctx)
		overall.Dependencies["database"] = ds
		switch ds.Status {
		case StatusUnhealthy:
			overall.Status = StatusUnhealthy
		case StatusDegraded:
			if overall.Status == StatusHealthy {
				overall.Status = StatusDegraded
			}
		}
	}

	if h.redis != nil {
		rs := h.probeRedis(ctx)
		overall.Dependencies["redis"] = rs
		if rs.Status != StatusHealthy && overall.Status == StatusHealthy {
			overall.Status = StatusDegraded
		}
	}

	return overall
}

func (h *HealthChecker) probeDatabase(ctx context.Context) DependencyStatus {
	started := time.Now()
	ds := DependencyStatus{Status: StatusHealthy, Timestamp: started}

	if err := h.db.PingContext(ctx); err != nil {
		ds.Status = StatusUnhealthy
		ds.Message = err.Error()
		ds.Latency = time.Since(started)
		return ds
	}

	var one int
	if err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		ds.Status = StatusUnhealthy
		ds.Message = "query failed: " + err.Error()
		ds.Latency = time.Since(started)
		return ds
	}
	ds.Latency = time.Since(started)

	if stats := h.db.Stats(); stats.MaxOpenConnections > 0 && stats.OpenConnections >= stats.MaxOpenConnections {
		ds.Status = StatusDegraded
		ds.Message = "connection pool exhausted"
	}
	return ds
}

func (h *HealthChecker) probeRedis(ctx context.Context) DependencyStatus {
	started := time.Now()
	ds := DependencyStatus{Status: StatusHealthy, Timestamp: started}

	if err := h.redis.Ping(ctx).Err(); err != nil {
		ds.Status = StatusUnhealthy
		ds.Message = err.Error()
	}
	ds.Latency = time.Since(started)
	return ds
}

// Liveness always reports healthy while the process is serving.
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness probes the dependencies; degraded still serves 200 so the
// instance stays in rotation when only the cache is down.
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
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

// RegisterHealthRoutes mounts the probes on the ops mux.
func RegisterHealthRoutes(mux *http.ServeMux, checker *HealthChecker) {
	mux.HandleFunc("/health", checker.Readiness)
	mux.HandleFunc("/health/live", checker.Liveness)
	mux.HandleFunc("/health/ready", checker.Readiness)
}
