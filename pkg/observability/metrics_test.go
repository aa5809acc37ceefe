package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersEverything(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	require.NotNil(t, m)

	// Touch one child per vector so Gather reports the family.
	m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/projects", "200").Add(0)
	m.StorageOperationsTotal.WithLabelValues("read", "postgres", "success").Add(0)
	m.StorageErrorsTotal.WithLabelValues("write", "postgres", "timeout").Add(0)
	m.ResolvePassesTotal.WithLabelValues("all", "ok").Add(0)
	m.ResolutionErrorsTotal.WithLabelValues("cycle").Add(0)
	m.CacheHitsTotal.WithLabelValues("redis", "project").Add(0)
	m.CacheMissesTotal.WithLabelValues("redis", "project").Add(0)
	m.DriftChecksTotal.WithLabelValues("fresh").Add(0)
	m.RedisCommandsTotal.WithLabelValues("GET", "success").Add(0)
	m.ProjectsTotal.Set(0)
	m.VariablesTotal.Set(0)
	m.ExportsTotal.Set(0)
	m.DBConnectionsActive.Set(0)
	m.RedisConnectionsActive.Set(0)

	families, err := registry.Gather()
	require.NoError(t, err)

	got := make(map[string]bool, len(families))
	for _, f := range families {
		got[f.GetName()] = true
	}
	for _, want := range []string{
		"envlink_http_requests_total",
		"envlink_storage_operations_total",
		"envlink_storage_errors_total",
		"envlink_resolve_passes_total",
		"envlink_resolution_errors_total",
		"envlink_cycle_detections_total",
		"envlink_cache_hits_total",
		"envlink_cache_misses_total",
		"envlink_drift_checks_total",
		"envlink_drift_stale_exports_total",
		"envlink_redis_commands_total",
		"envlink_projects_total",
		"envlink_variables_total",
		"envlink_exports_total",
		"envlink_db_connections_active",
		"envlink_redis_connections_active",
	} {
		assert.True(t, got[want], "metric %s not registered", want)
	}
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewMetrics(registry)

	assert.Panics(t, func() { NewMetrics(registry) })
}

func TestRecordResolvePass(t *testing.T) {
	tests := []struct {
		name       string
		scope      string
		errorKinds map[string]int
		foundCycle bool
		wantStatus string
		wantCycles float64
	}{
		{
			name:       "clean pass",
			scope:      "all",
			wantStatus: "ok",
		},
		{
			name:       "pass with dangling references",
			scope:      "project",
			errorKinds: map[string]int{"missing_reference": 2},
			wantStatus: "errors",
		},
		{
			name:       "pass that found a cycle",
			scope:      "variable",
			errorKinds: map[string]int{"cycle": 3},
			foundCycle: true,
			wantStatus: "errors",
			wantCycles: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMetrics(prometheus.NewRegistry())

			m.RecordResolvePass(tt.scope, 20*time.Millisecond, tt.errorKinds, tt.foundCycle)

			assert.Equal(t, float64(1),
				testutil.ToFloat64(m.ResolvePassesTotal.WithLabelValues(tt.scope, tt.wantStatus)))
			for kind, count := range tt.errorKinds {
				assert.Equal(t, float64(count),
					testutil.ToFloat64(m.ResolutionErrorsTotal.WithLabelValues(kind)))
			}
			assert.Equal(t, tt.wantCycles, testutil.ToFloat64(m.CycleDetectionsTotal))
		})
	}
}

func TestDriftCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.DriftChecksTotal.WithLabelValues("fresh").Add(3)
	m.DriftChecksTotal.WithLabelValues("stale").Inc()
	m.DriftChecksTotal.WithLabelValues("error").Inc()
	m.DriftStaleExportsTotal.Inc()

	assert.Equal(t, float64(3), testutil.ToFloat64(m.DriftChecksTotal.WithLabelValues("fresh")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DriftChecksTotal.WithLabelValues("stale")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DriftChecksTotal.WithLabelValues("error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DriftStaleExportsTotal))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	wrapped := HTTPMetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"name":"webapp"}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects", strings.NewReader(`{"name":"webapp"}`))
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code, "middleware must pass the handler status through")
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/projects", "201")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestSize), "body request should record request size")
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPResponseSize))
}

func TestHTTPMetricsMiddleware_NoBodySkipsRequestSize(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	wrapped := HTTPMetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))

	assert.Equal(t, 0, testutil.CollectAndCount(m.HTTPRequestSize))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/projects", "200")),
		"an implicit 200 should still be counted")
}

func TestResponseWriterTracksWrites(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusAccepted)
	rw.Write([]byte("part one, "))
	rw.Write([]byte("part two"))

	assert.Equal(t, http.StatusAccepted, rw.statusCode)
	assert.Equal(t, len("part one, ")+len("part two"), rw.bytesWritten)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.ProjectsTotal.Set(7)
	m.VariablesTotal.Set(42)

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "envlink_projects_total 7")
	assert.Contains(t, body, "envlink_variables_total 42")
	assert.Contains(t, body, "# TYPE envlink_projects_total gauge")
}
