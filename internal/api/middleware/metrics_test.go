package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/comaslimpio/notification-api/internal/api/middleware"
)

// withMeterReader installs a manual reader on the global meter provider.
func withMeterReader(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	t.Cleanup(func() { otel.SetMeterProvider(prev) })
	return reader
}

func newMetricsRouter(t *testing.T) http.Handler {
	t.Helper()
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(metrics.Middleware())
	r.Post("/api/update-truck-location", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	r.Post("/api/test-push", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	r.Get("/ops/flags/{key}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	return r
}

// requestTotals returns the request counter keyed by "method route status".
func requestTotals(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http.server.request.total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				key := strings.Join([]string{
					attr(dp.Attributes, "http.method"),
					attr(dp.Attributes, "http.route"),
					attr(dp.Attributes, "http.status_code"),
				}, " ")
				totals[key] += dp.Value
			}
		}
	}
	return totals
}

func attr(set attribute.Set, key string) string {
	v, _ := set.Value(attribute.Key(key))
	return v.Emit()
}

func TestMetrics_RecordsLocationUpdates(t *testing.T) {
	reader := withMeterReader(t)
	router := newMetricsRouter(t)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/update-truck-location", http.NoBody))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	totals := requestTotals(t, reader)
	assert.Equal(t, int64(2), totals["POST /api/update-truck-location 200"])
}

func TestMetrics_LabelsRoutePattern(t *testing.T) {
	reader := withMeterReader(t)
	router := newMetricsRouter(t)

	for _, key := range []string{"disable_push_sending", "bypass_throttle"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ops/flags/"+key, http.NoBody))
	}

	totals := requestTotals(t, reader)
	assert.Equal(t, int64(2), totals["GET /ops/flags/{key} 404"])
	assert.NotContains(t, totals, "GET /ops/flags/bypass_throttle 404")
}

func TestMetrics_FailedPushAndUnmatched(t *testing.T) {
	reader := withMeterReader(t)
	router := newMetricsRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/test-push", http.NoBody))
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/unknown", http.NoBody))
	assert.Equal(t, http.StatusNotFound, w.Code)

	totals := requestTotals(t, reader)
	assert.Equal(t, int64(1), totals["POST /api/test-push 502"])
	assert.Equal(t, int64(1), totals["POST unmatched 404"])
}

func TestMetrics_DefaultStatusCode(t *testing.T) {
	reader := withMeterReader(t)
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	handler := metrics.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), requestTotals(t, reader)["GET unmatched 200"])
}
