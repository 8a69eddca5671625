package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/konect/konect/internal/api/middleware"
)

func TestNewMetrics_Global(t *testing.T) {
	m, err := middleware.NewMetrics()
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestMetrics_CountsByRoute(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := middleware.NewMetricsWithMeter(mp.Meter("test"))
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(m.Middleware())
	r.Post("/register", okHandler)

	for i := 0; i < 3; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/register", http.NoBody))
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	var route string
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			if metric.Name != "http.server.request.total" {
				continue
			}
			sum, ok := metric.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
				if v, ok := dp.Attributes.Value("http.route"); ok {
					route = v.AsString()
				}
			}
		}
	}
	assert.Equal(t, int64(3), total)
	assert.Equal(t, "/register", route)
}

func TestMetrics_PassesResponseThrough(t *testing.T) {
	m, err := middleware.NewMetrics()
	require.NoError(t, err)

	handler := m.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trigger-alert", http.NoBody))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"message":"ok"}`, rec.Body.String())
}
