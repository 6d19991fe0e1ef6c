package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func TestMetrics_Recording(t *testing.T) {
	m := New(WithRegistry(prometheus.NewRegistry()))

	m.ObserveRequest("/cad/{id}", http.StatusOK, 5*time.Millisecond)
	m.ObserveRequest("/cad/{id}", http.StatusOK, 7*time.Millisecond)
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.Frame("ThreeShapeClick", "ok")
	m.Push("ThreeLoadShape", "delivered")
	m.GeometryIngested()

	body := scrape(t, m)
	assert.Contains(t, body, `cadview_http_requests_total{route="/cad/{id}",status="200"} 2`)
	assert.Contains(t, body, `cadview_http_request_duration_seconds_count{route="/cad/{id}"} 2`)
	assert.Contains(t, body, "cadview_bridge_connections 1")
	assert.Contains(t, body, `cadview_bridge_frames_total{eid="ThreeShapeClick",result="ok"} 1`)
	assert.Contains(t, body, `cadview_bridge_pushes_total{eid="ThreeLoadShape",result="delivered"} 1`)
	assert.Contains(t, body, "cadview_geometry_ingested_total 1")
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("/", 200, time.Second)
		m.ConnectionOpened()
		m.ConnectionClosed()
		m.Frame("x", "ok")
		m.Push("x", "ok")
		m.GeometryIngested()
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_Handler(t *testing.T) {
	m := New(WithNamespace("test"))
	m.GeometryIngested()

	body := scrape(t, m)
	assert.Contains(t, body, "test_geometry_ingested_total 1")
	assert.Contains(t, body, "go_goroutines")
}

func TestSpans_NoopProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test", trace.SpanKindInternal, attribute.String("k", "v"))
	require.NotNil(t, ctx)
	assert.NotPanics(t, func() { EndSpan(span, errors.New("boom")) })

	_, span = StartSpan(context.Background(), "ok", trace.SpanKindServer)
	assert.NotPanics(t, func() { EndSpan(span, nil) })
}
