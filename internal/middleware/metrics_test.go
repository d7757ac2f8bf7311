package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopcn/shopcn/internal/telemetry"
)

func requestCount(t *testing.T, method, path, status string) float64 {
	t.Helper()

	counter, err := telemetry.HTTPRequestsTotal.GetMetricWithLabelValues(method, path, status)
	if err != nil {
		t.Fatalf("failed to get counter: %v", err)
	}

	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestMetricsMiddleware_RecordsRouteTemplate(t *testing.T) {
	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/widgets/:slug", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := requestCount(t, "GET", "/widgets/:slug", "200")

	req := httptest.NewRequest(http.MethodGet, "/widgets/pricing-table", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	after := requestCount(t, "GET", "/widgets/:slug", "200")
	if after != before+1 {
		t.Errorf("expected counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestMetricsMiddleware_NoRouteFallback(t *testing.T) {
	r := gin.New()
	r.Use(MetricsMiddleware())

	before := requestCount(t, "GET", "<no-route>", "404")

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	after := requestCount(t, "GET", "<no-route>", "404")
	if after != before+1 {
		t.Errorf("expected fallback counter to increment, got %v -> %v", before, after)
	}
}
