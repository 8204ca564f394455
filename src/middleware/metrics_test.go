package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/localagent/agentblog/src/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
)

// counterValue reads a CounterVec series; 0 if it was never observed
func counterValue(cv *prometheus.CounterVec, labels prometheus.Labels) float64 {
	m, err := cv.GetMetricWith(labels)
	if err != nil {
		return 0
	}
	var dm dto.Metric
	if err := m.Write(&dm); err != nil {
		return 0
	}
	return dm.GetCounter().GetValue()
}

func TestMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	labels := prometheus.Labels{"method": "GET", "path": "/api/articles/:slug/comments", "status": "200"}
	before := counterValue(telemetry.HTTPRequestsTotal, labels)

	router := gin.New()
	router.Use(MetricsMiddleware())
	router.GET("/api/articles/:slug/comments", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/articles/hello/comments", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/articles/other/comments", nil))

	assert.Equal(t, before+2, counterValue(telemetry.HTTPRequestsTotal, labels))
}

func TestMetricsMiddleware_UnmatchedRoute(t *testing.T) {
	labels := prometheus.Labels{"method": "GET", "path": "<no-route>", "status": "404"}
	before := counterValue(telemetry.HTTPRequestsTotal, labels)

	router := gin.New()
	router.Use(MetricsMiddleware())

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/does/not/exist", nil))

	assert.Equal(t, before+1, counterValue(telemetry.HTTPRequestsTotal, labels))
}
