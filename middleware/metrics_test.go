package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"chatpdf-backend/internal/telemetry"

	"github.com/gin-gonic/gin"
)

func metricsRouter(t *testing.T, metrics *telemetry.Metrics) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestMetrics(metrics))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	return router
}

func TestRequestMetricsPassesThrough(t *testing.T) {
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		t.Fatalf("failed to init metrics: %v", err)
	}
	router := metricsRouter(t, metrics)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	// Unregistered routes must record without panicking on an empty path
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestRequestMetricsNilMetrics(t *testing.T) {
	router := metricsRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with nil metrics, got %d", w.Code)
	}
}
