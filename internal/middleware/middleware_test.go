package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/growdoro/internal/middleware"
)

func TestPrometheusMiddleware_BasicMetrics(t *testing.T) {
	// Создаём новый регистр для изоляции тестов
	registry := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = registry

	gin.SetMode(gin.TestMode)
	r := gin.New()

	promMw := middleware.NewPrometheusMiddleware("test")
	r.Use(promMw.Handler())

	r.GET("/test", func(c *gin.Context) {
		time.Sleep(10 * time.Millisecond) // Симулируем задержку
		c.JSON(200, gin.H{"ok": true})
	})

	r.GET("/error", func(c *gin.Context) {
		c.JSON(500, gin.H{"error": "test error"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)

	w2 := httptest.NewRecorder()
	req2, _ := http.NewRequest("GET", "/error", nil)
	r.ServeHTTP(w2, req2)
	assert.Equal(t, 500, w2.Code)

	metricFamilies, err := registry.Gather()
	require.NoError(t, err)

	var durationFound, errorsFound bool
	for _, mf := range metricFamilies {
		switch *mf.Name {
		case "test_http_request_duration_seconds":
			durationFound = true
			// Должно быть 2 запроса
			assert.Len(t, mf.Metric, 2)
		case "test_http_request_errors_total":
			errorsFound = true
			// Одна ошибка (500 статус)
			assert.Len(t, mf.Metric, 1)
			assert.Equal(t, float64(1), *mf.Metric[0].Counter.Value)
		}
	}

	assert.True(t, durationFound, "Duration metric not found")
	assert.True(t, errorsFound, "Errors metric not found")
}

func TestPrometheusMiddleware_InflightRequests(t *testing.T) {
	registry := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = registry

	gin.SetMode(gin.TestMode)
	r := gin.New()

	promMw := middleware.NewPrometheusMiddleware("test")
	r.Use(promMw.Handler())

	r.GET("/slow", func(c *gin.Context) {
		time.Sleep(50 * time.Millisecond)
		c.JSON(200, gin.H{"ok": true})
	})

	done := make(chan bool)
	go func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/slow", nil)
		r.ServeHTTP(w, req)
		done <- true
	}()

	// Пауза, чтобы middleware зарегистрировал inflight запрос
	time.Sleep(10 * time.Millisecond)

	metricFamilies, err := registry.Gather()
	require.NoError(t, err)

	var inflightFound bool
	for _, mf := range metricFamilies {
		if *mf.Name == "test_http_requests_inflight" {
			inflightFound = true
			assert.Equal(t, float64(1), *mf.Metric[0].Gauge.Value)
			break
		}
	}
	assert.True(t, inflightFound, "Inflight metric not found")

	<-done

	time.Sleep(10 * time.Millisecond)
	metricFamilies, err = registry.Gather()
	require.NoError(t, err)

	for _, mf := range metricFamilies {
		if *mf.Name == "test_http_requests_inflight" {
			assert.Equal(t, float64(0), *mf.Metric[0].Gauge.Value)
			break
		}
	}
}

func TestRequestLogger_TraceID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	loggerMw := middleware.NewRequestLogger()
	r.Use(loggerMw.Handler())

	var capturedTraceID string
	r.GET("/test", func(c *gin.Context) {
		traceID, exists := c.Get("trace_id")
		require.True(t, exists, "trace_id should be set in context")
		capturedTraceID = traceID.(string)
		c.JSON(200, gin.H{"trace_id": capturedTraceID})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.NotEmpty(t, capturedTraceID, "trace_id should not be empty")
	assert.Contains(t, w.Body.String(), capturedTraceID)
}

func TestMiddleware_Integration(t *testing.T) {
	registry := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = registry

	gin.SetMode(gin.TestMode)
	r := gin.New()

	loggerMw := middleware.NewRequestLogger()
	r.Use(loggerMw.Handler())

	promMw := middleware.NewPrometheusMiddleware("integration_test")
	r.Use(promMw.Handler())

	r.GET("/api/gardens/test", func(c *gin.Context) {
		traceID, _ := c.Get("trace_id")
		c.JSON(200, gin.H{
			"status":   "ok",
			"trace_id": traceID,
		})
	})

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/gardens/test", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, 200, w.Code)
	}

	metricFamilies, err := registry.Gather()
	require.NoError(t, err)

	var requestsCount int
	for _, mf := range metricFamilies {
		if *mf.Name == "integration_test_http_request_duration_seconds" {
			for _, metric := range mf.Metric {
				requestsCount += int(*metric.Histogram.SampleCount)
			}
		}
	}

	assert.Equal(t, 5, requestsCount, "Should have recorded 5 requests")
}

func TestPrometheusMiddleware_MetricsEndpoint(t *testing.T) {
	// promhttp.Handler читает DefaultGatherer, подменяем оба
	registry := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry

	gin.SetMode(gin.TestMode)
	r := gin.New()

	promMw := middleware.NewPrometheusMiddleware("test")
	r.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(r)

	r.GET("/api/test", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/test", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)

	w2 := httptest.NewRecorder()
	req2, _ := http.NewRequest("GET", "/metrics", nil)
	r.ServeHTTP(w2, req2)
	assert.Equal(t, 200, w2.Code)
	assert.Contains(t, w2.Body.String(), "test_http_request_duration_seconds")
}
