package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/jipatebonus/pkg/logger"
	"github.com/wyfcoding/jipatebonus/pkg/metrics"
	"github.com/wyfcoding/jipatebonus/pkg/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type httpRecord struct {
	method, path string
	status       int
}

type recordingCollector struct {
	metrics.NopCollector
	mu      sync.Mutex
	records []httpRecord
}

func (c *recordingCollector) RecordHTTPRequest(method, path string, status int, _ float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, httpRecord{method, path, status})
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestGinLoggingMiddleware_PropagatesRequestID(t *testing.T) {
	r := gin.New()
	r.Use(GinLoggingMiddleware())

	var seen string
	r.GET("/ping", func(c *gin.Context) {
		seen = logger.RequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := serve(r, http.MethodGet, "/ping")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
}

func TestGinRecoveryMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(GinLoggingMiddleware(), GinRecoveryMiddleware())
	r.GET("/panic", func(*gin.Context) { panic("boom") })

	w := serve(r, http.MethodGet, "/panic")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "request_id")
}

func TestGinCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(GinCORSMiddleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodOptions, "/x")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Admin-Secret")
}

func TestGinMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	collector := &recordingCollector{}
	r := gin.New()
	r.Use(GinMetricsMiddleware(collector))
	r.POST("/accounts/:username/approve", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodPost, "/accounts/alice/approve")
	serve(r, http.MethodGet, "/nowhere")

	require.Len(t, collector.records, 2)
	assert.Equal(t, httpRecord{http.MethodPost, "/accounts/:username/approve", http.StatusOK}, collector.records[0])
	assert.Equal(t, "unmatched", collector.records[1].path)
}

type fakeLimiter struct {
	allowed int
	calls   int
	keys    []string
	err     error
}

func (l *fakeLimiter) Allow(_ context.Context, key string) (*ratelimit.Result, error) {
	l.calls++
	l.keys = append(l.keys, key)
	if l.err != nil {
		return nil, l.err
	}
	if l.calls > l.allowed {
		return &ratelimit.Result{Allowed: false, Limit: l.allowed, RetryAfter: 500_000_000}, nil
	}
	return &ratelimit.Result{Allowed: true, Limit: l.allowed, Remaining: l.allowed - l.calls}, nil
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := &fakeLimiter{allowed: 2}
	r := gin.New()
	r.POST("/login", RateLimitMiddleware(limiter), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := serve(r, http.MethodPost, "/login")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/login").Code)
	assert.Equal(t, "/login:192.0.2.1", limiter.keys[0])

	w = serve(r, http.MethodPost, "/login")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	r := gin.New()
	r.POST("/login", RateLimitMiddleware(&fakeLimiter{err: errors.New("redis down")}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/login").Code)
}
