package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func setupLimitedRouter(r rate.Limit, b int, ipHeader string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimiter(r, b, ipHeader))
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return router
}

func get(router *gin.Engine, header, value string) int {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/ping", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	router.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	router := setupLimitedRouter(1, 2, "")

	assert.Equal(t, http.StatusOK, get(router, "", ""))
	assert.Equal(t, http.StatusOK, get(router, "", ""))
	assert.Equal(t, http.StatusTooManyRequests, get(router, "", ""))
}

func TestRateLimiterUsesConfiguredHeader(t *testing.T) {
	router := setupLimitedRouter(1, 1, "X-Real-IP")

	assert.Equal(t, http.StatusOK, get(router, "X-Real-IP", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, get(router, "X-Real-IP", "10.0.0.2"))
	// Same client again within the burst window.
	assert.Equal(t, http.StatusTooManyRequests, get(router, "X-Real-IP", "10.0.0.1"))
}

func TestEvictIdleClients(t *testing.T) {
	l := NewIPRateLimiter(1, 1)
	defer l.Stop()

	l.GetLimiter("10.0.0.1")
	l.GetLimiter("10.0.0.2")

	l.mu.Lock()
	l.clients["10.0.0.1"].lastSeen = time.Now().Add(-time.Hour)
	l.mu.Unlock()

	l.evictIdle(10 * time.Minute)

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.clients, "10.0.0.1")
	assert.Contains(t, l.clients, "10.0.0.2")
}
