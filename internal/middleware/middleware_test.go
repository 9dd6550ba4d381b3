package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"moviestream_backend/internal/auth"
	"moviestream_backend/internal/logger"
	"moviestream_backend/internal/ratelimit"
	"moviestream_backend/pkg/contextkeys"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
}

func newRouter(tokens *auth.TokenManager, limiter *ratelimit.Limiter) *gin.Engine {
	r := gin.New()
	r.Use(RequestIDMiddleware(), LoggingMiddleware())
	protected := r.Group("/", AuthMiddleware(tokens))
	if limiter != nil {
		protected.Use(RateLimitMiddleware(limiter))
	}
	protected.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": GetUserID(c), "ctxUser": logger.GetUserID(c.Request.Context())})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	tokens := auth.NewTokenManager("secret", time.Hour)
	r := newRouter(tokens, nil)

	token, err := tokens.GenerateToken("user-1", "user")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":"user-1","ctxUser":"user-1"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(contextkeys.RequestIDHeader))

	for _, header := range []string{"", "Basic abc", "Bearer nope"} {
		w = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
	}
}

func TestRequestIDMiddleware_KeepsClientID(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, logger.GetRequestID(c.Request.Context()))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(contextkeys.RequestIDHeader, "req-123")
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Body.String())
	assert.Equal(t, "req-123", w.Header().Get(contextkeys.RequestIDHeader))
}

func TestRateLimitMiddleware(t *testing.T) {
	tokens := auth.NewTokenManager("secret", time.Hour)
	r := newRouter(tokens, ratelimit.New(ratelimit.Config{PerMinute: 1, Burst: 2}))

	token, err := tokens.GenerateToken("user-1", "")
	require.NoError(t, err)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
