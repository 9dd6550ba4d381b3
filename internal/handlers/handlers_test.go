package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"moviestream_backend/internal/app"
	"moviestream_backend/internal/auth"
	"moviestream_backend/internal/config"
	"moviestream_backend/internal/dto"
	"moviestream_backend/internal/email"
	"moviestream_backend/internal/handlers"
	"moviestream_backend/internal/lock"
	"moviestream_backend/internal/logger"
	"moviestream_backend/internal/models"
	"moviestream_backend/internal/payment"
	"moviestream_backend/internal/ratelimit"
	"moviestream_backend/internal/repositories/memory"
	"moviestream_backend/internal/services"
	"moviestream_backend/internal/videotoken"
	"moviestream_backend/pkg/contextkeys"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	baseURL       = "http://api.test"
	frontendURL   = "http://front.test"
	webhookSecret = "webhook-secret"
	hashSecret    = "hash-secret"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.InitWithWriter("test", io.Discard)
	os.Exit(m.Run())
}

// testServer - роутер приложения поверх in-memory store.
type testServer struct {
	router *gin.Engine
	store  *memory.Store
	tokens *auth.TokenManager

	movie     models.Movie
	userToken string
}

func newTestServer(t *testing.T, limiter *ratelimit.Limiter, checks map[string]handlers.HealthCheck) *testServer {
	t.Helper()

	store := memory.NewStore()
	store.SeedPlan(models.SubscriptionPlan{
		Name:         "Monthly",
		Price:        decimal.NewFromInt(5),
		Currency:     "USD",
		Duration:     "monthly",
		DurationDays: 30,
		IsActive:     true,
	})
	movie := store.SeedMovie(models.Movie{
		Title:    "Arrival",
		VideoURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Price:    decimal.RequireFromString("1.00"),
		Currency: "USD",
	})
	user := store.SeedUser(models.User{Email: "viewer@example.com", Name: "Viewer"})

	provider := payment.NewMockProvider(payment.MockConfig{
		WebhookSecret:     webhookSecret,
		HashSecret:        hashSecret,
		CheckoutBaseURL:   baseURL + "/api/payments/mock-checkout",
		AutoCompleteAfter: time.Hour,
	}, nil)
	container := services.NewServiceContainer(services.Dependencies{
		Store:    store,
		Provider: provider,
		Locker:   lock.NewKeyedMutex(),
		Mailer:   email.NewMockSender(),
		Signer:   videotoken.NewSigner("video-secret", videotoken.DefaultTTL, nil),
		Payment:  services.PaymentSettings{PublicBaseURL: baseURL},
	})

	tokens := auth.NewTokenManager("jwt-secret", time.Hour)
	token, err := tokens.GenerateToken(user.ID, "user")
	require.NoError(t, err)

	if limiter == nil {
		limiter = ratelimit.New(ratelimit.DefaultConfig())
	}
	cfg := &config.Config{}
	cfg.Server.FrontendURL = frontendURL

	return &testServer{
		router:    app.SetupRouter(cfg, container, tokens, limiter, checks),
		store:     store,
		tokens:    tokens,
		movie:     movie,
		userToken: token,
	}
}

// SendRequest выполняет запрос к роутеру; body сериализуется в JSON.
func (ts *testServer) SendRequest(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

// relative отрезает внешний адрес API, оставляя путь и query.
func relative(t *testing.T, raw string) string {
	t.Helper()
	require.True(t, strings.HasPrefix(raw, baseURL), raw)
	return strings.TrimPrefix(raw, baseURL)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/payments/initiate"},
		{http.MethodGet, "/api/payments/history"},
		{http.MethodGet, "/api/subscriptions/me"},
		{http.MethodGet, "/api/videos/" + ts.movie.ID + "/stream"},
		{http.MethodPost, "/api/security/violation"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := ts.SendRequest(t, tc.method, tc.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestSubscriptionFlow_WebhookThenVerify(t *testing.T) {
	// Arrange
	ts := newTestServer(t, nil, nil)

	w := ts.SendRequest(t, http.MethodPost, "/api/payments/initiate", ts.userToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var session dto.PaymentSession
	decode(t, w, &session)
	require.NotEmpty(t, session.PaymentRef)
	assert.Equal(t, "5.00", session.Amount.StringFixed(2))

	body, err := payment.BuildWebhookBody(payment.PaymentStatus{
		PaymentRef: session.PaymentRef,
		Status:     payment.StatusCompleted,
		Amount:     session.Amount,
		Currency:   "USD",
	})
	require.NoError(t, err)

	// Act: поддельная подпись отклоняется
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewReader(body))
	req.Header.Set(contextkeys.WebhookSignatureHeader, "forged")
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Act: корректный webhook
	req = httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewReader(body))
	req.Header.Set(contextkeys.WebhookSignatureHeader, payment.SignWebhook(webhookSecret, body))
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	// Assert
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"status":"completed"}`, w.Body.String())

	w = ts.SendRequest(t, http.MethodPost, "/api/payments/verify/"+session.PaymentRef, ts.userToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var verify dto.PaymentResult
	decode(t, w, &verify)
	assert.Equal(t, models.PaymentStatusCompleted, verify.Status)

	w = ts.SendRequest(t, http.MethodGet, "/api/subscriptions/me", ts.userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status dto.SubscriptionStatus
	decode(t, w, &status)
	assert.True(t, status.IsActive)
	require.NotNil(t, status.Subscription)

	w = ts.SendRequest(t, http.MethodGet, "/api/payments/history", ts.userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history dto.PaymentHistory
	decode(t, w, &history)
	assert.Equal(t, 1, history.Total)

	// повторный initiate при активной подписке
	w = ts.SendRequest(t, http.MethodPost, "/api/payments/initiate", ts.userToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPaymentQR_MockPaymentHasNoKHQR(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	w := ts.SendRequest(t, http.MethodPost, "/api/payments/initiate", ts.userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var session dto.PaymentSession
	decode(t, w, &session)
	assert.Empty(t, session.KHQR)

	w = ts.SendRequest(t, http.MethodGet, "/api/payments/"+session.PaymentRef+"/qr?size=128", ts.userToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.SendRequest(t, http.MethodGet, "/api/payments/unknown/qr", ts.userToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVideoPurchase_MockCheckoutToPlayer(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	moviePath := "/api/videos/" + ts.movie.ID

	// без покупки стрим недоступен
	w := ts.SendRequest(t, http.MethodGet, moviePath+"/stream", ts.userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.SendRequest(t, http.MethodPost, moviePath+"/purchase", ts.userToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var session dto.PaymentSession
	decode(t, w, &session)
	require.NotEmpty(t, session.CheckoutURL)

	// mock checkout подписывает callback и отправляет на него
	w = ts.SendRequest(t, http.MethodGet, relative(t, session.CheckoutURL), "", nil)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	callback := w.Header().Get("Location")

	w = ts.SendRequest(t, http.MethodGet, relative(t, callback), "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, frontendURL+"/payment/result?status=success", w.Header().Get("Location"))

	w = ts.SendRequest(t, http.MethodGet, moviePath+"/purchased", ts.userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"isPurchased":true}`, w.Body.String())

	w = ts.SendRequest(t, http.MethodPost, moviePath+"/verify-purchase?paymentRef="+url.QueryEscape(session.PaymentRef), ts.userToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var purchase dto.PurchaseStatus
	decode(t, w, &purchase)
	assert.True(t, purchase.IsPurchased)

	w = ts.SendRequest(t, http.MethodGet, moviePath+"/stream", ts.userToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	var stream dto.StreamResponse
	decode(t, w, &stream)
	require.True(t, strings.HasPrefix(stream.VideoURL, services.PlayPathPrefix), stream.VideoURL)

	// страница плеера
	w = ts.SendRequest(t, http.MethodGet, stream.VideoURL, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "SAMEORIGIN", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "frame-ancestors 'self'", w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "no-referrer", w.Header().Get("Referrer-Policy"))
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "atob(")
	assert.NotContains(t, w.Body.String(), "youtube")
	assert.NotContains(t, w.Body.String(), "dQw4w9WgXcQ")

	// испорченный токен
	w = ts.SendRequest(t, http.MethodGet, services.PlayPathPrefix+"not-a-token", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "SAMEORIGIN", w.Header().Get("X-Frame-Options"))
}

func TestCallback_RejectedSignatureRedirectsWithReason(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	params := payment.SignCallback("wrong-secret", "tx-1", "1.00", "hash", time.Now())
	w := ts.SendRequest(t, http.MethodGet, "/api/payments/callback?"+params.Encode(), "", nil)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, frontendURL+"/payment/result?reason=invalid_signature&status=error", w.Header().Get("Location"))
}

func TestReportViolation(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	w := ts.SendRequest(t, http.MethodPost, "/api/security/violation", ts.userToken, gin.H{"violationType": "telepathy"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for i := 0; i < 4; i++ {
		w = ts.SendRequest(t, http.MethodPost, "/api/security/violation", ts.userToken, gin.H{
			"violationType": "devtools",
			"movieId":       ts.movie.ID,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	var res dto.ViolationResult
	decode(t, w, &res)
	assert.True(t, res.Logged)
	assert.False(t, res.Banned)

	w = ts.SendRequest(t, http.MethodPost, "/api/security/violation", ts.userToken, gin.H{"violationType": "devtools"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &res)
	assert.True(t, res.Banned)

	w = ts.SendRequest(t, http.MethodGet, "/api/security/ban-status", ts.userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ban dto.BanStatus
	decode(t, w, &ban)
	assert.True(t, ban.Banned)
	require.NotNil(t, ban.Ban)
	assert.NotNil(t, ban.Ban.ExpiresAt)
}

func TestReportViolation_RateLimited(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := ratelimit.NewWithClock(ratelimit.Config{PerMinute: 1, Burst: 2}, func() time.Time { return fixed })
	ts := newTestServer(t, limiter, nil)

	for i := 0; i < 2; i++ {
		w := ts.SendRequest(t, http.MethodPost, "/api/security/violation", ts.userToken, gin.H{"violationType": "tab_switch"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := ts.SendRequest(t, http.MethodPost, "/api/security/violation", ts.userToken, gin.H{"violationType": "tab_switch"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestRecordWatchTime(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	w := ts.SendRequest(t, http.MethodPost, "/api/security/watch-time", ts.userToken, gin.H{"seconds": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.SendRequest(t, http.MethodPost, "/api/security/watch-time", ts.userToken, gin.H{"seconds": 120})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var status dto.WatchTimeStatus
	decode(t, w, &status)
	assert.True(t, status.Allowed)
	assert.Equal(t, 120, status.UsedSeconds)
}

func TestHealthAndMetrics(t *testing.T) {
	down := false
	ts := newTestServer(t, nil, map[string]handlers.HealthCheck{
		"database": func(ctx context.Context) error {
			if down {
				return errors.New("connection refused")
			}
			return nil
		},
	})

	w := ts.SendRequest(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","components":{"database":"up"}}`, w.Body.String())

	down = true
	w = ts.SendRequest(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","components":{"database":"down"}}`, w.Body.String())

	w = ts.SendRequest(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/payments/initiate", nil)
	req.Header.Set("Origin", frontendURL)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, frontendURL, w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/payments/initiate", nil)
	req.Header.Set("Origin", "http://evil.test")
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMalformedMovieID(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/videos/not-a-uuid/purchase"},
		{http.MethodPost, "/api/videos/not-a-uuid/verify-purchase"},
		{http.MethodGet, "/api/videos/not-a-uuid/purchased"},
		{http.MethodGet, "/api/videos/not-a-uuid/stream"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := ts.SendRequest(t, tc.method, tc.path, ts.userToken, nil)
			assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
		})
	}

	w := ts.SendRequest(t, http.MethodPost, "/api/security/violation", ts.userToken, gin.H{
		"violationType": "devtools",
		"movieId":       "movie-1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Must be a valid UUID")
}
