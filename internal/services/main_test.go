package services

import (
	"os"
	"sync"
	"testing"
	"time"

	"moviestream_backend/internal/email"
	"moviestream_backend/internal/lock"
	"moviestream_backend/internal/logger"
	"moviestream_backend/internal/models"
	"moviestream_backend/internal/payment"
	"moviestream_backend/internal/repositories/memory"
	"moviestream_backend/internal/videotoken"

	"github.com/shopspring/decimal"
	"go.uber.org/goleak"
)

const (
	testWebhookSecret = "webhook-secret"
	testHashSecret    = "hash-secret"
	testBaseURL       = "http://api.test"
)

func TestMain(m *testing.M) {
	logger.InitWithWriter("test", os.Stderr)
	goleak.VerifyTestMain(m)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	clock    *testClock
	store    *memory.Store
	provider *payment.MockProvider
	mailer   *email.MockSender

	payments PaymentService
	video    VideoService
	security SecurityService

	plan      models.SubscriptionPlan
	movie     models.Movie
	freeMovie models.Movie
	user      models.User
	other     models.User
}

type fixtureOption func(*Dependencies)

func withLimits(l SecurityLimits) fixtureOption {
	return func(d *Dependencies) { d.Limits = l }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := memory.NewStore(memory.WithClock(clock.Now))
	provider := payment.NewMockProvider(payment.MockConfig{
		WebhookSecret:     testWebhookSecret,
		HashSecret:        testHashSecret,
		CheckoutBaseURL:   testBaseURL + "/api/payments/mock-checkout",
		AutoCompleteAfter: 5 * time.Second,
	}, clock.Now)
	mailer := email.NewMockSender()

	f := &fixture{clock: clock, store: store, provider: provider, mailer: mailer}
	f.plan = store.SeedPlan(models.SubscriptionPlan{
		Name:         "Monthly",
		Price:        decimal.NewFromInt(5),
		Currency:     "USD",
		Duration:     "monthly",
		DurationDays: 30,
		IsActive:     true,
	})
	f.movie = store.SeedMovie(models.Movie{
		Title:    "Arrival",
		VideoURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Currency: "USD",
	})
	f.freeMovie = store.SeedMovie(models.Movie{
		Title:    "Open Movie",
		VideoURL: "https://vimeo.com/76979871",
		IsFree:   true,
	})
	f.user = store.SeedUser(models.User{Email: "viewer@example.com", Name: "Viewer"})
	f.other = store.SeedUser(models.User{Email: "other@example.com", Name: "Other"})

	deps := Dependencies{
		Store:    store,
		Provider: provider,
		Locker:   lock.NewKeyedMutex(),
		Mailer:   mailer,
		Signer:   videotoken.NewSigner("video-secret", videotoken.DefaultTTL, clock.Now),
		Payment:  PaymentSettings{PublicBaseURL: testBaseURL},
		Now:      clock.Now,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	c := NewServiceContainer(deps)
	f.payments = c.PaymentService
	f.video = c.VideoService
	f.security = c.SecurityService
	return f
}
