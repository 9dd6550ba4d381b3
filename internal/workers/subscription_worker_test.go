package workers

import (
	"context"
	"io"
	"testing"
	"time"

	"moviestream_backend/internal/logger"
	"moviestream_backend/internal/models"
	"moviestream_backend/internal/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	logger.InitWithWriter("test", io.Discard)
	goleak.VerifyTestMain(m)
}

func addSubscription(t *testing.T, store *memory.Store, userID string, status models.SubscriptionStatus, end time.Time) {
	t.Helper()
	require.NoError(t, store.Subscriptions().CreateUserSubscription(context.Background(), &models.UserSubscription{
		UserID:    userID,
		PlanID:    "plan",
		Status:    status,
		StartDate: end.AddDate(0, 0, -30),
		EndDate:   &end,
	}))
}

func TestRunOnce_ExpiresOnlyPastActiveSubscriptions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore(memory.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	addSubscription(t, store, "expired", models.SubscriptionStatusActive, now.Add(-time.Minute))
	addSubscription(t, store, "current", models.SubscriptionStatusActive, now.Add(time.Hour))
	addSubscription(t, store, "cancelled", models.SubscriptionStatusCancelled, now.Add(-time.Hour))

	w := NewSubscriptionWorker(store, time.Hour, func() time.Time { return now })

	n, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	sub, err := store.Subscriptions().FindUserSubscription(ctx, "expired")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusExpired, sub.Status)

	sub, err = store.Subscriptions().FindUserSubscription(ctx, "current")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)

	sub, err = store.Subscriptions().FindUserSubscription(ctx, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCancelled, sub.Status)

	// повторный проход ничего не меняет
	n, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStart_StopsOnCancel(t *testing.T) {
	store := memory.NewStore()
	w := NewSubscriptionWorker(store, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
