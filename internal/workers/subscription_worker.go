package workers

import (
	"context"
	"sync"
	"time"

	"moviestream_backend/internal/logger"
	"moviestream_backend/internal/metrics"
	"moviestream_backend/internal/repositories"
)

const defaultExpiryInterval = 6 * time.Hour

// SubscriptionWorker периодически помечает истекшие подписки как expired.
// Доступ к видео от статуса не зависит: IsActive проверяет EndDate сам.
type SubscriptionWorker struct {
	store    repositories.Store
	interval time.Duration
	now      func() time.Time

	wg sync.WaitGroup
}

func NewSubscriptionWorker(store repositories.Store, interval time.Duration, now func() time.Time) *SubscriptionWorker {
	if interval <= 0 {
		interval = defaultExpiryInterval
	}
	if now == nil {
		now = time.Now
	}
	return &SubscriptionWorker{store: store, interval: interval, now: now}
}

// Start запускает фоновую задачу; она завершается при отмене ctx.
func (w *SubscriptionWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.checkExpiredSubscriptions(ctx)
	}()
}

// Wait блокируется до остановки воркера.
func (w *SubscriptionWorker) Wait() {
	w.wg.Wait()
}

func (w *SubscriptionWorker) checkExpiredSubscriptions(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logger.WorkerLog("subscription", "started", nil)
	for {
		select {
		case <-ctx.Done():
			logger.WorkerLog("subscription", "stopped", nil)
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				logger.WorkerLog("subscription", "expire", err)
			}
		}
	}
}

// RunOnce - один проход; возвращает число помеченных подписок.
func (w *SubscriptionWorker) RunOnce(ctx context.Context) (int64, error) {
	n, err := w.store.Subscriptions().ExpireSubscriptions(ctx, w.now())
	if err != nil {
		return 0, err
	}
	metrics.RecordSubscriptionsExpired(n)
	if n > 0 {
		logger.Info("Marked subscriptions as expired", "count", n)
	}
	return n, nil
}
