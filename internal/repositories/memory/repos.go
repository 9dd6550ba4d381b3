package memory

import (
	"context"
	"sort"
	"time"

	"moviestream_backend/internal/models"
	"moviestream_backend/internal/repositories"
)

// --- payments ---

type paymentRepo struct{ s *Store }

func (r *paymentRepo) Create(_ context.Context, payment *models.PaymentTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.LocalRef == payment.LocalRef {
			return ErrDuplicate
		}
	}
	r.s.stamp(&payment.BaseModel)
	r.s.payments[payment.ID] = *payment
	return nil
}

func (r *paymentRepo) FindByRef(_ context.Context, ref string) (*models.PaymentTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.LocalRef == ref || p.ProviderRef() == ref {
			cp := p
			return &cp, nil
		}
	}
	return nil, repositories.ErrPaymentNotFound
}

func (r *paymentRepo) FindByRefForUpdate(ctx context.Context, ref string) (*models.PaymentTransaction, error) {
	return r.FindByRef(ctx, ref)
}

func (r *paymentRepo) FindByUser(_ context.Context, userID string) ([]models.PaymentTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.PaymentTransaction
	for _, p := range r.s.payments {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *paymentRepo) AttachProviderSession(_ context.Context, id string, session repositories.ProviderSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return repositories.ErrPaymentNotFound
	}
	for otherID, other := range r.s.payments {
		if otherID != id && other.ProviderRef() == session.TransactionRef {
			return ErrDuplicate
		}
	}
	ref := session.TransactionRef
	p.TransactionRef = &ref
	p.CheckoutURL = session.CheckoutURL
	p.KHQR = session.KHQR
	p.PaymentMethod = session.PaymentMethod
	p.ExpiresAt = session.ExpiresAt
	p.UpdatedAt = r.s.now()
	r.s.payments[id] = p
	return nil
}

func (r *paymentRepo) TransitionStatus(_ context.Context, id string, from, to models.PaymentStatus, source models.PaymentSource, completedAt *time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	p.Source = source
	p.CompletedAt = completedAt
	p.UpdatedAt = r.s.now()
	r.s.payments[id] = p
	return true, nil
}

// --- subscriptions ---

type subscriptionRepo struct{ s *Store }

func (r *subscriptionRepo) CreatePlan(_ context.Context, plan *models.SubscriptionPlan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stamp(&plan.BaseModel)
	r.s.plans[plan.ID] = *plan
	return nil
}

func (r *subscriptionRepo) FindPlanByID(_ context.Context, id string) (*models.SubscriptionPlan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	plan, ok := r.s.plans[id]
	if !ok {
		return nil, repositories.ErrSubscriptionPlanNotFound
	}
	return &plan, nil
}

func (r *subscriptionRepo) FindActivePlanByDuration(_ context.Context, duration string) (*models.SubscriptionPlan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *models.SubscriptionPlan
	for _, plan := range r.s.plans {
		if !plan.IsActive || plan.Duration != duration {
			continue
		}
		if best == nil || plan.Price.LessThan(best.Price) {
			p := plan
			best = &p
		}
	}
	if best == nil {
		return nil, repositories.ErrSubscriptionPlanNotFound
	}
	return best, nil
}

func (r *subscriptionRepo) FindUserSubscription(_ context.Context, userID string) (*models.UserSubscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.subs[userID]
	if !ok {
		return nil, repositories.ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (r *subscriptionRepo) FindUserSubscriptionForUpdate(ctx context.Context, userID string) (*models.UserSubscription, error) {
	return r.FindUserSubscription(ctx, userID)
}

func (r *subscriptionRepo) CreateUserSubscription(_ context.Context, subscription *models.UserSubscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.subs[subscription.UserID]; exists {
		return ErrDuplicate
	}
	r.s.stamp(&subscription.BaseModel)
	r.s.subs[subscription.UserID] = *subscription
	return nil
}

func (r *subscriptionRepo) UpdateUserSubscription(_ context.Context, subscription *models.UserSubscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.subs[subscription.UserID]; !exists {
		return repositories.ErrSubscriptionNotFound
	}
	subscription.UpdatedAt = r.s.now()
	r.s.subs[subscription.UserID] = *subscription
	return nil
}

func (r *subscriptionRepo) ExpireSubscriptions(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for userID, sub := range r.s.subs {
		if sub.Status == models.SubscriptionStatusActive && sub.EndDate != nil && sub.EndDate.Before(now) {
			sub.Status = models.SubscriptionStatusExpired
			r.s.subs[userID] = sub
			n++
		}
	}
	return n, nil
}

// --- movies ---

type movieRepo struct{ s *Store }

func (r *movieRepo) Create(_ context.Context, movie *models.Movie) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stamp(&movie.BaseModel)
	r.s.movies[movie.ID] = *movie
	return nil
}

func (r *movieRepo) FindByID(_ context.Context, id string) (*models.Movie, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	movie, ok := r.s.movies[id]
	if !ok {
		return nil, repositories.ErrMovieNotFound
	}
	return &movie, nil
}

func (r *movieRepo) HasPurchase(_ context.Context, userID, movieID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.purchases[pairKey(userID, movieID)]
	return ok, nil
}

func (r *movieRepo) CreatePurchase(_ context.Context, purchase *models.VideoPurchase) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pairKey(purchase.UserID, purchase.MovieID)
	if _, exists := r.s.purchases[key]; exists {
		return ErrDuplicate
	}
	r.s.stamp(&purchase.BaseModel)
	r.s.purchases[key] = *purchase
	return nil
}

func (r *movieRepo) IsSaved(_ context.Context, userID, movieID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.saved[pairKey(userID, movieID)]
	return ok, nil
}

func (r *movieRepo) AddSaved(_ context.Context, userID, movieID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pairKey(userID, movieID)
	if _, exists := r.s.saved[key]; exists {
		return nil
	}
	saved := models.SavedMovie{UserID: userID, MovieID: movieID}
	r.s.stamp(&saved.BaseModel)
	r.s.saved[key] = saved
	return nil
}

// --- security ---

type securityRepo struct{ s *Store }

func (r *securityRepo) CreateViolation(_ context.Context, violation *models.SecurityViolation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stamp(&violation.BaseModel)
	r.s.violations = append(r.s.violations, *violation)
	return nil
}

func (r *securityRepo) CountViolationsSince(_ context.Context, userID string, violationType models.ViolationType, since time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, v := range r.s.violations {
		if v.UserID != userID || v.CreatedAt.Before(since) {
			continue
		}
		if violationType != "" && v.ViolationType != violationType {
			continue
		}
		n++
	}
	return n, nil
}

func (r *securityRepo) CreateBan(_ context.Context, ban *models.UserBan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stamp(&ban.BaseModel)
	r.s.bans[ban.ID] = *ban
	return nil
}

func (r *securityRepo) FindActiveBans(_ context.Context, userID string) ([]models.UserBan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.UserBan
	for _, b := range r.s.bans {
		if b.UserID == userID && b.IsActive {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BannedAt.After(out[j].BannedAt) })
	return out, nil
}

func (r *securityRepo) DeactivateBan(_ context.Context, banID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bans[banID]
	if !ok {
		return repositories.ErrBanNotFound
	}
	b.IsActive = false
	r.s.bans[banID] = b
	return nil
}

func (r *securityRepo) IncrementPlayAttempts(_ context.Context, userID, day string, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row := r.dailyLocked(userID, day)
	row.PlayAttempts++
	row.LastUpdated = now
	r.s.daily[pairKey(userID, day)] = row
	return row.PlayAttempts, nil
}

func (r *securityRepo) AddWatchSeconds(_ context.Context, userID, day string, seconds int, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row := r.dailyLocked(userID, day)
	row.TotalSeconds += seconds
	row.LastUpdated = now
	r.s.daily[pairKey(userID, day)] = row
	return row.TotalSeconds, nil
}

func (r *securityRepo) FindDailyWatchTime(_ context.Context, userID, day string) (*models.DailyWatchTime, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row := r.dailyLocked(userID, day)
	return &row, nil
}

func (r *securityRepo) dailyLocked(userID, day string) models.DailyWatchTime {
	row, ok := r.s.daily[pairKey(userID, day)]
	if !ok {
		row = models.DailyWatchTime{UserID: userID, Date: day}
		r.s.stamp(&row.BaseModel)
	}
	return row
}

// --- users ---

type userRepo struct{ s *Store }

func (r *userRepo) Create(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stamp(&user.BaseModel)
	r.s.users[user.ID] = *user
	return nil
}

func (r *userRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return &user, nil
}
