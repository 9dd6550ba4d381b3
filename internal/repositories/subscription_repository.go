package repositories

import (
	"context"
	"errors"
	"time"

	"moviestream_backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrSubscriptionNotFound     = errors.New("subscription not found")
	ErrSubscriptionPlanNotFound = errors.New("subscription plan not found")
)

type SubscriptionRepository interface {
	// SubscriptionPlan operations
	CreatePlan(ctx context.Context, plan *models.SubscriptionPlan) error
	FindPlanByID(ctx context.Context, id string) (*models.SubscriptionPlan, error)
	FindActivePlanByDuration(ctx context.Context, duration string) (*models.SubscriptionPlan, error)

	// UserSubscription operations
	FindUserSubscription(ctx context.Context, userID string) (*models.UserSubscription, error)
	FindUserSubscriptionForUpdate(ctx context.Context, userID string) (*models.UserSubscription, error)
	CreateUserSubscription(ctx context.Context, subscription *models.UserSubscription) error
	UpdateUserSubscription(ctx context.Context, subscription *models.UserSubscription) error
	ExpireSubscriptions(ctx context.Context, now time.Time) (int64, error)
}

type SubscriptionRepositoryImpl struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &SubscriptionRepositoryImpl{db: db}
}

func (r *SubscriptionRepositoryImpl) CreatePlan(ctx context.Context, plan *models.SubscriptionPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *SubscriptionRepositoryImpl) FindPlanByID(ctx context.Context, id string) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	err := r.db.WithContext(ctx).First(&plan, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionPlanNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func (r *SubscriptionRepositoryImpl) FindActivePlanByDuration(ctx context.Context, duration string) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND duration = ?", true, duration).
		Order("price ASC").
		First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionPlanNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func (r *SubscriptionRepositoryImpl) FindUserSubscription(ctx context.Context, userID string) (*models.UserSubscription, error) {
	return r.findUserSubscription(r.db.WithContext(ctx), userID)
}

func (r *SubscriptionRepositoryImpl) FindUserSubscriptionForUpdate(ctx context.Context, userID string) (*models.UserSubscription, error) {
	return r.findUserSubscription(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), userID)
}

func (r *SubscriptionRepositoryImpl) findUserSubscription(db *gorm.DB, userID string) (*models.UserSubscription, error) {
	var subscription models.UserSubscription
	err := db.Where("user_id = ?", userID).First(&subscription).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &subscription, nil
}

func (r *SubscriptionRepositoryImpl) CreateUserSubscription(ctx context.Context, subscription *models.UserSubscription) error {
	return r.db.WithContext(ctx).Create(subscription).Error
}

func (r *SubscriptionRepositoryImpl) UpdateUserSubscription(ctx context.Context, subscription *models.UserSubscription) error {
	result := r.db.WithContext(ctx).Model(subscription).Updates(map[string]interface{}{
		"plan_id":              subscription.PlanID,
		"status":               subscription.Status,
		"start_date":           subscription.StartDate,
		"end_date":             subscription.EndDate,
		"last_transaction_ref": subscription.LastTransactionRef,
		"cancelled_at":         subscription.CancelledAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// ExpireSubscriptions помечает истекшие подписки (используется воркером).
func (r *SubscriptionRepositoryImpl) ExpireSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.UserSubscription{}).
		Where("status = ? AND end_date IS NOT NULL AND end_date < ?", models.SubscriptionStatusActive, now).
		Update("status", models.SubscriptionStatusExpired)
	return result.RowsAffected, result.Error
}
