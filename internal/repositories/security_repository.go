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
	ErrBanNotFound = errors.New("ban not found")
)

type SecurityRepository interface {
	CreateViolation(ctx context.Context, violation *models.SecurityViolation) error
	// CountViolationsSince - пустой violationType считает все типы
	CountViolationsSince(ctx context.Context, userID string, violationType models.ViolationType, since time.Time) (int64, error)

	CreateBan(ctx context.Context, ban *models.UserBan) error
	// FindActiveBans возвращает активные баны, самые свежие первыми
	FindActiveBans(ctx context.Context, userID string) ([]models.UserBan, error)
	DeactivateBan(ctx context.Context, banID string) error

	// Атомарные счетчики дня: increment-and-return одним запросом
	IncrementPlayAttempts(ctx context.Context, userID, day string, now time.Time) (int, error)
	AddWatchSeconds(ctx context.Context, userID, day string, seconds int, now time.Time) (int, error)
	FindDailyWatchTime(ctx context.Context, userID, day string) (*models.DailyWatchTime, error)
}

type SecurityRepositoryImpl struct {
	db *gorm.DB
}

func NewSecurityRepository(db *gorm.DB) SecurityRepository {
	return &SecurityRepositoryImpl{db: db}
}

func (r *SecurityRepositoryImpl) CreateViolation(ctx context.Context, violation *models.SecurityViolation) error {
	return r.db.WithContext(ctx).Create(violation).Error
}

func (r *SecurityRepositoryImpl) CountViolationsSince(ctx context.Context, userID string, violationType models.ViolationType, since time.Time) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.SecurityViolation{}).
		Where("user_id = ? AND created_at >= ?", userID, since)
	if violationType != "" {
		query = query.Where("violation_type = ?", violationType)
	}
	err := query.Count(&count).Error
	return count, err
}

func (r *SecurityRepositoryImpl) CreateBan(ctx context.Context, ban *models.UserBan) error {
	return r.db.WithContext(ctx).Create(ban).Error
}

func (r *SecurityRepositoryImpl) FindActiveBans(ctx context.Context, userID string) ([]models.UserBan, error) {
	var bans []models.UserBan
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("banned_at DESC").
		Find(&bans).Error
	return bans, err
}

func (r *SecurityRepositoryImpl) DeactivateBan(ctx context.Context, banID string) error {
	result := r.db.WithContext(ctx).Model(&models.UserBan{}).
		Where("id = ?", banID).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBanNotFound
	}
	return nil
}

func (r *SecurityRepositoryImpl) IncrementPlayAttempts(ctx context.Context, userID, day string, now time.Time) (int, error) {
	row := models.DailyWatchTime{UserID: userID, Date: day, PlayAttempts: 1, LastUpdated: now}
	err := r.upsertDaily(ctx, &row, map[string]interface{}{
		"play_attempts": gorm.Expr("daily_watch_times.play_attempts + 1"),
		"last_updated":  now,
	})
	return row.PlayAttempts, err
}

func (r *SecurityRepositoryImpl) AddWatchSeconds(ctx context.Context, userID, day string, seconds int, now time.Time) (int, error) {
	row := models.DailyWatchTime{UserID: userID, Date: day, TotalSeconds: seconds, LastUpdated: now}
	err := r.upsertDaily(ctx, &row, map[string]interface{}{
		"total_seconds": gorm.Expr("daily_watch_times.total_seconds + ?", seconds),
		"last_updated":  now,
	})
	return row.TotalSeconds, err
}

// upsertDaily - INSERT ... ON CONFLICT (user_id, date) DO UPDATE ... RETURNING *
func (r *SecurityRepositoryImpl) upsertDaily(ctx context.Context, row *models.DailyWatchTime, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
				DoUpdates: clause.Assignments(updates),
			},
			clause.Returning{},
		).
		Create(row).Error
}

func (r *SecurityRepositoryImpl) FindDailyWatchTime(ctx context.Context, userID, day string) (*models.DailyWatchTime, error) {
	var row models.DailyWatchTime
	err := r.db.WithContext(ctx).Where("user_id = ? AND date = ?", userID, day).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.DailyWatchTime{UserID: userID, Date: day}, nil
		}
		return nil, err
	}
	return &row, nil
}
