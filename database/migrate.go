package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moviestream_backend/internal/logger"
	"moviestream_backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect открывает пул gorm и проверяет соединение.
func Connect(ctx context.Context, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to GORM: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get *sql.DB from GORM: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("database unavailable: %w", err)
	}
	return db, nil
}

// AutoMigrate выполняет миграцию всех моделей
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.SubscriptionPlan{},
		&models.UserSubscription{},
		&models.PaymentTransaction{},
		&models.Movie{},
		&models.VideoPurchase{},
		&models.SavedMovie{},
		&models.SecurityViolation{},
		&models.UserBan{},
		&models.DailyWatchTime{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	logger.Info("Database migrated")
	return nil
}

// DefaultMonthlyPlan - план, который создается на пустой базе.
func DefaultMonthlyPlan(price decimal.Decimal, currency string) models.SubscriptionPlan {
	return models.SubscriptionPlan{
		Name:         "Monthly",
		Price:        price,
		Currency:     currency,
		Duration:     "monthly",
		DurationDays: 30,
		IsActive:     true,
	}
}

// SeedPlans создает месячный план, если активного еще нет.
func SeedPlans(ctx context.Context, db *gorm.DB, plan models.SubscriptionPlan) error {
	var existing models.SubscriptionPlan
	err := db.WithContext(ctx).
		Where("duration = ? AND is_active = ?", plan.Duration, true).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check plans: %w", err)
	}

	if err := db.WithContext(ctx).Create(&plan).Error; err != nil {
		return fmt.Errorf("create plan: %w", err)
	}
	logger.Info("Default subscription plan created", "plan_id", plan.ID, "price", plan.Price.StringFixed(2))
	return nil
}
