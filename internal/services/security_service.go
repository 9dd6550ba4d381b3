package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"moviestream_backend/internal/dto"
	"moviestream_backend/internal/logger"
	"moviestream_backend/internal/metrics"
	"moviestream_backend/internal/models"
	"moviestream_backend/internal/repositories"
	"moviestream_backend/internal/security"
	"moviestream_backend/pkg/apperrors"

	"gorm.io/datatypes"
)

// MaxHeartbeatSeconds - больше за один heartbeat не засчитывается.
const MaxHeartbeatSeconds = 300

// SecurityLimits - дневные квоты на пользователя.
type SecurityLimits struct {
	MaxPlayAttemptsPerDay int
	MaxWatchSecondsPerDay int
}

func DefaultSecurityLimits() SecurityLimits {
	return SecurityLimits{MaxPlayAttemptsPerDay: 50, MaxWatchSecondsPerDay: 3 * 60 * 60}
}

type SecurityService interface {
	LogViolation(ctx context.Context, in dto.ViolationInput) (*dto.ViolationResult, error)
	// CheckUserBan возвращает действующий бан; истекшие баны снимаются при чтении.
	CheckUserBan(ctx context.Context, userID string) (*models.UserBan, bool, error)
	CheckWatchTimeLimit(ctx context.Context, userID string) (*dto.WatchTimeStatus, error)
	RegisterPlayAttempt(ctx context.Context, userID string) (int, error)
	RecordWatchTime(ctx context.Context, userID string, seconds int) (*dto.WatchTimeStatus, error)
	// IsTrusted - нет нарушений за последние сутки.
	IsTrusted(ctx context.Context, userID string) (bool, error)
}

type securityService struct {
	store  repositories.Store
	limits SecurityLimits
	now    func() time.Time
}

func NewSecurityService(store repositories.Store, limits SecurityLimits, now func() time.Time) SecurityService {
	def := DefaultSecurityLimits()
	if limits.MaxPlayAttemptsPerDay <= 0 {
		limits.MaxPlayAttemptsPerDay = def.MaxPlayAttemptsPerDay
	}
	if limits.MaxWatchSecondsPerDay <= 0 {
		limits.MaxWatchSecondsPerDay = def.MaxWatchSecondsPerDay
	}
	if now == nil {
		now = time.Now
	}
	return &securityService{store: store, limits: limits, now: now}
}

func (s *securityService) LogViolation(ctx context.Context, in dto.ViolationInput) (*dto.ViolationResult, error) {
	policy, ok := security.PolicyFor(in.ViolationType)
	if !ok {
		return nil, apperrors.ErrUnknownViolationType.WithDetails(map[string]string{"violationType": string(in.ViolationType)})
	}

	violation := &models.SecurityViolation{
		UserID:        in.UserID,
		ViolationType: in.ViolationType,
		Severity:      policy.Severity,
		Description:   in.Description,
		IPAddress:     in.IPAddress,
		UserAgent:     in.UserAgent,
	}
	if in.MovieID != "" {
		movieID := in.MovieID
		violation.MovieID = &movieID
	}
	if len(in.Metadata) > 0 {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return nil, apperrors.NewBadRequestError("metadata must be a JSON object")
		}
		violation.Metadata = datatypes.JSON(raw)
	}

	result := &dto.ViolationResult{Logged: true, Severity: policy.Severity}

	err := s.store.WithinTransaction(ctx, func(tx repositories.Store) error {
		now := s.now()
		violation.CreatedAt = now
		if err := tx.Security().CreateViolation(ctx, violation); err != nil {
			return fmt.Errorf("create violation: %w", err)
		}
		result.ViolationID = violation.ID

		count, err := tx.Security().CountViolationsSince(ctx, in.UserID, in.ViolationType, now.Add(-security.Window))
		if err != nil {
			return fmt.Errorf("count violations: %w", err)
		}
		if !policy.ShouldBan(count) {
			return nil
		}

		if existing, banned, err := s.activeBan(ctx, tx, in.UserID); err != nil {
			return err
		} else if banned {
			result.Banned = true
			result.Ban = dto.NewBanInfo(existing)
			return nil
		}

		violationID := violation.ID
		ban := &models.UserBan{
			UserID:      in.UserID,
			BanType:     policy.BanType(),
			Reason:      fmt.Sprintf("%s: %d violations in 24h", in.ViolationType, count),
			ViolationID: &violationID,
			BannedAt:    now,
			ExpiresAt:   policy.ExpiresAt(now),
			IsActive:    true,
		}
		if err := tx.Security().CreateBan(ctx, ban); err != nil {
			return fmt.Errorf("create ban: %w", err)
		}
		result.Banned = true
		result.Ban = dto.NewBanInfo(ban)

		logger.CtxWarn(ctx, "User banned",
			"user_id", in.UserID,
			"violation_type", in.ViolationType,
			"count", count,
			"ban_type", ban.BanType,
		)
		return nil
	})
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	metrics.RecordViolation(string(in.ViolationType), result.Banned)
	logger.CtxInfo(ctx, "Security violation logged",
		"violation_type", in.ViolationType,
		"severity", policy.Severity,
		"banned", result.Banned,
	)
	return result, nil
}

func (s *securityService) CheckUserBan(ctx context.Context, userID string) (*models.UserBan, bool, error) {
	ban, banned, err := s.activeBan(ctx, s.store, userID)
	if err != nil {
		return nil, false, apperrors.InternalError(err)
	}
	return ban, banned, nil
}

func (s *securityService) activeBan(ctx context.Context, store repositories.Store, userID string) (*models.UserBan, bool, error) {
	bans, err := store.Security().FindActiveBans(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("find bans: %w", err)
	}

	now := s.now()
	for i := range bans {
		ban := bans[i]
		if ban.Expired(now) {
			if err := store.Security().DeactivateBan(ctx, ban.ID); err != nil && !errors.Is(err, repositories.ErrBanNotFound) {
				return nil, false, fmt.Errorf("deactivate ban: %w", err)
			}
			logger.CtxDebug(ctx, "Expired ban deactivated", "ban_id", ban.ID)
			continue
		}
		return &ban, true, nil
	}
	return nil, false, nil
}

func (s *securityService) CheckWatchTimeLimit(ctx context.Context, userID string) (*dto.WatchTimeStatus, error) {
	row, err := s.store.Security().FindDailyWatchTime(ctx, userID, models.DayKey(s.now()))
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return s.watchStatus(row.TotalSeconds), nil
}

func (s *securityService) RegisterPlayAttempt(ctx context.Context, userID string) (int, error) {
	attempts, err := s.store.Security().IncrementPlayAttempts(ctx, userID, models.DayKey(s.now()), s.now())
	if err != nil {
		return 0, apperrors.InternalError(err)
	}
	if attempts > s.limits.MaxPlayAttemptsPerDay {
		return attempts, apperrors.ErrPlayAttemptLimit.WithDetails(map[string]int{
			"attempts": attempts,
			"limit":    s.limits.MaxPlayAttemptsPerDay,
		})
	}
	return attempts, nil
}

func (s *securityService) RecordWatchTime(ctx context.Context, userID string, seconds int) (*dto.WatchTimeStatus, error) {
	if seconds <= 0 {
		return nil, apperrors.NewBadRequestError("seconds must be positive")
	}
	if seconds > MaxHeartbeatSeconds {
		seconds = MaxHeartbeatSeconds
	}

	now := s.now()
	total, err := s.store.Security().AddWatchSeconds(ctx, userID, models.DayKey(now), seconds, now)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return s.watchStatus(total), nil
}

func (s *securityService) IsTrusted(ctx context.Context, userID string) (bool, error) {
	n, err := s.store.Security().CountViolationsSince(ctx, userID, "", s.now().Add(-security.Window))
	if err != nil {
		return false, apperrors.InternalError(err)
	}
	return n == 0, nil
}

func (s *securityService) watchStatus(used int) *dto.WatchTimeStatus {
	remaining := s.limits.MaxWatchSecondsPerDay - used
	if remaining < 0 {
		remaining = 0
	}
	return &dto.WatchTimeStatus{
		Allowed:          used < s.limits.MaxWatchSecondsPerDay,
		UsedSeconds:      used,
		RemainingSeconds: remaining,
	}
}
