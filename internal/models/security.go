package models

import (
	"time"

	"gorm.io/datatypes"
)

type SecurityViolation struct {
	BaseModel
	UserID        string         `gorm:"type:uuid;not null;index:idx_violation_user_type_time" json:"userId"`
	ViolationType ViolationType  `gorm:"type:varchar(32);not null;index:idx_violation_user_type_time" json:"violationType"`
	Severity      Severity       `gorm:"type:varchar(16);not null" json:"severity"`
	Description   string         `json:"description,omitempty"`
	MovieID       *string        `gorm:"type:uuid" json:"movieId,omitempty"`
	IPAddress     string         `gorm:"type:varchar(64)" json:"ipAddress,omitempty"`
	UserAgent     string         `json:"userAgent,omitempty"`
	Metadata      datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
}

type UserBan struct {
	BaseModel
	UserID      string     `gorm:"type:uuid;not null;index" json:"userId"`
	BanType     BanType    `gorm:"type:varchar(16);not null" json:"banType"`
	Reason      string     `json:"reason"`
	ViolationID *string    `gorm:"type:uuid" json:"violationId,omitempty"`
	BannedAt    time.Time  `json:"bannedAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	IsActive    bool       `gorm:"default:true;index" json:"isActive"`
}

// Expired - только временный бан может истечь.
func (b *UserBan) Expired(now time.Time) bool {
	return b.BanType == BanTypeTemporary && b.ExpiresAt != nil && !now.Before(*b.ExpiresAt)
}

// DailyWatchTime - счетчики на (пользователь, календарный день сервера).
type DailyWatchTime struct {
	BaseModel
	UserID       string    `gorm:"type:uuid;not null;uniqueIndex:idx_watch_user_date" json:"userId"`
	Date         string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_watch_user_date" json:"date"` // 2006-01-02
	TotalSeconds int       `gorm:"not null;default:0" json:"totalSeconds"`
	PlayAttempts int       `gorm:"not null;default:0" json:"playAttempts"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

// DayKey - ключ дня в локальной зоне сервера.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
