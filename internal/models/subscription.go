package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type SubscriptionPlan struct {
	BaseModel
	Name         string          `gorm:"not null" json:"name"`
	Price        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Currency     string          `gorm:"default:'USD'" json:"currency"`
	Duration     string          `gorm:"not null;index" json:"duration"` // "monthly"
	DurationDays int             `gorm:"not null;default:30" json:"durationDays"`
	Features     datatypes.JSON  `gorm:"type:jsonb" json:"features,omitempty"`
	IsActive     bool            `gorm:"default:true" json:"isActive"`
}

// UserSubscription - одна строка на пользователя; продление сдвигает EndDate.
type UserSubscription struct {
	BaseModel
	UserID             string             `gorm:"type:uuid;not null;uniqueIndex" json:"userId"`
	PlanID             string             `gorm:"type:uuid;not null;index" json:"planId"`
	Status             SubscriptionStatus `gorm:"type:varchar(20);default:'active'" json:"status"`
	StartDate          time.Time          `json:"startDate"`
	EndDate            *time.Time         `json:"endDate,omitempty"`
	AutoRenew          bool               `gorm:"default:false" json:"autoRenew"`
	LastTransactionRef string             `json:"lastTransactionRef,omitempty"`
	CancelledAt        *time.Time         `json:"cancelledAt,omitempty"`
}

// IsActive - статус active и EndDate отсутствует или в будущем.
func (s *UserSubscription) IsActive(now time.Time) bool {
	if s == nil || s.Status != SubscriptionStatusActive {
		return false
	}
	return s.EndDate == nil || s.EndDate.After(now)
}
