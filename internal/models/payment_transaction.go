package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentTransaction - одна попытка оплаты (подписка или покупка фильма).
// Разрешается как по LocalRef (TXN-...), так и по TransactionRef провайдера.
type PaymentTransaction struct {
	BaseModel
	UserID         string          `gorm:"type:uuid;not null;index" json:"userId"`
	Kind           PaymentKind     `gorm:"type:varchar(20);not null" json:"kind"`
	PlanID         *string         `gorm:"type:uuid;index" json:"planId,omitempty"`
	MovieID        *string         `gorm:"type:uuid;index" json:"movieId,omitempty"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency       string          `gorm:"type:varchar(3);not null" json:"currency"`
	Status         PaymentStatus   `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaymentMethod  string          `gorm:"type:varchar(20)" json:"paymentMethod"`
	TransactionRef *string         `gorm:"uniqueIndex" json:"transactionRef,omitempty"`
	LocalRef       string          `gorm:"uniqueIndex;not null" json:"localRef"`
	Source         PaymentSource   `gorm:"type:varchar(20)" json:"source,omitempty"`
	CheckoutURL    string          `json:"checkoutUrl,omitempty"`
	KHQR           string          `gorm:"column:khqr" json:"khqr,omitempty"`
	ExpiresAt      *time.Time      `json:"expiresAt,omitempty"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
}

// ProviderRef возвращает ссылку провайдера, если она уже известна.
func (p *PaymentTransaction) ProviderRef() string {
	if p.TransactionRef == nil {
		return ""
	}
	return *p.TransactionRef
}
