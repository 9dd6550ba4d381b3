package dto

import (
	"moviestream_backend/internal/models"

	"github.com/shopspring/decimal"
)

// PaymentSession - ответ на создание оплаты. Время - unix секунды.
type PaymentSession struct {
	PaymentID   string          `json:"paymentId"`
	PaymentRef  string          `json:"paymentRef"`
	LocalRef    string          `json:"localRef"`
	CheckoutURL string          `json:"checkoutUrl,omitempty"`
	KHQR        string          `json:"khqr,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	ExpiresAt   int64           `json:"expiresAt"`

	// только для покупки фильма
	MovieID    string `json:"movieId,omitempty"`
	MovieTitle string `json:"movieTitle,omitempty"`
}

// PaymentResult - итог подтверждения или проверки платежа.
type PaymentResult struct {
	Status    models.PaymentStatus `json:"status"`
	PaymentID string               `json:"paymentId"`
	Applied   bool                 `json:"-"`
}

type PaymentHistoryItem struct {
	PaymentID   string               `json:"paymentId"`
	PaymentRef  string               `json:"paymentRef,omitempty"`
	LocalRef    string               `json:"localRef"`
	Kind        models.PaymentKind   `json:"kind"`
	Status      models.PaymentStatus `json:"status"`
	Amount      decimal.Decimal      `json:"amount"`
	Currency    string               `json:"currency"`
	MovieID     string               `json:"movieId,omitempty"`
	PlanID      string               `json:"planId,omitempty"`
	CreatedAt   int64                `json:"createdAt"`
	CompletedAt *int64               `json:"completedAt,omitempty"`
}

type PaymentHistory struct {
	Payments []PaymentHistoryItem `json:"payments"`
	Total    int                  `json:"total"`
}

type SubscriptionInfo struct {
	ID        string                    `json:"id"`
	PlanID    string                    `json:"planId"`
	Status    models.SubscriptionStatus `json:"status"`
	StartDate int64                     `json:"startDate"`
	EndDate   *int64                    `json:"endDate,omitempty"`
}

type SubscriptionStatus struct {
	IsActive     bool              `json:"isActive"`
	Subscription *SubscriptionInfo `json:"subscription"`
}

type PurchaseStatus struct {
	IsPurchased bool                 `json:"isPurchased"`
	Status      models.PaymentStatus `json:"status,omitempty"`
}

func NewPaymentHistoryItem(p models.PaymentTransaction) PaymentHistoryItem {
	item := PaymentHistoryItem{
		PaymentID:  p.ID,
		PaymentRef: p.ProviderRef(),
		LocalRef:   p.LocalRef,
		Kind:       p.Kind,
		Status:     p.Status,
		Amount:     p.Amount,
		Currency:   p.Currency,
		CreatedAt:  p.CreatedAt.Unix(),
	}
	if p.MovieID != nil {
		item.MovieID = *p.MovieID
	}
	if p.PlanID != nil {
		item.PlanID = *p.PlanID
	}
	if p.CompletedAt != nil {
		ts := p.CompletedAt.Unix()
		item.CompletedAt = &ts
	}
	return item
}

func NewSubscriptionInfo(s *models.UserSubscription) *SubscriptionInfo {
	if s == nil {
		return nil
	}
	info := &SubscriptionInfo{
		ID:        s.ID,
		PlanID:    s.PlanID,
		Status:    s.Status,
		StartDate: s.StartDate.Unix(),
	}
	if s.EndDate != nil {
		ts := s.EndDate.Unix()
		info.EndDate = &ts
	}
	return info
}
