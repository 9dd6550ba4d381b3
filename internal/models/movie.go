package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Movie - VideoURL никогда не отдается клиенту напрямую.
type Movie struct {
	BaseModel
	Title    string          `gorm:"not null" json:"title"`
	VideoURL string          `gorm:"not null" json:"-"`
	IsFree   bool            `gorm:"default:false" json:"isFree"`
	Price    decimal.Decimal `gorm:"type:decimal(12,2);default:1" json:"price"`
	Currency string          `gorm:"type:varchar(3);default:'USD'" json:"currency"`
}

// PriceOrDefault - цена фильма, 1.00 если не задана.
func (m *Movie) PriceOrDefault() decimal.Decimal {
	if m.Price.IsPositive() {
		return m.Price
	}
	return decimal.NewFromInt(1)
}

type VideoPurchase struct {
	BaseModel
	UserID         string          `gorm:"type:uuid;not null;uniqueIndex:idx_purchase_user_movie" json:"userId"`
	MovieID        string          `gorm:"type:uuid;not null;uniqueIndex:idx_purchase_user_movie" json:"movieId"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2)" json:"amount"`
	Currency       string          `gorm:"type:varchar(3)" json:"currency"`
	TransactionRef string          `gorm:"index" json:"transactionRef"`
	PurchasedAt    time.Time       `json:"purchasedAt"`
}

// SavedMovie - "моя библиотека"
type SavedMovie struct {
	BaseModel
	UserID  string `gorm:"type:uuid;not null;uniqueIndex:idx_saved_user_movie" json:"userId"`
	MovieID string `gorm:"type:uuid;not null;uniqueIndex:idx_saved_user_movie" json:"movieId"`
}
