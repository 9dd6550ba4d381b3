package email

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Email - готовое к отправке сообщение.
type Email struct {
	To       []string
	Subject  string
	Body     string
	HTMLBody string
}

// TemplateData - данные для шаблонов писем.
type TemplateData map[string]interface{}

// Receipt - квитанция об успешной оплате.
type Receipt struct {
	To         string
	Name       string
	PaymentRef string
	Kind       string // subscription | video
	Item       string
	Amount     decimal.Decimal
	Currency   string
	PaidAt     time.Time
	ValidUntil *time.Time
}

// Sender отправляет письма пользователям.
type Sender interface {
	Send(ctx context.Context, email *Email) error
	SendReceipt(ctx context.Context, receipt Receipt) error
}
