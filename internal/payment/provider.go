// Package payment - адаптеры платежного провайдера.
// Bakong (KHQR) используется в production, Mock - в разработке.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidSignature - подпись webhook или callback не совпала.
	ErrInvalidSignature = errors.New("payment: invalid signature")
	// ErrMissingCallbackParams - в callback нет обязательных параметров.
	ErrMissingCallbackParams = errors.New("payment: missing callback params")
	// ErrCallbackExpired - callback старше допустимого окна.
	ErrCallbackExpired = errors.New("payment: callback expired")
	// ErrMalformedPayload - тело webhook не удалось разобрать.
	ErrMalformedPayload = errors.New("payment: malformed payload")
)

// Status - словарь статусов провайдера.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

type InitiateRequest struct {
	UserID      string
	PlanID      string
	Reference   string // локальная ссылка TXN-...
	Amount      decimal.Decimal
	Currency    string
	CallbackURL string
	Description string
}

type InitiateResult struct {
	PaymentRef  string
	CheckoutURL string
	KHQR        string
	Method      string
	ExpiresAt   time.Time
}

type PaymentStatus struct {
	PaymentRef    string
	Status        Status
	Amount        decimal.Decimal
	Currency      string
	TransactionID string
	PaidAt        *time.Time
}

// CallbackResult - проверенные параметры redirect callback.
type CallbackResult struct {
	TransactionID string
	Amount        decimal.Decimal
	BakongHash    string
	SuccessTime   time.Time
}

// Provider - единый интерфейс для всех провайдеров.
type Provider interface {
	Name() string
	// InitiatePayment создает платежную сессию и сразу возвращается.
	InitiatePayment(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	// VerifyPayment только читает статус. Ошибки транспорта и неизвестные
	// ответы дают pending, ошибка не возвращается.
	VerifyPayment(ctx context.Context, paymentRef string) *PaymentStatus
	// ParseWebhook проверяет HMAC-SHA256 тела и только потом разбирает его.
	ParseWebhook(body []byte, signature string) (*PaymentStatus, error)
	// ValidateCallback проверяет подпись и свежесть redirect callback.
	ValidateCallback(params url.Values) (*CallbackResult, error)
}

// SignWebhook - hex(HMAC-SHA256(secret, body)).
func SignWebhook(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature сравнивает подписи за постоянное время.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := SignWebhook(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func pending(ref string) *PaymentStatus {
	return &PaymentStatus{PaymentRef: ref, Status: StatusPending}
}
