package payment

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CallbackWindow - сколько живет подпись redirect callback.
const CallbackWindow = 180 * time.Second

// Обязательные параметры redirect callback
var callbackParams = []string{"success_time", "success_amount", "bakong_hash", "success_hash", "transaction_id"}

// CheckoutHash - SHA1(secret + amount + transactionId), защищает ссылку оплаты.
func CheckoutHash(secret, amount, transactionID string) string {
	return sha1Hex(secret + amount + transactionID)
}

// CallbackHash - SHA1(secret + success_time + success_amount + bakong_hash + transaction_id).
func CallbackHash(secret, successTime, successAmount, bakongHash, transactionID string) string {
	return sha1Hex(secret + successTime + successAmount + bakongHash + transactionID)
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// validateCallback - общая проверка callback для Bakong и Mock.
// Ожидаемая подпись никогда не попадает в ошибку.
func validateCallback(secret string, params url.Values, now time.Time) (*CallbackResult, error) {
	var missing []string
	for _, key := range callbackParams {
		if params.Get(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingCallbackParams, strings.Join(missing, ","))
	}

	successTime := params.Get("success_time")
	ts, err := strconv.ParseInt(successTime, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: success_time", ErrMissingCallbackParams)
	}
	sentAt := time.Unix(ts, 0)
	if now.Sub(sentAt) > CallbackWindow || sentAt.Sub(now) > CallbackWindow {
		return nil, ErrCallbackExpired
	}

	amount, err := decimal.NewFromString(params.Get("success_amount"))
	if err != nil {
		return nil, fmt.Errorf("%w: success_amount", ErrMissingCallbackParams)
	}

	expected := CallbackHash(secret, successTime, params.Get("success_amount"), params.Get("bakong_hash"), params.Get("transaction_id"))
	got := strings.ToLower(params.Get("success_hash"))
	if subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
		return nil, ErrInvalidSignature
	}

	return &CallbackResult{
		TransactionID: params.Get("transaction_id"),
		Amount:        amount,
		BakongHash:    params.Get("bakong_hash"),
		SuccessTime:   sentAt,
	}, nil
}

// webhookPayload - формат тела webhook.
type webhookPayload struct {
	PaymentRef    string          `json:"paymentRef"`
	Status        Status          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	TransactionID string          `json:"transactionId"`
	PaidAt        int64           `json:"paidAt,omitempty"`
}

// parseWebhook сначала проверяет подпись, затем разбирает тело.
func parseWebhook(secret string, body []byte, signature string) (*PaymentStatus, error) {
	if !VerifyWebhookSignature(secret, body, signature) {
		return nil, ErrInvalidSignature
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload.PaymentRef == "" || !payload.Status.Valid() {
		return nil, fmt.Errorf("%w: paymentRef and status are required", ErrMalformedPayload)
	}

	status := &PaymentStatus{
		PaymentRef:    payload.PaymentRef,
		Status:        payload.Status,
		Amount:        payload.Amount,
		Currency:      payload.Currency,
		TransactionID: payload.TransactionID,
	}
	if payload.PaidAt > 0 {
		paidAt := time.Unix(payload.PaidAt, 0)
		status.PaidAt = &paidAt
	}
	return status, nil
}

// BuildWebhookBody - тело webhook в том формате, который ожидает ParseWebhook.
// Используется mock-провайдером и тестами.
func BuildWebhookBody(status PaymentStatus) ([]byte, error) {
	payload := webhookPayload{
		PaymentRef:    status.PaymentRef,
		Status:        status.Status,
		Amount:        status.Amount,
		Currency:      status.Currency,
		TransactionID: status.TransactionID,
	}
	if status.PaidAt != nil {
		payload.PaidAt = status.PaidAt.Unix()
	}
	return json.Marshal(payload)
}

// SignCallback собирает подписанные параметры callback (для mock checkout и тестов).
func SignCallback(secret, transactionID, amount, bakongHash string, at time.Time) url.Values {
	successTime := strconv.FormatInt(at.Unix(), 10)
	params := url.Values{}
	params.Set("transaction_id", transactionID)
	params.Set("success_time", successTime)
	params.Set("success_amount", amount)
	params.Set("bakong_hash", bakongHash)
	params.Set("success_hash", CallbackHash(secret, successTime, amount, bakongHash, transactionID))
	return params
}
