package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"moviestream_backend/internal/logger"
	"moviestream_backend/internal/payment/khqr"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

type BakongConfig struct {
	APIToken      string
	APIBaseURL    string
	CheckoutURL   string
	HashSecret    string
	WebhookSecret string
	Merchant      khqr.Merchant
	SessionTTL    time.Duration
	HTTPTimeout   time.Duration
}

// BakongProvider - оплата по KHQR. PaymentRef = md5 строки KHQR,
// статус проверяется через check_transaction_by_md5.
type BakongProvider struct {
	cfg    BakongConfig
	client *http.Client
	now    func() time.Time
	group  singleflight.Group
}

func NewBakongProvider(cfg BakongConfig, client *http.Client, now func() time.Time) *BakongProvider {
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 15 * time.Minute
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if now == nil {
		now = time.Now
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	return &BakongProvider{cfg: cfg, client: client, now: now}
}

func (p *BakongProvider) Name() string { return "bakong" }

func (p *BakongProvider) InitiatePayment(_ context.Context, req InitiateRequest) (*InitiateResult, error) {
	now := p.now()
	expiresAt := now.Add(p.cfg.SessionTTL)

	qr, err := khqr.Build(p.cfg.Merchant, khqr.Payment{
		Amount:     req.Amount,
		Currency:   req.Currency,
		BillNumber: req.Reference,
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("build khqr: %w", err)
	}

	result := &InitiateResult{
		PaymentRef: khqr.MD5(qr),
		KHQR:       qr,
		Method:     "khqr",
		ExpiresAt:  expiresAt,
	}

	if p.cfg.CheckoutURL != "" {
		amount := req.Amount.StringFixed(2)
		q := url.Values{}
		q.Set("transaction_id", req.Reference)
		q.Set("amount", amount)
		q.Set("currency", req.Currency)
		q.Set("hash", CheckoutHash(p.cfg.HashSecret, amount, req.Reference))
		if req.CallbackURL != "" {
			q.Set("return_url", req.CallbackURL)
		}
		result.CheckoutURL = p.cfg.CheckoutURL + "?" + q.Encode()
	}

	return result, nil
}

type checkTransactionResponse struct {
	ResponseCode    int    `json:"responseCode"`
	ResponseMessage string `json:"responseMessage"`
	ErrorCode       *int   `json:"errorCode"`
	Data            *struct {
		Hash               string          `json:"hash"`
		FromAccountID      string          `json:"fromAccountId"`
		ToAccountID        string          `json:"toAccountId"`
		Currency           string          `json:"currency"`
		Amount             decimal.Decimal `json:"amount"`
		Description        string          `json:"description"`
		CreatedDateMs      int64           `json:"createdDateMs"`
		AcknowledgedDateMs int64           `json:"acknowledgedDateMs"`
	} `json:"data"`
}

// VerifyPayment - конкурентные проверки одной ссылки схлопываются в один запрос.
func (p *BakongProvider) VerifyPayment(ctx context.Context, paymentRef string) *PaymentStatus {
	v, _, _ := p.group.Do(paymentRef, func() (interface{}, error) {
		return p.checkTransaction(ctx, paymentRef), nil
	})
	return v.(*PaymentStatus)
}

func (p *BakongProvider) checkTransaction(ctx context.Context, paymentRef string) *PaymentStatus {
	log := logger.FromContext(ctx).With("provider", "bakong", "payment_ref", paymentRef)

	body, _ := json.Marshal(map[string]string{"md5": paymentRef})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIBaseURL+"/v1/check_transaction_by_md5", bytes.NewReader(body))
	if err != nil {
		log.Warn("bakong verify: build request failed", "error", err)
		return pending(paymentRef)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIToken)

	resp, err := p.client.Do(req)
	if err != nil {
		log.Warn("bakong verify: transport error", "error", err)
		return pending(paymentRef)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		log.Warn("bakong verify: read body failed", "error", err)
		return pending(paymentRef)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("bakong verify: non-2xx response", "status", resp.StatusCode)
		return pending(paymentRef)
	}

	var parsed checkTransactionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		log.Warn("bakong verify: unexpected response shape", "error", err)
		return pending(paymentRef)
	}
	if parsed.ResponseCode != 0 || parsed.Data == nil {
		log.Debug("bakong verify: not paid yet", "response_code", parsed.ResponseCode, "message", parsed.ResponseMessage)
		return pending(paymentRef)
	}

	status := &PaymentStatus{
		PaymentRef:    paymentRef,
		Status:        StatusCompleted,
		Amount:        parsed.Data.Amount,
		Currency:      parsed.Data.Currency,
		TransactionID: parsed.Data.Hash,
	}
	if parsed.Data.AcknowledgedDateMs > 0 {
		paidAt := time.UnixMilli(parsed.Data.AcknowledgedDateMs)
		status.PaidAt = &paidAt
	}
	return status
}

func (p *BakongProvider) ParseWebhook(body []byte, signature string) (*PaymentStatus, error) {
	return parseWebhook(p.cfg.WebhookSecret, body, signature)
}

func (p *BakongProvider) ValidateCallback(params url.Values) (*CallbackResult, error) {
	return validateCallback(p.cfg.HashSecret, params, p.now())
}
