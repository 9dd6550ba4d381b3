package payment

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MockConfig struct {
	WebhookSecret string
	HashSecret    string
	// CheckoutBaseURL - страница "оплаты" в dev-окружении
	CheckoutBaseURL   string
	AutoCompleteAfter time.Duration
	SessionTTL        time.Duration
}

// mockSessionGrace - сколько сессия хранится после истечения SessionTTL.
const mockSessionGrace = time.Hour

type mockSession struct {
	req       InitiateRequest
	createdAt time.Time
	status    Status
}

// MockProvider - детерминированный провайдер для разработки.
// Сессия становится completed через AutoCompleteAfter после создания.
type MockProvider struct {
	cfg MockConfig
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*mockSession
}

func NewMockProvider(cfg MockConfig, now func() time.Time) *MockProvider {
	if now == nil {
		now = time.Now
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 15 * time.Minute
	}
	return &MockProvider{
		cfg:      cfg,
		now:      now,
		sessions: make(map[string]*mockSession),
	}
}

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) InitiatePayment(_ context.Context, req InitiateRequest) (*InitiateResult, error) {
	ref := "MOCK-" + uuid.NewString()
	now := p.now()

	p.mu.Lock()
	p.pruneLocked(now)
	p.sessions[ref] = &mockSession{req: req, createdAt: now, status: StatusPending}
	p.mu.Unlock()

	amount := req.Amount.StringFixed(2)
	q := url.Values{}
	q.Set("transaction_id", req.Reference)
	q.Set("amount", amount)
	q.Set("currency", req.Currency)
	q.Set("hash", CheckoutHash(p.cfg.HashSecret, amount, req.Reference))
	if req.CallbackURL != "" {
		q.Set("return_url", req.CallbackURL)
	}

	return &InitiateResult{
		PaymentRef:  ref,
		CheckoutURL: p.cfg.CheckoutBaseURL + "?" + q.Encode(),
		Method:      "mock",
		ExpiresAt:   now.Add(p.cfg.SessionTTL),
	}, nil
}

func (p *MockProvider) VerifyPayment(_ context.Context, paymentRef string) *PaymentStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[paymentRef]
	if !ok {
		return pending(paymentRef)
	}

	now := p.now()
	if s.status == StatusPending && now.Sub(s.createdAt) >= p.cfg.AutoCompleteAfter {
		s.status = StatusCompleted
	}
	if s.status != StatusCompleted {
		return pending(paymentRef)
	}

	paidAt := s.createdAt.Add(p.cfg.AutoCompleteAfter)
	return &PaymentStatus{
		PaymentRef:    paymentRef,
		Status:        StatusCompleted,
		Amount:        s.req.Amount,
		Currency:      s.req.Currency,
		TransactionID: "mock-" + paymentRef,
		PaidAt:        &paidAt,
	}
}

// pruneLocked удаляет сессии старше SessionTTL + mockSessionGrace.
// Для удаленной сессии VerifyPayment отвечает pending, как для истекшей.
func (p *MockProvider) pruneLocked(now time.Time) {
	cutoff := now.Add(-(p.cfg.SessionTTL + mockSessionGrace))
	for ref, s := range p.sessions {
		if s.createdAt.Before(cutoff) {
			delete(p.sessions, ref)
		}
	}
}

// SetStatus принудительно выставляет статус сессии (для dev-панели и тестов).
func (p *MockProvider) SetStatus(paymentRef string, status Status) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[paymentRef]
	if !ok {
		return false
	}
	s.status = status
	return true
}

func (p *MockProvider) ParseWebhook(body []byte, signature string) (*PaymentStatus, error) {
	return parseWebhook(p.cfg.WebhookSecret, body, signature)
}

func (p *MockProvider) ValidateCallback(params url.Values) (*CallbackResult, error) {
	return validateCallback(p.cfg.HashSecret, params, p.now())
}

// SignedCallback - параметры, которые mock checkout передает на return_url.
func (p *MockProvider) SignedCallback(transactionID string, amount decimal.Decimal) url.Values {
	return SignCallback(p.cfg.HashSecret, transactionID, amount.StringFixed(2), "mock-"+transactionID, p.now())
}

// HashSecret - ключ подписи checkout URL (нужен странице mock checkout).
func (p *MockProvider) HashSecret() string {
	return p.cfg.HashSecret
}
