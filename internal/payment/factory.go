package payment

import (
	"net/http"
	"strings"
	"time"

	"moviestream_backend/internal/config"
	"moviestream_backend/internal/logger"
	"moviestream_backend/internal/payment/khqr"
)

type factoryOptions struct {
	client *http.Client
	now    func() time.Time
}

type Option func(*factoryOptions)

func WithHTTPClient(client *http.Client) Option {
	return func(o *factoryOptions) { o.client = client }
}

func WithClock(now func() time.Time) Option {
	return func(o *factoryOptions) { o.now = now }
}

// NewProvider выбирает провайдера один раз при старте:
// Bakong, если заданы все учетные данные, иначе Mock.
func NewProvider(cfg config.PaymentConfig, publicBaseURL string, opts ...Option) Provider {
	o := factoryOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.UseBakong() {
		logger.Info("Payment provider selected", "provider", "bakong", "account", cfg.Bakong.AccountID)
		return NewBakongProvider(BakongConfig{
			APIToken:      cfg.Bakong.APIToken,
			APIBaseURL:    cfg.Bakong.APIBaseURL,
			CheckoutURL:   cfg.Bakong.CheckoutURL,
			HashSecret:    cfg.HashSecret,
			WebhookSecret: cfg.WebhookSecret,
			SessionTTL:    cfg.SessionDuration(),
			Merchant: khqr.Merchant{
				BakongAccountID: cfg.Bakong.AccountID,
				MerchantID:      cfg.Bakong.MerchantID,
				AcquiringBank:   cfg.Bakong.AcquiringBank,
				Name:            cfg.Bakong.MerchantName,
				City:            cfg.Bakong.MerchantCity,
				StoreLabel:      cfg.Bakong.StoreLabel,
				TerminalLabel:   cfg.Bakong.TerminalLabel,
			},
		}, o.client, o.now)
	}

	logger.Warn("Payment provider selected", "provider", "mock", "reason", "bakong credentials not configured")
	return NewMockProvider(MockConfig{
		WebhookSecret:     cfg.WebhookSecret,
		HashSecret:        cfg.HashSecret,
		CheckoutBaseURL:   strings.TrimRight(publicBaseURL, "/") + "/api/payments/mock-checkout",
		AutoCompleteAfter: time.Duration(cfg.Mock.AutoCompleteAfter) * time.Second,
		SessionTTL:        cfg.SessionDuration(),
	}, o.now)
}
