// Package metrics - prometheus-метрики платежей, доставки видео и безопасности.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "moviestream"

var (
	paymentsInitiated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payments_initiated_total",
		Help:      "Payment sessions created by kind and provider",
	}, []string{"kind", "provider"})

	paymentConfirmations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_confirmations_total",
		Help:      "Confirmation attempts by source, resulting status and whether the transition was applied",
	}, []string{"source", "status", "applied"})

	paymentSignatureFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_signature_failures_total",
		Help:      "Rejected webhook and callback signatures",
	}, []string{"source"})

	providerVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_verifications_total",
		Help:      "Provider status checks by reported status",
	}, []string{"provider", "status"})

	playTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "play_tokens_total",
		Help:      "Play tokens by outcome", // outcome=issued|malformed|expired|invalid_signature|banned
	}, []string{"outcome"})

	streamDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_denied_total",
		Help:      "Stream requests denied by reason",
	}, []string{"reason"})

	violations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "security_violations_total",
		Help:      "Reported violations by type",
	}, []string{"type"})

	bansIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "security_bans_total",
		Help:      "Bans issued by violation type",
	}, []string{"type"})

	rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ratelimit_exceeded_total",
		Help:      "Requests rejected by the per-key limiter",
	}, []string{"route"})

	subscriptionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "subscriptions_expired_total",
		Help:      "Subscriptions moved to expired by the background worker",
	})
)

func RecordPaymentInitiated(kind, provider string) {
	paymentsInitiated.WithLabelValues(kind, provider).Inc()
}

func RecordConfirmation(source, status string, applied bool) {
	paymentConfirmations.WithLabelValues(source, status, strconv.FormatBool(applied)).Inc()
}

func RecordSignatureFailure(source string) {
	paymentSignatureFailures.WithLabelValues(source).Inc()
}

func RecordProviderVerification(provider, status string) {
	providerVerifications.WithLabelValues(provider, status).Inc()
}

func RecordPlayToken(outcome string) {
	playTokens.WithLabelValues(outcome).Inc()
}

func RecordStreamDenied(reason string) {
	streamDenied.WithLabelValues(reason).Inc()
}

func RecordViolation(violationType string, banned bool) {
	violations.WithLabelValues(violationType).Inc()
	if banned {
		bansIssued.WithLabelValues(violationType).Inc()
	}
}

func RecordRateLimited(route string) {
	rateLimited.WithLabelValues(route).Inc()
}

func RecordSubscriptionsExpired(n int64) {
	subscriptionsExpired.Add(float64(n))
}
