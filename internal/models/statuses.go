package models

type SubscriptionStatus string
type PaymentStatus string
type PaymentKind string
type PaymentSource string
type BanType string
type ViolationType string
type Severity string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"

	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusRefunded  PaymentStatus = "refunded"

	PaymentKindSubscription PaymentKind = "subscription"
	PaymentKindVideo        PaymentKind = "video"

	PaymentSourceWebhook  PaymentSource = "webhook"
	PaymentSourceRedirect PaymentSource = "redirect"
	PaymentSourcePoll     PaymentSource = "poll"

	BanTypeTemporary BanType = "temporary"
	BanTypePermanent BanType = "permanent"

	ViolationDevtools           ViolationType = "devtools"
	ViolationScreenShare        ViolationType = "screen_share"
	ViolationTabSwitch          ViolationType = "tab_switch"
	ViolationCopyAttempt        ViolationType = "copy_attempt"
	ViolationRightClick         ViolationType = "right_click"
	ViolationKeyboardShortcut   ViolationType = "keyboard_shortcut"
	ViolationSuspiciousBehavior ViolationType = "suspicious_behavior"

	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsTerminal - из терминального статуса платеж больше не переходит.
func (s PaymentStatus) IsTerminal() bool {
	return s != PaymentStatusPending
}

// IsValid проверяет, что статус входит в словарь провайдера.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}
