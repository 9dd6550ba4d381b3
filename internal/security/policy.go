// Package security - таблица политик антипиратского монитора.
package security

import (
	"time"

	"moviestream_backend/internal/models"
)

// Window - окно подсчета нарушений одного типа.
const Window = 24 * time.Hour

type Policy struct {
	Severity    models.Severity
	BanDuration time.Duration
	// Threshold - число нарушений за Window, при котором выдается бан.
	Threshold int
	Permanent bool
}

var policies = map[models.ViolationType]Policy{
	models.ViolationDevtools:           {Severity: models.SeverityHigh, BanDuration: 24 * time.Hour, Threshold: 5},
	models.ViolationScreenShare:        {Severity: models.SeverityCritical, BanDuration: 72 * time.Hour, Threshold: 2},
	models.ViolationTabSwitch:          {Severity: models.SeverityLow, BanDuration: time.Hour, Threshold: 10},
	models.ViolationCopyAttempt:        {Severity: models.SeverityMedium, BanDuration: 6 * time.Hour, Threshold: 5},
	models.ViolationRightClick:         {Severity: models.SeverityLow, BanDuration: time.Hour, Threshold: 15},
	models.ViolationKeyboardShortcut:   {Severity: models.SeverityMedium, BanDuration: 2 * time.Hour, Threshold: 10},
	models.ViolationSuspiciousBehavior: {Severity: models.SeverityHigh, BanDuration: 48 * time.Hour, Threshold: 10},
}

func PolicyFor(t models.ViolationType) (Policy, bool) {
	p, ok := policies[t]
	return p, ok
}

func IsKnown(t string) bool {
	_, ok := policies[models.ViolationType(t)]
	return ok
}

// ShouldBan: count включает только что сохраненное нарушение.
func (p Policy) ShouldBan(count int64) bool {
	return count >= int64(p.Threshold)
}

func (p Policy) BanType() models.BanType {
	if p.Permanent {
		return models.BanTypePermanent
	}
	return models.BanTypeTemporary
}

// ExpiresAt возвращает nil для постоянного бана.
func (p Policy) ExpiresAt(now time.Time) *time.Time {
	if p.Permanent {
		return nil
	}
	t := now.Add(p.BanDuration)
	return &t
}
