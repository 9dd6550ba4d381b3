package security

import (
	"testing"
	"time"

	"moviestream_backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyTable(t *testing.T) {
	cases := []struct {
		typ       models.ViolationType
		severity  models.Severity
		duration  time.Duration
		threshold int
	}{
		{models.ViolationDevtools, models.SeverityHigh, 24 * time.Hour, 5},
		{models.ViolationScreenShare, models.SeverityCritical, 72 * time.Hour, 2},
		{models.ViolationTabSwitch, models.SeverityLow, time.Hour, 10},
		{models.ViolationCopyAttempt, models.SeverityMedium, 6 * time.Hour, 5},
		{models.ViolationRightClick, models.SeverityLow, time.Hour, 15},
		{models.ViolationKeyboardShortcut, models.SeverityMedium, 2 * time.Hour, 10},
		{models.ViolationSuspiciousBehavior, models.SeverityHigh, 48 * time.Hour, 10},
	}

	for _, tc := range cases {
		p, ok := PolicyFor(tc.typ)
		require.True(t, ok, tc.typ)
		assert.Equal(t, tc.severity, p.Severity, tc.typ)
		assert.Equal(t, tc.duration, p.BanDuration, tc.typ)
		assert.Equal(t, tc.threshold, p.Threshold, tc.typ)
		assert.False(t, p.Permanent, tc.typ)
		assert.False(t, p.ShouldBan(int64(tc.threshold-1)), tc.typ)
		assert.True(t, p.ShouldBan(int64(tc.threshold)), tc.typ)
	}

	_, ok := PolicyFor("screenshot")
	assert.False(t, ok)
	assert.False(t, IsKnown("screenshot"))
	assert.True(t, IsKnown("devtools"))
}

func TestPolicyExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	p, _ := PolicyFor(models.ViolationScreenShare)
	assert.Equal(t, models.BanTypeTemporary, p.BanType())
	require.NotNil(t, p.ExpiresAt(now))
	assert.Equal(t, now.Add(72*time.Hour), *p.ExpiresAt(now))

	p.Permanent = true
	assert.Equal(t, models.BanTypePermanent, p.BanType())
	assert.Nil(t, p.ExpiresAt(now))
}
