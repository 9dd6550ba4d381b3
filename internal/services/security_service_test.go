package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"moviestream_backend/internal/dto"
	"moviestream_backend/internal/models"
	"moviestream_backend/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logViolations(t *testing.T, f *fixture, userID string, vt models.ViolationType, n int) *dto.ViolationResult {
	t.Helper()
	var last *dto.ViolationResult
	for i := 0; i < n; i++ {
		res, err := f.security.LogViolation(context.Background(), dto.ViolationInput{
			UserID:        userID,
			ViolationType: vt,
			IPAddress:     "10.0.0.1",
			Metadata:      map[string]interface{}{"attempt": i},
		})
		require.NoError(t, err)
		last = res
	}
	return last
}

func TestLogViolation_BanAtThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := logViolations(t, f, f.user.ID, models.ViolationDevtools, 4)
	assert.True(t, res.Logged)
	assert.False(t, res.Banned)
	assert.Equal(t, models.SeverityHigh, res.Severity)

	_, banned, err := f.security.CheckUserBan(ctx, f.user.ID)
	require.NoError(t, err)
	assert.False(t, banned)

	res = logViolations(t, f, f.user.ID, models.ViolationDevtools, 1)
	require.True(t, res.Banned)
	require.NotNil(t, res.Ban)
	assert.Equal(t, models.BanTypeTemporary, res.Ban.BanType)
	require.NotNil(t, res.Ban.ExpiresAt)
	assert.Equal(t, f.clock.Now().Add(24*time.Hour).Unix(), *res.Ban.ExpiresAt)

	ban, banned, err := f.security.CheckUserBan(ctx, f.user.ID)
	require.NoError(t, err)
	assert.True(t, banned)
	assert.Equal(t, res.Ban.ID, ban.ID)

	_, banned, err = f.security.CheckUserBan(ctx, f.other.ID)
	require.NoError(t, err)
	assert.False(t, banned, "bans are per user")
}

func TestLogViolation_TypesCountedSeparately(t *testing.T) {
	f := newFixture(t)

	logViolations(t, f, f.user.ID, models.ViolationDevtools, 4)
	res := logViolations(t, f, f.user.ID, models.ViolationCopyAttempt, 4)
	assert.False(t, res.Banned)
	assert.Equal(t, 8, f.store.Counts().Violations)
	assert.Equal(t, 0, f.store.Counts().Bans)
}

func TestLogViolation_WindowSlides(t *testing.T) {
	f := newFixture(t)

	logViolations(t, f, f.user.ID, models.ViolationDevtools, 4)
	f.clock.Advance(24*time.Hour + time.Second)

	res := logViolations(t, f, f.user.ID, models.ViolationDevtools, 1)
	assert.False(t, res.Banned, "old violations are outside the 24h window")
}

func TestLogViolation_ExistingBanIsReused(t *testing.T) {
	f := newFixture(t)

	first := logViolations(t, f, f.user.ID, models.ViolationScreenShare, 2)
	require.True(t, first.Banned)

	again := logViolations(t, f, f.user.ID, models.ViolationScreenShare, 1)
	assert.True(t, again.Banned)
	assert.Equal(t, first.Ban.ID, again.Ban.ID)
	assert.Equal(t, 1, f.store.Counts().Bans)
}

func TestLogViolation_UnknownType(t *testing.T) {
	f := newFixture(t)

	_, err := f.security.LogViolation(context.Background(), dto.ViolationInput{
		UserID:        f.user.ID,
		ViolationType: "screenshot",
	})
	assert.ErrorIs(t, err, apperrors.ErrUnknownViolationType)
	assert.Equal(t, 0, f.store.Counts().Violations)
}

func TestCheckUserBan_ExpiredBanIsLifted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := logViolations(t, f, f.user.ID, models.ViolationTabSwitch, 10)
	require.True(t, res.Banned)

	f.clock.Advance(59 * time.Minute)
	_, banned, err := f.security.CheckUserBan(ctx, f.user.ID)
	require.NoError(t, err)
	assert.True(t, banned)

	f.clock.Advance(time.Minute)
	_, banned, err = f.security.CheckUserBan(ctx, f.user.ID)
	require.NoError(t, err)
	assert.False(t, banned)

	bans, err := f.store.Security().FindActiveBans(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, bans, "expired ban is deactivated on read")
}

func TestIsTrusted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	trusted, err := f.security.IsTrusted(ctx, f.user.ID)
	require.NoError(t, err)
	assert.True(t, trusted)

	logViolations(t, f, f.user.ID, models.ViolationRightClick, 1)
	trusted, err = f.security.IsTrusted(ctx, f.user.ID)
	require.NoError(t, err)
	assert.False(t, trusted)

	f.clock.Advance(24*time.Hour + time.Second)
	trusted, err = f.security.IsTrusted(ctx, f.user.ID)
	require.NoError(t, err)
	assert.True(t, trusted)
}

func TestRegisterPlayAttempt_DailyLimit(t *testing.T) {
	f := newFixture(t, withLimits(SecurityLimits{MaxPlayAttemptsPerDay: 3}))
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		n, err := f.security.RegisterPlayAttempt(ctx, f.user.ID)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	n, err := f.security.RegisterPlayAttempt(ctx, f.user.ID)
	assert.ErrorIs(t, err, apperrors.ErrPlayAttemptLimit)
	assert.Equal(t, 4, n)

	f.clock.Advance(24 * time.Hour)
	n, err = f.security.RegisterPlayAttempt(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "counter resets on a new day")
}

func TestDefaultLimitsAllowFiftyAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		_, err := f.security.RegisterPlayAttempt(ctx, f.user.ID)
		require.NoError(t, err)
	}
	_, err := f.security.RegisterPlayAttempt(ctx, f.user.ID)
	assert.ErrorIs(t, err, apperrors.ErrPlayAttemptLimit)
}

func TestRecordWatchTime(t *testing.T) {
	f := newFixture(t, withLimits(SecurityLimits{MaxWatchSecondsPerDay: 600}))
	ctx := context.Background()

	status, err := f.security.RecordWatchTime(ctx, f.user.ID, 1000)
	require.NoError(t, err)
	assert.Equal(t, MaxHeartbeatSeconds, status.UsedSeconds, "heartbeat is capped")
	assert.True(t, status.Allowed)
	assert.Equal(t, 300, status.RemainingSeconds)

	status, err = f.security.RecordWatchTime(ctx, f.user.ID, 300)
	require.NoError(t, err)
	assert.False(t, status.Allowed)
	assert.Equal(t, 0, status.RemainingSeconds)

	status, err = f.security.CheckWatchTimeLimit(ctx, f.user.ID)
	require.NoError(t, err)
	assert.False(t, status.Allowed)
	assert.Equal(t, 600, status.UsedSeconds)

	_, err = f.security.RecordWatchTime(ctx, f.user.ID, 0)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPCode)
}
