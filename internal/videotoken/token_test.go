package videotoken

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

func newTestSigner(now *time.Time) *Signer {
	return NewSigner("video-secret", DefaultTTL, func() time.Time { return *now })
}

func TestIssueAndParse(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s := newTestSigner(&now)

	token, expiresAt, err := s.Issue("user-1", "movie-1", true)
	require.NoError(t, err)
	assert.Equal(t, now.Add(2*time.Hour), expiresAt)

	claims, err := s.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "movie-1", claims.MovieID)
	assert.True(t, claims.Trusted)
	assert.Equal(t, expiresAt.Unix(), claims.ExpiresAt.Unix())
}

func TestParse_ExpiresAfterTwoHours(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s := newTestSigner(&now)

	token, _, err := s.Issue("user-1", "movie-1", false)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = s.Parse(token)
	assert.NoError(t, err, "still valid exactly at expiry")

	now = now.Add(time.Second)
	_, err = s.Parse(token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestParse_RejectsEveryMutatedCharacter(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s := newTestSigner(&now)

	token, _, err := s.Issue("6f1c2a9e-0000-4000-8000-000000000001", "movie-42", false)
	require.NoError(t, err)

	for i := 0; i < len(token); i++ {
		for _, c := range []byte{alphabet[0], alphabet[31], alphabet[63]} {
			if token[i] == c {
				continue
			}
			mutated := []byte(token)
			mutated[i] = c
			_, err := s.Parse(string(mutated))
			assert.Error(t, err, "position %d -> %q accepted", i, c)
		}
	}
}

func TestParse_ForgedWithOtherSecret(t *testing.T) {
	now := time.Now()
	forger := NewSigner("attacker", DefaultTTL, func() time.Time { return now })
	s := newTestSigner(&now)

	token, _, err := forger.Issue("user-1", "movie-1", true)
	require.NoError(t, err)

	_, err = s.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParse_Malformed(t *testing.T) {
	now := time.Now()
	s := newTestSigner(&now)

	for _, raw := range []string{
		"",
		"a:b:c",
		"a:b:notanumber:1:sig",
		"a:b:99999999999:2:sig",
		"a:b:c:d:e:f",
	} {
		_, err := s.Parse(base64.RawURLEncoding.EncodeToString([]byte(raw)))
		assert.ErrorIs(t, err, ErrMalformed, raw)
	}

	_, err := s.Parse("!!!not-base64!!!")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestIssue_RejectsSeparatorInIDs(t *testing.T) {
	now := time.Now()
	s := newTestSigner(&now)

	_, _, err := s.Issue("user:1", "movie-1", true)
	assert.Error(t, err)
	_, _, err = s.Issue("", "movie-1", true)
	assert.Error(t, err)
}
