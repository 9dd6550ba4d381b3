// Package videotoken выдает и проверяет stateless токены воспроизведения.
//
// Формат: base64url("userId:movieId:expiry:trusted:" + hex(HMAC-SHA256)).
// Подпись покрывает первые четыре поля.
package videotoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DefaultTTL = 2 * time.Hour

var (
	ErrMalformed        = errors.New("videotoken: malformed token")
	ErrExpired          = errors.New("videotoken: token expired")
	ErrInvalidSignature = errors.New("videotoken: invalid signature")
)

var encoding = base64.RawURLEncoding.Strict()

type Claims struct {
	UserID    string
	MovieID   string
	ExpiresAt time.Time
	Trusted   bool
}

type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration, now func() time.Time) *Signer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: now}
}

// Issue возвращает токен и момент его истечения (секундная точность).
func (s *Signer) Issue(userID, movieID string, trusted bool) (string, time.Time, error) {
	if userID == "" || movieID == "" || strings.Contains(userID, ":") || strings.Contains(movieID, ":") {
		return "", time.Time{}, fmt.Errorf("videotoken: invalid ids %q/%q", userID, movieID)
	}

	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	payload := strings.Join([]string{
		userID,
		movieID,
		strconv.FormatInt(expiresAt.Unix(), 10),
		formatTrusted(trusted),
	}, ":")

	raw := payload + ":" + s.sign(payload)
	return encoding.EncodeToString([]byte(raw)), expiresAt, nil
}

// Parse: формат -> срок -> подпись. Любая ошибка означает отказ в доступе.
func (s *Signer) Parse(token string) (*Claims, error) {
	raw, err := encoding.DecodeString(token)
	if err != nil {
		return nil, ErrMalformed
	}

	parts := strings.Split(string(raw), ":")
	if len(parts) != 5 {
		return nil, ErrMalformed
	}
	userID, movieID, expiryStr, trustedStr, sig := parts[0], parts[1], parts[2], parts[3], parts[4]

	expiry, err := strconv.ParseInt(expiryStr, 10, 64)
	if err != nil || userID == "" || movieID == "" {
		return nil, ErrMalformed
	}
	if trustedStr != "0" && trustedStr != "1" {
		return nil, ErrMalformed
	}

	if s.now().Unix() > expiry {
		return nil, ErrExpired
	}

	payload := strings.Join(parts[:4], ":")
	if !hmac.Equal([]byte(s.sign(payload)), []byte(sig)) {
		return nil, ErrInvalidSignature
	}

	return &Claims{
		UserID:    userID,
		MovieID:   movieID,
		ExpiresAt: time.Unix(expiry, 0),
		Trusted:   trustedStr == "1",
	}, nil
}

func (s *Signer) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func formatTrusted(trusted bool) string {
	if trusted {
		return "1"
	}
	return "0"
}
