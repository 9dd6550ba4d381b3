package dto

import "moviestream_backend/internal/models"

// ViolationRequest - тело POST /api/security/violation
type ViolationRequest struct {
	ViolationType string                 `json:"violationType" validate:"required,violation_type"`
	Description   string                 `json:"description" validate:"max=1000"`
	MovieID       string                 `json:"movieId" validate:"omitempty,uuid"`
	Metadata      map[string]interface{} `json:"metadata"`
}

type ViolationInput struct {
	UserID        string
	ViolationType models.ViolationType
	Description   string
	MovieID       string
	IPAddress     string
	UserAgent     string
	Metadata      map[string]interface{}
}

type BanInfo struct {
	ID        string         `json:"id"`
	BanType   models.BanType `json:"banType"`
	Reason    string         `json:"reason"`
	BannedAt  int64          `json:"bannedAt"`
	ExpiresAt *int64         `json:"expiresAt,omitempty"`
}

type ViolationResult struct {
	Logged      bool            `json:"logged"`
	ViolationID string          `json:"violationId"`
	Severity    models.Severity `json:"severity"`
	Banned      bool            `json:"banned"`
	Ban         *BanInfo        `json:"ban,omitempty"`
}

type BanStatus struct {
	Banned bool     `json:"banned"`
	Ban    *BanInfo `json:"ban,omitempty"`
}

type WatchTimeRequest struct {
	Seconds int `json:"seconds" validate:"required,min=1,max=3600"`
}

type WatchTimeStatus struct {
	Allowed          bool `json:"allowed"`
	UsedSeconds      int  `json:"usedSeconds"`
	RemainingSeconds int  `json:"remainingSeconds"`
}

func NewBanInfo(b *models.UserBan) *BanInfo {
	if b == nil {
		return nil
	}
	info := &BanInfo{
		ID:       b.ID,
		BanType:  b.BanType,
		Reason:   b.Reason,
		BannedAt: b.BannedAt.Unix(),
	}
	if b.ExpiresAt != nil {
		ts := b.ExpiresAt.Unix()
		info.ExpiresAt = &ts
	}
	return info
}
