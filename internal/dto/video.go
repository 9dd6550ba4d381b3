package dto

import "moviestream_backend/internal/models"

type StreamRequest struct {
	UserID    string
	MovieID   string
	IPAddress string
	UserAgent string
}

// StreamResponse - ссылка на плеер; исходный URL видео сюда не попадает.
type StreamResponse struct {
	VideoURL  string `json:"videoUrl"`
	Title     string `json:"title"`
	ExpiresAt int64  `json:"expiresAt"`
}

// PlaybackTarget - результат разбора токена плеера.
type PlaybackTarget struct {
	Movie    *models.Movie
	EmbedURL string
	Trusted  bool
	UserID   string
}

type VerifyPurchaseRequest struct {
	PaymentRef string `json:"paymentRef" validate:"omitempty,max=128"`
}
