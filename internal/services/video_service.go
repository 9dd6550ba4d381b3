package services

import (
	"context"
	"errors"
	"time"

	"moviestream_backend/internal/dto"
	"moviestream_backend/internal/logger"
	"moviestream_backend/internal/metrics"
	"moviestream_backend/internal/models"
	"moviestream_backend/internal/player"
	"moviestream_backend/internal/repositories"
	"moviestream_backend/internal/videotoken"
	"moviestream_backend/pkg/apperrors"
)

// PlayPathPrefix - публичный путь плеера; за ним следует токен.
const PlayPathPrefix = "/api/v/play/"

type VideoService interface {
	// RequestStream: бан -> фильм -> доступ -> попытки -> время просмотра -> токен.
	RequestStream(ctx context.Context, req dto.StreamRequest) (*dto.StreamResponse, error)
	// ResolvePlayToken проверяет токен и повторно проверяет бан.
	ResolvePlayToken(ctx context.Context, token string) (*dto.PlaybackTarget, error)
	CheckEntitlement(ctx context.Context, userID string, movie *models.Movie) error
}

type videoService struct {
	store    repositories.Store
	security SecurityService
	signer   *videotoken.Signer
	now      func() time.Time
}

func NewVideoService(store repositories.Store, security SecurityService, signer *videotoken.Signer, now func() time.Time) VideoService {
	if now == nil {
		now = time.Now
	}
	return &videoService{store: store, security: security, signer: signer, now: now}
}

func (s *videoService) RequestStream(ctx context.Context, req dto.StreamRequest) (*dto.StreamResponse, error) {
	if err := s.ensureNotBanned(ctx, req.UserID); err != nil {
		metrics.RecordStreamDenied("banned")
		return nil, err
	}

	movie, err := s.findMovie(ctx, req.MovieID)
	if err != nil {
		return nil, err
	}

	if err := s.CheckEntitlement(ctx, req.UserID, movie); err != nil {
		metrics.RecordStreamDenied("not_entitled")
		return nil, err
	}

	if _, err := s.security.RegisterPlayAttempt(ctx, req.UserID); err != nil {
		metrics.RecordStreamDenied("play_attempts")
		return nil, err
	}

	watch, err := s.security.CheckWatchTimeLimit(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !watch.Allowed {
		metrics.RecordStreamDenied("watch_time")
		return nil, apperrors.ErrWatchTimeLimit.WithDetails(watch)
	}

	trusted, err := s.security.IsTrusted(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Issue(req.UserID, movie.ID, trusted)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	metrics.RecordPlayToken("issued")
	logger.CtxInfo(ctx, "Play token issued",
		"movie_id", movie.ID,
		"trusted", trusted,
		"ip", req.IPAddress,
	)

	return &dto.StreamResponse{
		VideoURL:  PlayPathPrefix + token,
		Title:     movie.Title,
		ExpiresAt: expiresAt.Unix(),
	}, nil
}

func (s *videoService) ResolvePlayToken(ctx context.Context, token string) (*dto.PlaybackTarget, error) {
	claims, err := s.signer.Parse(token)
	if err != nil {
		switch {
		case errors.Is(err, videotoken.ErrExpired):
			metrics.RecordPlayToken("expired")
			return nil, apperrors.ErrTokenExpired
		case errors.Is(err, videotoken.ErrInvalidSignature):
			metrics.RecordPlayToken("invalid_signature")
			logger.CtxWarn(ctx, "Play token with invalid signature")
			return nil, apperrors.ErrTokenSignature
		default:
			metrics.RecordPlayToken("malformed")
			return nil, apperrors.ErrTokenMalformed
		}
	}

	// бан мог появиться после выдачи токена
	if err := s.ensureNotBanned(ctx, claims.UserID); err != nil {
		metrics.RecordPlayToken("banned")
		return nil, err
	}

	movie, err := s.findMovie(ctx, claims.MovieID)
	if err != nil {
		return nil, err
	}

	embedURL, err := player.NormalizeEmbedURL(movie.VideoURL)
	if err != nil {
		logger.CtxError(ctx, "Movie has unusable video url", "movie_id", movie.ID, "error", err)
		return nil, apperrors.InternalError(err)
	}

	return &dto.PlaybackTarget{
		Movie:    movie,
		EmbedURL: embedURL,
		Trusted:  claims.Trusted,
		UserID:   claims.UserID,
	}, nil
}

func (s *videoService) CheckEntitlement(ctx context.Context, userID string, movie *models.Movie) error {
	if movie.IsFree {
		return nil
	}

	purchased, err := s.store.Movies().HasPurchase(ctx, userID, movie.ID)
	if err != nil {
		return apperrors.InternalError(err)
	}
	if purchased {
		return nil
	}

	sub, err := s.store.Subscriptions().FindUserSubscription(ctx, userID)
	if err != nil && !errors.Is(err, repositories.ErrSubscriptionNotFound) {
		return apperrors.InternalError(err)
	}
	if sub.IsActive(s.now()) {
		return nil
	}

	return apperrors.ErrNotEntitled.WithDetails(map[string]interface{}{
		"movieId": movie.ID,
		"price":   movie.PriceOrDefault().StringFixed(2),
	})
}

func (s *videoService) ensureNotBanned(ctx context.Context, userID string) error {
	ban, banned, err := s.security.CheckUserBan(ctx, userID)
	if err != nil {
		return err
	}
	if banned {
		return apperrors.ErrUserBanned.WithDetails(dto.NewBanInfo(ban))
	}
	return nil
}

func (s *videoService) findMovie(ctx context.Context, movieID string) (*models.Movie, error) {
	movie, err := s.store.Movies().FindByID(ctx, movieID)
	if err != nil {
		if errors.Is(err, repositories.ErrMovieNotFound) {
			return nil, apperrors.ErrMovieNotFound
		}
		return nil, apperrors.InternalError(err)
	}
	return movie, nil
}
