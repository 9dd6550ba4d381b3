package app

import (
	"moviestream_backend/database"
	"moviestream_backend/internal/auth"
	"moviestream_backend/internal/config"
	"moviestream_backend/internal/logger"
	"moviestream_backend/internal/models"
	"moviestream_backend/internal/repositories/memory"

	"github.com/shopspring/decimal"
)

// seedDevelopmentData наполняет in-memory store: план, пара фильмов и
// демо-пользователь, для которого в лог пишется готовый bearer токен.
func seedDevelopmentData(store *memory.Store, cfg *config.Config, tokens *auth.TokenManager) {
	plan := store.SeedPlan(database.DefaultMonthlyPlan(
		decimal.NewFromFloat(cfg.Payment.SubscriptionFee).Round(2),
		cfg.Payment.Currency,
	))

	paid := store.SeedMovie(models.Movie{
		Title:    "Demo Feature",
		VideoURL: "https://www.youtube.com/watch?v=aqz-KE-bpKQ",
		Price:    decimal.RequireFromString("1.00"),
		Currency: cfg.Payment.Currency,
	})
	free := store.SeedMovie(models.Movie{
		Title:    "Demo Trailer",
		VideoURL: "https://vimeo.com/76979871",
		IsFree:   true,
		Currency: cfg.Payment.Currency,
	})

	user := store.SeedUser(models.User{Email: "demo@moviestream.local", Name: "Demo Viewer"})
	token, err := tokens.GenerateToken(user.ID, "user")
	if err != nil {
		logger.Error("Failed to issue demo token", "error", err)
		return
	}

	logger.Info("Development data seeded",
		"plan_id", plan.ID,
		"paid_movie_id", paid.ID,
		"free_movie_id", free.ID,
		"user_id", user.ID,
	)
	// полный токен нужен для ручной проверки API в development
	logger.Info("Demo bearer token", "token", token)
}
