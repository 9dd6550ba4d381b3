package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"moviestream_backend/database"
	"moviestream_backend/internal/auth"
	"moviestream_backend/internal/config"
	"moviestream_backend/internal/email"
	"moviestream_backend/internal/handlers"
	"moviestream_backend/internal/lock"
	"moviestream_backend/internal/logger"
	"moviestream_backend/internal/middleware"
	"moviestream_backend/internal/payment"
	"moviestream_backend/internal/ratelimit"
	"moviestream_backend/internal/repositories"
	"moviestream_backend/internal/repositories/memory"
	"moviestream_backend/internal/routes"
	"moviestream_backend/internal/services"
	"moviestream_backend/internal/validator"
	"moviestream_backend/internal/videotoken"
	"moviestream_backend/internal/workers"
	"moviestream_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const (
	lockTTL         = 30 * time.Second
	shutdownTimeout = 15 * time.Second
)

// App - собранное приложение: роутер, сервисы и фоновые задачи.
type App struct {
	Router   *gin.Engine
	Services *services.ServiceContainer
	Tokens   *auth.TokenManager

	store   repositories.Store
	worker  *workers.SubscriptionWorker
	closers []func() error
}

func Run() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)
	apperrors.SetDebug(cfg.Server.Env == "development")
	if cfg.Server.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize application", "error", err)
	}
	defer application.Close()

	application.worker.Start(ctx)

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              address,
		Handler:           application.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "address", address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server startup error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	application.worker.Wait()
}

// New собирает зависимости по конфигурации. Фоновые задачи не запускаются.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}
	checks := map[string]handlers.HealthCheck{}

	store, err := a.openStore(ctx, cfg, checks)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store

	locker, err := a.newLocker(ctx, cfg, checks)
	if err != nil {
		a.Close()
		return nil, err
	}

	mailer, err := newMailer(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	videoSecret := secretOrRandom(cfg.Video.TokenSecret, "video.token_secret")
	a.Services = services.NewServiceContainer(services.Dependencies{
		Store:    store,
		Provider: payment.NewProvider(cfg.Payment, cfg.Server.PublicBaseURL),
		Locker:   locker,
		Mailer:   mailer,
		Signer:   videotoken.NewSigner(videoSecret, time.Duration(cfg.Video.TokenTTL)*time.Minute, nil),
		Payment:  services.PaymentSettings{PublicBaseURL: cfg.Server.PublicBaseURL},
		Limits: services.SecurityLimits{
			MaxPlayAttemptsPerDay: cfg.Security.MaxPlayAttemptsPerDay,
			MaxWatchSecondsPerDay: cfg.Security.MaxWatchSecondsPerDay,
		},
	})

	a.Tokens = auth.NewTokenManager(
		secretOrRandom(cfg.JWT.Secret, "jwt.secret"),
		time.Duration(cfg.JWT.TTL)*time.Minute,
	)
	limiter := ratelimit.New(ratelimit.Config{
		PerMinute: cfg.Security.ViolationRatePerMinute,
		Burst:     cfg.Security.ViolationBurst,
	})

	a.Router = SetupRouter(cfg, a.Services, a.Tokens, limiter, checks)
	a.worker = workers.NewSubscriptionWorker(store, 0, nil)

	if mem, ok := store.(*memory.Store); ok {
		seedDevelopmentData(mem, cfg, a.Tokens)
	}
	return a, nil
}

// SetupRouter собирает gin с middleware и всеми маршрутами.
func SetupRouter(
	cfg *config.Config,
	container *services.ServiceContainer,
	tokens *auth.TokenManager,
	limiter *ratelimit.Limiter,
	checks map[string]handlers.HealthCheck,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.CORSMiddleware([]string{cfg.Server.FrontendURL}))

	base := handlers.NewBaseHandler(validator.New(), middleware.AuthMiddleware(tokens))
	appHandlers := &handlers.AppHandlers{
		PaymentHandler:  handlers.NewPaymentHandler(base, container.PaymentService, cfg.Server.FrontendURL),
		VideoHandler:    handlers.NewVideoHandler(base, container.VideoService, container.PaymentService),
		SecurityHandler: handlers.NewSecurityHandler(base, container.SecurityService, limiter),
		HealthHandler:   handlers.NewHealthHandler(checks),
	}

	routes.RegisterRoutes(router, appHandlers)
	return router
}

func (a *App) openStore(ctx context.Context, cfg *config.Config, checks map[string]handlers.HealthCheck) (repositories.Store, error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn("Using in-memory store; data is lost on restart")
		return memory.NewStore(), nil
	}

	logger.Info("Connecting to database...", "driver", cfg.Database.Driver)
	db, err := database.Connect(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get *sql.DB: %w", err)
	}
	a.closers = append(a.closers, sqlDB.Close)
	checks["database"] = sqlDB.PingContext
	logger.Info("Database connected")

	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}
	plan := database.DefaultMonthlyPlan(decimal.NewFromFloat(cfg.Payment.SubscriptionFee).Round(2), cfg.Payment.Currency)
	if err := database.SeedPlans(ctx, db, plan); err != nil {
		return nil, err
	}
	return repositories.NewGormStore(db), nil
}

// newLocker - Redis, если задан адрес (несколько инстансов), иначе in-process.
func (a *App) newLocker(ctx context.Context, cfg *config.Config, checks map[string]handlers.HealthCheck) (lock.Locker, error) {
	if cfg.Redis.Addr == "" {
		logger.Info("Confirmation lock: in-process keyed mutex")
		return lock.NewKeyedMutex(), nil
	}

	client, err := lock.NewRedisClient(ctx, lock.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	logger.Info("Confirmation lock: redis", "addr", cfg.Redis.Addr)
	return lock.NewRedisLocker(client, lockTTL), nil
}

func newMailer(cfg *config.Config) (email.Sender, error) {
	if !cfg.Email.Enabled {
		logger.Warn("Email disabled, receipts are only logged")
		return email.NewMockSender(), nil
	}

	sender := email.NewGomailSender(email.SMTPConfig{
		Host:      cfg.Email.SMTPHost,
		Port:      cfg.Email.SMTPPort,
		Username:  cfg.Email.SMTPUsername,
		Password:  cfg.Email.SMTPPassword,
		FromEmail: cfg.Email.FromEmail,
		FromName:  cfg.Email.FromName,
	})
	if err := sender.Validate(); err != nil {
		return nil, fmt.Errorf("email config: %w", err)
	}
	return sender, nil
}

// Close освобождает соединения в обратном порядке.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("Failed to close resource", "error", err)
		}
	}
	a.closers = nil
}

// secretOrRandom - пустой секрет допускается только в development (см. Config.Validate).
func secretOrRandom(secret, name string) string {
	if secret != "" {
		return secret
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		logger.Fatal("Failed to generate secret", "name", name, "error", err)
	}
	logger.Warn("Secret not configured, using a random one for this process", "name", name)
	return hex.EncodeToString(buf)
}
