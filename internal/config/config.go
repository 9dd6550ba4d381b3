package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Env  string `yaml:"env"`
		// PublicBaseURL - внешний адрес API (для return_url и ссылок mock-checkout)
		PublicBaseURL string `yaml:"public_base_url"`
		// FrontendURL - куда редиректить пользователя после оплаты
		FrontendURL string `yaml:"frontend_url"`
	} `yaml:"server"`

	Database struct {
		Driver string `yaml:"driver"` // postgres, memory
		DSN    string `yaml:"url"`
	} `yaml:"database"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	JWT struct {
		Secret string `yaml:"secret"`
		TTL    int    `yaml:"ttl"` // минуты
	} `yaml:"jwt"`

	Payment PaymentConfig `yaml:"payment"`

	Video struct {
		TokenSecret string `yaml:"token_secret"`
		TokenTTL    int    `yaml:"token_ttl"` // минуты
	} `yaml:"video"`

	Security struct {
		MaxPlayAttemptsPerDay  int `yaml:"max_play_attempts_per_day"`
		MaxWatchSecondsPerDay  int `yaml:"max_watch_seconds_per_day"`
		ViolationRatePerMinute int `yaml:"violation_rate_per_minute"`
		ViolationBurst         int `yaml:"violation_burst"`
	} `yaml:"security"`

	Email struct {
		Enabled      bool   `yaml:"enabled"`
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUsername string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
		FromName     string `yaml:"from_name"`
	} `yaml:"email"`
}

// PaymentConfig - настройки платежного провайдера (Bakong KHQR или mock)
type PaymentConfig struct {
	Currency        string  `yaml:"currency"`
	SubscriptionFee float64 `yaml:"subscription_fee"`
	SessionTTL      int     `yaml:"session_ttl"` // минуты

	// WebhookSecret - HMAC-SHA256 ключ для проверки тела webhook
	WebhookSecret string `yaml:"webhook_secret"`
	// HashSecret - ключ для SHA1 подписи checkout URL и redirect callback
	HashSecret string `yaml:"hash_secret"`

	Bakong struct {
		APIToken      string `yaml:"api_token"`
		APIBaseURL    string `yaml:"api_base_url"`
		CheckoutURL   string `yaml:"checkout_url"`
		AccountID     string `yaml:"account_id"`
		MerchantID    string `yaml:"merchant_id"`
		AcquiringBank string `yaml:"acquiring_bank"`
		MerchantName  string `yaml:"merchant_name"`
		MerchantCity  string `yaml:"merchant_city"`
		StoreLabel    string `yaml:"store_label"`
		TerminalLabel string `yaml:"terminal_label"`
	} `yaml:"bakong"`

	Mock struct {
		AutoCompleteAfter int `yaml:"auto_complete_after"` // секунды
	} `yaml:"mock"`
}

// UseBakong - реальный провайдер выбирается только при наличии всех учетных данных.
func (p PaymentConfig) UseBakong() bool {
	return p.Bakong.APIToken != "" && p.Bakong.AccountID != "" && p.HashSecret != ""
}

func (p PaymentConfig) SessionDuration() time.Duration {
	return time.Duration(p.SessionTTL) * time.Minute
}

var AppConfig *Config

func LoadConfig() {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	AppConfig = cfg
}

// Load читает config.yaml (или переменные окружения, если задан DATABASE_URL),
// применяет env-переопределения секретов и значения по умолчанию.
func Load() (*Config, error) {
	var cfg Config

	if os.Getenv("DATABASE_URL") == "" {
		configPath := os.Getenv("CONFIG_PATH")
		if configPath == "" {
			configPath = "config/config.yaml"
		}

		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("open config file %s: %w", configPath, err)
		}
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
	} else {
		log.Println("Loading configuration from environment")
		cfg.Database.Driver = "postgres"
		cfg.Database.DSN = os.Getenv("DATABASE_URL")
		cfg.Server.Env = os.Getenv("SERVER_ENV")
		cfg.Server.Port, _ = strconv.Atoi(os.Getenv("SERVER_PORT"))
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString(&cfg.Server.PublicBaseURL, "PUBLIC_BASE_URL")
	setString(&cfg.Server.FrontendURL, "FRONTEND_URL")
	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Video.TokenSecret, "VIDEO_TOKEN_SECRET")
	setString(&cfg.Payment.WebhookSecret, "PAYMENT_WEBHOOK_SECRET")
	setString(&cfg.Payment.HashSecret, "BAKONG_HASH_SECRET")
	setString(&cfg.Payment.Bakong.APIToken, "BAKONG_API_TOKEN")
	setString(&cfg.Payment.Bakong.AccountID, "BAKONG_ACCOUNT_ID")
	setString(&cfg.Payment.Bakong.MerchantName, "BAKONG_MERCHANT_NAME")
	setString(&cfg.Payment.Bakong.MerchantCity, "BAKONG_MERCHANT_CITY")
	setString(&cfg.Email.SMTPPassword, "SMTP_PASSWORD")
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Env == "" {
		cfg.Server.Env = "development"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.PublicBaseURL == "" {
		cfg.Server.PublicBaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	if cfg.Server.FrontendURL == "" {
		cfg.Server.FrontendURL = "http://localhost:3000"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.JWT.TTL == 0 {
		cfg.JWT.TTL = 60
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "USD"
	}
	if cfg.Payment.SubscriptionFee == 0 {
		cfg.Payment.SubscriptionFee = 5
	}
	if cfg.Payment.SessionTTL == 0 {
		cfg.Payment.SessionTTL = 15
	}
	if cfg.Payment.Bakong.APIBaseURL == "" {
		cfg.Payment.Bakong.APIBaseURL = "https://api-bakong.nbc.gov.kh"
	}
	if cfg.Payment.Bakong.MerchantCity == "" {
		cfg.Payment.Bakong.MerchantCity = "Phnom Penh"
	}
	if cfg.Payment.Mock.AutoCompleteAfter == 0 {
		cfg.Payment.Mock.AutoCompleteAfter = 5
	}
	if cfg.Video.TokenTTL == 0 {
		cfg.Video.TokenTTL = 120
	}
	if cfg.Security.MaxPlayAttemptsPerDay == 0 {
		cfg.Security.MaxPlayAttemptsPerDay = 50
	}
	if cfg.Security.MaxWatchSecondsPerDay == 0 {
		cfg.Security.MaxWatchSecondsPerDay = 3 * 60 * 60
	}
	if cfg.Security.ViolationRatePerMinute == 0 {
		cfg.Security.ViolationRatePerMinute = 30
	}
	if cfg.Security.ViolationBurst == 0 {
		cfg.Security.ViolationBurst = 10
	}
}

// Validate - вне development секреты обязательны.
func (c *Config) Validate() error {
	if c.Server.Env == "development" || c.Server.Env == "test" {
		return nil
	}

	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if c.Video.TokenSecret == "" {
		errs = append(errs, errors.New("video.token_secret is required"))
	}
	if c.Payment.WebhookSecret == "" {
		errs = append(errs, errors.New("payment.webhook_secret is required"))
	}
	if c.Payment.HashSecret == "" {
		errs = append(errs, errors.New("payment.hash_secret is required"))
	}
	// mock провайдер сам завершает сессии, вне development он недопустим
	if !c.Payment.UseBakong() {
		errs = append(errs, errors.New("payment.bakong api_token and account_id are required, mock provider is only allowed in development"))
	}
	if c.Database.Driver == "memory" {
		errs = append(errs, errors.New("database.driver=memory is only allowed in development"))
	}
	return errors.Join(errs...)
}

func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}
