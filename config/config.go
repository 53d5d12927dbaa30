package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Admin    AdminConfig
	Payment  PaymentConfig
	Gateways GatewaysConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	SiteURL      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

// AdminConfig seeds the single administrative account on first start.
type AdminConfig struct {
	Email    string
	Password string
}

type PaymentConfig struct {
	WebhookSecret   string
	ConfigCacheTTL  time.Duration
	CooldownWindow  time.Duration
	PollInterval    time.Duration
	PollMaxAttempts int
}

// GatewaysConfig overrides provider API base URLs, used in development and
// tests. Credentials live in the payment_config table, not here.
type GatewaysConfig struct {
	SumupBaseURL  string
	StripeBaseURL string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getenv("PORT", "8080"),
			Env:          getenv("APP_ENV", "development"),
			SiteURL:      getenv("SITE_URL", "http://localhost:8080"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 90 * time.Second, // the await endpoint blocks for the poll budget
		},
		Database: DatabaseConfig{
			DSN:             getenv("DATABASE_DSN", "streamvault:streamvault@tcp(localhost:3306)/streamvault?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret: getenv("JWT_SECRET", "change-me-in-production"),
			AccessExpiry: 12 * time.Hour,
			Issuer:       "streamvault",
		},
		Admin: AdminConfig{
			Email:    getenv("ADMIN_EMAIL", "admin@streamvault.local"),
			Password: getenv("ADMIN_PASSWORD", ""),
		},
		Payment: PaymentConfig{
			WebhookSecret:   getenv("PAYMENT_WEBHOOK_SECRET", ""),
			ConfigCacheTTL:  5 * time.Minute,
			CooldownWindow:  getdur("PAYMENT_COOLDOWN", 3*time.Second),
			PollInterval:    getdur("PAYMENT_POLL_INTERVAL", 2*time.Second),
			PollMaxAttempts: getint("PAYMENT_POLL_MAX_ATTEMPTS", 30),
		},
		Gateways: GatewaysConfig{
			SumupBaseURL:  os.Getenv("SUMUP_BASE_URL"),
			StripeBaseURL: os.Getenv("STRIPE_BASE_URL"),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getdur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
