package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port            string
	PublicBaseURL   string
	DefaultCurrency string
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MigrationsPath  string
}

type PaymentConfig struct {
	APIBaseURL    string
	APIKey        string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

type MailConfig struct {
	PostmarkToken string
	Sender        string
}

type AuthConfig struct {
	JWTSecret string
}

type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Payment  PaymentConfig
	Mail     MailConfig
	Auth     AuthConfig
}

// NewConfig loads configuration from the environment, optionally seeded
// from a .env file. Missing required keys are reported as errors rather
// than defaulted.
func NewConfig() (*Config, error) {
	// .env is a convenience for local runs; absence is not an error.
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.App.Port = getEnv("APP_PORT", "8080")
	cfg.App.PublicBaseURL = getEnv("PUBLIC_BASE_URL", "http://localhost:"+cfg.App.Port)
	cfg.App.DefaultCurrency = getEnv("DEFAULT_CURRENCY", "usd")

	var err error
	if cfg.Postgres.Host, err = requireEnv("DB_HOST"); err != nil {
		return nil, err
	}
	if cfg.Postgres.Port, err = requireEnv("DB_PORT"); err != nil {
		return nil, err
	}
	if cfg.Postgres.User, err = requireEnv("DB_USER"); err != nil {
		return nil, err
	}
	if cfg.Postgres.Password, err = requireEnv("DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Postgres.DBName, err = requireEnv("DB_NAME"); err != nil {
		return nil, err
	}
	cfg.Postgres.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Postgres.MaxConns = 10
	cfg.Postgres.MinConns = 2
	cfg.Postgres.MaxConnLifetime = 30 * time.Minute
	cfg.Postgres.MigrationsPath = getEnv("DB_MIGRATIONS_PATH", "migrations")

	cfg.Payment.APIBaseURL = getEnv("PAYMENT_API_BASE_URL", "https://api.payment.example.com")
	if cfg.Payment.APIKey, err = requireEnv("PAYMENT_API_KEY"); err != nil {
		return nil, err
	}
	if cfg.Payment.WebhookSecret, err = requireEnv("PAYMENT_WEBHOOK_SECRET"); err != nil {
		return nil, err
	}
	cfg.Payment.SuccessURL = getEnv("CHECKOUT_SUCCESS_URL", cfg.App.PublicBaseURL+"/checkout/success")
	cfg.Payment.CancelURL = getEnv("CHECKOUT_CANCEL_URL", cfg.App.PublicBaseURL+"/cart")

	cfg.Mail.PostmarkToken = os.Getenv("POSTMARK_API_TOKEN")
	cfg.Mail.Sender = getEnv("EMAIL_SENDER", "orders@solarshop.example.com")

	if cfg.Auth.JWTSecret, err = requireEnv("JWT_SECRET"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func requireEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("config: %s is required", key)
	}
	return v, nil
}
