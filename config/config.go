package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	JWTSecret    string `env:"JWT_SECRET,required"`
	JWTIssuer    string `env:"JWT_ISSUER" envDefault:"tickwise"`
	MFAJWTSecret string `env:"MFA_JWT_SECRET"`

	// MFASecretKey encrypts TOTP secrets at rest; base64url, 32 bytes decoded.
	MFASecretKey string `env:"MFA_SECRET_KEY,required"`

	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	MFATokenTTL     time.Duration `env:"MFA_TOKEN_TTL" envDefault:"5m"`

	MaxFailedLogins int           `env:"MAX_FAILED_LOGINS" envDefault:"5"`
	LockoutDuration time.Duration `env:"LOCKOUT_DURATION" envDefault:"30m"`

	ResendAPIKey string `env:"RESEND_API_KEY"`
	EmailFrom    string `env:"EMAIL_FROM"`
	AppBaseURL   string `env:"APP_BASE_URL"`

	CookieDomain  string `env:"COOKIE_DOMAIN"`
	SecureCookies bool   `env:"COOKIE_SECURE" envDefault:"true"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.MFAJWTSecret == "" {
		cfg.MFAJWTSecret = cfg.JWTSecret
	}
	return cfg, nil
}

func OpenDatabase(cfg *Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DatabaseURL,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		PrepareStmt: false,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

func OpenRedis(cfg *Config) (*redis.Client, error) {
	options, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(options), nil
}
