package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port          string `env:"PORT" envDefault:"8080"`
	AllowedOrigin string `env:"ALLOWED_ORIGIN" envDefault:"http://127.0.0.1:3000"`
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	StoreID       string `env:"DEFAULT_STORE_ID" envDefault:"magasin-principal"`

	StatsTTLSeconds int `env:"STATS_TTL_SECONDS" envDefault:"30"`

	AuthSecret            string `env:"AUTH_SECRET"`
	AccessTokenTTLMinutes int    `env:"ACCESS_TOKEN_TTL_MINUTES" envDefault:"480"`

	LoyaltySilverThreshold int64   `env:"LOYALTY_SILVER_THRESHOLD" envDefault:"500"`
	LoyaltyGoldThreshold   int64   `env:"LOYALTY_GOLD_THRESHOLD" envDefault:"1500"`
	LoyaltyRatePercent     float64 `env:"LOYALTY_RATE_PERCENT" envDefault:"0.5"`
}

func Load() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	if cfg.StatsTTLSeconds < 1 {
		cfg.StatsTTLSeconds = 30
	}
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}

	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}
