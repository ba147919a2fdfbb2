package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL" envDefault:"sqlite://csgo_market.db"`
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	DBMaxOpenConns int `env:"DB_MAX_OPEN_CONNS" envDefault:"100"`
	DBMaxIdleConns int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`

	// Identity resolution cache (tuple -> item_key), 0 disables it
	IdentityCacheSize int `env:"IDENTITY_CACHE_SIZE" envDefault:"4096"`

	// White.market product export feed
	WhitemarketURL      string        `env:"WHITEMARKET_URL" envDefault:"https://s3.white.market/export/v1/products/730.json"`
	WhitemarketAPIToken string        `env:"WHITEMARKET_API_TOKEN"`
	WhitemarketTimeout  time.Duration `env:"WHITEMARKET_TIMEOUT" envDefault:"60s"`
}

// Load reads the configuration from the environment. Callers load .env
// files beforehand with godotenv.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
