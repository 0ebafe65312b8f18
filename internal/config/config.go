// Package config loads service configuration from the environment and from
// optional YAML seed files.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config carries the runtime configuration for the journal service.
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR,default=:8080"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	RedisAddr       string        `env:"REDIS_ADDR"`
	JWTSecret       string        `env:"JWT_SECRET,default=dev-only-secret"`
	TokenTTL        time.Duration `env:"TOKEN_TTL,default=24h"`
	CredentialKey   string        `env:"CREDENTIAL_KEY,default=dev-only-credential-key"`
	AllowedOrigins  string        `env:"ALLOWED_ORIGINS,default=*"`
	RateLimitRPS    int           `env:"RATE_LIMIT_RPS,default=25"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST,default=50"`
	FeedSeedPath    string        `env:"FEED_SEED_PATH"`
	AuditLogPath    string        `env:"AUDIT_LOG_PATH"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=15s"`

	Payments PaymentsConfig
	Chain    ChainConfig
}

// PaymentsConfig configures the external payment processor API.
type PaymentsConfig struct {
	APIBase       string `env:"PAYMENTS_API_BASE,default=https://api.stripe.com"`
	SecretKey     string `env:"PAYMENTS_SECRET_KEY"`
	WebhookSecret string `env:"PAYMENTS_WEBHOOK_SECRET"`
	SuccessURL string `env:"PAYMENTS_SUCCESS_URL,default=https://app.tradevault.io/billing/success"`
	CancelURL  string `env:"PAYMENTS_CANCEL_URL,default=https://app.tradevault.io/billing"`
	ReturnURL  string `env:"PAYMENTS_RETURN_URL,default=https://app.tradevault.io/settings"`
	ProPrice   string `env:"PAYMENTS_PRO_PRICE_ID"`
	ElitePrice string `env:"PAYMENTS_ELITE_PRICE_ID"`
}

// ChainConfig configures blockchain RPC and explorer endpoints used for
// wallet portfolio lookups.
type ChainConfig struct {
	RPCURL         string `env:"CHAIN_RPC_URL"`
	ExplorerAPI    string `env:"EXPLORER_API_BASE"`
	ExplorerAPIKey string `env:"EXPLORER_API_KEY"`
}

// Load reads configuration from the environment. A .env file is applied
// first when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	return cfg, nil
}

// FeedSeed describes a default price feed provisioned at startup.
type FeedSeed struct {
	Symbol    string `yaml:"symbol"`
	Quote     string `yaml:"quote"`
	SourceURL string `yaml:"source_url"`
	PricePath string `yaml:"price_path"`
	Interval  string `yaml:"interval"`
}

type feedSeedFile struct {
	Feeds []FeedSeed `yaml:"feeds"`
}

// LoadFeedSeeds reads the default price feed definitions from a YAML file.
// A missing path yields no seeds and no error.
func LoadFeedSeeds(path string) ([]FeedSeed, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read feed seeds: %w", err)
	}

	var file feedSeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse feed seeds: %w", err)
	}
	for i, seed := range file.Feeds {
		if seed.Symbol == "" || seed.SourceURL == "" || seed.PricePath == "" {
			return nil, fmt.Errorf("feed seed %d: symbol, source_url and price_path are required", i)
		}
	}
	return file.Feeds, nil
}
