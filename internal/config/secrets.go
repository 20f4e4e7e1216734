package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Secrets never live in YAML; they come from the environment or a .env file.
type Secrets struct {
	BinanceAPIKey    string `env:"BINANCE_API_KEY"`
	BinanceAPISecret string `env:"BINANCE_API_SECRET"`
	SolanaPrivateKey string `env:"SOLANA_PRIVATE_KEY_BASE58"`
}

// LoadSecrets loads envFiles (default .env) best-effort, then reads the process environment.
func LoadSecrets(ctx context.Context, envFiles ...string) (Secrets, error) {
	_ = godotenv.Load(envFiles...)
	return LoadSecretsFrom(ctx, envconfig.OsLookuper())
}

// LoadSecretsFrom reads secrets through lookuper.
func LoadSecretsFrom(ctx context.Context, lookuper envconfig.Lookuper) (Secrets, error) {
	var s Secrets
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &s, Lookuper: lookuper}); err != nil {
		return Secrets{}, fmt.Errorf("read secrets: %w", err)
	}
	return s, nil
}

// CheckSecrets verifies the selected venue has the credentials it needs.
func (c *Config) CheckSecrets(s Secrets) error {
	switch c.Venue.Name {
	case "binance":
		if s.BinanceAPIKey == "" || s.BinanceAPISecret == "" {
			return errors.New("binance venue needs BINANCE_API_KEY and BINANCE_API_SECRET")
		}
	case "jupiter":
		if s.SolanaPrivateKey == "" {
			return errors.New("jupiter venue needs SOLANA_PRIVATE_KEY_BASE58")
		}
	}
	return nil
}
