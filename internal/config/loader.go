package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if COURSEBOARD_CONFIG is set
//  3. env (prefix COURSEBOARD_)
//
// A .env file in the working directory is loaded first when present, so
// local development matches the deployed environment surface.
func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load() // ok if missing

	base := New()

	k := koanf.New(".")

	if path := os.Getenv("COURSEBOARD_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: COURSEBOARD_ADDR, COURSEBOARD_ADMIN_EMAIL, ...
	// Keys keep their underscores to match koanf tags on the struct.
	envProvider := env.Provider("COURSEBOARD_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "courseboard_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case len(c.AllowedDomains) == 0:
		return fmt.Errorf("%w: allowed_domains must not be empty", ErrInvalidConfig)
	case c.TokenRefreshIntervalMin <= 0:
		return fmt.Errorf("%w: token_refresh_interval_min must be positive", ErrInvalidConfig)
	case c.LeaderboardPollIntervalSec <= 0:
		return fmt.Errorf("%w: leaderboard_poll_interval_sec must be positive", ErrInvalidConfig)
	case c.MaxUploadBytes <= 0:
		return fmt.Errorf("%w: max_upload_bytes must be positive", ErrInvalidConfig)
	}
	return nil
}

// RequireEndpoints reports the first missing external endpoint setting.
// main calls this so a misconfigured deployment fails at startup rather
// than on the first user action.
func (c *Config) RequireEndpoints() error {
	required := map[string]string{
		"admin_email":        c.AdminEmail,
		"identity_api_key":   c.IdentityAPIKey,
		"storage_upload_url": c.StorageUploadURL,
		"scoring_url":        c.ScoringURL,
		"record_store_url":   c.RecordStoreURL,
	}
	for _, key := range []string{"admin_email", "identity_api_key", "storage_upload_url", "scoring_url", "record_store_url"} {
		if required[key] == "" {
			return fmt.Errorf("%w: missing required setting %s", ErrInvalidConfig, key)
		}
	}
	return nil
}
