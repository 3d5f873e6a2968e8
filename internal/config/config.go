// Package config defines gateway configuration structures and loading.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load() layers file/env.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// AllowedDomains lists email domain suffixes admitted at sign-in.
	AllowedDomains []string `koanf:"allowed_domains"`

	// AdminEmail is the only principal allowed to submit as team "Baseline".
	AdminEmail string `koanf:"admin_email"`

	// Identity provider endpoints and project credential.
	IdentitySignInURL  string `koanf:"identity_sign_in_url"`
	IdentityRefreshURL string `koanf:"identity_refresh_url"`
	IdentityRevokeURL  string `koanf:"identity_revoke_url"`
	IdentityAPIKey     string `koanf:"identity_api_key"`

	// StorageUploadURL is the object storage upload endpoint.
	StorageUploadURL string `koanf:"storage_upload_url"`

	// ScoringURL is the remote scoring function endpoint.
	ScoringURL string `koanf:"scoring_url"`

	// RecordStoreURL is the read endpoint for submission records.
	RecordStoreURL string `koanf:"record_store_url"`

	// TokenRefreshIntervalMin is the session refresh cadence. Must stay
	// strictly below the provider's ~60 minute token expiry.
	TokenRefreshIntervalMin int `koanf:"token_refresh_interval_min"`

	// LeaderboardPollIntervalSec is the record store poll cadence.
	LeaderboardPollIntervalSec int `koanf:"leaderboard_poll_interval_sec"`

	// RequestTimeoutSec bounds outbound calls to the external services.
	RequestTimeoutSec int `koanf:"request_timeout_sec"`

	// MaxUploadBytes caps the accepted submission file size.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                   "info",
		Addr:                       ":8080",
		AllowedDomains:             []string{"columbia.edu", "barnard.edu"},
		AdminEmail:                 "",
		IdentitySignInURL:          "https://identitytoolkit.googleapis.com/v1/accounts:signInWithIdp",
		IdentityRefreshURL:         "https://securetoken.googleapis.com/v1/token",
		IdentityRevokeURL:          "https://identitytoolkit.googleapis.com/v1/accounts:revokeToken",
		IdentityAPIKey:             "",
		StorageUploadURL:           "",
		ScoringURL:                 "",
		RecordStoreURL:             "",
		TokenRefreshIntervalMin:    30,
		LeaderboardPollIntervalSec: 60,
		RequestTimeoutSec:          30,
		MaxUploadBytes:             10 << 20,
	}
}
