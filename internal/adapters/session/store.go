// Package session owns the bearer token for the signed-in principal.
//
// The store is the only writer of the token; consumers read it or trigger
// a forced refresh. A background loop re-fetches the token on a fixed
// interval kept strictly below the provider's expiry window so requests
// never carry an expired credential.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nndl/courseboard/pkg/logger"
	"github.com/nndl/courseboard/pkg/metrics"
)

// Token is the provider credential pair. Access is the bearer presented
// to the scoring endpoint; Refresh obtains replacements.
type Token struct {
	Access    string
	Refresh   string
	ExpiresAt time.Time
}

// RefreshFunc exchanges the current refresh credential for a new token.
type RefreshFunc func(ctx context.Context, refresh string) (Token, error)

// Store caches the session token and runs the auto-refresh loop.
type Store struct {
	mu      sync.RWMutex
	tok     Token
	present bool

	refreshFn RefreshFunc

	loopMu     sync.Mutex
	cancelLoop context.CancelFunc

	log logger.Logger
}

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithLogger sets a custom logger for the store.
func WithLogger(log logger.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a Store. refreshFn is consulted both by the background loop
// and by on-demand fetches when no token is cached.
func New(refreshFn RefreshFunc, opts ...Option) *Store {
	s := &Store{
		refreshFn: refreshFn,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Named("session")
	}
	return s
}

// SetToken caches a token for reuse by subsequent requests. When the
// access credential parses as a JWT and no expiry was supplied, the exp
// claim fills it in.
func (s *Store) SetToken(tok Token) {
	if tok.ExpiresAt.IsZero() {
		tok.ExpiresAt = jwtExpiry(tok.Access)
	}
	s.mu.Lock()
	s.tok = tok
	s.present = tok.Access != ""
	s.mu.Unlock()
}

// Token returns the cached access token. On a miss it attempts one
// on-demand refresh and caches the result; a refresh failure reports no
// token rather than an error, so callers fall through to the server's
// own rejection.
func (s *Store) Token(ctx context.Context) (string, bool) {
	s.mu.RLock()
	tok, present := s.tok, s.present
	s.mu.RUnlock()
	if present {
		return tok.Access, true
	}
	if tok.Refresh == "" {
		return "", false
	}
	access, err := s.ForceRefresh(ctx)
	if err != nil {
		s.log.Warn(ctx, "on-demand token fetch failed", logger.Error(err))
		return "", false
	}
	return access, true
}

// ForceRefresh fetches a new token from the provider, bypassing the
// cache, and stores it. Last writer wins under concurrent refreshes.
func (s *Store) ForceRefresh(ctx context.Context) (string, error) {
	s.mu.RLock()
	refresh := s.tok.Refresh
	s.mu.RUnlock()

	tok, err := s.refreshFn(ctx, refresh)
	if err != nil {
		metrics.RecordTokenRefresh("error")
		return "", err
	}
	if tok.Refresh == "" {
		tok.Refresh = refresh
	}
	s.SetToken(tok)
	metrics.RecordTokenRefresh("ok")
	return tok.Access, nil
}

// Snapshot returns a copy of the cached token pair.
func (s *Store) Snapshot() Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tok
}

// Clear removes the cached token and disarms the refresh loop.
func (s *Store) Clear() {
	s.StopAutoRefresh()
	s.mu.Lock()
	s.tok = Token{}
	s.present = false
	s.mu.Unlock()
}

// StartAutoRefresh arms the refresh loop. At most one loop is active:
// starting a new one cancels any prior loop first, so a re-login never
// leaves duplicate refreshers behind.
func (s *Store) StartAutoRefresh(ctx context.Context, interval time.Duration) {
	s.loopMu.Lock()
	if s.cancelLoop != nil {
		s.cancelLoop()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancelLoop = cancel
	s.loopMu.Unlock()

	go s.refreshLoop(loopCtx, interval)
}

// StopAutoRefresh disarms the refresh loop if one is running.
func (s *Store) StopAutoRefresh() {
	s.loopMu.Lock()
	if s.cancelLoop != nil {
		s.cancelLoop()
		s.cancelLoop = nil
	}
	s.loopMu.Unlock()
}

func (s *Store) refreshLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Failures keep the session; the next request falls back
			// to an on-demand fetch.
			if _, err := s.ForceRefresh(ctx); err != nil {
				s.log.Warn(ctx, "scheduled token refresh failed", logger.Error(err))
				continue
			}
			s.log.Debug(ctx, "session token refreshed", logger.Duration("interval", interval))
		}
	}
}

// jwtExpiry extracts the exp claim from a JWT-shaped access token.
// The provider already verified the token; this is introspection only.
func jwtExpiry(access string) time.Time {
	if access == "" {
		return time.Time{}
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
