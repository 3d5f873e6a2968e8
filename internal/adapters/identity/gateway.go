package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nndl/courseboard/internal/adapters/session"
	"github.com/nndl/courseboard/internal/domain/principal"
	"github.com/nndl/courseboard/pkg/logger"
	"github.com/nndl/courseboard/pkg/metrics"
)

// EventType marks an auth-state change.
type EventType string

const (
	SignedIn  EventType = "signed_in"
	SignedOut EventType = "signed_out"
)

// Event is published to subscribers whenever the principal changes.
type Event struct {
	Type      EventType
	Principal principal.Principal
}

// subscriberBuffer bounds each subscriber channel; a slow subscriber
// drops events rather than blocking the gateway.
const subscriberBuffer = 4

// Gateway wraps provider sign-in/sign-out, enforces the allowlist, and
// owns the auth-state stream. Every principal change arms or disarms the
// session store's refresh loop.
type Gateway struct {
	provider Provider
	sessions *session.Store

	domains         []string
	adminEmail      string
	refreshInterval time.Duration

	mu       sync.RWMutex
	current  principal.Principal
	signedIn bool
	subs     map[int]chan Event
	nextSub  int

	lifetime context.Context

	log logger.Logger
}

// Option applies a configuration option to the Gateway.
type Option func(*Gateway)

// WithAllowedDomains sets the email domain suffix allowlist.
func WithAllowedDomains(domains []string) Option {
	return func(g *Gateway) {
		if len(domains) > 0 {
			g.domains = domains
		}
	}
}

// WithAdminEmail sets the designated admin principal.
func WithAdminEmail(email string) Option {
	return func(g *Gateway) {
		g.adminEmail = email
	}
}

// WithRefreshInterval sets the session auto-refresh cadence.
func WithRefreshInterval(interval time.Duration) Option {
	return func(g *Gateway) {
		if interval > 0 {
			g.refreshInterval = interval
		}
	}
}

// WithLogger sets a custom logger for the gateway.
func WithLogger(log logger.Logger) Option {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

// New constructs a Gateway over a provider and session store.
func New(provider Provider, sessions *session.Store, opts ...Option) *Gateway {
	g := &Gateway{
		provider:        provider,
		sessions:        sessions,
		domains:         []string{"columbia.edu", "barnard.edu"},
		refreshInterval: 30 * time.Minute,
		subs:            map[int]chan Event{},
		lifetime:        context.Background(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logger.Named("identity")
	}
	return g
}

// Start binds the gateway to the application lifetime. The session
// refresh loop is parented here rather than on any request context.
func (g *Gateway) Start(ctx context.Context) {
	g.mu.Lock()
	g.lifetime = ctx
	g.mu.Unlock()
}

// SignIn exchanges the interactive-flow credential, enforces the domain
// allowlist, and on success seeds the session store and arms auto-refresh.
// A disallowed email is signed back out at the provider before the error
// returns, so no half-open session remains anywhere.
func (g *Gateway) SignIn(ctx context.Context, credential string) (principal.Principal, error) {
	acct, err := g.provider.SignIn(ctx, credential)
	if err != nil {
		metrics.RecordSignIn("error")
		return principal.Principal{}, err
	}

	p := principal.Principal{
		Email:       acct.Email,
		DisplayName: acct.DisplayName,
		PhotoURL:    acct.PhotoURL,
	}
	if !p.AllowedDomain(g.domains) {
		if soErr := g.provider.SignOut(ctx, acct.RefreshToken); soErr != nil {
			g.log.Warn(ctx, "provider sign-out after domain rejection failed", logger.Error(soErr))
		}
		metrics.RecordSignIn("denied_domain")
		return principal.Principal{}, fmt.Errorf("%w: %s", ErrUnauthorizedDomain, acct.Email)
	}

	tok := session.Token{
		Access:  acct.IDToken,
		Refresh: acct.RefreshToken,
	}
	if acct.ExpiresIn > 0 {
		tok.ExpiresAt = time.Now().Add(acct.ExpiresIn)
	}
	g.sessions.SetToken(tok)

	g.mu.Lock()
	g.current = p
	g.signedIn = true
	lifetime := g.lifetime
	g.mu.Unlock()

	g.sessions.StartAutoRefresh(lifetime, g.refreshInterval)
	g.publish(Event{Type: SignedIn, Principal: p})
	metrics.RecordSignIn("allowed")
	g.log.Info(ctx, "principal signed in", logger.String("email", p.Email))
	return p, nil
}

// SignOut tears the session down. Local state clears before the provider
// call and stays cleared even when that call fails, so the UI can never
// get stuck signed in.
func (g *Gateway) SignOut(ctx context.Context) error {
	refresh := g.sessions.Snapshot().Refresh
	g.sessions.Clear()

	g.mu.Lock()
	p := g.current
	wasSignedIn := g.signedIn
	g.current = principal.Principal{}
	g.signedIn = false
	g.mu.Unlock()

	if wasSignedIn {
		g.publish(Event{Type: SignedOut, Principal: p})
	}

	if refresh == "" {
		return nil
	}
	if err := g.provider.SignOut(ctx, refresh); err != nil {
		g.log.Warn(ctx, "provider sign-out failed; local session already cleared", logger.Error(err))
		return err
	}
	g.log.Info(ctx, "principal signed out", logger.String("email", p.Email))
	return nil
}

// Current returns the signed-in principal, if any.
func (g *Gateway) Current() (principal.Principal, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current, g.signedIn
}

// IsAdmin reports whether p is the designated admin principal.
func (g *Gateway) IsAdmin(p principal.Principal) bool {
	return p.IsAdmin(g.adminEmail)
}

// AdminEmail exposes the configured admin address to the pipeline's
// reserved-name check.
func (g *Gateway) AdminEmail() string {
	return g.adminEmail
}

// Domains returns the configured allowlist.
func (g *Gateway) Domains() []string {
	return g.domains
}

// Subscribe registers for auth-state events. The returned cancel func
// unsubscribes and closes the channel; callers scope it to their own
// lifetime.
func (g *Gateway) Subscribe() (<-chan Event, func()) {
	g.mu.Lock()
	id := g.nextSub
	g.nextSub++
	ch := make(chan Event, subscriberBuffer)
	g.subs[id] = ch
	g.mu.Unlock()

	cancel := func() {
		g.mu.Lock()
		if sub, ok := g.subs[id]; ok {
			delete(g.subs, id)
			close(sub)
		}
		g.mu.Unlock()
	}
	return ch, cancel
}

func (g *Gateway) publish(ev Event) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, ch := range g.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; drop rather than block the gateway.
		}
	}
}
