// Package identity wraps the external identity provider and enforces the
// email-domain allowlist.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nndl/courseboard/internal/adapters/session"
)

// Account is the provider's view of a signed-in user: profile attributes
// plus the credential pair for this session.
type Account struct {
	Email        string
	DisplayName  string
	PhotoURL     string
	IDToken      string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Provider is the narrow contract against the external identity service.
// Implementations are opaque; the gateway never inspects provider state
// beyond these three calls.
type Provider interface {
	// SignIn exchanges an interactive-flow credential for an account.
	SignIn(ctx context.Context, credential string) (Account, error)

	// Refresh trades a refresh credential for a fresh token.
	Refresh(ctx context.Context, refreshToken string) (session.Token, error)

	// SignOut revokes the session at the provider.
	SignOut(ctx context.Context, refreshToken string) error
}

// HTTPProvider talks to the provider's REST endpoints.
type HTTPProvider struct {
	client     *http.Client
	signInURL  string
	refreshURL string
	revokeURL  string
	apiKey     string
}

// HTTPProviderConfig carries the provider endpoints and project key.
type HTTPProviderConfig struct {
	SignInURL  string
	RefreshURL string
	RevokeURL  string
	APIKey     string
	Timeout    time.Duration
}

// NewHTTPProvider creates a provider client against the configured endpoints.
func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPProvider{
		client:     &http.Client{Timeout: timeout},
		signInURL:  cfg.SignInURL,
		refreshURL: cfg.RefreshURL,
		revokeURL:  cfg.RevokeURL,
		apiKey:     cfg.APIKey,
	}
}

type signInResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoUrl"`
}

// SignIn exchanges the interactive-flow credential at the provider.
// Profile fields missing from the response are recovered from the ID
// token claims; the provider minted and signed that token, so this is
// claim extraction, not verification.
func (p *HTTPProvider) SignIn(ctx context.Context, credential string) (Account, error) {
	body := map[string]string{"credential": credential}
	var resp signInResponse
	if err := p.post(ctx, p.signInURL, body, &resp); err != nil {
		return Account{}, fmt.Errorf("%w: %w", ErrProvider, err)
	}

	acct := Account{
		Email:        resp.Email,
		DisplayName:  resp.DisplayName,
		PhotoURL:     resp.PhotoURL,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    parseExpiresIn(resp.ExpiresIn),
	}
	fillFromClaims(&acct)
	if acct.IDToken == "" {
		return Account{}, fmt.Errorf("%w: response carried no token", ErrProvider)
	}
	return acct, nil
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
}

// Refresh trades the refresh credential for a new token.
func (p *HTTPProvider) Refresh(ctx context.Context, refreshToken string) (session.Token, error) {
	body := map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	}
	var resp refreshResponse
	if err := p.post(ctx, p.refreshURL, body, &resp); err != nil {
		return session.Token{}, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	if resp.IDToken == "" {
		return session.Token{}, fmt.Errorf("%w: refresh returned no token", ErrProvider)
	}
	tok := session.Token{
		Access:  resp.IDToken,
		Refresh: resp.RefreshToken,
	}
	if d := parseExpiresIn(resp.ExpiresIn); d > 0 {
		tok.ExpiresAt = time.Now().Add(d)
	}
	return tok, nil
}

// SignOut revokes the session at the provider.
func (p *HTTPProvider) SignOut(ctx context.Context, refreshToken string) error {
	if err := p.post(ctx, p.revokeURL, map[string]string{"token": refreshToken}, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrProvider, err)
	}
	return nil
}

func (p *HTTPProvider) post(ctx context.Context, url string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	if p.apiKey != "" {
		url += "?key=" + p.apiKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// idTokenClaims is the profile subset carried in provider ID tokens.
type idTokenClaims struct {
	Name    string `json:"name"`
	Picture string `json:"picture"`
	jwt.RegisteredClaims
	Email string `json:"email"`
}

func fillFromClaims(acct *Account) {
	if acct.IDToken == "" {
		return
	}
	claims := idTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(acct.IDToken, &claims); err != nil {
		return
	}
	if acct.Email == "" {
		acct.Email = claims.Email
	}
	if acct.DisplayName == "" {
		acct.DisplayName = claims.Name
	}
	if acct.PhotoURL == "" {
		acct.PhotoURL = claims.Picture
	}
}

func parseExpiresIn(s string) time.Duration {
	if s == "" {
		return 0
	}
	var secs int64
	if _, err := fmt.Sscanf(s, "%d", &secs); err != nil {
		return 0
	}
	return time.Duration(secs) * time.Second
}
