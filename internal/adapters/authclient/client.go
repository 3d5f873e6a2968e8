// Package authclient provides the authenticated HTTP client used for all
// outbound calls to bearer-protected services.
//
// The client attaches the session token to every request. A 401 triggers
// exactly one forced refresh and re-issue; a second 401 is surfaced to
// the caller unmodified. No other failure is retried here.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nndl/courseboard/internal/adapters/session"
	"github.com/nndl/courseboard/pkg/logger"
	"github.com/nndl/courseboard/pkg/metrics"
)

// Client wraps http.Client with bearer injection and the single-retry
// policy on authorization failure.
type Client struct {
	http     *http.Client
	sessions *session.Store
	log      logger.Logger
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithTimeout sets the underlying HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New creates a Client bound to the session store.
func New(sessions *session.Store, opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: 30 * time.Second},
		sessions: sessions,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Named("authclient")
	}
	return c
}

// Do sends the request with the current bearer token attached. When no
// token is available the request goes out unauthenticated; the server's
// rejection is the caller's signal, not a client-side block.
//
// The request body must be rebuildable (req.GetBody set, as it is for
// bytes.Reader bodies) so the single 401 retry can re-send it.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	if tok, ok := c.sessions.Token(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// One forced refresh, one re-issue. A refresh failure surfaces the
	// original 401 to the caller.
	newTok, refreshErr := c.sessions.ForceRefresh(ctx)
	if refreshErr != nil {
		c.log.Warn(ctx, "token refresh after 401 failed", logger.Error(refreshErr))
		return resp, nil
	}
	resp.Body.Close()
	metrics.RecordAuthRetry()

	retry, err := cloneRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	retry.Header.Set("Authorization", "Bearer "+newTok)

	resp, err = c.http.Do(retry)
	if err != nil {
		return nil, fmt.Errorf("retried request failed: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		c.log.Warn(ctx, "request still unauthorized after refresh",
			logger.String("url", req.URL.String()))
	}
	return resp, nil
}

// PostJSON marshals body and POSTs it with the bearer attached.
func (c *Client) PostJSON(ctx context.Context, url string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.Do(ctx, req)
}

func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	retry := req.Clone(ctx)
	if req.Body == nil || req.GetBody == nil {
		return retry, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rebuild request body for retry: %w", err)
	}
	retry.Body = body
	return retry, nil
}
