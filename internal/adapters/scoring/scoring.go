// Package scoring calls the remote scoring function. The endpoint is an
// opaque external service: it computes metrics for an uploaded file and
// persists the resulting submission record itself. This client never
// writes to the record store.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nndl/courseboard/internal/adapters/authclient"
	"github.com/nndl/courseboard/internal/domain/submission"
	"github.com/nndl/courseboard/pkg/metrics"
)

// Scorer submits an uploaded file reference for evaluation.
type Scorer interface {
	Score(ctx context.Context, req Request) (submission.Metrics, error)
}

// Request mirrors the scoring endpoint's JSON contract.
type Request struct {
	FileURL     string `json:"fileUrl"`
	TeamName    string `json:"teamName"`
	ModelName   string `json:"modelName"`
	Description string `json:"description"`
	Email       string `json:"email"`
}

// HTTPScorer posts scoring requests through the authenticated client.
type HTTPScorer struct {
	client *authclient.Client
	url    string
}

// NewHTTPScorer creates a scorer against the configured endpoint.
func NewHTTPScorer(client *authclient.Client, url string) *HTTPScorer {
	return &HTTPScorer{client: client, url: url}
}

type scoreResponse struct {
	Metrics submission.Metrics `json:"metrics"`
	Message string             `json:"message"`
}

// Score posts the request and returns the computed metrics. Non-2xx
// responses become a ScoringError carrying the server message when the
// body had one; a 401 that survived the client's single retry maps to
// ErrAuthExpired.
func (s *HTTPScorer) Score(ctx context.Context, req Request) (submission.Metrics, error) {
	start := time.Now()

	resp, err := s.client.PostJSON(ctx, s.url, req)
	if err != nil {
		return submission.Metrics{}, fmt.Errorf("scoring call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return submission.Metrics{}, authclient.ErrAuthExpired
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return submission.Metrics{}, fmt.Errorf("read scoring response: %w", err)
	}

	var out scoreResponse
	// A malformed body on an error status still produces a usable error.
	_ = json.Unmarshal(body, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return submission.Metrics{}, &submission.ScoringError{
			Status:  resp.StatusCode,
			Message: out.Message,
		}
	}

	metrics.RecordScoringDuration(float64(time.Since(start).Milliseconds()))
	return out.Metrics, nil
}
