// Package records reads submission records from the external record
// store. The store is read-only from this side; the scoring endpoint is
// the sole writer of submission data.
package records

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/nndl/courseboard/internal/domain/submission"
)

// orderByField asks the store to pre-order records by overall accuracy.
// The ranking layer applies its own total order afterwards.
const orderByField = "metrics/superAccuracy"

// Fetcher reads all submission records.
type Fetcher interface {
	Fetch(ctx context.Context) ([]submission.Record, error)
}

// HTTPFetcher reads the record store's public query endpoint. The read
// side needs no credential; the original leaderboard feed is public.
type HTTPFetcher struct {
	client *http.Client
	url    string
}

// NewHTTPFetcher creates a fetcher against the configured endpoint.
func NewHTTPFetcher(readURL string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
		url:    readURL,
	}
}

// wireRecord is the record store's JSON shape. Submission time travels
// as an RFC3339 string; missing metric fields stay nil.
type wireRecord struct {
	ID             string             `json:"id"`
	TeamName       string             `json:"teamName"`
	ModelName      string             `json:"modelName"`
	Description    string             `json:"description"`
	Email          string             `json:"email"`
	FileURL        string             `json:"fileUrl"`
	SubmissionTime string             `json:"submissionTime"`
	Metrics        submission.Metrics `json:"metrics"`
}

// Fetch returns all submission records. The store may answer with either
// a keyed object (key = generated record id) or a flat array.
func (f *HTTPFetcher) Fetch(ctx context.Context) ([]submission.Record, error) {
	endpoint := f.url
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	endpoint += sep + "orderBy=" + url.QueryEscape(`"`+orderByField+`"`)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: store returned %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return decodeRecords(body)
}

func decodeRecords(body []byte) ([]submission.Record, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	var wires []wireRecord
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(body, &wires); err != nil {
			return nil, fmt.Errorf("%w: decode: %w", ErrUnavailable, err)
		}
	} else {
		keyed := map[string]wireRecord{}
		if err := json.Unmarshal(body, &keyed); err != nil {
			return nil, fmt.Errorf("%w: decode: %w", ErrUnavailable, err)
		}
		for id, w := range keyed {
			w.ID = id
			wires = append(wires, w)
		}
		// Map iteration order is random; keep the output deterministic.
		sort.Slice(wires, func(i, j int) bool { return wires[i].ID < wires[j].ID })
	}

	out := make([]submission.Record, 0, len(wires))
	for _, w := range wires {
		out = append(out, w.toRecord())
	}
	return out, nil
}

func (w wireRecord) toRecord() submission.Record {
	r := submission.Record{
		ID:          w.ID,
		TeamName:    w.TeamName,
		ModelName:   w.ModelName,
		Description: w.Description,
		Email:       w.Email,
		FileURL:     w.FileURL,
		Metrics:     w.Metrics,
	}
	if w.SubmissionTime != "" {
		if t, err := time.Parse(time.RFC3339Nano, w.SubmissionTime); err == nil {
			r.SubmissionTime = t
		}
	}
	return r
}
