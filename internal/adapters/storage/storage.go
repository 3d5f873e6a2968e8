// Package storage uploads submission files to the external object store.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/nndl/courseboard/internal/adapters/authclient"
	"github.com/nndl/courseboard/pkg/metrics"
)

// Uploader writes a blob once and returns a fetchable URL for it.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, r io.Reader) (string, error)
}

// Key builds the object key for a submission file:
// submissions/<email>/<timestamp>_<filename>.
func Key(email, filename string, at time.Time) string {
	return fmt.Sprintf("submissions/%s/%d_%s", email, at.UnixMilli(), filename)
}

// HTTPUploader uploads through the store's HTTP endpoint using the
// authenticated client.
type HTTPUploader struct {
	client    *authclient.Client
	uploadURL string
	maxBytes  int64
}

// NewHTTPUploader creates an uploader against the configured endpoint.
func NewHTTPUploader(client *authclient.Client, uploadURL string, maxBytes int64) *HTTPUploader {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &HTTPUploader{
		client:    client,
		uploadURL: uploadURL,
		maxBytes:  maxBytes,
	}
}

type uploadResponse struct {
	URL string `json:"url"`
}

// Upload writes the blob and returns its public URL. The body is
// buffered so the authenticated client can re-send it after a 401.
func (u *HTTPUploader) Upload(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	start := time.Now()

	data, err := io.ReadAll(io.LimitReader(r, u.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: read file: %w", ErrUploadFailed, err)
	}
	if int64(len(data)) > u.maxBytes {
		return "", fmt.Errorf("%w: file exceeds %d bytes", ErrUploadFailed, u.maxBytes)
	}

	endpoint := u.uploadURL + "?name=" + url.QueryEscape(key)
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := u.client.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: store returned %d", ErrUploadFailed, resp.StatusCode)
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrUploadFailed, err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("%w: store returned no url", ErrUploadFailed)
	}

	metrics.RecordUploadDuration(float64(time.Since(start).Milliseconds()))
	return out.URL, nil
}
