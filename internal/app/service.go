// Package app provides the core service that implements the dependencies
// required by the HTTP API: identity lifecycle, the submission pipeline,
// and the leaderboard snapshot poller.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nndl/courseboard/internal/adapters/authclient"
	"github.com/nndl/courseboard/internal/adapters/identity"
	"github.com/nndl/courseboard/internal/adapters/records"
	"github.com/nndl/courseboard/internal/adapters/scoring"
	"github.com/nndl/courseboard/internal/adapters/session"
	"github.com/nndl/courseboard/internal/adapters/storage"
	"github.com/nndl/courseboard/internal/domain/principal"
	"github.com/nndl/courseboard/internal/domain/ranking"
	"github.com/nndl/courseboard/internal/domain/submission"
	"github.com/nndl/courseboard/pkg/logger"
	"github.com/nndl/courseboard/pkg/metrics"
)

// ErrNotSignedIn is returned when an operation requires a principal.
var ErrNotSignedIn = errors.New("not signed in")

// Endpoints bundles the external service locations.
type Endpoints struct {
	IdentitySignInURL  string
	IdentityRefreshURL string
	IdentityRevokeURL  string
	IdentityAPIKey     string
	StorageUploadURL   string
	ScoringURL         string
	RecordStoreURL     string
}

// Service wires the gateway, session store, pipeline and poller together.
type Service struct {
	mu sync.RWMutex

	// Core components
	sessions *session.Store
	gateway  *identity.Gateway
	client   *authclient.Client

	// External collaborators; injectable for tests.
	provider identity.Provider
	uploader storage.Uploader
	scorer   scoring.Scorer
	fetcher  records.Fetcher

	// Configuration
	endpoints       Endpoints
	allowedDomains  []string
	adminEmail      string
	refreshInterval time.Duration
	pollInterval    time.Duration
	requestTimeout  time.Duration
	maxUploadBytes  int64

	// Leaderboard snapshot state
	snapMu     sync.RWMutex
	snapRows   []submission.Record
	snapAt     time.Time
	snapErr    error
	snapLoaded bool

	// State
	started    bool
	pollCancel context.CancelFunc

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithEndpoints sets the external service endpoints.
func WithEndpoints(e Endpoints) Option {
	return func(s *Service) { s.endpoints = e }
}

// WithAllowedDomains sets the sign-in email allowlist.
func WithAllowedDomains(domains []string) Option {
	return func(s *Service) {
		if len(domains) > 0 {
			s.allowedDomains = domains
		}
	}
}

// WithAdminEmail sets the designated admin principal.
func WithAdminEmail(email string) Option {
	return func(s *Service) { s.adminEmail = email }
}

// WithRefreshInterval sets the session token refresh cadence.
func WithRefreshInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.refreshInterval = interval
		}
	}
}

// WithPollInterval sets the leaderboard poll cadence.
func WithPollInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.pollInterval = interval
		}
	}
}

// WithRequestTimeout bounds outbound calls to external services.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.requestTimeout = timeout
		}
	}
}

// WithMaxUploadBytes caps accepted submission file sizes.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithProvider injects an identity provider (tests).
func WithProvider(p identity.Provider) Option {
	return func(s *Service) { s.provider = p }
}

// WithUploader injects an object store uploader (tests).
func WithUploader(u storage.Uploader) Option {
	return func(s *Service) { s.uploader = u }
}

// WithScorer injects a scoring client (tests).
func WithScorer(sc scoring.Scorer) Option {
	return func(s *Service) { s.scorer = sc }
}

// WithFetcher injects a record store fetcher (tests).
func WithFetcher(f records.Fetcher) Option {
	return func(s *Service) { s.fetcher = f }
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		allowedDomains:  []string{"columbia.edu", "barnard.edu"},
		refreshInterval: 30 * time.Minute,
		pollInterval:    60 * time.Second,
		requestTimeout:  30 * time.Second,
		maxUploadBytes:  10 << 20,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the components and launches the leaderboard poller.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting courseboard service...")

	if s.provider == nil {
		s.provider = identity.NewHTTPProvider(identity.HTTPProviderConfig{
			SignInURL:  s.endpoints.IdentitySignInURL,
			RefreshURL: s.endpoints.IdentityRefreshURL,
			RevokeURL:  s.endpoints.IdentityRevokeURL,
			APIKey:     s.endpoints.IdentityAPIKey,
			Timeout:    s.requestTimeout,
		})
	}

	s.sessions = session.New(
		func(ctx context.Context, refresh string) (session.Token, error) {
			return s.provider.Refresh(ctx, refresh)
		},
		session.WithLogger(s.logger.Named("session")),
	)

	s.gateway = identity.New(s.provider, s.sessions,
		identity.WithAllowedDomains(s.allowedDomains),
		identity.WithAdminEmail(s.adminEmail),
		identity.WithRefreshInterval(s.refreshInterval),
		identity.WithLogger(s.logger.Named("identity")),
	)
	s.gateway.Start(ctx)

	s.client = authclient.New(s.sessions,
		authclient.WithTimeout(s.requestTimeout),
		authclient.WithLogger(s.logger.Named("authclient")),
	)

	if s.uploader == nil {
		s.uploader = storage.NewHTTPUploader(s.client, s.endpoints.StorageUploadURL, s.maxUploadBytes)
	}
	if s.scorer == nil {
		s.scorer = scoring.NewHTTPScorer(s.client, s.endpoints.ScoringURL)
	}
	if s.fetcher == nil {
		s.fetcher = records.NewHTTPFetcher(s.endpoints.RecordStoreURL, s.requestTimeout)
	}

	pollCtx, cancel := context.WithCancel(ctx)
	s.pollCancel = cancel
	go s.pollLoop(pollCtx)

	s.started = true
	s.logger.Info(ctx, "courseboard service started",
		logger.Duration("refreshInterval", s.refreshInterval),
		logger.Duration("pollInterval", s.pollInterval),
	)
	return nil
}

// Stop shuts down the poller and tears down any active session state.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping courseboard service...")

	if s.pollCancel != nil {
		s.pollCancel()
		s.pollCancel = nil
	}
	if s.sessions != nil {
		s.sessions.Clear()
	}

	s.started = false
	s.logger.Info(ctx, "courseboard service stopped")
}

// Gateway exposes the identity gateway to the HTTP layer.
func (s *Service) Gateway() *identity.Gateway {
	return s.gateway
}

// SignIn runs the gateway's sign-in flow.
func (s *Service) SignIn(ctx context.Context, credential string) (principal.Principal, error) {
	return s.gateway.SignIn(ctx, credential)
}

// SignOut runs the gateway's sign-out flow.
func (s *Service) SignOut(ctx context.Context) error {
	return s.gateway.SignOut(ctx)
}

// Current returns the signed-in principal, if any.
func (s *Service) Current() (principal.Principal, bool) {
	return s.gateway.Current()
}

// IsAdmin reports whether p is the designated admin.
func (s *Service) IsAdmin(p principal.Principal) bool {
	return s.gateway.IsAdmin(p)
}

// AllowedDomains returns the sign-in allowlist.
func (s *Service) AllowedDomains() []string {
	return s.allowedDomains
}

// SubmitInput carries the form fields and the file stream for one attempt.
type SubmitInput struct {
	Form submission.Form
	File io.Reader
}

// Submit runs one pass of the submission pipeline:
// Validating -> Uploading -> Scoring -> Succeeded | Failed.
// Validation and the reserved-name check run before any network call.
// An upload failure aborts before scoring. The scoring endpoint persists
// the record itself; this pipeline never writes to the record store.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (submission.Receipt, error) {
	p, ok := s.Current()
	if !ok {
		metrics.RecordSubmission("unauthenticated")
		return submission.Receipt{State: submission.StateFailed}, ErrNotSignedIn
	}

	state := submission.StateValidating
	s.logger.Debug(ctx, "submission pipeline state",
		logger.String("state", string(state)),
		logger.String("team", in.Form.TeamName),
	)
	if err := in.Form.Validate(); err != nil {
		metrics.RecordSubmission("validation_failed")
		return submission.Receipt{State: submission.StateFailed}, err
	}
	if err := in.Form.CheckTeamName(p.Email, s.adminEmail); err != nil {
		metrics.RecordSubmission("forbidden_team")
		return submission.Receipt{State: submission.StateFailed}, err
	}

	state = submission.StateUploading
	s.logger.Debug(ctx, "submission pipeline state", logger.String("state", string(state)))
	key := storage.Key(p.Email, in.Form.FileName, time.Now())
	fileURL, err := s.uploader.Upload(ctx, key, in.Form.ContentType, in.File)
	if err != nil {
		metrics.RecordSubmission("upload_failed")
		return submission.Receipt{State: submission.StateFailed},
			fmt.Errorf("%w: %w", submission.ErrUpload, err)
	}

	state = submission.StateScoring
	s.logger.Debug(ctx, "submission pipeline state",
		logger.String("state", string(state)),
		logger.String("fileURL", fileURL),
	)
	m, err := s.scorer.Score(ctx, scoring.Request{
		FileURL:     fileURL,
		TeamName:    in.Form.TeamName,
		ModelName:   in.Form.ModelName,
		Description: in.Form.Description,
		Email:       p.Email,
	})
	if err != nil {
		metrics.RecordSubmission("scoring_failed")
		return submission.Receipt{State: submission.StateFailed}, err
	}

	metrics.RecordSubmission("succeeded")
	s.logger.Info(ctx, "submission scored",
		logger.String("team", in.Form.TeamName),
		logger.String("model", in.Form.ModelName),
	)
	return submission.Receipt{
		ID:      uuid.NewString(),
		State:   submission.StateSucceeded,
		Metrics: m,
	}, nil
}

// LeaderboardView is the render-ready leaderboard state. Status is one
// of "loading", "error", or "ok"; the three are mutually exclusive.
type LeaderboardView struct {
	Status    string        `json:"status"`
	Rows      []ranking.Row `json:"rows"`
	FetchedAt time.Time     `json:"fetchedAt,omitempty"`
	Message   string        `json:"message,omitempty"`
}

// Leaderboard sorts the currently held snapshot by the given key and
// direction. It never re-fetches; the poller owns fetching.
func (s *Service) Leaderboard(key ranking.Key, dir ranking.Direction) LeaderboardView {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()

	switch {
	case !s.snapLoaded && s.snapErr != nil:
		return LeaderboardView{Status: "error", Message: "leaderboard data unavailable"}
	case !s.snapLoaded:
		return LeaderboardView{Status: "loading"}
	}
	return LeaderboardView{
		Status:    "ok",
		Rows:      ranking.Rows(s.snapRows, key, dir),
		FetchedAt: s.snapAt,
	}
}

// RefreshLeaderboard forces one poll tick outside the schedule.
func (s *Service) RefreshLeaderboard(ctx context.Context) {
	s.fetchOnce(ctx)
}

func (s *Service) pollLoop(ctx context.Context) {
	s.fetchOnce(ctx)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fetchOnce(ctx)
		}
	}
}

func (s *Service) fetchOnce(ctx context.Context) {
	recs, err := s.fetcher.Fetch(ctx)

	// Liveness guard: never apply a result that arrived after teardown.
	if ctx.Err() != nil {
		return
	}

	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	if err != nil {
		s.snapErr = err
		metrics.RecordPoll("error")
		// A stale snapshot beats an empty one; keep the last good data.
		s.logger.Warn(ctx, "leaderboard poll failed", logger.Error(err))
		return
	}

	s.snapRows = recs
	s.snapAt = time.Now()
	s.snapErr = nil
	s.snapLoaded = true
	metrics.RecordPoll("ok")
	metrics.UpdateLeaderboardRows(len(recs))
	metrics.UpdateLeaderboardLastFetch(s.snapAt.Unix())
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":      started,
		"pollInterval": s.pollInterval.String(),
	}

	if s.gateway != nil {
		_, signedIn := s.gateway.Current()
		stats["signedIn"] = signedIn
	}

	s.snapMu.RLock()
	stats["snapshotLoaded"] = s.snapLoaded
	stats["snapshotRows"] = len(s.snapRows)
	if !s.snapAt.IsZero() {
		stats["snapshotFetchedAt"] = s.snapAt
	}
	s.snapMu.RUnlock()

	return stats
}
