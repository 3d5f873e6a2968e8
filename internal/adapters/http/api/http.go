// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/nndl/courseboard/internal/domain/principal"
)

// SessionDependencies is what the session handlers need from the app.
type SessionDependencies interface {
	SignIn(ctx context.Context, credential string) (principal.Principal, error)
	SignOut(ctx context.Context) error
	Current() (principal.Principal, bool)
	IsAdmin(p principal.Principal) bool
	AllowedDomains() []string
}

// Server wires HTTP routes for the gateway API.
type Server struct {
	sessionHandler     *SessionHandler
	submissionsHandler *SubmissionsHandler
	leaderboardHandler *LeaderboardHandler
	statsHandler       *StatsHandler
	healthHandler      *HealthHandler
}

// NewServer creates an API server with all handlers.
func NewServer(sessions SessionDependencies, submitter Submitter, board LeaderboardDependencies, stats StatsProvider) *Server {
	return &Server{
		sessionHandler:     NewSessionHandler(sessions),
		submissionsHandler: NewSubmissionsHandler(submitter, sessions),
		leaderboardHandler: NewLeaderboardHandler(board),
		statsHandler:       NewStatsHandler(stats),
		healthHandler:      NewHealthHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", Wrap(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", Wrap(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/session", Wrap(s.sessionHandler.HandleSession, "session"))
	mux.HandleFunc("/api/submissions", Wrap(s.submissionsHandler.HandlePostSubmission, "submissions"))
	mux.HandleFunc("/api/leaderboard", Wrap(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
