package api

import (
	"net/http"

	"github.com/nndl/courseboard/internal/app"
	"github.com/nndl/courseboard/internal/domain/ranking"
)

// LeaderboardDependencies defines the interface for leaderboard reads.
type LeaderboardDependencies interface {
	Leaderboard(key ranking.Key, dir ranking.Direction) app.LeaderboardView
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps LeaderboardDependencies
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

// HandleGetLeaderboard handles GET /api/leaderboard?sort=<key>&dir=<asc|desc>.
// The read side is public, matching the original leaderboard feed.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	key, err := ranking.ParseKey(r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_sort_key", err)
		return
	}
	dir, err := ranking.ParseDirection(r.URL.Query().Get("dir"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_sort_direction", err)
		return
	}

	view := h.deps.Leaderboard(key, dir)
	switch view.Status {
	case "loading":
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, view)
	case "error":
		writeJSON(w, http.StatusBadGateway, view)
	default:
		writeJSON(w, http.StatusOK, view)
	}
}
