package api

import (
	"context"
	"net/http"

	service "github.com/okian/scoreboard/internal/app"
	"github.com/okian/scoreboard/pkg/logger"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	LeaderboardPage(ctx context.Context, courseID string, page, limit int) (service.LeaderboardPage, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps         LeaderboardDependencies
	defaultLimit int
	log          logger.Logger
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, defaultLimit int, log logger.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:         deps,
		defaultLimit: defaultLimit,
		log:          log,
	}
}

// HandleGetLeaderboard handles GET /v1/courses/{courseID}/leaderboard?page=&limit=.
// Oversized limits are capped by the service rather than rejected.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(r.Context(), w, h.log, Wrap(op, err))
		return
	}
	limit, err := queryInt(r, "limit", h.defaultLimit)
	if err != nil {
		writeError(r.Context(), w, h.log, Wrap(op, err))
		return
	}

	out, err := h.deps.LeaderboardPage(r.Context(), r.PathValue("courseID"), page, limit)
	if err != nil {
		writeError(r.Context(), w, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}
