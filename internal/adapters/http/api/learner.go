package api

import (
	"context"
	"net/http"

	service "github.com/okian/scoreboard/internal/app"
	"github.com/okian/scoreboard/pkg/logger"
)

// LearnerDependencies defines the interface for per-learner reads.
type LearnerDependencies interface {
	UserRank(ctx context.Context, learnerID, courseID string) (service.RankInfo, error)
	UserStats(ctx context.Context, learnerID, courseID string) (service.UserStats, error)
}

// LearnerHandler handles rank and stats requests of one learner.
type LearnerHandler struct {
	deps LearnerDependencies
	log  logger.Logger
}

// NewLearnerHandler creates a new learner handler.
func NewLearnerHandler(deps LearnerDependencies, log logger.Logger) *LearnerHandler {
	return &LearnerHandler{deps: deps, log: log}
}

// HandleGetRank handles GET /v1/courses/{courseID}/learners/{learnerID}/rank.
func (h *LearnerHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	info, err := h.deps.UserRank(r.Context(), r.PathValue("learnerID"), r.PathValue("courseID"))
	if err != nil {
		writeError(r.Context(), w, h.log, Wrap("api.get_rank", err))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// HandleGetStats handles GET /v1/courses/{courseID}/learners/{learnerID}/stats.
func (h *LearnerHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.UserStats(r.Context(), r.PathValue("learnerID"), r.PathValue("courseID"))
	if err != nil {
		writeError(r.Context(), w, h.log, Wrap("api.get_learner_stats", err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
