package api

import (
	"context"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/okian/scoreboard/internal/domain/ranking"
	"github.com/okian/scoreboard/pkg/logger"
)

// AdminDependencies defines the interface for operator actions.
type AdminDependencies interface {
	ForceResweep(ctx context.Context, courseID string) (ranking.SweepResult, error)
}

// AdminHandler handles operator requests.
type AdminHandler struct {
	deps    AdminDependencies
	limiter *rate.Limiter
	log     logger.Logger
}

// NewAdminHandler creates an admin handler allowing rps forced resweeps
// per second across all courses.
func NewAdminHandler(deps AdminDependencies, rps float64, burst int, log logger.Logger) *AdminHandler {
	return &AdminHandler{
		deps:    deps,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     log,
	}
}

type resweepResponse struct {
	CourseID   string `json:"course_id"`
	Entries    int    `json:"entries"`
	DurationMs int64  `json:"duration_ms"`
	Shared     bool   `json:"shared"`
}

// HandleResweep handles POST /v1/admin/courses/{courseID}/resweep.
func (h *AdminHandler) HandleResweep(w http.ResponseWriter, r *http.Request) {
	const op = "api.resweep"
	if !h.limiter.Allow() {
		writeError(r.Context(), w, h.log, NewKind(op, ErrRateLimited))
		return
	}

	res, err := h.deps.ForceResweep(r.Context(), r.PathValue("courseID"))
	if err != nil {
		writeError(r.Context(), w, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, resweepResponse{
		CourseID:   res.CourseID,
		Entries:    res.Entries,
		DurationMs: res.Duration.Milliseconds(),
		Shared:     res.Shared,
	})
}
