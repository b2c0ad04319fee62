package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	service "github.com/okian/scoreboard/internal/app"
	"github.com/okian/scoreboard/pkg/logger"
)

const maxSubmissionBytes = 1 << 20

// ScoreDependencies defines the interface for submission processing.
type ScoreDependencies interface {
	SubmitScore(ctx context.Context, sub service.Submission) (service.Result, error)
	SubmitScoreBestEffort(ctx context.Context, sub service.Submission)
}

// ScoresHandler handles score submissions.
type ScoresHandler struct {
	deps ScoreDependencies
	log  logger.Logger
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoreDependencies, log logger.Logger) *ScoresHandler {
	return &ScoresHandler{deps: deps, log: log}
}

// HandleSubmit handles POST /v1/courses/{courseID}/scores. The ledger is
// updated before the response is written.
func (h *ScoresHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_score"
	sub, err := decodeSubmission(w, r)
	if err != nil {
		writeError(r.Context(), w, h.log, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.SubmitScore(r.Context(), sub)
	if err != nil {
		writeError(r.Context(), w, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleSubmitAsync handles POST /v1/courses/{courseID}/scores/async. The
// body is decoded and the submission is applied in the background;
// failures surface in logs and metrics only.
func (h *ScoresHandler) HandleSubmitAsync(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_score_async"
	sub, err := decodeSubmission(w, r)
	if err != nil {
		writeError(r.Context(), w, h.log, WrapKind(op, ErrBadRequest, err))
		return
	}
	h.deps.SubmitScoreBestEffort(r.Context(), sub)
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}

// decodeSubmission reads the body and binds the course from the path.
func decodeSubmission(w http.ResponseWriter, r *http.Request) (service.Submission, error) {
	var sub service.Submission
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmissionBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sub); err != nil {
		return service.Submission{}, fmt.Errorf("invalid JSON body: %w", err)
	}

	courseID := r.PathValue("courseID")
	if sub.CourseID != "" && sub.CourseID != courseID {
		return service.Submission{}, fmt.Errorf("course_id %q does not match path course %q", sub.CourseID, courseID)
	}
	sub.CourseID = courseID
	return sub, nil
}
