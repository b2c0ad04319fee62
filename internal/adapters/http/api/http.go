// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/okian/scoreboard/internal/app"
	"github.com/okian/scoreboard/internal/domain/ranking"
	"github.com/okian/scoreboard/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SubmitScore(ctx context.Context, sub service.Submission) (service.Result, error)
	SubmitScoreBestEffort(ctx context.Context, sub service.Submission)

	LeaderboardPage(ctx context.Context, courseID string, page, limit int) (service.LeaderboardPage, error)
	UserRank(ctx context.Context, learnerID, courseID string) (service.RankInfo, error)
	UserStats(ctx context.Context, learnerID, courseID string) (service.UserStats, error)

	ForceResweep(ctx context.Context, courseID string) (ranking.SweepResult, error)
}

var _ Dependencies = (*service.Service)(nil)

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	scoresHandler      *ScoresHandler
	leaderboardHandler *LeaderboardHandler
	learnerHandler     *LearnerHandler
	adminHandler       *AdminHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Server{
		healthHandler:      NewHealthHandler(cfg.ready, cfg.logger),
		statsHandler:       NewStatsHandler(statsProvider),
		scoresHandler:      NewScoresHandler(deps, cfg.logger),
		leaderboardHandler: NewLeaderboardHandler(deps, cfg.defaultLimit, cfg.logger),
		learnerHandler:     NewLearnerHandler(deps, cfg.logger),
		adminHandler:       NewAdminHandler(deps, cfg.resweepRPS, cfg.resweepBurst, cfg.logger),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /readyz", MetricsMiddleware(s.healthHandler.HandleReady, "readyz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /v1/courses/{courseID}/scores",
		MetricsMiddleware(s.scoresHandler.HandleSubmit, "scores"))
	mux.HandleFunc("POST /v1/courses/{courseID}/scores/async",
		MetricsMiddleware(s.scoresHandler.HandleSubmitAsync, "scores_async"))
	mux.HandleFunc("GET /v1/courses/{courseID}/leaderboard",
		MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("GET /v1/courses/{courseID}/learners/{learnerID}/rank",
		MetricsMiddleware(s.learnerHandler.HandleGetRank, "rank"))
	mux.HandleFunc("GET /v1/courses/{courseID}/learners/{learnerID}/stats",
		MetricsMiddleware(s.learnerHandler.HandleGetStats, "learner_stats"))
	mux.HandleFunc("POST /v1/admin/courses/{courseID}/resweep",
		MetricsMiddleware(s.adminHandler.HandleResweep, "resweep"))
}

type ackResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError classifies err and writes it. Server errors are logged and
// answered with an opaque message.
func writeError(ctx context.Context, w http.ResponseWriter, log logger.Logger, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.Error(ctx, "request failed", logger.String("request_id", RequestID(ctx)), logger.Error(err))
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg, RequestID: RequestID(ctx)})
}
