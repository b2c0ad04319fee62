package service

import (
	"context"
	"fmt"

	sweepqueue "github.com/okian/scoreboard/internal/adapters/mq/queue"
	"github.com/okian/scoreboard/internal/domain/ledger"
	"github.com/okian/scoreboard/internal/domain/ranking"
	"github.com/okian/scoreboard/pkg/logger"
	"github.com/okian/scoreboard/pkg/metrics"
)

// RequestSweep schedules a rank sweep of courseID after the debounce
// window. Requests arriving while a sweep is already pending are folded
// into it.
func (s *Service) RequestSweep(ctx context.Context, courseID string) error {
	if courseID == "" {
		return fmt.Errorf("%w: course_id is required", ledger.ErrValidation)
	}
	q := s.queue()
	if q == nil {
		return ErrNotStarted
	}

	won, err := s.coalescer.TryMark(ctx, courseID, s.debounce+markGrace)
	if err != nil {
		s.logger.Warn(ctx, "sweep coalescer unavailable, scheduling anyway",
			logger.String("course_id", courseID), logger.Error(err))
		won = true
	}
	if !won {
		metrics.RecordSweepCoalesced()
		return nil
	}

	now := s.now()
	req := sweepqueue.SweepRequest{
		CourseID:    courseID,
		RequestedAt: now,
		NotBefore:   now.Add(s.debounce),
	}
	if err := q.Enqueue(ctx, req); err != nil {
		if cerr := s.coalescer.Clear(ctx, courseID); cerr != nil {
			s.logger.Warn(ctx, "clearing sweep mark failed",
				logger.String("course_id", courseID), logger.Error(cerr))
		}
		return fmt.Errorf("schedule sweep for %s: %w", courseID, err)
	}
	return nil
}

// ForceResweep recomputes ranks of courseID now, bypassing the debounce
// window.
func (s *Service) ForceResweep(ctx context.Context, courseID string) (ranking.SweepResult, error) {
	if courseID == "" {
		return ranking.SweepResult{}, fmt.Errorf("%w: course_id is required", ledger.ErrValidation)
	}

	res, err := s.engine.Sweep(ctx, courseID)
	if err != nil {
		metrics.RecordSweep("forced", "error")
		s.logger.Error(ctx, "forced sweep failed", logger.String("course_id", courseID), logger.Error(err))
		return ranking.SweepResult{}, err
	}
	metrics.RecordSweep("forced", "ok")
	s.logger.Info(ctx, "forced sweep completed",
		logger.String("course_id", courseID),
		logger.Int("entries", res.Entries),
		logger.Duration("duration", res.Duration),
	)
	return res, nil
}
