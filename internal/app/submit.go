package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/scoreboard/internal/domain/catalog"
	"github.com/okian/scoreboard/internal/domain/dedupe"
	"github.com/okian/scoreboard/internal/domain/ledger"
	"github.com/okian/scoreboard/pkg/logger"
	"github.com/okian/scoreboard/pkg/metrics"
)

// fold applies a graded submission to an entry at the given time and
// reports whether the stored result changed.
type fold func(e *ledger.Entry, now time.Time) bool

// SubmitScore validates and grades sub, folds it into the learner's ledger
// entry and schedules a rank sweep of the course. Nothing is written when
// validation or grading fails.
func (s *Service) SubmitScore(ctx context.Context, sub Submission) (Result, error) {
	res, err := s.submit(ctx, sub)
	metrics.RecordSubmission(string(sub.Kind), outcome(res, err))
	return res, err
}

// SubmitScoreBestEffort applies sub in the background for callers that
// treat the score update as a side effect. Failures are logged and
// counted, never returned. Cancellation of ctx does not abort the update.
func (s *Service) SubmitScoreBestEffort(ctx context.Context, sub Submission) {
	ctx = context.WithoutCancel(ctx)

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if _, err := s.SubmitScore(ctx, sub); err != nil {
			metrics.RecordBestEffortFailure(string(sub.Kind))
			s.logger.Warn(ctx, "best-effort score update failed",
				logger.String("learner_id", sub.LearnerID),
				logger.String("course_id", sub.CourseID),
				logger.String("kind", string(sub.Kind)),
				logger.Error(err),
			)
		}
	}()
}

func (s *Service) submit(ctx context.Context, sub Submission) (Result, error) {
	kind, err := validate(sub)
	if err != nil {
		return Result{}, err
	}

	// A claimed id is committed only once the fold is stored. A retry that
	// arrives meanwhile waits for this attempt instead of being acknowledged.
	var scope string
	committed := false
	if sub.SubmissionID != "" {
		scope = dedupe.Scope(sub.LearnerID, sub.CourseID, sub.SubmissionID)
		seen, err := s.deduper.Claim(ctx, scope)
		if err != nil {
			return Result{}, fmt.Errorf("submission %s: %w", sub.SubmissionID, err)
		}
		if seen {
			metrics.RecordSubmissionDuplicate()
			return s.duplicate(ctx, sub, kind)
		}
		defer func() {
			if !committed {
				s.deduper.Release(ctx, scope)
			}
		}()
	}

	apply, err := s.grade(ctx, kind, sub)
	if err != nil {
		return Result{}, err
	}

	var improved bool
	entry, err := s.store.Update(ctx, sub.LearnerID, sub.CourseID, func(e *ledger.Entry) error {
		improved = apply(e, s.now())
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("update ledger %s/%s: %w", sub.CourseID, sub.LearnerID, err)
	}
	if scope != "" {
		s.deduper.Commit(ctx, scope)
		committed = true
	}

	if err := s.RequestSweep(ctx, sub.CourseID); err != nil {
		if errors.Is(err, ErrNotStarted) {
			metrics.RecordQueueEnqueueError("not_started")
		}
		s.logger.Warn(ctx, "rank sweep not scheduled",
			logger.String("course_id", sub.CourseID), logger.Error(err))
	}

	s.logger.Debug(ctx, "submission applied",
		logger.String("learner_id", sub.LearnerID),
		logger.String("course_id", sub.CourseID),
		logger.String("kind", string(kind)),
		logger.Float64("overall_score", entry.OverallScore),
		logger.Bool("improved", improved),
	)

	return Result{
		LearnerID:    entry.LearnerID,
		CourseID:     entry.CourseID,
		Kind:         kind,
		OverallScore: entry.OverallScore,
		Breakdown:    entry.Breakdown(),
		Improved:     improved,
	}, nil
}

func (s *Service) duplicate(ctx context.Context, sub Submission, kind ledger.Kind) (Result, error) {
	s.logger.Debug(ctx, "duplicate submission skipped",
		logger.String("submission_id", sub.SubmissionID),
		logger.String("learner_id", sub.LearnerID),
	)
	entry, err := s.store.GetOrCreate(ctx, sub.LearnerID, sub.CourseID)
	if err != nil {
		return Result{}, fmt.Errorf("load ledger %s/%s: %w", sub.CourseID, sub.LearnerID, err)
	}
	return Result{
		LearnerID:    entry.LearnerID,
		CourseID:     entry.CourseID,
		Kind:         kind,
		OverallScore: entry.OverallScore,
		Breakdown:    entry.Breakdown(),
		Duplicate:    true,
	}, nil
}

// grade resolves the submission against the catalog and returns the fold
// to apply. All catalog and score checks happen here, before the entry is
// touched.
func (s *Service) grade(ctx context.Context, kind ledger.Kind, sub Submission) (fold, error) {
	switch kind {
	case ledger.KindLesson:
		p := sub.Lesson
		a, err := s.catalog.Lesson(ctx, sub.CourseID, p.TopicID, p.LessonID)
		if err != nil {
			return nil, fmt.Errorf("grade lesson %s/%s: %w", p.TopicID, p.LessonID, err)
		}
		g, err := catalog.Grade(a, p.CorrectMCQs, p.AcceptedChallenges)
		if err != nil {
			return nil, fmt.Errorf("grade lesson %s/%s: %w", p.TopicID, p.LessonID, err)
		}
		return func(e *ledger.Entry, now time.Time) bool {
			e.RecordLesson(p.TopicID, p.LessonID, g.MCQScore, g.CodingScore, g.MaxScore, now)
			return true
		}, nil

	case ledger.KindModuleTest:
		p := sub.ModuleTest
		a, err := s.catalog.ModuleTest(ctx, sub.CourseID, p.TopicID)
		if err != nil {
			return nil, fmt.Errorf("grade module test %s: %w", p.TopicID, err)
		}
		g, err := catalog.Grade(a, p.CorrectMCQs, p.AcceptedChallenges)
		if err != nil {
			return nil, fmt.Errorf("grade module test %s: %w", p.TopicID, err)
		}
		return func(e *ledger.Entry, now time.Time) bool {
			e.RecordModuleTest(p.TopicID, g.MCQScore, g.CodingScore, g.MaxScore, now)
			return true
		}, nil

	case ledger.KindFinalExam:
		p := sub.FinalExam
		a, err := s.catalog.FinalExam(ctx, sub.CourseID)
		if err != nil {
			return nil, fmt.Errorf("grade final exam: %w", err)
		}
		g, err := catalog.Grade(a, p.CorrectMCQs, p.AcceptedChallenges)
		if err != nil {
			return nil, fmt.Errorf("grade final exam: %w", err)
		}
		return func(e *ledger.Entry, now time.Time) bool {
			e.RecordFinalExam(g.MCQScore, g.CodingScore, g.MaxScore, now)
			return true
		}, nil

	case ledger.KindSkillTestFinalExam:
		p := sub.SkillTest
		st, err := s.skillTests.SkillTest(ctx, p.SkillTestID)
		if err != nil {
			return nil, fmt.Errorf("check skill test %s: %w", p.SkillTestID, err)
		}
		if err := catalog.CheckSkillTest(st, sub.CourseID); err != nil {
			return nil, err
		}
		if err := catalog.CheckSkillTestScore(p.Score, p.MaxScore); err != nil {
			return nil, fmt.Errorf("check skill test %s: %w", p.SkillTestID, err)
		}
		attempt := ledger.SkillTestAttempt{
			SkillTestID: p.SkillTestID,
			AttemptID:   p.AttemptID,
			Score:       p.Score,
			MaxScore:    p.MaxScore,
			Percentage:  p.Percentage,
			Passed:      p.Passed,
			TimeSpent:   time.Duration(p.TimeSpentSeconds) * time.Second,
		}
		if attempt.Percentage == 0 {
			attempt.Percentage = p.Score / p.MaxScore * 100
		}
		return func(e *ledger.Entry, now time.Time) bool {
			return e.RecordSkillTestFinalExam(attempt, now)
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ledger.ErrUnknownKind, kind)
}

// validate checks the shape of sub: ids present, known kind and the
// payload matching that kind.
func validate(sub Submission) (ledger.Kind, error) {
	if sub.LearnerID == "" {
		return "", fmt.Errorf("%w: learner_id is required", ledger.ErrValidation)
	}
	if sub.CourseID == "" {
		return "", fmt.Errorf("%w: course_id is required", ledger.ErrValidation)
	}
	kind, err := ledger.ParseKind(string(sub.Kind))
	if err != nil {
		return "", err
	}

	missing := func(field string) error {
		return fmt.Errorf("%w: %s submission requires %s", ledger.ErrValidation, kind, field)
	}
	switch kind {
	case ledger.KindLesson:
		switch {
		case sub.Lesson == nil:
			return "", missing("lesson")
		case sub.Lesson.TopicID == "":
			return "", missing("lesson.topic_id")
		case sub.Lesson.LessonID == "":
			return "", missing("lesson.lesson_id")
		}
	case ledger.KindModuleTest:
		switch {
		case sub.ModuleTest == nil:
			return "", missing("module_test")
		case sub.ModuleTest.TopicID == "":
			return "", missing("module_test.topic_id")
		}
	case ledger.KindFinalExam:
		if sub.FinalExam == nil {
			return "", missing("final_exam")
		}
	case ledger.KindSkillTestFinalExam:
		switch {
		case sub.SkillTest == nil:
			return "", missing("skill_test")
		case sub.SkillTest.SkillTestID == "":
			return "", missing("skill_test.skill_test_id")
		}
	}
	return kind, nil
}

func outcome(res Result, err error) string {
	switch {
	case err == nil && res.Duplicate:
		return "duplicate"
	case err == nil:
		return "ok"
	case ledger.IsValidation(err):
		return "invalid"
	case errors.Is(err, ledger.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
