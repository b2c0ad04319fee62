package service

import (
	"context"
	"fmt"

	"github.com/okian/scoreboard/internal/domain/ledger"
	"github.com/okian/scoreboard/internal/domain/ranking"
)

// LeaderboardPage returns one page of courseID's leaderboard. Ranks are
// computed live, so they can be ahead of the last sweep. limit is capped
// at the configured maximum.
func (s *Service) LeaderboardPage(ctx context.Context, courseID string, page, limit int) (LeaderboardPage, error) {
	switch {
	case courseID == "":
		return LeaderboardPage{}, fmt.Errorf("%w: course_id is required", ledger.ErrValidation)
	case page < 1:
		return LeaderboardPage{}, fmt.Errorf("%w: page must be at least 1", ledger.ErrValidation)
	case limit < 1:
		return LeaderboardPage{}, fmt.Errorf("%w: limit must be at least 1", ledger.ErrValidation)
	}
	if limit > s.maxPageLimit {
		limit = s.maxPageLimit
	}

	total, err := s.store.Count(ctx, courseID)
	if err != nil {
		return LeaderboardPage{}, fmt.Errorf("leaderboard %s: %w", courseID, err)
	}

	offset := (page - 1) * limit
	entries, err := s.store.Page(ctx, courseID, offset, limit)
	if err != nil {
		return LeaderboardPage{}, fmt.Errorf("leaderboard %s: %w", courseID, err)
	}

	out := LeaderboardPage{
		CourseID:      courseID,
		Entries:       make([]LeaderboardRow, 0, len(entries)),
		Page:          page,
		Limit:         limit,
		TotalLearners: total,
		TotalPages:    (total + limit - 1) / limit,
	}

	// Entries arrive in score order, so only the first row needs a count:
	// every later row either shares the previous score or starts a new
	// rank at its own position.
	rank := 0
	for i, e := range entries {
		position := offset + i + 1
		switch {
		case i == 0:
			above, err := s.store.CountAbove(ctx, courseID, e.OverallScore)
			if err != nil {
				return LeaderboardPage{}, fmt.Errorf("leaderboard %s: %w", courseID, err)
			}
			rank = ranking.PopulationRank(above)
		case e.OverallScore != entries[i-1].OverallScore:
			rank = position
		}
		out.Entries = append(out.Entries, LeaderboardRow{
			Position:             position,
			Rank:                 rank,
			Percentile:           ranking.Percentile(rank, total),
			LearnerID:            e.LearnerID,
			OverallScore:         e.OverallScore,
			AverageScore:         e.AverageScore,
			LessonsCompleted:     e.LessonsCompleted,
			ModuleTestsCompleted: e.ModuleTestsCompleted,
			FinalExamCompleted:   e.FinalExamCompleted,
			LastUpdated:          e.LastUpdated,
		})
	}
	return out, nil
}

// UserRank returns the live rank of a learner, creating an empty ledger
// entry when the learner has none yet.
func (s *Service) UserRank(ctx context.Context, learnerID, courseID string) (RankInfo, error) {
	if err := checkIDs(learnerID, courseID); err != nil {
		return RankInfo{}, err
	}

	e, err := s.store.GetOrCreate(ctx, learnerID, courseID)
	if err != nil {
		return RankInfo{}, fmt.Errorf("rank %s/%s: %w", courseID, learnerID, err)
	}
	above, err := s.store.CountAbove(ctx, courseID, e.OverallScore)
	if err != nil {
		return RankInfo{}, fmt.Errorf("rank %s/%s: %w", courseID, learnerID, err)
	}
	total, err := s.store.Count(ctx, courseID)
	if err != nil {
		return RankInfo{}, fmt.Errorf("rank %s/%s: %w", courseID, learnerID, err)
	}

	rank := ranking.PopulationRank(above)
	return RankInfo{
		LearnerID:     learnerID,
		CourseID:      courseID,
		Rank:          rank,
		Percentile:    ranking.Percentile(rank, total),
		TotalLearners: total,
		Score:         e.OverallScore,
	}, nil
}

// UserStats returns the learner's full breakdown with the strongest area.
func (s *Service) UserStats(ctx context.Context, learnerID, courseID string) (UserStats, error) {
	if err := checkIDs(learnerID, courseID); err != nil {
		return UserStats{}, err
	}

	e, err := s.store.GetOrCreate(ctx, learnerID, courseID)
	if err != nil {
		return UserStats{}, fmt.Errorf("stats %s/%s: %w", courseID, learnerID, err)
	}

	mcq, coding := e.AreaTotals()
	return UserStats{
		LearnerID:     learnerID,
		CourseID:      courseID,
		Breakdown:     e.Breakdown(),
		MCQTotal:      mcq,
		CodingTotal:   coding,
		StrongestArea: e.StrongestArea(),
		Rank:          e.Rank,
		Percentile:    e.Percentile,
		Lessons:       e.LessonRecords,
		ModuleTests:   e.ModuleTestRecords,
		FinalExam:     e.FinalExam,
		SkillTests:    e.SkillTestFinalExams,
		LastUpdated:   e.LastUpdated,
	}, nil
}

func checkIDs(learnerID, courseID string) error {
	if learnerID == "" {
		return fmt.Errorf("%w: learner_id is required", ledger.ErrValidation)
	}
	if courseID == "" {
		return fmt.Errorf("%w: course_id is required", ledger.ErrValidation)
	}
	return nil
}
