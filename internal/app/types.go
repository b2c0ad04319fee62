package service

import (
	"time"

	"github.com/okian/scoreboard/internal/domain/ledger"
)

// Answers lists what the learner got right in a catalog-graded assessment.
// Marks come from the catalog, never from the caller.
type Answers struct {
	CorrectMCQs        []string `json:"correct_mcqs"`
	AcceptedChallenges []string `json:"accepted_challenges"`
}

// LessonSubmission is the payload of a lesson submission.
type LessonSubmission struct {
	TopicID  string `json:"topic_id"`
	LessonID string `json:"lesson_id"`
	Answers
}

// ModuleTestSubmission is the payload of a topic module test submission.
type ModuleTestSubmission struct {
	TopicID string `json:"topic_id"`
	Answers
}

// FinalExamSubmission is the payload of a course final exam submission.
type FinalExamSubmission struct {
	Answers
}

// SkillTestSubmission is an externally graded skill test attempt.
type SkillTestSubmission struct {
	SkillTestID      string  `json:"skill_test_id"`
	AttemptID        string  `json:"attempt_id"`
	Score            float64 `json:"score"`
	MaxScore         float64 `json:"max_score"`
	Percentage       float64 `json:"percentage,omitempty"`
	Passed           bool    `json:"passed"`
	TimeSpentSeconds int64   `json:"time_spent_seconds,omitempty"`
}

// Submission is one score-affecting event. Exactly the payload matching
// Kind is read.
type Submission struct {
	// SubmissionID is optional. When set, a repeated id for the same
	// learner and course is acknowledged without being applied again.
	SubmissionID string      `json:"submission_id,omitempty"`
	LearnerID    string      `json:"learner_id"`
	CourseID     string      `json:"course_id"`
	Kind         ledger.Kind `json:"kind"`

	Lesson     *LessonSubmission     `json:"lesson,omitempty"`
	ModuleTest *ModuleTestSubmission `json:"module_test,omitempty"`
	FinalExam  *FinalExamSubmission  `json:"final_exam,omitempty"`
	SkillTest  *SkillTestSubmission  `json:"skill_test,omitempty"`
}

// Result is returned after a submission has been folded into the ledger.
type Result struct {
	LearnerID    string           `json:"learner_id"`
	CourseID     string           `json:"course_id"`
	Kind         ledger.Kind      `json:"kind"`
	OverallScore float64          `json:"overall_score"`
	Breakdown    ledger.Breakdown `json:"breakdown"`
	// Improved is false only when a skill test attempt did not beat the
	// stored best attempt.
	Improved  bool `json:"improved"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// LeaderboardRow is one learner on a leaderboard page.
type LeaderboardRow struct {
	// Position is the 1-based place in leaderboard order.
	Position int `json:"position"`
	// Rank is the competition rank: learners with equal scores share it.
	Rank                 int       `json:"rank"`
	Percentile           int       `json:"percentile"`
	LearnerID            string    `json:"learner_id"`
	OverallScore         float64   `json:"overall_score"`
	AverageScore         float64   `json:"average_score"`
	LessonsCompleted     int       `json:"lessons_completed"`
	ModuleTestsCompleted int       `json:"module_tests_completed"`
	FinalExamCompleted   bool      `json:"final_exam_completed"`
	LastUpdated          time.Time `json:"last_updated"`
}

// LeaderboardPage is one page of a course leaderboard.
type LeaderboardPage struct {
	CourseID      string           `json:"course_id"`
	Entries       []LeaderboardRow `json:"entries"`
	Page          int              `json:"page"`
	Limit         int              `json:"limit"`
	TotalLearners int              `json:"total_learners"`
	TotalPages    int              `json:"total_pages"`
}

// RankInfo is a learner's live standing in a course.
type RankInfo struct {
	LearnerID     string  `json:"learner_id"`
	CourseID      string  `json:"course_id"`
	Rank          int     `json:"rank"`
	Percentile    int     `json:"percentile"`
	TotalLearners int     `json:"total_learners"`
	Score         float64 `json:"score"`
}

// UserStats is the full score breakdown of a learner in a course.
type UserStats struct {
	LearnerID string `json:"learner_id"`
	CourseID  string `json:"course_id"`
	ledger.Breakdown

	MCQTotal      float64 `json:"mcq_total"`
	CodingTotal   float64 `json:"coding_total"`
	StrongestArea string  `json:"strongest_area"`

	// Rank and Percentile are as of the last sweep.
	Rank       int `json:"rank"`
	Percentile int `json:"percentile"`

	Lessons     []ledger.LessonRecord     `json:"lessons"`
	ModuleTests []ledger.ModuleTestRecord `json:"module_tests"`
	FinalExam   *ledger.FinalExamRecord   `json:"final_exam,omitempty"`
	SkillTests  []ledger.SkillTestRecord  `json:"skill_tests"`

	LastUpdated time.Time `json:"last_updated"`
}
