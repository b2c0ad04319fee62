// Package catalog describes the course content a submission is graded
// against and the grading rules themselves.
package catalog

import (
	"context"
	"fmt"

	"github.com/okian/scoreboard/internal/domain/ledger"
)

// Item is one gradable question or challenge and the marks it carries.
type Item struct {
	ID    string  `yaml:"id"`
	Marks float64 `yaml:"marks"`
}

// Assessment is the gradable content of a lesson, module test or final exam.
type Assessment struct {
	MCQs             []Item `yaml:"mcqs"`
	CodingChallenges []Item `yaml:"coding_challenges"`
}

// MaxScore sums the marks of every item.
func (a Assessment) MaxScore() float64 {
	var total float64
	for _, it := range a.MCQs {
		total += it.Marks
	}
	for _, it := range a.CodingChallenges {
		total += it.Marks
	}
	return total
}

// SkillTest is the metadata of an externally graded skill test.
type SkillTest struct {
	ID          string `yaml:"id"`
	CourseID    string `yaml:"-"`
	IsFinalExam bool   `yaml:"is_final_exam"`
}

// Catalog resolves course content. Lookups of unknown courses, topics or
// lessons return errors wrapping ledger.ErrNotFound.
type Catalog interface {
	Lesson(ctx context.Context, courseID, topicID, lessonID string) (Assessment, error)
	ModuleTest(ctx context.Context, courseID, topicID string) (Assessment, error)
	FinalExam(ctx context.Context, courseID string) (Assessment, error)
}

// SkillTests resolves skill test metadata.
type SkillTests interface {
	SkillTest(ctx context.Context, skillTestID string) (SkillTest, error)
}

// Graded is the outcome of grading one submission.
type Graded struct {
	MCQScore    float64
	CodingScore float64
	MaxScore    float64
}

// Total is the marks earned.
func (g Graded) Total() float64 { return g.MCQScore + g.CodingScore }

// Grade sums the marks of the correctly answered MCQs and the accepted
// coding challenges. Ids not present in the assessment are rejected, as
// is an assessment that carries no marks at all. Repeated ids count once.
func Grade(a Assessment, correctMCQs, acceptedChallenges []string) (Graded, error) {
	maxScore := a.MaxScore()
	if maxScore <= 0 {
		return Graded{}, ledger.ErrEmptyAssessment
	}

	mcq, err := sumMarks(a.MCQs, correctMCQs)
	if err != nil {
		return Graded{}, fmt.Errorf("mcq: %w", err)
	}
	coding, err := sumMarks(a.CodingChallenges, acceptedChallenges)
	if err != nil {
		return Graded{}, fmt.Errorf("coding challenge: %w", err)
	}
	return Graded{MCQScore: mcq, CodingScore: coding, MaxScore: maxScore}, nil
}

func sumMarks(items []Item, ids []string) (float64, error) {
	marks := make(map[string]float64, len(items))
	for _, it := range items {
		marks[it.ID] = it.Marks
	}

	var total float64
	counted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m, ok := marks[id]
		if !ok {
			return 0, fmt.Errorf("%w: unknown item %q", ledger.ErrValidation, id)
		}
		if _, dup := counted[id]; dup {
			continue
		}
		counted[id] = struct{}{}
		total += m
	}
	return total, nil
}

// CheckSkillTest validates that st may count towards courseID's ledger.
func CheckSkillTest(st SkillTest, courseID string) error {
	if !st.IsFinalExam {
		return fmt.Errorf("%w: %s", ledger.ErrSkillTestNotFinalExam, st.ID)
	}
	if st.CourseID != courseID {
		return fmt.Errorf("%w: %s belongs to %s", ledger.ErrSkillTestCourseMismatch, st.ID, st.CourseID)
	}
	return nil
}

// CheckSkillTestScore validates an externally graded score.
func CheckSkillTestScore(score, maxScore float64) error {
	switch {
	case maxScore <= 0:
		return fmt.Errorf("%w: max score must be positive", ledger.ErrValidation)
	case score < 0:
		return fmt.Errorf("%w: score must not be negative", ledger.ErrValidation)
	case score > maxScore:
		return fmt.Errorf("%w: score %.2f exceeds max score %.2f", ledger.ErrValidation, score, maxScore)
	}
	return nil
}
