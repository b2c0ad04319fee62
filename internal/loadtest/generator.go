package loadtest

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/okian/scoreboard/internal/adapters/catalog"
	service "github.com/okian/scoreboard/internal/app"
	domain "github.com/okian/scoreboard/internal/domain/catalog"
	"github.com/okian/scoreboard/internal/domain/ledger"
)

// Probabilities of a learner attempting each kind of assessment.
const (
	lessonRate     = 0.8
	moduleTestRate = 0.5
	finalExamRate  = 0.3
	skillTestRate  = 0.4
	answerRate     = 0.6
)

// generator builds submissions for simulated learners of one course.
type generator struct {
	course catalog.Course
	rng    *rand.Rand
	replay float64
}

func newGenerator(course catalog.Course, seed uint64, replay float64) *generator {
	return &generator{
		course: course,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		replay: replay,
	}
}

// learner returns the submissions of one learner. Replayed submissions
// reuse the submission id of the original.
func (g *generator) learner(learnerID string) []service.Submission {
	var out []service.Submission
	add := func(sub service.Submission) {
		sub.SubmissionID = uuid.NewString()
		sub.LearnerID = learnerID
		sub.CourseID = g.course.ID
		out = append(out, sub)
		if g.rng.Float64() < g.replay {
			out = append(out, sub)
		}
	}

	for _, t := range g.course.Topics {
		for _, l := range t.Lessons {
			if g.rng.Float64() < lessonRate {
				add(service.Submission{
					Kind:   ledger.KindLesson,
					Lesson: &service.LessonSubmission{TopicID: t.ID, LessonID: l.ID, Answers: g.answers(l.Assessment)},
				})
			}
		}
		if t.ModuleTest != nil && g.rng.Float64() < moduleTestRate {
			add(service.Submission{
				Kind:       ledger.KindModuleTest,
				ModuleTest: &service.ModuleTestSubmission{TopicID: t.ID, Answers: g.answers(*t.ModuleTest)},
			})
		}
	}
	if g.course.FinalExam != nil && g.rng.Float64() < finalExamRate {
		add(service.Submission{
			Kind:      ledger.KindFinalExam,
			FinalExam: &service.FinalExamSubmission{Answers: g.answers(*g.course.FinalExam)},
		})
	}
	for _, st := range g.course.SkillTests {
		if !st.IsFinalExam || g.rng.Float64() >= skillTestRate {
			continue
		}
		const maxScore = 100
		score := float64(g.rng.IntN(maxScore + 1))
		add(service.Submission{
			Kind: ledger.KindSkillTestFinalExam,
			SkillTest: &service.SkillTestSubmission{
				SkillTestID:      st.ID,
				AttemptID:        fmt.Sprintf("%s-%d", learnerID, g.rng.Uint32()),
				Score:            score,
				MaxScore:         maxScore,
				Passed:           score >= maxScore/2,
				TimeSpentSeconds: int64(60 + g.rng.IntN(3600)),
			},
		})
	}
	return out
}

func (g *generator) answers(a domain.Assessment) service.Answers {
	var ans service.Answers
	for _, q := range a.MCQs {
		if g.rng.Float64() < answerRate {
			ans.CorrectMCQs = append(ans.CorrectMCQs, q.ID)
		}
	}
	for _, c := range a.CodingChallenges {
		if g.rng.Float64() < answerRate {
			ans.AcceptedChallenges = append(ans.AcceptedChallenges, c.ID)
		}
	}
	return ans
}
