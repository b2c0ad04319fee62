// Package ledger holds the per-(learner, course) score ledger entry and the
// folds that apply one assessment submission to it.
package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Key identifies a ledger entry. At most one entry exists per key.
type Key struct {
	LearnerID string
	CourseID  string
}

// String renders the key for logs and lock striping.
func (k Key) String() string {
	return k.CourseID + "/" + k.LearnerID
}

// LessonRecord is the latest result for one (topic, lesson) pair.
type LessonRecord struct {
	TopicID     string    `json:"topic_id"`
	LessonID    string    `json:"lesson_id"`
	MCQScore    float64   `json:"mcq_score"`
	CodingScore float64   `json:"coding_score"`
	TotalScore  float64   `json:"total_score"`
	MaxScore    float64   `json:"max_score"`
	CompletedAt time.Time `json:"completed_at"`
}

// ModuleTestRecord is the latest result for one topic's module test.
type ModuleTestRecord struct {
	TopicID     string    `json:"topic_id"`
	MCQScore    float64   `json:"mcq_score"`
	CodingScore float64   `json:"coding_score"`
	TotalScore  float64   `json:"total_score"`
	MaxScore    float64   `json:"max_score"`
	CompletedAt time.Time `json:"completed_at"`
}

// FinalExamRecord is the latest course final exam result.
type FinalExamRecord struct {
	MCQScore    float64   `json:"mcq_score"`
	CodingScore float64   `json:"coding_score"`
	TotalScore  float64   `json:"total_score"`
	MaxScore    float64   `json:"max_score"`
	CompletedAt time.Time `json:"completed_at"`
}

// SkillTestRecord is the best attempt at one skill-test final exam.
type SkillTestRecord struct {
	SkillTestID string        `json:"skill_test_id"`
	AttemptID   string        `json:"attempt_id"`
	Score       float64       `json:"score"`
	MaxScore    float64       `json:"max_score"`
	Percentage  float64       `json:"percentage"`
	Passed      bool          `json:"passed"`
	TimeSpent   time.Duration `json:"time_spent"`
	CompletedAt time.Time     `json:"completed_at"`
}

// Entry is the score ledger of one learner in one course.
//
// The Total* fields, OverallScore and AverageScore are derived; only
// Recalculate writes them. Rank and Percentile are written by the rank
// sweep and are stale between sweeps.
type Entry struct {
	ID        string
	LearnerID string
	CourseID  string

	LessonRecords       []LessonRecord
	ModuleTestRecords   []ModuleTestRecord
	FinalExam           *FinalExamRecord
	SkillTestFinalExams []SkillTestRecord

	TotalLessonScore             float64
	TotalModuleTestScore         float64
	TotalFinalExamScore          float64
	TotalSkillTestFinalExamScore float64
	OverallScore                 float64
	AverageScore                 float64

	LessonsCompleted             int
	ModuleTestsCompleted         int
	FinalExamCompleted           bool
	SkillTestFinalExamsCompleted int

	Rank       int
	Percentile int

	// Version increases on every persisted score mutation.
	Version     int64
	CreatedAt   time.Time
	LastUpdated time.Time
}

// New returns a zeroed entry for key.
func New(key Key, now time.Time) *Entry {
	return &Entry{
		ID:          uuid.NewString(),
		LearnerID:   key.LearnerID,
		CourseID:    key.CourseID,
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// Key returns the identity of e.
func (e *Entry) Key() Key {
	return Key{LearnerID: e.LearnerID, CourseID: e.CourseID}
}

// CompletedUnits counts every completed assessment unit.
func (e *Entry) CompletedUnits() int {
	n := e.LessonsCompleted + e.ModuleTestsCompleted + e.SkillTestFinalExamsCompleted
	if e.FinalExamCompleted {
		n++
	}
	return n
}

// Recalculate rebuilds every derived aggregate from the stored records.
func (e *Entry) Recalculate() {
	e.TotalLessonScore = 0
	for _, r := range e.LessonRecords {
		e.TotalLessonScore += r.TotalScore
	}

	e.TotalModuleTestScore = 0
	for _, r := range e.ModuleTestRecords {
		e.TotalModuleTestScore += r.TotalScore
	}

	e.TotalFinalExamScore = 0
	if e.FinalExam != nil {
		e.TotalFinalExamScore = e.FinalExam.TotalScore
	}

	e.TotalSkillTestFinalExamScore = 0
	for _, r := range e.SkillTestFinalExams {
		e.TotalSkillTestFinalExamScore += r.Score
	}

	e.OverallScore = e.TotalLessonScore + e.TotalModuleTestScore +
		e.TotalFinalExamScore + e.TotalSkillTestFinalExamScore

	e.AverageScore = 0
	if units := e.CompletedUnits(); units > 0 {
		e.AverageScore = e.OverallScore / float64(units)
	}
}

// Clone returns a deep copy of e.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.LessonRecords = append([]LessonRecord(nil), e.LessonRecords...)
	c.ModuleTestRecords = append([]ModuleTestRecord(nil), e.ModuleTestRecords...)
	c.SkillTestFinalExams = append([]SkillTestRecord(nil), e.SkillTestFinalExams...)
	if e.FinalExam != nil {
		fe := *e.FinalExam
		c.FinalExam = &fe
	}
	return &c
}

// Breakdown is the per-category summary returned after a submission.
type Breakdown struct {
	OverallScore                 float64 `json:"overall_score"`
	AverageScore                 float64 `json:"average_score"`
	TotalLessonScore             float64 `json:"total_lesson_score"`
	TotalModuleTestScore         float64 `json:"total_module_test_score"`
	TotalFinalExamScore          float64 `json:"total_final_exam_score"`
	TotalSkillTestFinalExamScore float64 `json:"total_skill_test_final_exam_score"`
	LessonsCompleted             int     `json:"lessons_completed"`
	ModuleTestsCompleted         int     `json:"module_tests_completed"`
	FinalExamCompleted           bool    `json:"final_exam_completed"`
	SkillTestFinalExamsCompleted int     `json:"skill_test_final_exams_completed"`
}

// Breakdown summarizes e.
func (e *Entry) Breakdown() Breakdown {
	return Breakdown{
		OverallScore:                 e.OverallScore,
		AverageScore:                 e.AverageScore,
		TotalLessonScore:             e.TotalLessonScore,
		TotalModuleTestScore:         e.TotalModuleTestScore,
		TotalFinalExamScore:          e.TotalFinalExamScore,
		TotalSkillTestFinalExamScore: e.TotalSkillTestFinalExamScore,
		LessonsCompleted:             e.LessonsCompleted,
		ModuleTestsCompleted:         e.ModuleTestsCompleted,
		FinalExamCompleted:           e.FinalExamCompleted,
		SkillTestFinalExamsCompleted: e.SkillTestFinalExamsCompleted,
	}
}

// AreaTotals sums MCQ and coding marks across lessons, module tests and
// the final exam. Skill-test records carry no split and are excluded.
func (e *Entry) AreaTotals() (mcq, coding float64) {
	for _, r := range e.LessonRecords {
		mcq += r.MCQScore
		coding += r.CodingScore
	}
	for _, r := range e.ModuleTestRecords {
		mcq += r.MCQScore
		coding += r.CodingScore
	}
	if e.FinalExam != nil {
		mcq += e.FinalExam.MCQScore
		coding += e.FinalExam.CodingScore
	}
	return mcq, coding
}

// Strongest areas reported by StrongestArea.
const (
	AreaMCQ    = "MCQ"
	AreaCoding = "Coding"
)

// StrongestArea is AreaMCQ when MCQ marks strictly exceed coding marks.
func (e *Entry) StrongestArea() string {
	mcq, coding := e.AreaTotals()
	if mcq > coding {
		return AreaMCQ
	}
	return AreaCoding
}
