package ledger

import (
	"time"
)

// The folds below assume validated input (MaxScore > 0, ids present);
// validation happens before an entry is touched.

// RecordLesson stores the result of a lesson. A resubmission for the same
// (topic, lesson) replaces the stored record without touching the counter.
func (e *Entry) RecordLesson(topicID, lessonID string, mcq, coding, maxScore float64, now time.Time) {
	rec := LessonRecord{
		TopicID:     topicID,
		LessonID:    lessonID,
		MCQScore:    mcq,
		CodingScore: coding,
		TotalScore:  mcq + coding,
		MaxScore:    maxScore,
		CompletedAt: now,
	}

	replaced := false
	for i := range e.LessonRecords {
		if e.LessonRecords[i].TopicID == topicID && e.LessonRecords[i].LessonID == lessonID {
			e.LessonRecords[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		e.LessonRecords = append(e.LessonRecords, rec)
		e.LessonsCompleted++
	}
	e.touch(now)
}

// RecordModuleTest stores the result of a topic's module test.
func (e *Entry) RecordModuleTest(topicID string, mcq, coding, maxScore float64, now time.Time) {
	rec := ModuleTestRecord{
		TopicID:     topicID,
		MCQScore:    mcq,
		CodingScore: coding,
		TotalScore:  mcq + coding,
		MaxScore:    maxScore,
		CompletedAt: now,
	}

	replaced := false
	for i := range e.ModuleTestRecords {
		if e.ModuleTestRecords[i].TopicID == topicID {
			e.ModuleTestRecords[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		e.ModuleTestRecords = append(e.ModuleTestRecords, rec)
		e.ModuleTestsCompleted++
	}
	e.touch(now)
}

// RecordFinalExam replaces the course final exam result.
func (e *Entry) RecordFinalExam(mcq, coding, maxScore float64, now time.Time) {
	e.FinalExam = &FinalExamRecord{
		MCQScore:    mcq,
		CodingScore: coding,
		TotalScore:  mcq + coding,
		MaxScore:    maxScore,
		CompletedAt: now,
	}
	e.FinalExamCompleted = true
	e.touch(now)
}

// SkillTestAttempt is one externally graded skill-test final exam attempt.
type SkillTestAttempt struct {
	SkillTestID string
	AttemptID   string
	Score       float64
	MaxScore    float64
	Percentage  float64
	Passed      bool
	TimeSpent   time.Duration
}

// RecordSkillTestFinalExam keeps the best attempt per skill test. It
// reports whether the stored record changed. Totals are recomputed and
// LastUpdated is set either way.
func (e *Entry) RecordSkillTestFinalExam(a SkillTestAttempt, now time.Time) bool {
	rec := SkillTestRecord{
		SkillTestID: a.SkillTestID,
		AttemptID:   a.AttemptID,
		Score:       a.Score,
		MaxScore:    a.MaxScore,
		Percentage:  a.Percentage,
		Passed:      a.Passed,
		TimeSpent:   a.TimeSpent,
		CompletedAt: now,
	}

	changed := true
	found := false
	for i := range e.SkillTestFinalExams {
		if e.SkillTestFinalExams[i].SkillTestID != a.SkillTestID {
			continue
		}
		found = true
		if a.Score > e.SkillTestFinalExams[i].Score {
			e.SkillTestFinalExams[i] = rec
		} else {
			changed = false
		}
		break
	}
	if !found {
		e.SkillTestFinalExams = append(e.SkillTestFinalExams, rec)
		e.SkillTestFinalExamsCompleted++
	}
	e.touch(now)
	return changed
}

func (e *Entry) touch(now time.Time) {
	e.Recalculate()
	e.LastUpdated = now
}
