package ledger_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/scoreboard/internal/domain/ledger"
	. "github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newEntry() *ledger.Entry {
	return ledger.New(ledger.Key{LearnerID: "learner-1", CourseID: "course-1"}, t0)
}

func TestRecordLesson(t *testing.T) {
	Convey("Given an empty ledger entry", t, func() {
		e := newEntry()

		Convey("When a lesson is recorded", func() {
			e.RecordLesson("t1", "l1", 10, 5, 20, t0.Add(time.Minute))

			Convey("Then the record and aggregates reflect it", func() {
				So(e.LessonRecords, ShouldHaveLength, 1)
				So(e.LessonRecords[0].TotalScore, ShouldEqual, 15)
				So(e.LessonsCompleted, ShouldEqual, 1)
				So(e.TotalLessonScore, ShouldEqual, 15)
				So(e.OverallScore, ShouldEqual, 15)
				So(e.AverageScore, ShouldEqual, 15)
				So(e.LastUpdated, ShouldEqual, t0.Add(time.Minute))
			})

			Convey("And the same lesson is resubmitted", func() {
				e.RecordLesson("t1", "l1", 20, 20, 40, t0.Add(2*time.Minute))

				Convey("Then the record is replaced and the counter is unchanged", func() {
					So(e.LessonRecords, ShouldHaveLength, 1)
					So(e.LessonsCompleted, ShouldEqual, 1)
					So(e.OverallScore, ShouldEqual, 40)
					So(e.LessonRecords[0].MaxScore, ShouldEqual, 40)
				})
			})

			Convey("And a different lesson of the same topic is submitted", func() {
				e.RecordLesson("t1", "l2", 3, 0, 5, t0.Add(2*time.Minute))

				Convey("Then a second record is appended", func() {
					So(e.LessonRecords, ShouldHaveLength, 2)
					So(e.LessonsCompleted, ShouldEqual, 2)
					So(e.OverallScore, ShouldEqual, 18)
					So(e.AverageScore, ShouldEqual, 9)
				})
			})
		})
	})
}

func TestRecordModuleTestAndFinalExam(t *testing.T) {
	Convey("Given an entry with one lesson", t, func() {
		e := newEntry()
		e.RecordLesson("t1", "l1", 10, 0, 10, t0)

		Convey("When a module test is recorded twice for one topic", func() {
			e.RecordModuleTest("t1", 4, 6, 20, t0)
			e.RecordModuleTest("t1", 8, 6, 20, t0)

			Convey("Then only the latest result counts", func() {
				So(e.ModuleTestRecords, ShouldHaveLength, 1)
				So(e.ModuleTestsCompleted, ShouldEqual, 1)
				So(e.TotalModuleTestScore, ShouldEqual, 14)
				So(e.OverallScore, ShouldEqual, 24)
			})
		})

		Convey("When the final exam is recorded twice", func() {
			e.RecordFinalExam(30, 30, 100, t0)
			e.RecordFinalExam(10, 5, 100, t0)

			Convey("Then the latest result replaces the earlier one", func() {
				So(e.FinalExamCompleted, ShouldBeTrue)
				So(e.FinalExam.TotalScore, ShouldEqual, 15)
				So(e.TotalFinalExamScore, ShouldEqual, 15)
				So(e.OverallScore, ShouldEqual, 25)
				So(e.CompletedUnits(), ShouldEqual, 2)
				So(e.AverageScore, ShouldEqual, 12.5)
			})
		})
	})
}

func TestRecordSkillTestFinalExam(t *testing.T) {
	Convey("Given an entry with a skill test attempt scoring 70", t, func() {
		e := newEntry()
		improved := e.RecordSkillTestFinalExam(ledger.SkillTestAttempt{
			SkillTestID: "st-1", AttemptID: "a1", Score: 70, MaxScore: 100, Percentage: 70, Passed: true,
		}, t0)
		So(improved, ShouldBeTrue)

		Convey("When a lower attempt follows", func() {
			improved := e.RecordSkillTestFinalExam(ledger.SkillTestAttempt{
				SkillTestID: "st-1", AttemptID: "a2", Score: 60, MaxScore: 100,
			}, t0.Add(time.Hour))

			Convey("Then the best attempt is kept but LastUpdated moves", func() {
				So(improved, ShouldBeFalse)
				So(e.SkillTestFinalExams[0].AttemptID, ShouldEqual, "a1")
				So(e.TotalSkillTestFinalExamScore, ShouldEqual, 70)
				So(e.SkillTestFinalExamsCompleted, ShouldEqual, 1)
				So(e.LastUpdated, ShouldEqual, t0.Add(time.Hour))
			})
		})

		Convey("When an equal attempt follows", func() {
			improved := e.RecordSkillTestFinalExam(ledger.SkillTestAttempt{
				SkillTestID: "st-1", AttemptID: "a2", Score: 70, MaxScore: 100,
			}, t0)

			Convey("Then it does not replace the stored attempt", func() {
				So(improved, ShouldBeFalse)
				So(e.SkillTestFinalExams[0].AttemptID, ShouldEqual, "a1")
			})
		})

		Convey("When a higher attempt follows", func() {
			improved := e.RecordSkillTestFinalExam(ledger.SkillTestAttempt{
				SkillTestID: "st-1", AttemptID: "a3", Score: 85.5, MaxScore: 100,
			}, t0)

			Convey("Then it replaces the stored attempt", func() {
				So(improved, ShouldBeTrue)
				So(e.SkillTestFinalExams, ShouldHaveLength, 1)
				So(e.SkillTestFinalExams[0].AttemptID, ShouldEqual, "a3")
				So(e.OverallScore, ShouldEqual, 85.5)
			})
		})

		Convey("When another skill test is attempted", func() {
			e.RecordSkillTestFinalExam(ledger.SkillTestAttempt{SkillTestID: "st-2", Score: 10, MaxScore: 20}, t0)

			Convey("Then it is appended and counted", func() {
				So(e.SkillTestFinalExamsCompleted, ShouldEqual, 2)
				So(e.OverallScore, ShouldEqual, 80)
			})
		})
	})
}

func TestAggregateConsistency(t *testing.T) {
	Convey("Given an entry with every kind of record", t, func() {
		e := newEntry()
		e.RecordLesson("t1", "l1", 5, 5, 10, t0)
		e.RecordLesson("t2", "l1", 2, 1, 10, t0)
		e.RecordModuleTest("t1", 10, 0, 10, t0)
		e.RecordFinalExam(20, 30, 60, t0)
		e.RecordSkillTestFinalExam(ledger.SkillTestAttempt{SkillTestID: "st", Score: 7, MaxScore: 10}, t0)

		Convey("Then the overall score is the sum of the category totals", func() {
			sum := e.TotalLessonScore + e.TotalModuleTestScore + e.TotalFinalExamScore + e.TotalSkillTestFinalExamScore
			So(e.OverallScore, ShouldEqual, sum)
			So(e.OverallScore, ShouldEqual, 80)
			So(e.CompletedUnits(), ShouldEqual, 5)
			So(e.AverageScore, ShouldEqual, 16)
		})

		Convey("Then Recalculate is idempotent", func() {
			before := e.Breakdown()
			e.Recalculate()
			So(e.Breakdown(), ShouldResemble, before)
		})

		Convey("Then MCQ and coding totals exclude skill tests", func() {
			mcq, coding := e.AreaTotals()
			So(mcq, ShouldEqual, 37)
			So(coding, ShouldEqual, 36)
			So(e.StrongestArea(), ShouldEqual, ledger.AreaMCQ)
		})

		Convey("Then a clone is independent of the original", func() {
			c := e.Clone()
			c.LessonRecords[0].TotalScore = 999
			c.FinalExam.TotalScore = 999
			So(e.LessonRecords[0].TotalScore, ShouldEqual, 10)
			So(e.FinalExam.TotalScore, ShouldEqual, 50)
		})
	})

	Convey("Given an entry without records", t, func() {
		e := newEntry()
		e.Recalculate()

		Convey("Then averages are zero and coding wins the tie", func() {
			So(e.AverageScore, ShouldEqual, 0)
			So(e.StrongestArea(), ShouldEqual, ledger.AreaCoding)
			So(e.ID, ShouldNotBeEmpty)
		})
	})
}

func TestParseKind(t *testing.T) {
	Convey("Given assessment kind strings", t, func() {
		Convey("Then the four wire names parse", func() {
			for _, s := range []string{"lesson", "moduleTest", "finalExam", "skillTestFinalExam"} {
				k, err := ledger.ParseKind(s)
				So(err, ShouldBeNil)
				So(string(k), ShouldEqual, s)
			}
		})

		Convey("Then anything else is an unknown kind", func() {
			_, err := ledger.ParseKind("quiz")
			So(errors.Is(err, ledger.ErrUnknownKind), ShouldBeTrue)
			So(ledger.IsValidation(err), ShouldBeTrue)
			So(ledger.IsValidation(ledger.ErrNotFound), ShouldBeFalse)
		})
	})
}
