package catalog_test

import (
	"errors"
	"testing"

	"github.com/okian/scoreboard/internal/domain/catalog"
	"github.com/okian/scoreboard/internal/domain/ledger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGrade(t *testing.T) {
	Convey("Given an assessment with two MCQs and one challenge", t, func() {
		a := catalog.Assessment{
			MCQs:             []catalog.Item{{ID: "q1", Marks: 5}, {ID: "q2", Marks: 5}},
			CodingChallenges: []catalog.Item{{ID: "c1", Marks: 10}},
		}

		Convey("When one MCQ and the challenge are correct", func() {
			g, err := catalog.Grade(a, []string{"q1"}, []string{"c1"})

			Convey("Then their marks are summed", func() {
				So(err, ShouldBeNil)
				So(g.MCQScore, ShouldEqual, 5)
				So(g.CodingScore, ShouldEqual, 10)
				So(g.Total(), ShouldEqual, 15)
				So(g.MaxScore, ShouldEqual, 20)
			})
		})

		Convey("When an MCQ id is repeated", func() {
			g, err := catalog.Grade(a, []string{"q1", "q1"}, nil)

			Convey("Then it is counted once", func() {
				So(err, ShouldBeNil)
				So(g.MCQScore, ShouldEqual, 5)
			})
		})

		Convey("When nothing is correct", func() {
			g, err := catalog.Grade(a, nil, nil)

			Convey("Then the score is zero but still graded", func() {
				So(err, ShouldBeNil)
				So(g.Total(), ShouldEqual, 0)
				So(g.MaxScore, ShouldEqual, 20)
			})
		})

		Convey("When an unknown id is submitted", func() {
			_, err := catalog.Grade(a, []string{"q9"}, nil)

			Convey("Then grading fails with a validation error", func() {
				So(errors.Is(err, ledger.ErrValidation), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "q9")
			})
		})
	})

	Convey("Given an assessment with no items", t, func() {
		_, err := catalog.Grade(catalog.Assessment{}, nil, nil)

		Convey("Then it is rejected as empty", func() {
			So(errors.Is(err, ledger.ErrEmptyAssessment), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "assessment must contain at least MCQs or coding challenges")
		})
	})
}

func TestCheckSkillTest(t *testing.T) {
	Convey("Given skill test metadata", t, func() {
		Convey("Then a final exam of the same course passes", func() {
			So(catalog.CheckSkillTest(catalog.SkillTest{ID: "st", CourseID: "c1", IsFinalExam: true}, "c1"), ShouldBeNil)
		})
		Convey("Then a non-final skill test is rejected", func() {
			err := catalog.CheckSkillTest(catalog.SkillTest{ID: "st", CourseID: "c1"}, "c1")
			So(errors.Is(err, ledger.ErrSkillTestNotFinalExam), ShouldBeTrue)
		})
		Convey("Then a skill test of another course is rejected", func() {
			err := catalog.CheckSkillTest(catalog.SkillTest{ID: "st", CourseID: "c2", IsFinalExam: true}, "c1")
			So(errors.Is(err, ledger.ErrSkillTestCourseMismatch), ShouldBeTrue)
		})
	})

	Convey("Given externally graded scores", t, func() {
		So(catalog.CheckSkillTestScore(70, 100), ShouldBeNil)
		So(catalog.CheckSkillTestScore(100, 100), ShouldBeNil)
		So(errors.Is(catalog.CheckSkillTestScore(101, 100), ledger.ErrValidation), ShouldBeTrue)
		So(errors.Is(catalog.CheckSkillTestScore(1, 0), ledger.ErrValidation), ShouldBeTrue)
		So(errors.Is(catalog.CheckSkillTestScore(-1, 10), ledger.ErrValidation), ShouldBeTrue)
	})
}
