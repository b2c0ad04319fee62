package ledger

import "errors"

// Sentinel error kinds shared by the store, the catalog and the service.
// Callers match them with errors.Is; wrapping adds the violated detail.
var (
	// ErrValidation marks caller-fixable input problems.
	ErrValidation = errors.New("validation failed")
	// ErrEmptyAssessment is returned when an assessment has no gradable items.
	ErrEmptyAssessment = errors.New("assessment must contain at least MCQs or coding challenges")
	// ErrUnknownKind is returned for an unsupported assessment kind.
	ErrUnknownKind = errors.New("unknown assessment kind")
	// ErrNotFound covers missing entries and missing catalog items.
	ErrNotFound = errors.New("not found")
	// ErrSkillTestNotFinalExam rejects skill tests not flagged as final exams.
	ErrSkillTestNotFinalExam = errors.New("skill test is not a final exam")
	// ErrSkillTestCourseMismatch rejects skill tests owned by another course.
	ErrSkillTestCourseMismatch = errors.New("skill test belongs to a different course")
	// ErrVersionConflict is returned by optimistic saves of a stale entry.
	ErrVersionConflict = errors.New("ledger entry was modified concurrently")
)

// IsValidation reports whether err is any caller-fixable rejection.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrEmptyAssessment) ||
		errors.Is(err, ErrUnknownKind) ||
		errors.Is(err, ErrSkillTestNotFinalExam) ||
		errors.Is(err, ErrSkillTestCourseMismatch)
}
