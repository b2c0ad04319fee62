package ledger

import "fmt"

// Kind is one of the four assessment kinds.
type Kind string

// Supported assessment kinds, spelled as they appear on the wire.
const (
	KindLesson             Kind = "lesson"
	KindModuleTest         Kind = "moduleTest"
	KindFinalExam          Kind = "finalExam"
	KindSkillTestFinalExam Kind = "skillTestFinalExam"
)

// ParseKind validates s.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindLesson, KindModuleTest, KindFinalExam, KindSkillTestFinalExam:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}
