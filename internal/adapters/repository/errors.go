package repository

import (
	"fmt"

	"github.com/okian/scoreboard/internal/domain/ledger"
)

// Sentinel kinds for store errors. The ledger kinds are aliased so callers
// can match either.
var (
	ErrNotFound        = ledger.ErrNotFound
	ErrVersionConflict = ledger.ErrVersionConflict
	ErrInvalidPage     = fmt.Errorf("%w: invalid leaderboard page", ledger.ErrValidation)
	ErrInvalidKey      = fmt.Errorf("%w: learner and course ids are required", ledger.ErrValidation)
)

func checkKey(learnerID, courseID string) error {
	if learnerID == "" || courseID == "" {
		return ErrInvalidKey
	}
	return nil
}

func checkPage(offset, limit int) error {
	if offset < 0 || limit < 1 {
		return fmt.Errorf("%w: offset %d limit %d", ErrInvalidPage, offset, limit)
	}
	return nil
}
