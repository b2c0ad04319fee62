// Package repository persists ledger entries and serves the per-course
// ordered access paths the leaderboard reads from.
package repository

import (
	"context"

	"github.com/okian/scoreboard/internal/domain/ledger"
	"github.com/okian/scoreboard/internal/domain/ranking"
)

// UpdateFunc mutates an entry inside Store.Update. Returning an error
// aborts the update and leaves the stored entry untouched.
type UpdateFunc func(e *ledger.Entry) error

// Store provides read/write access to ledger entries.
//
// Entries handed out are copies; mutating them has no effect until they
// are passed to Save.
type Store interface {
	// GetOrCreate returns the entry for (learnerID, courseID), creating a
	// zeroed one when none exists.
	GetOrCreate(ctx context.Context, learnerID, courseID string) (*ledger.Entry, error)

	// Find returns ErrNotFound when the entry does not exist.
	Find(ctx context.Context, learnerID, courseID string) (*ledger.Entry, error)

	// FindAllForCourse returns every entry of a course in leaderboard order.
	FindAllForCourse(ctx context.Context, courseID string) ([]*ledger.Entry, error)

	// Save persists score fields of e if e.Version still matches the stored
	// version, and bumps e.Version. Rank fields are not written.
	Save(ctx context.Context, e *ledger.Entry) error

	// Update is an atomic read-modify-write of one entry: get or create,
	// apply fn, persist. Concurrent updates of one key are serialized.
	Update(ctx context.Context, learnerID, courseID string, fn UpdateFunc) (*ledger.Entry, error)

	// SaveRanks writes rank and percentile only.
	SaveRanks(ctx context.Context, courseID string, assignments []ranking.Assignment) error

	// Page returns entries of a course in leaderboard order.
	Page(ctx context.Context, courseID string, offset, limit int) ([]*ledger.Entry, error)

	// Count returns the number of entries in a course.
	Count(ctx context.Context, courseID string) (int, error)

	// CountAbove counts entries of a course with a strictly greater
	// overall score.
	CountAbove(ctx context.Context, courseID string, score float64) (int, error)

	Close() error
}

var (
	_ Store          = (*MemoryStore)(nil)
	_ Store          = (*PostgresStore)(nil)
	_ ranking.Source = Store(nil)
)
