// Package ranking orders ledger entries within a course and assigns
// competition ranks and percentiles.
package ranking

import (
	"math"
	"sort"

	"github.com/okian/scoreboard/internal/domain/ledger"
)

// Assignment is the rank and percentile computed for one learner.
type Assignment struct {
	LearnerID  string
	Rank       int
	Percentile int
}

// Less reports whether a orders before b on the leaderboard: higher
// overall score first, then more lessons, then more module tests, then the
// earlier LastUpdated, then learner id.
func Less(a, b *ledger.Entry) bool {
	if a.OverallScore != b.OverallScore {
		return a.OverallScore > b.OverallScore
	}
	if a.LessonsCompleted != b.LessonsCompleted {
		return a.LessonsCompleted > b.LessonsCompleted
	}
	if a.ModuleTestsCompleted != b.ModuleTestsCompleted {
		return a.ModuleTestsCompleted > b.ModuleTestsCompleted
	}
	if !a.LastUpdated.Equal(b.LastUpdated) {
		return a.LastUpdated.Before(b.LastUpdated)
	}
	return a.LearnerID < b.LearnerID
}

// Sort orders entries in place by Less.
func Sort(entries []*ledger.Entry) {
	sort.SliceStable(entries, func(i, j int) bool { return Less(entries[i], entries[j]) })
}

// Assign sorts entries and returns one assignment per entry in leaderboard
// order. Entries sharing an overall score share a rank; the next distinct
// score takes its 1-based position, so ranks may skip.
func Assign(entries []*ledger.Entry) []Assignment {
	Sort(entries)

	n := len(entries)
	out := make([]Assignment, n)
	rank := 0
	for i, e := range entries {
		if i == 0 || e.OverallScore != entries[i-1].OverallScore {
			rank = i + 1
		}
		out[i] = Assignment{
			LearnerID:  e.LearnerID,
			Rank:       rank,
			Percentile: Percentile(rank, n),
		}
	}
	return out
}

// Percentile maps a 1-based rank within n learners onto 0..100, where the
// top rank is 100. An empty population yields 100.
func Percentile(rank, n int) int {
	if n <= 0 {
		return 100
	}
	p := int(math.Round(float64(n-rank+1) / float64(n) * 100))
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// PopulationRank is the competition rank of a score that countAbove
// learners strictly exceed.
func PopulationRank(countAbove int) int {
	return countAbove + 1
}
