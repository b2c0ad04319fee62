package loadtest

import (
	"fmt"
	"sort"

	service "github.com/okian/scoreboard/internal/app"
	"github.com/okian/scoreboard/internal/domain/ranking"
)

// verifyLeaderboard checks the full leaderboard: positions are dense,
// scores never increase, and each rank is one plus the number of
// strictly higher scores.
func verifyLeaderboard(rows []service.LeaderboardRow) error {
	if len(rows) == 0 {
		return fmt.Errorf("empty leaderboard")
	}
	for i, row := range rows {
		if row.Position != i+1 {
			return fmt.Errorf("row %d: position %d", i, row.Position)
		}
		if i > 0 && row.OverallScore > rows[i-1].OverallScore {
			return fmt.Errorf("leaderboard not sorted at position %d", row.Position)
		}
		want := 1
		if i > 0 {
			want = rows[i-1].Rank
			if row.OverallScore != rows[i-1].OverallScore {
				want = row.Position
			}
		}
		if row.Rank != want {
			return fmt.Errorf("learner %s: leaderboard rank %d, want %d", row.LearnerID, row.Rank, want)
		}
		if p := ranking.Percentile(row.Rank, len(rows)); row.Percentile != p {
			return fmt.Errorf("learner %s: percentile %d, want %d", row.LearnerID, row.Percentile, p)
		}
	}
	return nil
}

// verifyRanks checks per-learner ranks against the leaderboard
// population.
func verifyRanks(ranks []service.RankInfo, rows []service.LeaderboardRow) error {
	scores := make([]float64, len(rows))
	for i, row := range rows {
		scores[i] = row.OverallScore
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))

	for _, r := range ranks {
		if r.TotalLearners != len(rows) {
			return fmt.Errorf("learner %s: %d total learners, leaderboard has %d", r.LearnerID, r.TotalLearners, len(rows))
		}
		above := sort.Search(len(scores), func(i int) bool { return scores[i] <= r.Score })
		if r.Rank != above+1 {
			return fmt.Errorf("learner %s: rank %d, want %d", r.LearnerID, r.Rank, above+1)
		}
		if want := ranking.Percentile(r.Rank, r.TotalLearners); r.Percentile != want {
			return fmt.Errorf("learner %s: percentile %d, want %d", r.LearnerID, r.Percentile, want)
		}
	}
	return nil
}
