// Package loadtest drives a running scoreboard with generated submissions
// and checks the ranks it reports afterwards.
package loadtest

import "time"

// Config holds configuration for a load test run.
type Config struct {
	BaseURL    string        // Base URL of the service
	CoursePath string        // Course YAML file the submissions are built from
	Learners   int           // Number of learners to simulate
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	ReplayRate float64       // Share of submissions sent twice
	PageLimit  int           // Leaderboard page size used for verification
	Seed       uint64        // Seed of the submission generator
	Verbose    bool          // Enable verbose logging
}

// Stats holds run statistics.
type Stats struct {
	SubmissionsGenerated int
	SubmissionsSent      int
	Successful           int
	Duplicate            int
	Rejected             int
	Failed               int
	RanksRetrieved       int
	LeaderboardRows      int
	StartTime            time.Time
	EndTime              time.Time
	Duration             time.Duration
}
