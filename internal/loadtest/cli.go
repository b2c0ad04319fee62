package loadtest

import "os"

// ShowHelp prints usage information for the load test tool.
func ShowHelp() {
	os.Stdout.WriteString(`Scoreboard Load Test Tool
=========================

Submits generated assessment results for simulated learners of one course,
then checks that leaderboard and per-learner ranks agree.

Usage:
  go run ./cmd/loadtest -course catalog/go.yaml [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -course string
        Course YAML file the submissions are built from (required)
  -learners int
        Number of simulated learners (default 1000)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -replay float
        Share of submissions sent twice with the same submission id (default 0.05)
  -page int
        Leaderboard page size used for verification (default 100)
  -seed uint
        Seed of the submission generator (default: current time)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Test with default settings
  go run ./cmd/loadtest -course catalog/go.yaml

  # Larger run against another host
  go run ./cmd/loadtest -course catalog/go.yaml -learners 20000 -workers 32 -url http://localhost:8080
`)
}
