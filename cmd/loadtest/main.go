package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/scoreboard/internal/loadtest"
	"github.com/okian/scoreboard/pkg/logger"
)

// Default configuration constants.
const (
	defaultLearners    = 1000
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultReplayRate  = 0.05
	defaultPageLimit   = 100
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		course    = flag.String("course", "", "Course YAML file the submissions are built from")
		learners  = flag.Int("learners", defaultLearners, "Number of simulated learners")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		replay    = flag.Float64("replay", defaultReplayRate, "Share of submissions sent twice")
		pageLimit = flag.Int("page", defaultPageLimit, "Leaderboard page size used for verification")
		seed      = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Seed of the submission generator")
		verbose   = flag.Bool("verbose", false, "Enable verbose logging")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help || *course == "" {
		loadtest.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}
	log := logger.Named("loadtest")

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	cfg := &loadtest.Config{
		BaseURL:    *baseURL,
		CoursePath: *course,
		Learners:   *learners,
		Workers:    *workers,
		Timeout:    *timeout,
		ReplayRate: *replay,
		PageLimit:  *pageLimit,
		Seed:       *seed,
		Verbose:    *verbose,
	}

	if _, err := loadtest.Run(ctx, cfg, log); err != nil {
		log.Error(ctx, "load test failed", logger.Error(err))
		cancel()
		os.Exit(1)
	}
}
