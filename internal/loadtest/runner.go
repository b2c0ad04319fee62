package loadtest

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/scoreboard/internal/adapters/catalog"
	service "github.com/okian/scoreboard/internal/app"
	"github.com/okian/scoreboard/pkg/logger"
)

// Run executes a complete load test: submit, resweep, read back, verify.
func Run(ctx context.Context, cfg *Config, log logger.Logger) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	c := newClient(cfg.BaseURL, &http.Client{Timeout: cfg.Timeout})

	log.Info(ctx, "starting scoreboard load test",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("course", cfg.CoursePath),
		logger.Int("learners", cfg.Learners),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
	)

	if err := c.health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	course, err := catalog.ReadCourse(cfg.CoursePath)
	if err != nil {
		return stats, fmt.Errorf("reading course: %w", err)
	}

	gen := newGenerator(course, cfg.Seed, cfg.ReplayRate)
	learners := make([]string, cfg.Learners)
	var subs []service.Submission
	for i := range learners {
		learners[i] = uuid.NewString()
		subs = append(subs, gen.learner(learners[i])...)
	}
	stats.SubmissionsGenerated = len(subs)
	log.Info(ctx, "generated submissions", logger.Int("count", len(subs)))

	submitAll(ctx, c, cfg, subs, stats, log)

	if err := c.resweep(ctx, course.ID); err != nil {
		log.Warn(ctx, "forced resweep failed; ranks are read live anyway", logger.Error(err))
	}

	ranks, err := fetchRanks(ctx, c, cfg, course.ID, learners, stats, log)
	if err != nil {
		return stats, fmt.Errorf("rank retrieval failed: %w", err)
	}

	rows, err := fetchLeaderboard(ctx, c, course.ID, cfg.PageLimit)
	if err != nil {
		return stats, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	stats.LeaderboardRows = len(rows)

	if err := verifyLeaderboard(rows); err != nil {
		return stats, fmt.Errorf("leaderboard verification failed: %w", err)
	}
	if err := verifyRanks(ranks, rows); err != nil {
		return stats, fmt.Errorf("rank verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, nil
}

func submitAll(ctx context.Context, c *client, cfg *Config, subs []service.Submission, stats *Stats, log logger.Logger) {
	var sent, ok, dup, rejected, failed int64

	var g errgroup.Group
	g.SetLimit(max(cfg.Workers, 1))
	for _, sub := range subs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			atomic.AddInt64(&sent, 1)
			switch c.submit(ctx, sub) {
			case outcomeSuccess:
				atomic.AddInt64(&ok, 1)
			case outcomeDuplicate:
				atomic.AddInt64(&dup, 1)
			case outcomeRejected:
				atomic.AddInt64(&rejected, 1)
				if cfg.Verbose {
					log.Debug(ctx, "submission rejected", logger.String("learner_id", sub.LearnerID), logger.String("kind", string(sub.Kind)))
				}
			default:
				atomic.AddInt64(&failed, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.SubmissionsSent = int(sent)
	stats.Successful = int(ok)
	stats.Duplicate = int(dup)
	stats.Rejected = int(rejected)
	stats.Failed = int(failed)
	log.Info(ctx, "submission phase completed",
		logger.Int("successful", stats.Successful),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
	)
}

func fetchRanks(ctx context.Context, c *client, cfg *Config, courseID string, learners []string, stats *Stats, log logger.Logger) ([]service.RankInfo, error) {
	ranks := make([]service.RankInfo, len(learners))
	errs := make([]error, len(learners))

	var g errgroup.Group
	g.SetLimit(max(cfg.Workers, 1))
	for i := range learners {
		g.Go(func() error {
			ranks[i], errs[i] = c.rank(ctx, courseID, learners[i])
			return nil
		})
	}
	_ = g.Wait()

	out := ranks[:0]
	for i, r := range ranks {
		if errs[i] != nil {
			log.Warn(ctx, "rank lookup failed", logger.String("learner_id", learners[i]), logger.Error(errs[i]))
			continue
		}
		out = append(out, r)
	}
	stats.RanksRetrieved = len(out)
	if len(out) == 0 {
		return nil, fmt.Errorf("no ranks retrieved")
	}
	return out, nil
}

func fetchLeaderboard(ctx context.Context, c *client, courseID string, limit int) ([]service.LeaderboardRow, error) {
	var rows []service.LeaderboardRow
	for page := 1; ; page++ {
		p, err := c.leaderboard(ctx, courseID, page, limit)
		if err != nil {
			return nil, err
		}
		rows = append(rows, p.Entries...)
		if page >= p.TotalPages || len(p.Entries) == 0 {
			return rows, nil
		}
	}
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.SubmissionsSent) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("submissionsGenerated", stats.SubmissionsGenerated),
		logger.Int("submissionsSent", stats.SubmissionsSent),
		logger.Int("successful", stats.Successful),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
		logger.Int("ranksRetrieved", stats.RanksRetrieved),
		logger.Int("leaderboardRows", stats.LeaderboardRows),
		logger.Duration("duration", stats.Duration),
		logger.Float64("submissionsPerSecond", perSecond),
	)
}
