// Package service orchestrates score submissions, rank sweeps and
// leaderboard queries on top of the ledger store and the course catalog.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/okian/scoreboard/internal/adapters/coalesce"
	sweepqueue "github.com/okian/scoreboard/internal/adapters/mq/queue"
	workerpool "github.com/okian/scoreboard/internal/adapters/mq/worker"
	"github.com/okian/scoreboard/internal/adapters/repository"
	"github.com/okian/scoreboard/internal/domain/catalog"
	"github.com/okian/scoreboard/internal/domain/dedupe"
	"github.com/okian/scoreboard/internal/domain/ranking"
	"github.com/okian/scoreboard/pkg/logger"
	"github.com/okian/scoreboard/pkg/metrics"
)

const (
	defaultQueueSize    = 10_000
	defaultDedupeSize   = 100_000
	defaultDebounce     = 500 * time.Millisecond
	defaultMaxPageLimit = 100

	// A pending mark outlives its debounce window by this much, so a mark
	// left behind by a crashed worker expires on its own.
	markGrace = 30 * time.Second
)

// Service implements the operations the HTTP API exposes.
type Service struct {
	mu sync.RWMutex

	store      repository.Store
	catalog    catalog.Catalog
	skillTests catalog.SkillTests
	deduper    dedupe.Deduper
	coalescer  coalesce.Coalescer
	engine     *ranking.Engine
	sweepQueue sweepqueue.Queue
	workerPool *workerpool.Pool

	workerCount  int
	queueSize    int
	dedupeSize   int
	maxPageLimit int
	debounce     time.Duration
	now          func() time.Time

	started bool
	// background tracks best-effort submissions still in flight.
	background sync.WaitGroup

	logger logger.Logger
}

// New constructs a Service over store and the catalog lookups.
func New(store repository.Store, courses catalog.Catalog, skillTests catalog.SkillTests, opts ...Option) *Service {
	s := &Service{
		store:        store,
		catalog:      courses,
		skillTests:   skillTests,
		coalescer:    coalesce.NewMemory(),
		workerCount:  runtime.NumCPU(),
		queueSize:    defaultQueueSize,
		dedupeSize:   defaultDedupeSize,
		maxPageLimit: defaultMaxPageLimit,
		debounce:     defaultDebounce,
		now:          time.Now,
		logger:       logger.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.Named("service")
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.engine = ranking.NewEngine(store,
		ranking.WithLogger(s.logger),
		ranking.WithClock(s.now),
	)
	return s
}

// Start creates the sweep queue and starts the sweep workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting scoreboard service...")

	s.sweepQueue = sweepqueue.NewInMemoryQueue(sweepqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.sweepQueue, s.engine, s.coalescer,
		workerpool.WithLogger(s.logger),
	)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "scoreboard service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Duration("sweepDebounce", s.debounce),
	)
	return nil
}

// Stop waits for in-flight best-effort submissions, then drains the sweep
// queue and stops the workers. The store is owned by the caller and stays
// open.
func (s *Service) Stop(ctx context.Context) error {
	s.background.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping scoreboard service...")

	var err error
	if s.workerPool != nil {
		err = s.workerPool.Shutdown(ctx)
	}

	s.started = false
	s.logger.Info(ctx, "scoreboard service stopped")
	return err
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"dedupeSize":      s.dedupeSize,
		"dedupeEntries":   s.deduper.Size(),
		"sweepDebounceMs": s.debounce.Milliseconds(),
		"maxPageLimit":    s.maxPageLimit,
	}

	if s.started {
		queueLen := s.sweepQueue.Len()
		stats["queueLength"] = queueLen
		metrics.UpdateQueueSize(queueLen)
	}

	return stats
}

func (s *Service) queue() sweepqueue.Queue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil
	}
	return s.sweepQueue
}
