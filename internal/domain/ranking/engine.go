package ranking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/scoreboard/internal/domain/ledger"
	"github.com/okian/scoreboard/pkg/logger"
	"github.com/okian/scoreboard/pkg/metrics"
)

// Source is the slice of the ledger store a sweep needs.
type Source interface {
	FindAllForCourse(ctx context.Context, courseID string) ([]*ledger.Entry, error)
	SaveRanks(ctx context.Context, courseID string, assignments []Assignment) error
}

// SweepResult describes one completed sweep.
type SweepResult struct {
	CourseID string
	Entries  int
	Duration time.Duration
	// Shared is set when a pass that started after the call already
	// covered it, so no new pass ran.
	Shared bool
}

// courseSweeps serializes passes of one course. requested counts calls;
// covered is the highest call number whose writes a finished pass saw.
type courseSweeps struct {
	sem       chan struct{}
	mu        sync.Mutex
	requested uint64
	covered   uint64
	last      SweepResult
}

// Engine recomputes and persists ranks for a course.
type Engine struct {
	source Source
	log    logger.Logger
	now    func() time.Time

	mu      sync.Mutex
	courses map[string]*courseSweeps
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a rank engine over source.
func NewEngine(source Source, opts ...Option) *Engine {
	e := &Engine{
		source: source,
		log:     logger.Nop(),
		now:     time.Now,
		courses: make(map[string]*courseSweeps),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sweep loads every entry of courseID, assigns ranks and persists them.
// Passes of one course run one at a time. A call returns without a new
// pass only when a pass that started after the call has completed, so
// every score written before Sweep is reflected in the ranks it leaves.
func (e *Engine) Sweep(ctx context.Context, courseID string) (SweepResult, error) {
	cs := e.course(courseID)

	cs.mu.Lock()
	cs.requested++
	call := cs.requested
	cs.mu.Unlock()

	select {
	case cs.sem <- struct{}{}:
	case <-ctx.Done():
		return SweepResult{}, fmt.Errorf("sweep %s: %w", courseID, ctx.Err())
	}
	defer func() { <-cs.sem }()

	cs.mu.Lock()
	if cs.covered >= call {
		res := cs.last
		cs.mu.Unlock()
		res.Shared = true
		return res, nil
	}
	upTo := cs.requested
	cs.mu.Unlock()

	res, err := e.sweep(ctx, courseID)
	if err != nil {
		return SweepResult{}, err
	}

	cs.mu.Lock()
	cs.covered = upTo
	cs.last = res
	cs.mu.Unlock()
	return res, nil
}

func (e *Engine) course(courseID string) *courseSweeps {
	e.mu.Lock()
	defer e.mu.Unlock()
	cs, ok := e.courses[courseID]
	if !ok {
		cs = &courseSweeps{sem: make(chan struct{}, 1)}
		e.courses[courseID] = cs
	}
	return cs
}

func (e *Engine) sweep(ctx context.Context, courseID string) (SweepResult, error) {
	start := e.now()

	entries, err := e.source.FindAllForCourse(ctx, courseID)
	if err != nil {
		return SweepResult{}, fmt.Errorf("sweep %s: load entries: %w", courseID, err)
	}

	assignments := Assign(entries)
	if err := e.source.SaveRanks(ctx, courseID, assignments); err != nil {
		return SweepResult{}, fmt.Errorf("sweep %s: save ranks: %w", courseID, err)
	}

	res := SweepResult{
		CourseID: courseID,
		Entries:  len(entries),
		Duration: e.now().Sub(start),
	}
	metrics.RecordSweepDuration(float64(res.Duration.Milliseconds()))
	metrics.RecordSweepEntries(res.Entries)
	e.log.Debug(ctx, "rank sweep completed",
		logger.String("course_id", courseID),
		logger.Int("entries", res.Entries),
		logger.Duration("duration", res.Duration),
	)
	return res, nil
}
