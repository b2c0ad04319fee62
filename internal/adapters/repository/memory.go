package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/okian/scoreboard/internal/domain/ledger"
	"github.com/okian/scoreboard/internal/domain/ranking"
	"github.com/okian/scoreboard/pkg/metrics"
)

const backendMemory = "memory"

// MemoryStore keeps ledger entries in process memory.
//
// Writers of one key are serialized by a striped mutex; mu guards the maps
// and the per-course indexes. Stored entries are never handed out.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[ledger.Key]*ledger.Entry
	courses map[string]*courseIndex

	stripes int
	locks   []sync.Mutex
	now     func() time.Time
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[ledger.Key]*ledger.Entry),
		courses: make(map[string]*courseIndex),
		stripes: 256,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.locks = make([]sync.Mutex, s.stripes)
	return s
}

func (s *MemoryStore) lockFor(k ledger.Key) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(k.String()))
	return &s.locks[h.Sum32()%uint32(len(s.locks))]
}

func observe(backend, op string, start time.Time) {
	metrics.RecordStoreLatency(backend, op, float64(time.Since(start).Microseconds())/1000)
}

// GetOrCreate implements Store.
func (s *MemoryStore) GetOrCreate(ctx context.Context, learnerID, courseID string) (*ledger.Entry, error) {
	defer observe(backendMemory, "get_or_create", time.Now())
	if err := checkKey(learnerID, courseID); err != nil {
		return nil, err
	}
	k := ledger.Key{LearnerID: learnerID, CourseID: courseID}

	l := s.lockFor(k)
	l.Lock()
	defer l.Unlock()
	return s.getOrCreateLocked(k), nil
}

// getOrCreateLocked requires the stripe lock of k.
func (s *MemoryStore) getOrCreateLocked(k ledger.Key) *ledger.Entry {
	s.mu.RLock()
	cur, ok := s.entries[k]
	if ok {
		c := cur.Clone()
		s.mu.RUnlock()
		return c
	}
	s.mu.RUnlock()

	e := ledger.New(k, s.now())
	e.Version = 1
	s.mu.Lock()
	s.entries[k] = e
	s.indexLocked(e)
	s.mu.Unlock()
	return e.Clone()
}

// Find implements Store.
func (s *MemoryStore) Find(ctx context.Context, learnerID, courseID string) (*ledger.Entry, error) {
	defer observe(backendMemory, "find", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[ledger.Key{LearnerID: learnerID, CourseID: courseID}]
	if !ok {
		return nil, fmt.Errorf("entry %s/%s: %w", courseID, learnerID, ErrNotFound)
	}
	return e.Clone(), nil
}

// FindAllForCourse implements Store.
func (s *MemoryStore) FindAllForCourse(ctx context.Context, courseID string) ([]*ledger.Entry, error) {
	defer observe(backendMemory, "find_all", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	ix, ok := s.courses[courseID]
	if !ok {
		return nil, nil
	}
	return s.cloneIDsLocked(courseID, ix.slice(0, ix.len())), nil
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, e *ledger.Entry) error {
	defer observe(backendMemory, "save", time.Now())
	if err := checkKey(e.LearnerID, e.CourseID); err != nil {
		return err
	}
	k := e.Key()

	l := s.lockFor(k)
	l.Lock()
	defer l.Unlock()
	return s.putLocked(e)
}

// putLocked requires the stripe lock of e's key.
func (s *MemoryStore) putLocked(e *ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := e.Key()
	cur, ok := s.entries[k]
	var stored int64
	if ok {
		stored = cur.Version
	}
	if e.Version != stored {
		metrics.RecordStoreError(backendMemory, "save")
		return fmt.Errorf("entry %s at version %d, stored %d: %w", k, e.Version, stored, ErrVersionConflict)
	}

	e.Version++
	next := e.Clone()
	if ok {
		next.Rank = cur.Rank
		next.Percentile = cur.Percentile
	}
	s.entries[k] = next
	s.indexLocked(next)
	return nil
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, learnerID, courseID string, fn UpdateFunc) (*ledger.Entry, error) {
	defer observe(backendMemory, "update", time.Now())
	if err := checkKey(learnerID, courseID); err != nil {
		return nil, err
	}
	k := ledger.Key{LearnerID: learnerID, CourseID: courseID}

	l := s.lockFor(k)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e := s.getOrCreateLocked(k)
	if err := fn(e); err != nil {
		return nil, err
	}
	if err := s.putLocked(e); err != nil {
		return nil, err
	}
	return e, nil
}

// SaveRanks implements Store. Unknown learners are skipped.
func (s *MemoryStore) SaveRanks(ctx context.Context, courseID string, assignments []ranking.Assignment) error {
	defer observe(backendMemory, "save_ranks", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range assignments {
		if e, ok := s.entries[ledger.Key{LearnerID: a.LearnerID, CourseID: courseID}]; ok {
			e.Rank = a.Rank
			e.Percentile = a.Percentile
		}
	}
	return nil
}

// Page implements Store.
func (s *MemoryStore) Page(ctx context.Context, courseID string, offset, limit int) ([]*ledger.Entry, error) {
	defer observe(backendMemory, "page", time.Now())
	if err := checkPage(offset, limit); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ix, ok := s.courses[courseID]
	if !ok {
		return []*ledger.Entry{}, nil
	}
	return s.cloneIDsLocked(courseID, ix.slice(offset, limit)), nil
}

// Count implements Store.
func (s *MemoryStore) Count(ctx context.Context, courseID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ix, ok := s.courses[courseID]; ok {
		return ix.len(), nil
	}
	return 0, nil
}

// CountAbove implements Store.
func (s *MemoryStore) CountAbove(ctx context.Context, courseID string, score float64) (int, error) {
	defer observe(backendMemory, "count_above", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ix, ok := s.courses[courseID]; ok {
		return ix.countAbove(score), nil
	}
	return 0, nil
}

// Len returns the number of entries across all courses.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) indexLocked(e *ledger.Entry) {
	ix, ok := s.courses[e.CourseID]
	if !ok {
		ix = newCourseIndex()
		s.courses[e.CourseID] = ix
	}
	ix.upsert(e)
}

func (s *MemoryStore) cloneIDsLocked(courseID string, ids []string) []*ledger.Entry {
	out := make([]*ledger.Entry, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.entries[ledger.Key{LearnerID: id, CourseID: courseID}]; ok {
			out = append(out, e.Clone())
		}
	}
	return out
}
