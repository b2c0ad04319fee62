// Package dedupe remembers recently applied submission ids so that a
// retried submission is not folded into a ledger twice.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

// Deduper tracks submission ids through two states: claimed while the
// submission is being applied, and committed once it has been applied.
type Deduper interface {
	// Claim reports whether id was already committed. Otherwise the
	// caller now holds id and must Commit or Release it. While another
	// caller holds id, Claim waits for that attempt: a commit makes id
	// seen, a release passes the claim on. It fails only when ctx ends.
	Claim(ctx context.Context, id string) (seen bool, err error)

	// Commit marks a claimed id as applied.
	Commit(ctx context.Context, id string)

	// Release drops a claim without committing, so a retry is applied.
	Release(ctx context.Context, id string)

	// Size returns the number of committed ids.
	Size() int
}

// Scope builds the id recorded for a submission. Submission ids are only
// unique within a learner's course ledger.
func Scope(learnerID, courseID, submissionID string) string {
	return courseID + "\x00" + learnerID + "\x00" + submissionID
}

// inMemoryDeduper keeps committed ids in insertion order and evicts the
// oldest once maxSize is reached. maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	claimed map[string]chan struct{}
	maxSize int
}

// NewInMemoryDeduper creates an in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 100_000,
		seen:    make(map[string]*list.Element),
		order:   list.New(),
		claimed: make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) Claim(ctx context.Context, id string) (bool, error) {
	for {
		d.mu.Lock()
		if _, ok := d.seen[id]; ok {
			d.mu.Unlock()
			return true, nil
		}
		held, busy := d.claimed[id]
		if !busy {
			d.claimed[id] = make(chan struct{})
			d.mu.Unlock()
			return false, nil
		}
		d.mu.Unlock()

		select {
		case <-held:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

func (d *inMemoryDeduper) Commit(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; !ok {
		if d.maxSize > 0 && d.order.Len() >= d.maxSize {
			d.evictOldest()
		}
		d.seen[id] = d.order.PushBack(id)
	}
	d.unclaimLocked(id)
}

func (d *inMemoryDeduper) Release(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unclaimLocked(id)
}

// unclaimLocked wakes every caller waiting on id. d.mu must be held.
func (d *inMemoryDeduper) unclaimLocked(id string) {
	if held, ok := d.claimed[id]; ok {
		delete(d.claimed, id)
		close(held)
	}
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	front := d.order.Front()
	if front == nil {
		return
	}
	d.order.Remove(front)
	delete(d.seen, front.Value.(string))
}

func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.order.Len()
}
