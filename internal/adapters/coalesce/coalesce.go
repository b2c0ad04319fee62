// Package coalesce tracks which courses already have a rank sweep pending,
// so that a burst of submissions schedules one sweep instead of many.
package coalesce

import (
	"context"
	"sync"
	"time"
)

// Coalescer marks a course as having a pending sweep.
type Coalescer interface {
	// TryMark marks courseID for ttl and reports whether the caller won the
	// mark. A false result means a sweep is already pending.
	TryMark(ctx context.Context, courseID string, ttl time.Duration) (bool, error)
	// Clear drops the mark so the next request schedules a new sweep.
	Clear(ctx context.Context, courseID string) error
	Close() error
}

// Memory is a process-local Coalescer.
type Memory struct {
	mu      sync.Mutex
	pending map[string]time.Time
	now     func() time.Time
}

// NewMemory creates an in-memory coalescer.
func NewMemory() *Memory {
	return &Memory{pending: make(map[string]time.Time), now: time.Now}
}

// TryMark implements Coalescer. Expired marks are treated as absent.
func (m *Memory) TryMark(_ context.Context, courseID string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if exp, ok := m.pending[courseID]; ok && now.Before(exp) {
		return false, nil
	}
	m.pending[courseID] = now.Add(ttl)
	return true, nil
}

// Clear implements Coalescer.
func (m *Memory) Clear(_ context.Context, courseID string) error {
	m.mu.Lock()
	delete(m.pending, courseID)
	m.mu.Unlock()
	return nil
}

// Close implements Coalescer.
func (m *Memory) Close() error { return nil }
