package repository

import "time"

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithClock overrides time.Now for entry creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLockStripes sets the number of per-key mutex stripes.
func WithLockStripes(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.stripes = n
		}
	}
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithPostgresClock overrides time.Now for entry creation timestamps.
func WithPostgresClock(now func() time.Time) PostgresOption {
	return func(s *PostgresStore) {
		if now != nil {
			s.now = now
		}
	}
}
