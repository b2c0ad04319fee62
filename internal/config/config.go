// Package config defines service configuration and its loading rules.
//
// Values are layered: defaults from New, then an optional YAML file, then
// SCOREBOARD_* environment variables.
package config

import (
	"runtime"
)

// Backend selectors.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	CoalescerMemory = "memory"
	CoalescerRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Store selects the ledger backend: memory or postgres.
	Store string `koanf:"store"`

	// DatabaseURL is the PostgreSQL DSN, required when Store is postgres.
	DatabaseURL string `koanf:"database_url"`

	// DBMaxConns and DBMinConns size the pgx pool.
	DBMaxConns int `koanf:"db_max_conns"`
	DBMinConns int `koanf:"db_min_conns"`

	// Coalescer selects where pending-sweep marks live: memory or redis.
	Coalescer string `koanf:"coalescer"`

	// RedisURL is required when Coalescer is redis.
	RedisURL string `koanf:"redis_url"`

	// CatalogDir points at the directory of course YAML files.
	CatalogDir string `koanf:"catalog_dir"`

	// SweepQueueSize bounds the in-memory sweep request queue.
	SweepQueueSize int `koanf:"sweep_queue_size"`

	// SweepWorkers sets the number of rank sweep workers.
	SweepWorkers int `koanf:"sweep_workers"`

	// SweepDebounceMS is the window in which repeated sweep requests for
	// one course collapse into a single sweep.
	SweepDebounceMS int `koanf:"sweep_debounce_ms"`

	// DedupeSize bounds the remembered submission ids.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxPageLimit caps the leaderboard ?limit parameter.
	MaxPageLimit int `koanf:"max_page_limit"`

	// ResweepRPS limits forced resweeps per second across the process.
	ResweepRPS float64 `koanf:"resweep_rps"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		Store:           StoreMemory,
		DBMaxConns:      10,
		DBMinConns:      2,
		Coalescer:       CoalescerMemory,
		CatalogDir:      "./catalog",
		SweepQueueSize:  10_000,
		SweepWorkers:    runtime.NumCPU(),
		SweepDebounceMS: 2_000,
		DedupeSize:      100_000,
		MaxPageLimit:    100,
		ResweepRPS:      1,
	}
}
