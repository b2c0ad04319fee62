package api

import (
	"context"

	"github.com/okian/scoreboard/pkg/logger"
)

type options struct {
	logger       logger.Logger
	defaultLimit int
	resweepRPS   float64
	resweepBurst int
	ready        func(context.Context) error
}

func defaultOptions() options {
	return options{
		logger:       logger.Nop(),
		defaultLimit: 20,
		resweepRPS:   1,
		resweepBurst: 1,
	}
}

// Option configures the Server.
type Option func(*options)

// WithLogger sets the logger used for failed requests.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.Named("api")
		}
	}
}

// WithDefaultPageLimit sets the leaderboard page size used when the
// request has no limit parameter.
func WithDefaultPageLimit(limit int) Option {
	return func(o *options) {
		if limit > 0 {
			o.defaultLimit = limit
		}
	}
}

// WithResweepRate limits forced resweeps to rps per second with the given
// burst.
func WithResweepRate(rps float64, burst int) Option {
	return func(o *options) {
		if rps > 0 {
			o.resweepRPS = rps
		}
		if burst > 0 {
			o.resweepBurst = burst
		}
	}
}

// WithReadiness sets the check behind GET /readyz, typically the store's
// Ping. Without one the endpoint always answers ok.
func WithReadiness(check func(context.Context) error) Option {
	return func(o *options) { o.ready = check }
}
