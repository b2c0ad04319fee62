package service

import "errors"

// ErrNotStarted is returned when sweeps are requested before Start or
// after Stop.
var ErrNotStarted = errors.New("service not started")
