package queue

import "errors"

// Sentinel kinds for enqueue failures.
var (
	ErrFull   = errors.New("sweep queue is full")
	ErrClosed = errors.New("sweep queue is closed")
)
