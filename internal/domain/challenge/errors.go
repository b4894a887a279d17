package challenge

import "errors"

// Sentinel kinds for catalog errors.
var (
	ErrNotFound   = errors.New("challenge not found")
	ErrExists     = errors.New("challenge already exists")
	ErrInvalid    = errors.New("invalid challenge")
	ErrNotStarted = errors.New("contest has not started")
	ErrClosed     = errors.New("contest is closed")
	ErrNoHint     = errors.New("no such hint")
)
