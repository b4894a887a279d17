package repository

import "errors"

// Sentinel kinds for leaderboard errors.
var (
	ErrNotFound     = errors.New("player not found")
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
	ErrInvalidDelta = errors.New("score delta must be positive")
	ErrClosed       = errors.New("leaderboards closed")
)
