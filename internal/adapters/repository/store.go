// Package repository keeps the leaderboards: one best-score board per
// challenge plus the global board.
package repository

import (
	"context"

	"github.com/okian/stylewars/internal/domain/types"
)

// GlobalBoard is the id of the board ranking players by the sum of their
// per-challenge bests.
const GlobalBoard = "global"

// Entry is a ranked leaderboard row.
type Entry = types.Entry

// Record is what a board remembers about a player's best.
type Record struct {
	Score        int
	SubmissionID string
	Accuracy     float64
	CharsWritten int
	HintsUsed    int
}

// Store provides read/write access to one leaderboard.
type Store interface {
	// UpdateBest stores rec when its score beats the player's current best.
	// It reports whether it did and returns the record it replaced, which is
	// the zero Record for a first submission.
	UpdateBest(ctx context.Context, playerID string, rec Record) (improved bool, prev Record, err error)

	// AddScore raises the player's score by delta and stores rec's metadata
	// with the new total. delta must be positive.
	AddScore(ctx context.Context, playerID string, delta int, rec Record) (Record, error)

	// Rank returns the player's row. Ranks are dense: equal scores share a
	// rank and the next lower score gets the following one.
	// Returns ErrNotFound if the player has no score on this board.
	Rank(ctx context.Context, playerID string) (Entry, error)

	// TopN returns up to n rows ordered by score desc, then player id asc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of players on the board.
	Count(ctx context.Context) int
}
