// Package model contains domain models passed between layers.
package model

import "time"

// Submission is one scored attempt at a challenge as it travels through the
// queue. Render holds the player's frame as flattened RGBA.
type Submission struct {
	SubmissionID string    // unique id for idempotency
	PlayerID     string    // who submitted
	ChallengeID  string    // which target to compare against
	CharsWritten int       // CSS length the player wrote
	HintsUsed    int       // hints revealed before submitting
	Render       []byte    // RGBA frame, 4 bytes per pixel
	SubmittedAt  time.Time // client or server timestamp
}

// Evaluation is the scoring outcome for a submission.
type Evaluation struct {
	SubmissionID string
	PlayerID     string
	ChallengeID  string
	Accuracy     float64
	Score        int
	CharsWritten int
	HintsUsed    int
}
