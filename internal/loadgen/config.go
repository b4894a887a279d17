// Package loadgen drives a running scoring service over HTTP and checks
// that the leaderboards it ends up with match locally computed scores.
package loadgen

import "time"

// Config holds configuration for a load run.
type Config struct {
	BaseURL     string        // Base URL of the service
	ChallengeID string        // Challenge every submission targets
	Submissions int           // Number of distinct submissions to send
	Players     int           // Number of distinct players
	Workers     int           // Number of concurrent senders
	TopN        int           // Leaderboard rows to fetch and check
	DupRate     float64       // Share of submissions re-sent with the same id
	Timeout     time.Duration // HTTP request timeout
	Settle      time.Duration // Longest wait for the queue to drain
	Seed        uint64        // Seed for the submission plan
	OutputFile  string        // Optional JSON report of the plan
	Verbose     bool          // Log every failure
}

// Plan describes one submission. The render is produced from the target
// when the submission is sent.
type Plan struct {
	SubmissionID string  `json:"submission_id"`
	PlayerID     string  `json:"player_id"`
	Mismatch     float64 `json:"mismatch"` // share of pixels to break
	Offset       int     `json:"offset"`   // first broken pixel
	CharsWritten int     `json:"chars_written"`
	HintsUsed    int     `json:"hints_used"`
	Duplicate    bool    `json:"duplicate"` // send twice
}

// submission mirrors the JSON body of POST /submissions.
type submission struct {
	SubmissionID string `json:"submission_id"`
	PlayerID     string `json:"player_id"`
	ChallengeID  string `json:"challenge_id"`
	CharsWritten int    `json:"chars_written"`
	HintsUsed    int    `json:"hints_used"`
	TS           string `json:"ts"`
	RenderRGBA   string `json:"render_rgba"`
}

// Entry mirrors a leaderboard row.
type Entry struct {
	Rank     int     `json:"rank"`
	PlayerID string  `json:"player_id"`
	Score    int     `json:"score"`
	Accuracy float64 `json:"accuracy"`
}

type challengeInfo struct {
	ID          string `json:"id"`
	TargetChars int    `json:"target_chars"`
}

// AckResponse represents the response from submission intake.
type AckResponse struct {
	Status       string `json:"status"`
	Duplicate    bool   `json:"duplicate"`
	SubmissionID string `json:"submission_id"`
}

// Stats holds run statistics.
type Stats struct {
	Planned           int
	Sent              int
	Accepted          int
	Duplicate         int
	Backpressured     int
	Failed            int
	RankingsChecked   int
	RankingMismatches int
	GlobalMismatches  int
	LeaderboardRows   int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
