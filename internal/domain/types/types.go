// Package types contains read shapes shared by the service and the HTTP layer.
package types

// Entry is a leaderboard row as returned to clients.
type Entry struct {
	Rank         int     `json:"rank"`
	PlayerID     string  `json:"player_id"`
	Score        int     `json:"score"`
	SubmissionID string  `json:"submission_id,omitempty"`
	Accuracy     float64 `json:"accuracy"`
	CharsWritten int     `json:"chars_written"`
	HintsUsed    int     `json:"hints_used"`
}

// Preview is the synchronous scoring result of POST /score.
type Preview struct {
	Accuracy float64 `json:"accuracy"`
	Score    int     `json:"score"`
	Matched  int     `json:"matched"`
	Total    int     `json:"total"`
}

// ChallengeInfo is the public view of a challenge, without hint text.
type ChallengeInfo struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	TargetChars int    `json:"target_chars"`
	HintCount   int    `json:"hint_count"`
	StartsAt    string `json:"starts_at,omitempty"`
	EndsAt      string `json:"ends_at,omitempty"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}
