// Package config defines service configuration and its loading from
// defaults, an optional YAML file and the environment.
package config

import (
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// PublicURL is the externally visible base URL used in share links.
	// Empty means derive it from the request.
	PublicURL string `koanf:"public_url"`

	// SubmissionQueueSize bounds the in-memory submission queue. Each
	// queued submission holds a full frame, roughly 480 KB.
	SubmissionQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of scoring workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the submission id cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// StreamTopN is the number of rows pushed to leaderboard stream clients.
	StreamTopN int `koanf:"stream_top_n"`

	// ChallengesManifest points at a YAML manifest of challenges to preload.
	ChallengesManifest string `koanf:"challenges_manifest"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		SubmissionQueueSize: 1024,
		WorkerCount:         runtime.NumCPU() * 2,
		DedupeSize:          500_000,
		MaxLeaderboardLimit: 100,
		StreamTopN:          10,
	}
}
