package loadgen

import (
	"bytes"
	"context"
	"errors"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/stylewars/internal/adapters/raster"
	"github.com/okian/stylewars/pkg/logger"
)

const (
	directoryPermission = 0o750
	filePermission      = 0o600
	pollInterval        = 100 * time.Millisecond
)

// Run executes a complete load run: fetch the challenge, plan and send the
// submissions, wait for scoring, then verify the boards.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("challenge", cfg.ChallengeID),
		logger.Int("submissions", cfg.Submissions),
		logger.Int("players", cfg.Players),
		logger.Int("workers", cfg.Workers))

	if cfg.Submissions < 1 || cfg.Players < 1 || cfg.Workers < 1 {
		return stats, errors.New("submissions, players and workers must be positive")
	}

	ch, target, err := fetchChallenge(ctx, cfg)
	if err != nil {
		return stats, fmt.Errorf("challenge lookup failed: %w", err)
	}

	plans := plan(ctx, cfg)
	stats.Planned = len(plans)

	exp := submitAll(ctx, cfg, ch, target, plans, stats)

	log.Info(ctx, "waiting for submissions to be processed")
	if err := waitDrained(ctx, cfg); err != nil {
		return stats, err
	}

	rankErr := verifyRankings(ctx, cfg, exp.snapshot(), stats)
	rows, boardErr := verifyLeaderboard(ctx, cfg, stats)

	if cfg.OutputFile != "" {
		if err := saveReport(ctx, cfg.OutputFile, plans, rows); err != nil {
			log.Warn(ctx, "failed to save report", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if rankErr != nil {
		return stats, rankErr
	}
	return stats, boardErr
}

// fetchChallenge reads the challenge metadata and its target frame.
func fetchChallenge(ctx context.Context, cfg *Config) (challengeInfo, []byte, error) {
	client := newHTTPClient(cfg.Timeout)
	base := cfg.BaseURL + "/challenges/" + url.PathEscape(cfg.ChallengeID)

	var ch challengeInfo
	if err := client.getJSON(ctx, base, &ch); err != nil {
		return ch, nil, err
	}
	data, err := client.getBytes(ctx, base+"/target.png")
	if err != nil {
		return ch, nil, err
	}
	img, err := raster.Decode(bytes.NewReader(data))
	if err != nil {
		return ch, nil, err
	}
	return ch, img.Pix, nil
}

type serviceStats struct {
	QueueLength int   `json:"queueLength"`
	Processed   int64 `json:"processed"`
}

// waitDrained polls /stats until the queue is empty and the processed
// counter held still for two polls, or cfg.Settle elapses.
func waitDrained(ctx context.Context, cfg *Config) error {
	client := newHTTPClient(cfg.Timeout)
	ctx, cancel := context.WithTimeout(ctx, cfg.Settle)
	defer cancel()

	last, still := int64(-1), 0
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		var st serviceStats
		if err := client.getJSON(ctx, cfg.BaseURL+"/stats", &st); err == nil {
			if st.QueueLength == 0 && st.Processed == last {
				still++
			} else {
				still = 0
			}
			if still >= 2 {
				return nil
			}
			last = st.Processed
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("queue did not drain within %s: %w", cfg.Settle, ctx.Err())
		case <-ticker.C:
		}
	}
}

type report struct {
	Plans       []Plan  `json:"plans"`
	Leaderboard []Entry `json:"leaderboard"`
}

// saveReport writes the run plan and final leaderboard as JSON.
func saveReport(ctx context.Context, filename string, plans []Plan, rows []Entry) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(report{Plans: plans, Leaderboard: rows}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	logger.Get().Info(ctx, "report saved", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Sent) / stats.Duration.Seconds()
	}
	logger.Get().Info(ctx, "final statistics",
		logger.Int("planned", stats.Planned),
		logger.Int("sent", stats.Sent),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("backpressured", stats.Backpressured),
		logger.Int("failed", stats.Failed),
		logger.Int("rankingsChecked", stats.RankingsChecked),
		logger.Int("rankingMismatches", stats.RankingMismatches),
		logger.Int("globalMismatches", stats.GlobalMismatches),
		logger.Int("leaderboardRows", stats.LeaderboardRows),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("submissionsPerSecond", perSecond))
}
