package loadgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/okian/stylewars/pkg/logger"
)

// ErrVerification reports that the service disagrees with the scores the
// run computed locally.
var ErrVerification = errors.New("leaderboard verification failed")

// verifyRankings checks every player's challenge and global rows against
// the expected bests. A player whose best is zero must not be on the
// global board.
func verifyRankings(ctx context.Context, cfg *Config, want map[string]int, stats *Stats) error {
	log := logger.Get()
	log.Info(ctx, "verifying rankings", logger.Int("players", len(want)))

	client := newHTTPClient(cfg.Timeout)
	players := make(chan string, cfg.Workers*2)
	var board, global, checked atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range players {
				checked.Add(1)
				base := cfg.BaseURL + "/rank/" + url.PathEscape(p)

				var e Entry
				err := client.getJSON(ctx, base+"?challenge="+url.QueryEscape(cfg.ChallengeID), &e)
				if err != nil || e.Score != want[p] {
					board.Add(1)
					if cfg.Verbose {
						log.Warn(ctx, "challenge rank mismatch", logger.String("player", p),
							logger.Int("want", want[p]), logger.Int("got", e.Score), logger.Error(err))
					}
				}

				var g Entry
				err = client.getJSON(ctx, base, &g)
				var se *statusError
				switch {
				case want[p] == 0 && errors.As(err, &se) && se.code == http.StatusNotFound:
				case err == nil && want[p] > 0 && g.Score == want[p]:
				default:
					global.Add(1)
					if cfg.Verbose {
						log.Warn(ctx, "global rank mismatch", logger.String("player", p),
							logger.Int("want", want[p]), logger.Int("got", g.Score), logger.Error(err))
					}
				}
			}
		}()
	}

	go func() {
		defer close(players)
		for p := range want {
			select {
			case <-ctx.Done():
				return
			case players <- p:
			}
		}
	}()
	wg.Wait()

	stats.RankingsChecked = int(checked.Load())
	stats.RankingMismatches = int(board.Load())
	stats.GlobalMismatches = int(global.Load())
	if stats.RankingMismatches > 0 || stats.GlobalMismatches > 0 {
		return fmt.Errorf("%w: %d challenge and %d global mismatches out of %d players",
			ErrVerification, stats.RankingMismatches, stats.GlobalMismatches, stats.RankingsChecked)
	}
	log.Info(ctx, "rankings verified", logger.Int("players", stats.RankingsChecked))
	return nil
}

// verifyLeaderboard fetches the top rows of the challenge board and checks
// ordering (score desc, player id asc) and dense ranks.
func verifyLeaderboard(ctx context.Context, cfg *Config, stats *Stats) ([]Entry, error) {
	client := newHTTPClient(cfg.Timeout)
	u := fmt.Sprintf("%s/leaderboard?limit=%d&challenge=%s", cfg.BaseURL, cfg.TopN, url.QueryEscape(cfg.ChallengeID))

	var rows []Entry
	if err := client.getJSON(ctx, u, &rows); err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	stats.LeaderboardRows = len(rows)
	if err := checkOrder(rows); err != nil {
		return rows, fmt.Errorf("%w: %w", ErrVerification, err)
	}
	logger.Get().Info(ctx, "leaderboard verified", logger.Int("rows", len(rows)))
	return rows, nil
}

// checkOrder reports the first row that breaks leaderboard ordering.
func checkOrder(rows []Entry) error {
	sorted := sort.SliceIsSorted(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].PlayerID < rows[j].PlayerID
	})
	if !sorted {
		return errors.New("rows are not ordered by score then player id")
	}
	for i, r := range rows {
		want := 1
		if i > 0 {
			want = rows[i-1].Rank
			if r.Score != rows[i-1].Score {
				want++
			}
		}
		if r.Rank != want {
			return fmt.Errorf("row %d (%s) has rank %d, want %d", i, r.PlayerID, r.Rank, want)
		}
	}
	return nil
}
