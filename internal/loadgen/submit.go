package loadgen

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/stylewars/internal/domain/pixel"
	"github.com/okian/stylewars/internal/domain/scoring"
	"github.com/okian/stylewars/pkg/logger"
)

const (
	maxRetries     = 5
	retryBackoff   = 50 * time.Millisecond
	reportInterval = time.Second
)

type outcome int

const (
	outcomeAccepted outcome = iota
	outcomeDuplicate
	outcomeBackpressure
	outcomeFailed
)

// expectations tracks, per player, the best score the service should
// have recorded from accepted submissions.
type expectations struct {
	mu   sync.Mutex
	best map[string]int
}

func newExpectations() *expectations {
	return &expectations{best: make(map[string]int)}
}

func (e *expectations) observe(player string, score int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if prev, ok := e.best[player]; !ok || score > prev {
		e.best[player] = score
	}
}

func (e *expectations) snapshot() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]int, len(e.best))
	for k, v := range e.best {
		out[k] = v
	}
	return out
}

// submitAll sends every plan with a pool of cfg.Workers senders.
func submitAll(ctx context.Context, cfg *Config, ch challengeInfo, target []byte, plans []Plan, stats *Stats) *expectations {
	log := logger.Get()
	log.Info(ctx, "submitting", logger.Int("submissions", len(plans)), logger.Int("workers", cfg.Workers))

	client := newHTTPClient(cfg.Timeout)
	url := cfg.BaseURL + "/submissions"
	exp := newExpectations()

	var sent, accepted, duplicate, backpressured, failed atomic.Int64
	var lastReport atomic.Int64

	count := func(o outcome) {
		sent.Add(1)
		switch o {
		case outcomeAccepted:
			accepted.Add(1)
		case outcomeDuplicate:
			duplicate.Add(1)
		case outcomeBackpressure:
			backpressured.Add(1)
		default:
			failed.Add(1)
		}
	}

	jobs := make(chan Plan, cfg.Workers*2)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				pix := render(target, p)
				body := submission{
					SubmissionID: p.SubmissionID,
					PlayerID:     p.PlayerID,
					ChallengeID:  ch.ID,
					CharsWritten: p.CharsWritten,
					HintsUsed:    p.HintsUsed,
					TS:           time.Now().UTC().Format(time.RFC3339),
					RenderRGBA:   base64.StdEncoding.EncodeToString(pix),
				}

				o, err := submitOne(ctx, client, url, body)
				count(o)
				if o == outcomeAccepted {
					exp.observe(p.PlayerID, scoring.Calculate(scoring.Input{
						Accuracy:     pixel.Compare(pix, target),
						CharsWritten: p.CharsWritten,
						HintsUsed:    p.HintsUsed,
						TargetChars:  ch.TargetChars,
					}))
					if p.Duplicate {
						o, err = submitOne(ctx, client, url, body)
						count(o)
					}
				}
				if err != nil && cfg.Verbose {
					log.Warn(ctx, "submission failed", logger.String("submission", p.SubmissionID), logger.Error(err))
				}

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if now-last >= int64(reportInterval) && lastReport.CompareAndSwap(last, now) {
					log.Info(ctx, "progress",
						logger.Int("sent", int(sent.Load())),
						logger.Int("accepted", int(accepted.Load())),
						logger.Int("duplicate", int(duplicate.Load())),
						logger.Int("failed", int(failed.Load())))
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, p := range plans {
			select {
			case <-ctx.Done():
				return
			case jobs <- p:
			}
		}
	}()
	wg.Wait()

	stats.Sent = int(sent.Load())
	stats.Accepted = int(accepted.Load())
	stats.Duplicate = int(duplicate.Load())
	stats.Backpressured = int(backpressured.Load())
	stats.Failed = int(failed.Load())

	log.Info(ctx, "submission completed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("backpressured", stats.Backpressured),
		logger.Int("failed", stats.Failed))
	return exp
}

// submitOne posts one submission, retrying while the service pushes back.
func submitOne(ctx context.Context, client *HTTPClient, url string, body submission) (outcome, error) {
	backoff := retryBackoff
	for attempt := 0; ; attempt++ {
		resp, err := client.Post(ctx, url, body)
		if err != nil {
			return outcomeFailed, err
		}
		data, err := readResponseBody(resp)
		if err != nil {
			return outcomeFailed, err
		}

		switch resp.StatusCode {
		case http.StatusAccepted:
			return outcomeAccepted, nil
		case http.StatusOK:
			return outcomeDuplicate, nil
		case http.StatusTooManyRequests:
			if attempt >= maxRetries {
				return outcomeBackpressure, errors.New("queue stayed full")
			}
		default:
			return outcomeFailed, &statusError{code: resp.StatusCode, body: string(data)}
		}

		select {
		case <-ctx.Done():
			return outcomeBackpressure, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
