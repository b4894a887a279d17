// Package worker scores queued submissions and applies them to the
// leaderboards.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/stylewars/internal/adapters/repository"
	"github.com/okian/stylewars/internal/domain/model"
	"github.com/okian/stylewars/pkg/logger"
	"github.com/okian/stylewars/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2 // scoring is CPU bound
	metricsUpdateInterval   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Scorer evaluates a submission.
type Scorer interface {
	Evaluate(ctx context.Context, sub model.Submission) (model.Evaluation, error)
}

// Boards gives access to the per-challenge and global leaderboards.
type Boards interface {
	Board(id string) (repository.Store, error)
	Global() repository.Store
}

// Publisher is told which board changed.
type Publisher interface {
	Publish(ctx context.Context, boardID string)
}

// Queue is where workers read submissions from.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Submission
}

// Worker processes submissions until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the submission in flight.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	scorer    Scorer
	boards    Boards
	publisher Publisher
	name      string
	processed *atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(queue Queue, scorer Scorer, boards Boards, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		scorer:    scorer,
		boards:    boards,
		name:      "worker",
		processed: new(atomic.Int64),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Named("worker")
	}
	w.logger = w.logger.With(logger.String("worker", w.name))
	return w
}

// Run processes submissions until ctx ends, Shutdown is called, or the
// queue is closed and drained.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	subs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case sub, ok := <-subs:
			if !ok {
				return
			}
			if err := w.process(ctx, sub); err != nil {
				w.logger.Error(ctx, "submission failed",
					logger.String("submission", sub.SubmissionID),
					logger.Error(err))
			}
			w.processed.Add(1)
		}
	}
}

// Shutdown stops the worker and waits for it.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process scores one submission and applies it. The global board only
// moves when the player's best on the challenge improved, by exactly the
// improvement, so it always holds the sum of per-challenge bests.
func (w *InMemoryWorker) process(ctx context.Context, sub model.Submission) error { //nolint:gocritic // hugeParam: received by value from the queue
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	ev, err := w.scorer.Evaluate(ctx, sub)
	if err != nil {
		w.failed("scoring_error")
		return fmt.Errorf("score: %w", err)
	}
	w.logger.Debug(ctx, "submission scored",
		logger.String("submission", ev.SubmissionID),
		logger.String("player", ev.PlayerID),
		logger.String("challenge", ev.ChallengeID),
		logger.Float64("accuracy", ev.Accuracy),
		logger.Int("score", ev.Score))

	rec := repository.Record{
		Score:        ev.Score,
		SubmissionID: ev.SubmissionID,
		Accuracy:     ev.Accuracy,
		CharsWritten: ev.CharsWritten,
		HintsUsed:    ev.HintsUsed,
	}

	board, err := w.boards.Board(ev.ChallengeID)
	if err != nil {
		w.failed("leaderboard_error")
		return fmt.Errorf("board %s: %w", ev.ChallengeID, err)
	}
	improved, prev, err := board.UpdateBest(ctx, ev.PlayerID, rec)
	if err != nil {
		w.failed("leaderboard_error")
		return fmt.Errorf("update board %s: %w", ev.ChallengeID, err)
	}
	if !improved {
		return nil
	}
	metrics.RecordLeaderboardUpdate("challenge")
	w.publish(ctx, ev.ChallengeID)

	delta := ev.Score - prev.Score
	if delta <= 0 {
		// First submission scoring zero: nothing to add globally.
		return nil
	}
	if _, err := w.boards.Global().AddScore(ctx, ev.PlayerID, delta, rec); err != nil {
		w.failed("leaderboard_error")
		return fmt.Errorf("update global board: %w", err)
	}
	metrics.RecordLeaderboardUpdate(repository.GlobalBoard)
	w.publish(ctx, repository.GlobalBoard)
	return nil
}

func (w *InMemoryWorker) publish(ctx context.Context, board string) {
	if w.publisher != nil {
		w.publisher.Publish(ctx, board)
	}
}

func (w *InMemoryWorker) failed(kind string) {
	if kind == "leaderboard_error" {
		metrics.RecordLeaderboardError()
	}
	metrics.RecordWorkerError()
	metrics.RecordErrorByComponent("worker", kind)
	metrics.RecordErrorByType(kind, "high")
}

// Pool manages a fixed set of workers.
type Pool struct {
	workers   []*InMemoryWorker
	queue     Queue
	processed atomic.Int64

	shutdown chan struct{}
	stopped  atomic.Bool

	logger logger.Logger
}

// NewPool creates workerCount workers, or two per CPU when workerCount < 1.
func NewPool(workerCount int, queue Queue, scorer Scorer, boards Boards, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    queue,
		shutdown: make(chan struct{}),
		logger:   logger.Named("worker-pool"),
	}

	for i := range p.workers {
		wopts := append(append([]Option(nil), opts...), WithName("worker-"+strconv.Itoa(i)))
		w := NewInMemoryWorker(queue, scorer, boards, wopts...)
		w.processed = &p.processed
		p.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerMessagesPerSecond(0)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns how many submissions the pool has handled.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.runMetricsUpdater(ctx)
}

func (p *Pool) runMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	last := p.processed.Load()
	lastAt := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case now := <-ticker.C:
			cur := p.processed.Load()
			if secs := now.Sub(lastAt).Seconds(); secs > 0 {
				metrics.UpdateWorkerMessagesPerSecond(float64(cur-last) / secs)
			}
			last, lastAt = cur, now
		}
	}
}

// Shutdown closes the queue and lets the workers drain what is left.
// It returns once every worker stopped or the timeout hit.
func (p *Pool) Shutdown(ctx context.Context) error {
	if !p.stopped.CompareAndSwap(false, true) {
		return nil
	}
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	close(p.shutdown)

	waitCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-waitCtx.Done():
			timedOut++
		}
	}
	if timedOut > 0 {
		p.logger.Warn(ctx, "workers did not stop in time", logger.Int("count", timedOut))
		return fmt.Errorf("%d workers still running: %w", timedOut, waitCtx.Err())
	}
	return nil
}
