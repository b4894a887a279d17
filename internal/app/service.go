// Package service wires the scoring pipeline together and implements the
// dependencies the HTTP API needs.
package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"

	"github.com/okian/stylewars/internal/adapters/http/stream"
	submissionqueue "github.com/okian/stylewars/internal/adapters/mq/queue"
	workerpool "github.com/okian/stylewars/internal/adapters/mq/worker"
	"github.com/okian/stylewars/internal/adapters/raster"
	"github.com/okian/stylewars/internal/adapters/repository"
	"github.com/okian/stylewars/internal/domain/challenge"
	"github.com/okian/stylewars/internal/domain/dedupe"
	"github.com/okian/stylewars/internal/domain/model"
	"github.com/okian/stylewars/internal/domain/pixel"
	"github.com/okian/stylewars/internal/domain/scoring"
	"github.com/okian/stylewars/internal/domain/types"
	"github.com/okian/stylewars/pkg/logger"
	"github.com/okian/stylewars/pkg/metrics"
)

// ErrNotStarted is returned by operations that need a running service.
var ErrNotStarted = errors.New("service not started")

// Service implements the API dependencies for the scoring system.
type Service struct {
	mu sync.RWMutex

	catalog   *challenge.Catalog
	evaluator *scoring.Evaluator
	deduper   dedupe.Deduper
	queue     *submissionqueue.InMemoryQueue
	pool      *workerpool.Pool
	boards    *repository.Boards
	hub       *stream.Hub

	workerCount int
	queueSize   int
	dedupeSize  int
	streamTopN  int
	now         func() time.Time

	started   bool
	startedAt time.Time
	cancel    context.CancelFunc

	logger logger.Logger
}

// New constructs a Service. Components are created by Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   submissionqueue.DefaultCapacity,
		dedupeSize:  500_000,
		streamTopN:  10,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.catalog == nil {
		s.catalog = challenge.NewCatalog()
	}
	s.evaluator = scoring.NewEvaluator(s.catalog)
	return s
}

// Start creates the pipeline and launches the workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	s.logger.Info(ctx, "starting scoring service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = submissionqueue.NewInMemoryQueue(submissionqueue.WithCapacity(s.queueSize))
	s.boards = repository.NewBoards(runCtx)
	s.hub = stream.NewHub(s, stream.WithTopN(s.streamTopN), stream.WithLogger(logger.Named("stream")))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.evaluator, s.boards,
		workerpool.WithPublisher(s.hub),
		workerpool.WithLogger(logger.Named("worker")),
	)
	s.pool.Start(runCtx)

	s.started = true
	s.startedAt = s.now()
	metrics.UpdateChallengesTotal(s.catalog.Len())

	s.logger.Info(ctx, "scoring service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("challenges", s.catalog.Len()),
	)
	return nil
}

// Stop drains the queue and shuts components down in order: workers,
// boards, stream. Boards stay readable afterwards.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	pool, boards, hub, cancel := s.pool, s.boards, s.hub, s.cancel
	s.mu.Unlock()

	// Draining workers publish to the hub, which reads boards through s;
	// s.mu must not be held here.
	ctx := context.Background()
	s.logger.Info(ctx, "stopping scoring service...")

	if err := pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
	}
	if err := boards.Close(); err != nil {
		s.logger.Warn(ctx, "closing leaderboards failed", logger.Error(err))
	}
	_ = hub.Close()
	cancel()

	s.logger.Info(ctx, "scoring service stopped")
}

// Hub returns the live leaderboard hub, nil before Start.
func (s *Service) Hub() *stream.Hub {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hub
}

func loadTarget(path string) (*image.NRGBA, error) {
	return raster.LoadFile(path, challenge.FrameWidth, challenge.FrameHeight)
}

// LoadChallenges adds every challenge of a YAML manifest to the catalog.
func (s *Service) LoadChallenges(ctx context.Context, path string) (int, error) {
	list, err := challenge.LoadManifest(ctx, path, loadTarget)
	if err != nil {
		return 0, err
	}
	for i := range list {
		if err := s.catalog.Add(ctx, list[i]); err != nil {
			return i, fmt.Errorf("add %s: %w", list[i].ID, err)
		}
	}
	return len(list), nil
}

// intake returns the deduper, queue and logger. All are nil before Start.
func (s *Service) intake() (dedupe.Deduper, *submissionqueue.InMemoryQueue, logger.Logger) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deduper, s.queue, s.logger
}

// SeenAndRecord reports whether a submission id was already accepted and
// records it when it was not. Before Start nothing is recorded.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	d, _, _ := s.intake()
	if d == nil {
		return false
	}
	seen := d.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordSubmissionDuplicate()
	}
	return seen
}

// Unrecord forgets a submission id so the client may retry it.
func (s *Service) Unrecord(ctx context.Context, id string) {
	if d, _, _ := s.intake(); d != nil {
		d.Unrecord(ctx, id)
	}
}

// Size returns the number of remembered submission ids.
func (s *Service) Size() int64 {
	d, _, _ := s.intake()
	if d == nil {
		return 0
	}
	return d.Size()
}

// CheckOpen verifies that the challenge exists and accepts submissions now.
func (s *Service) CheckOpen(ctx context.Context, challengeID string) error {
	c, err := s.catalog.Get(ctx, challengeID)
	if err != nil {
		return err
	}
	return c.Open(s.now())
}

// Enqueue hands a submission to the workers. It returns false on
// backpressure and before Start.
func (s *Service) Enqueue(ctx context.Context, sub model.Submission) bool { //nolint:gocritic // hugeParam: copied into the queue
	_, q, log := s.intake()
	if q == nil {
		return false
	}
	log.Debug(ctx, "enqueueing submission",
		logger.String("submission", sub.SubmissionID),
		logger.String("player", sub.PlayerID),
		logger.String("challenge", sub.ChallengeID),
		logger.Int("renderBytes", len(sub.Render)),
	)
	if !q.Enqueue(ctx, sub) {
		return false
	}
	metrics.RecordSubmissionReceived()
	return true
}

// Preview scores a render synchronously without touching any board.
func (s *Service) Preview(ctx context.Context, challengeID string, render []byte, chars, hints int) (types.Preview, error) {
	if err := ctx.Err(); err != nil {
		return types.Preview{}, err
	}
	c, err := s.catalog.Get(ctx, challengeID)
	if err != nil {
		return types.Preview{}, err
	}
	res := pixel.CompareDetailed(render, c.Pixels())
	return types.Preview{
		Accuracy: res.Accuracy,
		Score: scoring.Calculate(scoring.Input{
			Accuracy:     res.Accuracy,
			CharsWritten: chars,
			HintsUsed:    hints,
			TargetChars:  c.TargetChars,
		}),
		Matched: res.Matched,
		Total:   res.Total,
	}, nil
}

// Challenges lists every challenge.
func (s *Service) Challenges(ctx context.Context) []types.ChallengeInfo {
	list := s.catalog.List(ctx)
	out := make([]types.ChallengeInfo, len(list))
	for i, c := range list {
		out[i] = info(c)
	}
	return out
}

// Challenge returns one challenge.
func (s *Service) Challenge(ctx context.Context, id string) (*challenge.Challenge, error) {
	return s.catalog.Get(ctx, id)
}

// ChallengeInfo returns the public view of one challenge.
func (s *Service) ChallengeInfo(ctx context.Context, id string) (types.ChallengeInfo, error) {
	c, err := s.catalog.Get(ctx, id)
	if err != nil {
		return types.ChallengeInfo{}, err
	}
	return info(c), nil
}

// AddChallenge registers a new challenge.
func (s *Service) AddChallenge(ctx context.Context, c challenge.Challenge) (types.ChallengeInfo, error) { //nolint:gocritic // hugeParam: the catalog keeps its own copy
	if err := s.catalog.Add(ctx, c); err != nil {
		return types.ChallengeInfo{}, err
	}
	if _, _, log := s.intake(); log != nil {
		log.Info(ctx, "challenge added", logger.String("challenge", c.ID))
	}
	metrics.UpdateChallengesTotal(s.catalog.Len())
	return s.ChallengeInfo(ctx, c.ID)
}

// Hint reveals hint n of a challenge.
func (s *Service) Hint(ctx context.Context, id string, n int) (string, error) {
	c, err := s.catalog.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return c.Hint(n)
}

// TopN returns the top rows of a board: repository.GlobalBoard or a
// challenge id. A known challenge nobody has scored on yet yields no rows.
func (s *Service) TopN(ctx context.Context, board string, n int) ([]types.Entry, error) {
	store, err := s.board(ctx, board)
	if err != nil {
		return nil, err
	}
	if store == nil {
		if n < 1 {
			return nil, repository.ErrInvalidLimit
		}
		return []types.Entry{}, nil
	}
	return store.TopN(ctx, n)
}

// Top implements stream.TopSource.
func (s *Service) Top(ctx context.Context, board string, n int) ([]types.Entry, error) {
	entries, err := s.TopN(ctx, board, n)
	if errors.Is(err, challenge.ErrNotFound) {
		return []types.Entry{}, nil
	}
	return entries, err
}

// Rank returns a player's row on a board.
func (s *Service) Rank(ctx context.Context, board, playerID string) (types.Entry, error) {
	store, err := s.board(ctx, board)
	if err != nil {
		return types.Entry{}, err
	}
	if store == nil {
		return types.Entry{}, repository.ErrNotFound
	}
	return store.Rank(ctx, playerID)
}

// board resolves a board id. It returns a nil store for a known challenge
// without a board yet.
func (s *Service) board(ctx context.Context, id string) (repository.Store, error) {
	s.mu.RLock()
	boards := s.boards
	s.mu.RUnlock()
	if boards == nil {
		return nil, ErrNotStarted
	}

	if id == "" || id == repository.GlobalBoard {
		return boards.Global(), nil
	}
	if _, err := s.catalog.Get(ctx, id); err != nil {
		return nil, err
	}
	store, ok := boards.Lookup(id)
	if !ok {
		return nil, nil
	}
	return store, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"challenges":  s.catalog.Len(),
	}
	if !s.started {
		return stats
	}

	queueLen := s.queue.Len(ctx)
	players := s.boards.Global().Count(ctx)
	stats["queueLength"] = queueLen
	stats["totalPlayers"] = players
	stats["boards"] = s.boards.Len()
	stats["processed"] = s.pool.Processed()
	stats["seenSubmissions"] = s.deduper.Size()
	stats["streamClients"] = s.hub.Clients()
	stats["uptimeSeconds"] = int64(s.now().Sub(s.startedAt).Seconds())

	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateTotalPlayers(players)
	return stats
}

func info(c *challenge.Challenge) types.ChallengeInfo {
	target := c.TargetChars
	if target <= 0 {
		target = scoring.DefaultTargetChars
	}
	out := types.ChallengeInfo{
		ID:          c.ID,
		Title:       c.Title,
		TargetChars: target,
		HintCount:   len(c.Hints),
		Width:       c.Target.Bounds().Dx(),
		Height:      c.Target.Bounds().Dy(),
	}
	if !c.StartsAt.IsZero() {
		out.StartsAt = c.StartsAt.UTC().Format(time.RFC3339)
	}
	if !c.EndsAt.IsZero() {
		out.EndsAt = c.EndsAt.UTC().Format(time.RFC3339)
	}
	return out
}
