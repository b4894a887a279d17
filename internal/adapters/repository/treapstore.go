package repository

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/stylewars/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: score DESC, then playerID ASC. "less" means ranks earlier, so
// an in-order walk yields the leaderboard from best to worst.
//
// A second treap holds one node per distinct score. Counting the nodes
// ahead of a score in it gives the dense rank in O(log n).

const defaultMetricsUpdateInterval = 5 * time.Second

type node struct {
	id    string
	score int
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aScore, aID) ranks before (bScore, bID).
func less(aScore int, aID string, bScore int, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, score int) *node {
	if n == nil {
		return &node{id: id, score: score, prio: rand.Uint64(), size: 1}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, score int) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	case less(score, id, n.score, n.id):
		n.left = deleteNode(n.left, id, score)
	default:
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// countBefore returns how many nodes rank strictly before (score, id).
func countBefore(n *node, id string, score int) int {
	count := 0
	for n != nil {
		if less(n.score, n.id, score, id) {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTopN appends up to limit nodes in rank order.
func collectTopN(n *node, limit int, out *[]*node) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n)
	}
	collectTopN(n.right, limit, out)
}

// TreapStore is a Store for a single board.
type TreapStore struct {
	name string

	mu       sync.RWMutex
	root     *node
	scores   *node       // one node per distinct score
	perScore map[int]int // players holding each score
	byID     map[string]Record

	metricsUpdateInterval time.Duration
	wg                    sync.WaitGroup
	stopChan              chan struct{}
	stopOnce              sync.Once
}

// NewTreapStore constructs a board. It refreshes its size gauge in the
// background until ctx ends or Close is called.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		name:                  GlobalBoard,
		perScore:              make(map[int]int),
		byID:                  make(map[string]Record),
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Name returns the board id.
func (s *TreapStore) Name() string { return s.name }

// Close stops the background metrics loop.
func (s *TreapStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// UpdateBest implements Store.UpdateBest in O(log n) expected time.
func (s *TreapStore) UpdateBest(ctx context.Context, playerID string, rec Record) (bool, Record, error) { //nolint:gocritic // Record is small and copied into the map anyway
	if err := ctx.Err(); err != nil {
		return false, Record{}, err
	}
	start := time.Now()
	defer s.observeUpdate(start)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.byID[playerID]
	if ok && rec.Score <= prev.Score {
		return false, prev, nil
	}
	s.put(playerID, prev, ok, rec)
	return true, prev, nil
}

// AddScore implements Store.AddScore in O(log n) expected time.
func (s *TreapStore) AddScore(ctx context.Context, playerID string, delta int, rec Record) (Record, error) { //nolint:gocritic // see UpdateBest
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if delta <= 0 {
		return Record{}, ErrInvalidDelta
	}
	start := time.Now()
	defer s.observeUpdate(start)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.byID[playerID]
	rec.Score = prev.Score + delta
	s.put(playerID, prev, ok, rec)
	return rec, nil
}

// put replaces the player's record. Must be called with s.mu held.
func (s *TreapStore) put(playerID string, prev Record, existed bool, rec Record) {
	if existed {
		s.root = deleteNode(s.root, playerID, prev.Score)
		s.forgetScore(prev.Score)
	}
	s.byID[playerID] = rec
	s.root = insert(s.root, playerID, rec.Score)
	if s.perScore[rec.Score] == 0 {
		s.scores = insert(s.scores, "", rec.Score)
	}
	s.perScore[rec.Score]++
}

func (s *TreapStore) forgetScore(score int) {
	s.perScore[score]--
	if s.perScore[score] > 0 {
		return
	}
	delete(s.perScore, score)
	s.scores = deleteNode(s.scores, "", score)
}

// Rank returns the player's row in O(log n).
func (s *TreapStore) Rank(ctx context.Context, playerID string) (Entry, error) {
	start := time.Now()
	defer observeQuery(start)

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[playerID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, ErrNotFound
	}
	return s.entry(playerID, rec, countBefore(s.scores, "", rec.Score)+1), nil
}

// TopN returns the best n rows.
func (s *TreapStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	start := time.Now()
	defer observeQuery(start)

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]*node, 0, min(n, len(s.byID)))
	collectTopN(s.root, n, &nodes)

	out := make([]Entry, len(nodes))
	rank := 0
	for i, nd := range nodes {
		if i == 0 || nd.score != nodes[i-1].score {
			rank++
		}
		out[i] = s.entry(nd.id, s.byID[nd.id], rank)
	}
	return out, nil
}

// Count returns the number of players on the board.
func (s *TreapStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *TreapStore) entry(playerID string, rec Record, rank int) Entry {
	return Entry{
		Rank:         rank,
		PlayerID:     playerID,
		Score:        rec.Score,
		SubmissionID: rec.SubmissionID,
		Accuracy:     rec.Accuracy,
		CharsWritten: rec.CharsWritten,
		HintsUsed:    rec.HintsUsed,
	}
}

func (s *TreapStore) observeUpdate(start time.Time) {
	metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func observeQuery(start time.Time) {
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *TreapStore) updateMetrics() {
	count := s.Count(context.Background())
	metrics.UpdateBoardRecords(s.name, count)
	if s.name == GlobalBoard {
		metrics.UpdateTotalPlayers(count)
	}
}
