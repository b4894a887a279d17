package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"
)

func rec(score int) Record {
	return Record{Score: score, SubmissionID: fmt.Sprintf("sub-%d", score)}
}

func TestTreapStore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	if count := store.Count(ctx); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}

	improved, prev, err := store.UpdateBest(ctx, "alice", Record{Score: 855, SubmissionID: "s-1", Accuracy: 97.5, CharsWritten: 180})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !improved {
		t.Error("expected first submission to improve")
	}
	if prev != (Record{}) {
		t.Errorf("expected zero previous record, got %+v", prev)
	}

	entry, err := store.Rank(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Rank != 1 || entry.Score != 855 || entry.SubmissionID != "s-1" || entry.CharsWritten != 180 {
		t.Errorf("unexpected entry %+v", entry)
	}

	entries, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].PlayerID != "alice" {
		t.Errorf("unexpected top entries %+v", entries)
	}
}

func TestTreapStore_ScoreUpdates(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	if improved, _, _ := store.UpdateBest(ctx, "alice", rec(500)); !improved {
		t.Fatal("expected first update to improve")
	}

	improved, prev, err := store.UpdateBest(ctx, "alice", rec(400))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if improved {
		t.Error("expected lower score to be ignored")
	}
	if prev.Score != 500 {
		t.Errorf("expected current best 500, got %d", prev.Score)
	}

	if improved, _, _ := store.UpdateBest(ctx, "alice", rec(500)); improved {
		t.Error("expected equal score to be ignored")
	}

	improved, prev, _ = store.UpdateBest(ctx, "alice", rec(900))
	if !improved || prev.Score != 500 {
		t.Errorf("expected improvement over 500, got improved=%v prev=%+v", improved, prev)
	}

	entry, _ := store.Rank(ctx, "alice")
	if entry.Score != 900 || entry.SubmissionID != "sub-900" {
		t.Errorf("expected best 900, got %+v", entry)
	}
	if store.Count(ctx) != 1 {
		t.Errorf("expected one player, got %d", store.Count(ctx))
	}
}

func TestTreapStore_OrderingAndDenseRanks(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	scores := map[string]int{
		"carol": 900,
		"alice": 950,
		"bob":   900,
		"dave":  600,
		"erin":  950,
		"frank": 0,
	}
	for id, s := range scores {
		if _, _, err := store.UpdateBest(ctx, id, rec(s)); err != nil {
			t.Fatalf("update %s: %v", id, err)
		}
	}

	top, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []struct {
		id    string
		score int
		rank  int
	}{
		{"alice", 950, 1},
		{"erin", 950, 1},
		{"bob", 900, 2},
		{"carol", 900, 2},
		{"dave", 600, 3},
		{"frank", 0, 4},
	}
	if len(top) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(top))
	}
	for i, w := range want {
		if top[i].PlayerID != w.id || top[i].Score != w.score || top[i].Rank != w.rank {
			t.Errorf("position %d: expected %+v, got %+v", i, w, top[i])
		}
		r, err := store.Rank(ctx, w.id)
		if err != nil {
			t.Fatalf("rank %s: %v", w.id, err)
		}
		if r.Rank != w.rank {
			t.Errorf("Rank(%s) = %d, TopN says %d", w.id, r.Rank, w.rank)
		}
	}

	limited, _ := store.TopN(ctx, 3)
	if len(limited) != 3 || limited[2].PlayerID != "bob" {
		t.Errorf("unexpected limited top %+v", limited)
	}
}

func TestTreapStore_RankMovesWithImprovements(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	store.UpdateBest(ctx, "a", rec(300))
	store.UpdateBest(ctx, "b", rec(300))
	store.UpdateBest(ctx, "c", rec(200))

	// b leaves the shared 300 score; 300 stays because a still holds it.
	store.UpdateBest(ctx, "b", rec(700))
	checkRank(t, store, "b", 1)
	checkRank(t, store, "a", 2)
	checkRank(t, store, "c", 3)

	// a leaves 300 too, so 300 disappears from the distinct scores.
	store.UpdateBest(ctx, "a", rec(700))
	checkRank(t, store, "a", 1)
	checkRank(t, store, "b", 1)
	checkRank(t, store, "c", 2)
}

func checkRank(t *testing.T, store *TreapStore, id string, want int) {
	t.Helper()
	e, err := store.Rank(context.Background(), id)
	if err != nil {
		t.Fatalf("rank %s: %v", id, err)
	}
	if e.Rank != want {
		t.Errorf("rank %s: expected %d, got %d", id, want, e.Rank)
	}
}

func TestTreapStore_AddScore(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	total, err := store.AddScore(ctx, "alice", 600, Record{SubmissionID: "s-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total.Score != 600 {
		t.Errorf("expected 600, got %d", total.Score)
	}

	total, _ = store.AddScore(ctx, "alice", 350, Record{SubmissionID: "s-2"})
	if total.Score != 950 || total.SubmissionID != "s-2" {
		t.Errorf("unexpected total %+v", total)
	}

	if _, err := store.AddScore(ctx, "alice", 0, Record{}); !errors.Is(err, ErrInvalidDelta) {
		t.Errorf("expected ErrInvalidDelta, got %v", err)
	}
	if _, err := store.AddScore(ctx, "alice", -10, Record{}); !errors.Is(err, ErrInvalidDelta) {
		t.Errorf("expected ErrInvalidDelta, got %v", err)
	}

	e, _ := store.Rank(ctx, "alice")
	if e.Score != 950 {
		t.Errorf("expected stored total 950, got %d", e.Score)
	}
}

func TestTreapStore_EdgeCases(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	if _, err := store.Rank(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	for _, n := range []int{0, -1} {
		if _, err := store.TopN(ctx, n); !errors.Is(err, ErrInvalidLimit) {
			t.Errorf("TopN(%d): expected ErrInvalidLimit, got %v", n, err)
		}
	}
	top, err := store.TopN(ctx, 5)
	if err != nil || len(top) != 0 {
		t.Errorf("expected empty top, got %v, %v", top, err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, _, err := store.UpdateBest(cancelled, "alice", rec(1)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if store.Count(ctx) != 0 {
		t.Error("cancelled update must not be stored")
	}
}

func TestTreapStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	const players, rounds = 50, 40
	var wg sync.WaitGroup
	best := make([]int, players)
	var mu sync.Mutex

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < players*rounds; i++ {
				p := rng.Intn(players)
				s := rng.Intn(1001)
				if _, _, err := store.UpdateBest(ctx, fmt.Sprintf("p%02d", p), rec(s)); err != nil {
					t.Errorf("update: %v", err)
					return
				}
				mu.Lock()
				if s > best[p] {
					best[p] = s
				}
				mu.Unlock()
				if i%10 == 0 {
					_, _ = store.TopN(ctx, 10)
				}
			}
		}(int64(w))
	}
	wg.Wait()

	top, _ := store.TopN(ctx, players)
	if len(top) != store.Count(ctx) {
		t.Fatalf("TopN returned %d rows for %d players", len(top), store.Count(ctx))
	}
	if !sort.SliceIsSorted(top, func(i, j int) bool {
		return less(top[i].Score, top[i].PlayerID, top[j].Score, top[j].PlayerID)
	}) {
		t.Error("TopN is not ordered by score desc, id asc")
	}
	for _, e := range top {
		var p int
		fmt.Sscanf(e.PlayerID, "p%d", &p)
		if e.Score != best[p] {
			t.Errorf("%s: stored %d, best seen %d", e.PlayerID, e.Score, best[p])
		}
	}
}

func TestTreapStore_CloseBehavior(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx, WithName("c-1"), WithMetricsUpdateInterval(time.Millisecond))
	store.UpdateBest(ctx, "alice", rec(10))
	time.Sleep(5 * time.Millisecond)

	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if store.Name() != "c-1" {
		t.Errorf("unexpected name %q", store.Name())
	}
	if _, err := store.Rank(ctx, "alice"); err != nil {
		t.Errorf("store must stay readable after close: %v", err)
	}
}

func BenchmarkTreapStore_Mixed(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	const players = 100_000
	for i := 0; i < players; i++ {
		store.UpdateBest(ctx, fmt.Sprintf("player_%d", i), rec(rand.Intn(1001)))
	}

	b.ResetTimer()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			id := fmt.Sprintf("player_%d", i%players)
			switch i % 10 {
			case 0, 1, 2, 3:
				_, _, _ = store.UpdateBest(ctx, id, rec(rand.Intn(1001)))
			case 4, 5, 6:
				_, _ = store.Rank(ctx, id)
			case 7, 8:
				_, _ = store.TopN(ctx, 10+i%90)
			default:
				store.Count(ctx)
			}
			i++
		}
	})
}
