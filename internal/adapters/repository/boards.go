package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/okian/stylewars/pkg/metrics"
)

// Boards owns every leaderboard, keyed by board id: a challenge id or
// GlobalBoard. Boards are created on first use.
type Boards struct {
	ctx  context.Context
	opts []Option

	mu     sync.RWMutex
	stores map[string]*TreapStore
	closed bool
}

// NewBoards creates the registry with the global board already present.
// opts apply to every board it creates.
func NewBoards(ctx context.Context, opts ...Option) *Boards {
	b := &Boards{
		ctx:    ctx,
		opts:   opts,
		stores: make(map[string]*TreapStore),
	}
	b.stores[GlobalBoard] = b.newStore(GlobalBoard)
	metrics.UpdateBoardCount(1)
	return b
}

func (b *Boards) newStore(id string) *TreapStore {
	opts := append(append([]Option(nil), b.opts...), WithName(id))
	return NewTreapStore(b.ctx, opts...)
}

// Global returns the global board.
func (b *Boards) Global() Store {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stores[GlobalBoard]
}

// Board returns the board with the given id, creating it when missing.
func (b *Boards) Board(id string) (Store, error) {
	b.mu.RLock()
	s, ok := b.stores[id]
	closed := b.closed
	b.mu.RUnlock()
	if ok {
		return s, nil
	}
	if closed {
		return nil, ErrClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if s, ok := b.stores[id]; ok {
		return s, nil
	}
	created := b.newStore(id)
	b.stores[id] = created
	metrics.UpdateBoardCount(len(b.stores))
	return created, nil
}

// Lookup returns an existing board without creating one.
func (b *Boards) Lookup(id string) (Store, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.stores[id]
	if !ok {
		return nil, false
	}
	return s, true
}

// IDs returns every board id, sorted.
func (b *Boards) IDs() []string {
	b.mu.RLock()
	ids := make([]string, 0, len(b.stores))
	for id := range b.stores {
		ids = append(ids, id)
	}
	b.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Len returns the number of boards, global included.
func (b *Boards) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.stores)
}

// Close stops every board's background loop. Boards stay readable.
func (b *Boards) Close() error {
	b.mu.Lock()
	b.closed = true
	stores := make([]*TreapStore, 0, len(b.stores))
	for _, s := range b.stores {
		stores = append(stores, s)
	}
	b.mu.Unlock()

	var errs []error
	for _, s := range stores {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
