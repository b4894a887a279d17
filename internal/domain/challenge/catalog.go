package challenge

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/stylewars/pkg/metrics"
)

// Catalog is a concurrency-safe in-memory set of challenges.
type Catalog struct {
	mu   sync.RWMutex
	byID map[string]*Challenge
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byID: make(map[string]*Challenge)}
}

// Add registers c. The catalog keeps its own copy of the metadata; the
// target image is shared and must not be modified afterwards.
func (cat *Catalog) Add(_ context.Context, c Challenge) error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.Hints = append([]string(nil), c.Hints...)

	cat.mu.Lock()
	defer cat.mu.Unlock()
	if _, ok := cat.byID[c.ID]; ok {
		return fmt.Errorf("%w: %s", ErrExists, c.ID)
	}
	cat.byID[c.ID] = &c
	metrics.UpdateChallengesTotal(len(cat.byID))
	return nil
}

// Get returns the challenge with the given id.
func (cat *Catalog) Get(_ context.Context, id string) (*Challenge, error) {
	cat.mu.RLock()
	defer cat.mu.RUnlock()
	c, ok := cat.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

// List returns every challenge ordered by id.
func (cat *Catalog) List(_ context.Context) []*Challenge {
	cat.mu.RLock()
	out := make([]*Challenge, 0, len(cat.byID))
	for _, c := range cat.byID {
		out = append(out, c)
	}
	cat.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of challenges.
func (cat *Catalog) Len() int {
	cat.mu.RLock()
	defer cat.mu.RUnlock()
	return len(cat.byID)
}
