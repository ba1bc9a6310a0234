package cart

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memoryRepo struct {
	mu    sync.RWMutex
	carts map[string]map[uuid.UUID]Line
}

func NewMemoryRepository() Repository {
	return &memoryRepo{carts: make(map[string]map[uuid.UUID]Line)}
}

func (r *memoryRepo) Lines(_ context.Context, userID string) ([]Line, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lines := make([]Line, 0, len(r.carts[userID]))
	for _, l := range r.carts[userID] {
		lines = append(lines, l)
	}
	sortLines(lines)
	return lines, nil
}

func (r *memoryRepo) Put(_ context.Context, userID string, line Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[userID]
	if !ok {
		c = make(map[uuid.UUID]Line)
		r.carts[userID] = c
	}
	c[line.ProductID] = line
	return nil
}

func (r *memoryRepo) Remove(_ context.Context, userID string, productIDs ...uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range productIDs {
		delete(r.carts[userID], id)
	}
	return nil
}
