package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/georgemunganga/storefront-backend/internal/pkg/apperr"
	"github.com/google/uuid"
)

type memoryRepo struct {
	mu       sync.RWMutex
	products map[uuid.UUID]Product
}

// NewMemoryRepository returns an in-process Repository. AdjustStock holds the
// write lock across the guard and the write.
func NewMemoryRepository() Repository {
	return &memoryRepo{products: make(map[uuid.UUID]Product)}
}

func (r *memoryRepo) Create(_ context.Context, p *Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[p.ID]; ok {
		return apperr.Conflict("PRODUCT_EXISTS", "product already exists")
	}
	r.products[p.ID] = *p
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return nil, productNotFound(id)
	}
	return &p, nil
}

func (r *memoryRepo) GetMany(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[uuid.UUID]*Product, len(ids))
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			cp := p
			out[id] = &cp
		}
	}
	return out, nil
}

func (r *memoryRepo) Update(_ context.Context, p *Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.products[p.ID]
	if !ok {
		return productNotFound(p.ID)
	}
	cur.Name, cur.Price, cur.ImageURL, cur.UpdatedAt = p.Name, p.Price, p.ImageURL, p.UpdatedAt
	r.products[p.ID] = cur
	return nil
}

func (r *memoryRepo) AdjustStock(_ context.Context, id uuid.UUID, delta int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return false, productNotFound(id)
	}
	if p.Stock+delta < 0 {
		return false, nil
	}
	p.Stock += delta
	p.UpdatedAt = time.Now().UnixMilli()
	r.products[id] = p
	return true, nil
}

func (r *memoryRepo) IncrementPurchases(_ context.Context, id uuid.UUID, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return productNotFound(id)
	}
	p.Purchases += n
	r.products[id] = p
	return nil
}
