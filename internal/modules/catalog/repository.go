package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines product data storage.
type Repository interface {
	// Create inserts a new product.
	Create(ctx context.Context, p *Product) error

	// GetByID returns a product or a NotFound error.
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// GetMany returns the products that exist among ids, keyed by id.
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Product, error)

	// Update rewrites name, price and image.
	Update(ctx context.Context, p *Product) error

	// AdjustStock applies delta only if the resulting stock stays non-negative.
	// It reports whether the write was applied; an unknown product is a NotFound error.
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (bool, error)

	// IncrementPurchases adds n to the product's purchase counter.
	IncrementPurchases(ctx context.Context, id uuid.UUID, n int) error
}
