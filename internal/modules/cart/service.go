package cart

import (
	"context"
	"time"

	"github.com/georgemunganga/storefront-backend/internal/pkg/apperr"
	"github.com/google/uuid"
)

// ProductChecker confirms a product exists before it is added.
type ProductChecker interface {
	Exists(ctx context.Context, id uuid.UUID) error
}

// ProductCheckerFunc adapts a function to ProductChecker.
type ProductCheckerFunc func(ctx context.Context, id uuid.UUID) error

func (f ProductCheckerFunc) Exists(ctx context.Context, id uuid.UUID) error { return f(ctx, id) }

// Service defines cart operations. The order pipeline only reads lines and
// removes the ones it turned into an order.
type Service interface {
	Lines(ctx context.Context, userID string) ([]Line, error)
	Upsert(ctx context.Context, userID string, req UpsertLineRequest) (*Line, error)
	Remove(ctx context.Context, userID string, productIDs ...uuid.UUID) error
}

type service struct {
	repo     Repository
	products ProductChecker
	now      func() time.Time
}

// NewService creates a cart service. products may be nil to skip the existence check.
func NewService(repo Repository, products ProductChecker) Service {
	return &service{repo: repo, products: products, now: time.Now}
}

func (s *service) Lines(ctx context.Context, userID string) ([]Line, error) {
	return s.repo.Lines(ctx, userID)
}

func (s *service) Upsert(ctx context.Context, userID string, req UpsertLineRequest) (*Line, error) {
	id, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, apperr.Validation("invalid product_id")
	}
	if req.Quantity <= 0 {
		return nil, apperr.Validation("quantity must be greater than 0")
	}
	if s.products != nil {
		if err := s.products.Exists(ctx, id); err != nil {
			return nil, err
		}
	}

	line := Line{ProductID: id, Quantity: req.Quantity, Selected: true, AddedAt: s.now().UnixMilli()}
	existing, err := s.repo.Lines(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, l := range existing {
		if l.ProductID == id {
			line.AddedAt = l.AddedAt
			line.Selected = l.Selected
		}
	}
	if req.Selected != nil {
		line.Selected = *req.Selected
	}
	if err := s.repo.Put(ctx, userID, line); err != nil {
		return nil, err
	}
	return &line, nil
}

func (s *service) Remove(ctx context.Context, userID string, productIDs ...uuid.UUID) error {
	return s.repo.Remove(ctx, userID, productIDs...)
}
