package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/georgemunganga/storefront-backend/internal/pkg/apperr"
	"github.com/google/uuid"
)

// Service defines catalog business logic.
type Service interface {
	CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, req UpdateProductRequest) (*Product, error)
	IncrementPurchases(ctx context.Context, id uuid.UUID, n int) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) Service { return &service{repo: repo, now: time.Now} }

func (s *service) CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error) {
	if err := validateProduct(req.Name, req.Price); err != nil {
		return nil, err
	}
	if req.Stock < 0 {
		return nil, apperr.Validation("stock must not be negative")
	}
	now := s.now().UnixMilli()
	p := &Product{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(req.Name),
		Price:     req.Price,
		ImageURL:  req.ImageURL,
		Stock:     req.Stock,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Product, error) {
	return s.repo.GetMany(ctx, ids)
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, req UpdateProductRequest) (*Product, error) {
	if err := validateProduct(req.Name, req.Price); err != nil {
		return nil, err
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Name = strings.TrimSpace(req.Name)
	p.Price = req.Price
	p.ImageURL = req.ImageURL
	p.UpdatedAt = s.now().UnixMilli()
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) IncrementPurchases(ctx context.Context, id uuid.UUID, n int) error {
	if n <= 0 {
		return apperr.Validation("purchase increment must be positive")
	}
	return s.repo.IncrementPurchases(ctx, id, n)
}

func validateProduct(name string, price int64) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Validation("name is required")
	}
	if price < 0 {
		return apperr.Validation("price must not be negative")
	}
	return nil
}
