package catalog

import (
	"github.com/google/uuid"
)

// Product is a sellable item. Price is in minor currency units; timestamps are epoch milliseconds.
type Product struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	ImageURL  string    `json:"image_url,omitempty"`
	Stock     int       `json:"stock"`
	Purchases int       `json:"purchases"`
	CreatedAt int64     `json:"created_at"`
	UpdatedAt int64     `json:"updated_at"`
}

// ── Request DTOs ──────────────────────────────────────────────────────────────

// CreateProductRequest holds the data for creating a product.
type CreateProductRequest struct {
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	ImageURL string `json:"image_url"`
	Stock    int    `json:"stock"`
}

// UpdateProductRequest changes the descriptive fields of a product. Stock is
// only ever changed through the inventory ledger.
type UpdateProductRequest struct {
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	ImageURL string `json:"image_url"`
}
