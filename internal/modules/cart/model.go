package cart

import "github.com/google/uuid"

// Line is one product in a user's cart. AddedAt is epoch milliseconds.
type Line struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Selected  bool      `json:"selected"`
	AddedAt   int64     `json:"added_at"`
}

// UpsertLineRequest sets the quantity and selection of a line.
type UpsertLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Selected  *bool  `json:"selected,omitempty"`
}
