package inventory

import "github.com/google/uuid"

// Reservation is a quantity taken from (or returned to) a product's stock.
type Reservation struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// AdjustRequest is the admin payload for a manual stock correction.
type AdjustRequest struct {
	Delta int `json:"delta"`
}

// AdjustResponse reports whether the conditional write was applied.
type AdjustResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Delta     int       `json:"delta"`
	Applied   bool      `json:"applied"`
}
