package inventory

import (
	"context"

	"github.com/google/uuid"
)

// StockStore is the conditional write primitive. catalog.Repository satisfies it.
type StockStore interface {
	// AdjustStock applies delta only if stock + delta >= 0 and reports whether it did.
	AdjustStock(ctx context.Context, productID uuid.UUID, delta int) (bool, error)
}
