package cart

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores cart lines per user.
type Repository interface {
	// Lines returns the user's lines ordered by AddedAt.
	Lines(ctx context.Context, userID string) ([]Line, error)

	// Put inserts or replaces a line.
	Put(ctx context.Context, userID string, line Line) error

	// Remove deletes the given products from the cart. Missing lines are ignored.
	Remove(ctx context.Context, userID string, productIDs ...uuid.UUID) error
}
