package cart

import (
	"context"
	"testing"

	"github.com/georgemunganga/storefront-backend/internal/pkg/apperr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertKeepsAddedAtAndSelection(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository(), nil)
	id := uuid.New()
	off := false

	first, err := svc.Upsert(ctx, "u", UpsertLineRequest{ProductID: id.String(), Quantity: 1, Selected: &off})
	require.NoError(t, err)

	second, err := svc.Upsert(ctx, "u", UpsertLineRequest{ProductID: id.String(), Quantity: 4})
	require.NoError(t, err)

	assert.Equal(t, first.AddedAt, second.AddedAt)
	assert.False(t, second.Selected)
	assert.Equal(t, 4, second.Quantity)
}

func TestUpsertValidates(t *testing.T) {
	ctx := context.Background()
	missing := ProductCheckerFunc(func(context.Context, uuid.UUID) error {
		return apperr.NotFound(apperr.CodeProductNotFound, "product not found")
	})
	svc := NewService(NewMemoryRepository(), missing)

	_, err := svc.Upsert(ctx, "u", UpsertLineRequest{ProductID: "nope", Quantity: 1})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = svc.Upsert(ctx, "u", UpsertLineRequest{ProductID: uuid.NewString(), Quantity: 0})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = svc.Upsert(ctx, "u", UpsertLineRequest{ProductID: uuid.NewString(), Quantity: 1})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
