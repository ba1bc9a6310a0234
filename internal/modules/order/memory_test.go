package order

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/georgemunganga/storefront-backend/internal/pkg/apperr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOrders(t *testing.T, repo Repository, userID string, n int, status Status) []*Order {
	t.Helper()
	var out []*Order
	for i := 0; i < n; i++ {
		o := &Order{
			ID:              uuid.New(),
			OrderCode:       fmt.Sprintf("ORD-%s-%s-%d", userID, status, i),
			UserID:          userID,
			Lines:           []Line{{ProductID: uuid.New(), Name: "Lamp", UnitPrice: 100, Quantity: 1}},
			ShippingAddress: json.RawMessage(`{"city":"Ndola"}`),
			PaymentMethod:   MethodCOD,
			Status:          status,
			PaymentStatus:   PaymentUnpaid,
			Total:           100,
			CreatedAt:       int64(1000 + i),
		}
		require.NoError(t, repo.Create(context.Background(), o))
		out = append(out, o)
	}
	return out
}

func TestMemoryListPagesNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	mine := seedOrders(t, repo, "u1", 12, StatusPending)
	seedOrders(t, repo, "u2", 3, StatusPending)

	page, err := repo.ListByUser(ctx, "u1", ListQuery{Page: 2, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 12, page.Total)
	require.Len(t, page.Orders, 5)
	assert.Equal(t, mine[6].ID, page.Orders[0].ID)
	for _, o := range page.Orders {
		assert.Nil(t, o.ShippingAddress)
		assert.Len(t, o.Lines, 1)
	}

	page, err = repo.ListByUser(ctx, "u1", ListQuery{Page: 9})
	require.NoError(t, err)
	assert.Empty(t, page.Orders)
	assert.Equal(t, defaultLimit, page.Limit)

	page, err = repo.ListAll(ctx, ListQuery{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, maxLimit, page.Limit)
	assert.Equal(t, 15, page.Total)
}

func TestMemoryListFiltersByStatus(t *testing.T) {
	repo := NewMemoryRepository()
	seedOrders(t, repo, "u1", 2, StatusPending)
	seedOrders(t, repo, "u1", 3, StatusDelivered)

	page, err := repo.ListAll(context.Background(), ListQuery{Status: StatusDelivered})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	for _, o := range page.Orders {
		assert.Equal(t, StatusDelivered, o.Status)
	}
}

func TestMemoryCreateRejectsTakenCode(t *testing.T) {
	repo := NewMemoryRepository()
	o := seedOrders(t, repo, "u1", 1, StatusPending)[0]

	err := repo.Create(context.Background(), &Order{ID: uuid.New(), OrderCode: o.OrderCode})
	assert.Equal(t, CodeOrderCodeTaken, apperr.CodeOf(err))
}

func TestMemoryUpdateFieldsAndMarkPaid(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	o := seedOrders(t, repo, "u1", 1, StatusPending)[0]

	url := "https://pay.example/x"
	require.NoError(t, repo.UpdateFields(ctx, o.ID, Patch{PaymentURL: &url}, 5))
	applied, err := repo.MarkPaid(ctx, o.ID, "txn", 6)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := repo.FindByCode(ctx, o.OrderCode)
	require.NoError(t, err)
	assert.Equal(t, url, got.PaymentURL)
	assert.Equal(t, PaymentPaid, got.PaymentStatus)
	assert.Equal(t, int64(6), got.UpdatedAt)

	_, err = repo.MarkPaid(ctx, uuid.New(), "txn", 7)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.True(t, apperr.IsKind(repo.UpdateFields(ctx, uuid.New(), Patch{}, 7), apperr.KindNotFound))
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	o := seedOrders(t, repo, "u1", 1, StatusPending)[0]

	got, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	got.Lines[0].Quantity = 99
	got.Status = StatusDelivered

	again, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Lines[0].Quantity)
	assert.Equal(t, StatusPending, again.Status)
}
