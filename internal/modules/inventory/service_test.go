package inventory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/georgemunganga/storefront-backend/internal/modules/auth"
	"github.com/georgemunganga/storefront-backend/internal/modules/catalog"
	"github.com/georgemunganga/storefront-backend/internal/pkg/apperr"
	"github.com/georgemunganga/storefront-backend/internal/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProduct(t *testing.T, repo catalog.Repository, stock int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, repo.Create(context.Background(), &catalog.Product{ID: id, Name: "Lamp", Price: 5000, Stock: stock}))
	return id
}

func TestConcurrentDecrementsNeverGoNegative(t *testing.T) {
	ctx := context.Background()
	repo := catalog.NewMemoryRepository()
	id := newProduct(t, repo, 7)
	l := NewLedger(repo, nil)

	var applied int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.AdjustStock(ctx, id, -1)
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&applied, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(7), applied)
	p, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
}

func TestAdjustStockRecordsMetrics(t *testing.T) {
	ctx := context.Background()
	repo := catalog.NewMemoryRepository()
	id := newProduct(t, repo, 1)
	m := metrics.New(prometheus.NewRegistry())
	l := NewLedger(repo, m)

	ok, err := l.AdjustStock(ctx, id, -2)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StockAdjustments.WithLabelValues("decrement", "rejected")))
}

type flakyStore struct {
	fail map[uuid.UUID]bool
	seen []uuid.UUID
}

func (f *flakyStore) AdjustStock(_ context.Context, id uuid.UUID, _ int) (bool, error) {
	f.seen = append(f.seen, id)
	if f.fail[id] {
		return false, errors.New("connection reset")
	}
	return true, nil
}

func TestRestoreAttemptsEveryLine(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	store := &flakyStore{fail: map[uuid.UUID]bool{b: true}}
	l := NewLedger(store, nil)

	err := l.Restore(context.Background(), []Reservation{
		{ProductID: a, Quantity: 1},
		{ProductID: b, Quantity: 2},
		{ProductID: c, Quantity: 3},
	})

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInternal))
	assert.Equal(t, []uuid.UUID{a, b, c}, store.seen)
}

func TestAdjustHandler(t *testing.T) {
	repo := catalog.NewMemoryRepository()
	id := newProduct(t, repo, 1)
	h := NewHandler(NewLedger(repo, nil))

	admin := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), auth.Principal{UserID: "a", Role: auth.RoleAdmin})))
		})
	}
	r := chi.NewRouter()
	h.RegisterRoutes(r, admin)

	do := func(body string) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/inventory/"+id.String()+"/adjust", strings.NewReader(body))
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusConflict, do(`{"delta":-5}`))
	assert.Equal(t, http.StatusOK, do(`{"delta":4}`))
	assert.Equal(t, http.StatusBadRequest, do(`{"delta":0}`))
}
