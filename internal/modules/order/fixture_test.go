package order

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/georgemunganga/storefront-backend/internal/modules/cart"
	"github.com/georgemunganga/storefront-backend/internal/modules/catalog"
	"github.com/georgemunganga/storefront-backend/internal/modules/inventory"
	"github.com/georgemunganga/storefront-backend/internal/modules/payment"
	"github.com/georgemunganga/storefront-backend/internal/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var testAddress = json.RawMessage(`{"name":"Ana","line1":"1 Main St","city":"Lusaka"}`)

type fakeGateway struct {
	mu    sync.Mutex
	err   error
	calls []payment.PaymentRequest
}

func (g *fakeGateway) BuildPaymentRequest(_ context.Context, req payment.PaymentRequest) (*payment.PaymentInit, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	if g.err != nil {
		return nil, g.err
	}
	return &payment.PaymentInit{
		PayURL:        "https://pay.example/" + req.OrderCode,
		TransactionID: "req-" + req.OrderCode,
		QRCodeURL:     "https://qr.example/" + req.OrderCode,
	}, nil
}

func (g *fakeGateway) VerifyNotificationSignature(payment.Notification) bool { return true }

type recordingPurchases struct {
	mu    sync.Mutex
	err   error
	calls map[uuid.UUID]int
}

func (p *recordingPurchases) IncrementPurchases(_ context.Context, id uuid.UUID, n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = make(map[uuid.UUID]int)
	}
	p.calls[id] += n
	return p.err
}

type productReaderFunc func(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*catalog.Product, error)

func (f productReaderFunc) GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*catalog.Product, error) {
	return f(ctx, ids)
}

type failingCart struct{ cart.Service }

func (failingCart) Remove(context.Context, string, ...uuid.UUID) error {
	return errors.New("cart store unavailable")
}

type harness struct {
	products  catalog.Repository
	cart      cart.Service
	repo      Repository
	gateway   *fakeGateway
	purchases *recordingPurchases
	metrics   *metrics.Registry
	svc       *service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		products:  catalog.NewMemoryRepository(),
		cart:      cart.NewService(cart.NewMemoryRepository(), nil),
		repo:      NewMemoryRepository(),
		gateway:   &fakeGateway{},
		purchases: &recordingPurchases{},
		metrics:   metrics.New(prometheus.NewRegistry()),
	}
	products := catalog.NewService(h.products)
	h.svc = NewService(Deps{
		Repo:      h.repo,
		Snapshot:  NewSnapshotReader(h.cart, products),
		Ledger:    inventory.NewLedger(h.products, h.metrics),
		Gateway:   h.gateway,
		Cart:      h.cart,
		Purchases: h.purchases,
		Metrics:   h.metrics,
		URLs:      PaymentURLs{RedirectURL: "http://api/return", IPNURL: "http://api/notify"},
	}).(*service)
	return h
}

func (h *harness) product(t *testing.T, name string, price int64, stock int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, h.products.Create(context.Background(), &catalog.Product{
		ID: id, Name: name, Price: price, Stock: stock,
	}))
	return id
}

func (h *harness) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	p, err := h.products.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (h *harness) setPrice(t *testing.T, id uuid.UUID, price int64) {
	t.Helper()
	ctx := context.Background()
	p, err := h.products.GetByID(ctx, id)
	require.NoError(t, err)
	p.Price = price
	require.NoError(t, h.products.Update(ctx, p))
}

func (h *harness) addToCart(t *testing.T, userID string, id uuid.UUID, qty int, selected bool) {
	t.Helper()
	_, err := h.cart.Upsert(context.Background(), userID, cart.UpsertLineRequest{
		ProductID: id.String(), Quantity: qty, Selected: &selected,
	})
	require.NoError(t, err)
}

func buyNow(method string, items ...BuyNowItem) CreateOrderRequest {
	return CreateOrderRequest{
		PreviewRequest:  PreviewRequest{Source: "buy_now", Items: items},
		ShippingAddress: testAddress,
		PaymentMethod:   method,
	}
}

func item(id uuid.UUID, qty int) BuyNowItem { return BuyNowItem{ProductID: id.String(), Quantity: qty} }
