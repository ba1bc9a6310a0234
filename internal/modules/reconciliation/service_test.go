package reconciliation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/georgemunganga/storefront-backend/internal/modules/cart"
	"github.com/georgemunganga/storefront-backend/internal/modules/catalog"
	"github.com/georgemunganga/storefront-backend/internal/modules/inventory"
	"github.com/georgemunganga/storefront-backend/internal/modules/order"
	"github.com/georgemunganga/storefront-backend/internal/modules/payment"
	"github.com/georgemunganga/storefront-backend/internal/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct{ payment.Gateway }

func (stubGateway) BuildPaymentRequest(_ context.Context, req payment.PaymentRequest) (*payment.PaymentInit, error) {
	return &payment.PaymentInit{PayURL: "https://pay.example/" + req.OrderCode, TransactionID: "req-1"}, nil
}

type fixture struct {
	products catalog.Repository
	orders   order.Service
	signer   *payment.Signer
	metrics  *metrics.Registry
	svc      *Service
	lamp     uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		products: catalog.NewMemoryRepository(),
		signer:   payment.NewSigner("AK", "SK", nil, nil),
		metrics:  metrics.New(prometheus.NewRegistry()),
		lamp:     uuid.New(),
	}
	require.NoError(t, f.products.Create(context.Background(), &catalog.Product{ID: f.lamp, Name: "Lamp", Price: 2500, Stock: 5}))

	carts := cart.NewService(cart.NewMemoryRepository(), nil)
	f.orders = order.NewService(order.Deps{
		Repo:     order.NewMemoryRepository(),
		Snapshot: order.NewSnapshotReader(carts, catalog.NewService(f.products)),
		Ledger:   inventory.NewLedger(f.products, f.metrics),
		Gateway:  stubGateway{},
		Cart:     carts,
		Metrics:  f.metrics,
	})
	verifier := payment.NewMomoGateway(payment.MomoConfig{PartnerCode: "MOMO"}, f.signer, nil, nil)
	f.svc = NewService(f.orders, verifier, "https://shop.example", f.metrics)
	return f
}

func (f *fixture) placeOrder(t *testing.T, qty int) *order.Order {
	t.Helper()
	o, err := f.orders.CreateOrder(context.Background(), "u1", order.CreateOrderRequest{
		PreviewRequest: order.PreviewRequest{
			Source: "BUY_NOW",
			Items:  []order.BuyNowItem{{ProductID: f.lamp.String(), Quantity: qty}},
		},
		ShippingAddress: json.RawMessage(`{"city":"Lusaka"}`),
		PaymentMethod:   "GATEWAY",
	})
	require.NoError(t, err)
	return o
}

func (f *fixture) stock(t *testing.T) int {
	t.Helper()
	p, err := f.products.GetByID(context.Background(), f.lamp)
	require.NoError(t, err)
	return p.Stock
}

// notification builds a correctly signed callback for o.
func (f *fixture) notification(t *testing.T, o *order.Order, resultCode int) payment.Notification {
	t.Helper()
	n := payment.Notification{
		PartnerCode:  "MOMO",
		OrderID:      o.OrderCode,
		RequestID:    o.PaymentTransactionID,
		Amount:       payment.Value(strconv.FormatInt(o.Total, 10)),
		OrderInfo:    "Payment for order " + o.OrderCode,
		OrderType:    "momo_wallet",
		TransID:      "4088878653",
		ResultCode:   payment.Value(strconv.Itoa(resultCode)),
		Message:      "Successful.",
		PayType:      "qr",
		ResponseTime: "1767225600000",
		ExtraData:    payment.EncodeOrderRef(o.ID.String()),
	}
	sig, err := f.signer.SignNotification(n)
	require.NoError(t, err)
	n.Signature = sig
	return n
}

func query(n payment.Notification) url.Values {
	q := url.Values{}
	for k, v := range map[string]string{
		"partnerCode": n.PartnerCode, "orderId": n.OrderID, "requestId": n.RequestID,
		"amount": n.Amount.String(), "orderInfo": n.OrderInfo, "orderType": n.OrderType,
		"transId": n.TransID.String(), "resultCode": n.ResultCode.String(), "message": n.Message,
		"payType": n.PayType, "responseTime": n.ResponseTime.String(), "extraData": n.ExtraData,
		"signature": n.Signature,
	} {
		q.Set(k, v)
	}
	return q
}

func TestSuccessfulNotificationIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.placeOrder(t, 2)
	n := f.notification(t, o, 0)

	res := f.svc.HandleNotification(ctx, n)
	assert.Equal(t, StatusProcessed, res.Status)
	assert.Equal(t, o.ID.String(), res.OrderID)

	res = f.svc.HandleNotification(ctx, n)
	assert.Equal(t, StatusDuplicate, res.Status)

	got, err := f.orders.Resolve(ctx, o.ID.String(), "")
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, order.StatusPending, got.Status)
	assert.Equal(t, "4088878653", got.PaymentTransactionID)
	assert.Equal(t, 3, f.stock(t))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PaymentNotifications.WithLabelValues(StatusProcessed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PaymentNotifications.WithLabelValues(StatusDuplicate)))
}

func TestFailedNotificationCancelsAndRestocksOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.placeOrder(t, 2)
	require.Equal(t, 3, f.stock(t))
	n := f.notification(t, o, 1006)

	assert.Equal(t, StatusCancelled, f.svc.HandleNotification(ctx, n).Status)
	assert.Equal(t, 5, f.stock(t))

	assert.Equal(t, StatusDuplicate, f.svc.HandleNotification(ctx, n).Status)
	assert.Equal(t, 5, f.stock(t))

	got, err := f.orders.Resolve(ctx, o.ID.String(), "")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, got.Status)
	assert.Equal(t, order.ReasonPaymentFailed, got.CancelReason)
}

// deliverConcurrently sends n to the service from several goroutines at once
// and tallies the result statuses.
func deliverConcurrently(f *fixture, n payment.Notification, copies int) map[string]int {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		counts = map[string]int{}
	)
	start := make(chan struct{})
	for i := 0; i < copies; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res := f.svc.HandleNotification(context.Background(), n)
			mu.Lock()
			counts[res.Status]++
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()
	return counts
}

func TestConcurrentSuccessNotificationsApplyOnce(t *testing.T) {
	f := newFixture(t)
	o := f.placeOrder(t, 2)

	counts := deliverConcurrently(f, f.notification(t, o, 0), 20)
	assert.Equal(t, 1, counts[StatusProcessed])
	assert.Equal(t, 19, counts[StatusDuplicate])

	got, err := f.orders.Resolve(context.Background(), o.ID.String(), "")
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, 3, f.stock(t))
}

func TestConcurrentFailureNotificationsRestockOnce(t *testing.T) {
	f := newFixture(t)
	o := f.placeOrder(t, 2)

	counts := deliverConcurrently(f, f.notification(t, o, 1006), 20)
	assert.Equal(t, 1, counts[StatusCancelled])
	assert.Equal(t, 19, counts[StatusDuplicate])
	assert.Equal(t, 5, f.stock(t))

	got, err := f.orders.Resolve(context.Background(), o.ID.String(), "")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, got.Status)
}

func TestFailureAfterSuccessChangesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.placeOrder(t, 1)

	require.Equal(t, StatusProcessed, f.svc.HandleNotification(ctx, f.notification(t, o, 0)).Status)
	assert.Equal(t, StatusDuplicate, f.svc.HandleNotification(ctx, f.notification(t, o, 49)).Status)

	got, err := f.orders.Resolve(ctx, o.ID.String(), "")
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, got.Status)
	assert.Equal(t, 4, f.stock(t))
}

func TestInvalidSignatureIsRejectedWithoutMutation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.placeOrder(t, 1)

	n := f.notification(t, o, 0)
	n.Amount = "1"
	assert.Equal(t, StatusRejected, f.svc.HandleNotification(ctx, n).Status)

	n = f.notification(t, o, 1006)
	n.Signature = "not-hex"
	assert.Equal(t, StatusRejected, f.svc.HandleNotification(ctx, n).Status)

	got, err := f.orders.Resolve(ctx, o.ID.String(), "")
	require.NoError(t, err)
	assert.Equal(t, order.PaymentUnpaid, got.PaymentStatus)
	assert.Equal(t, order.StatusPending, got.Status)
	assert.Equal(t, 4, f.stock(t))
}

func TestUnknownOrderIsNotFound(t *testing.T) {
	f := newFixture(t)
	ghost := &order.Order{ID: uuid.New(), OrderCode: "ORD-20260101-FFFFFF", Total: 100}

	res := f.svc.HandleNotification(context.Background(), f.notification(t, ghost, 0))
	assert.Equal(t, StatusNotFound, res.Status)
}

func TestLookupFallsBackToOrderCode(t *testing.T) {
	f := newFixture(t)
	o := f.placeOrder(t, 1)
	n := f.notification(t, o, 0)
	n.ExtraData = ""
	sig, err := f.signer.SignNotification(n)
	require.NoError(t, err)
	n.Signature = sig

	assert.Equal(t, StatusProcessed, f.svc.HandleNotification(context.Background(), n).Status)
}

func TestAmountMismatchIsRejected(t *testing.T) {
	f := newFixture(t)
	o := f.placeOrder(t, 1)
	tampered := *o
	tampered.Total = 1

	res := f.svc.HandleNotification(context.Background(), f.notification(t, &tampered, 0))
	assert.Equal(t, StatusRejected, res.Status)

	got, err := f.orders.Resolve(context.Background(), o.ID.String(), "")
	require.NoError(t, err)
	assert.Equal(t, order.PaymentUnpaid, got.PaymentStatus)
}

func TestReturnAndNotificationCommute(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.placeOrder(t, 1)
	n := f.notification(t, o, 0)

	target, res := f.svc.HandleReturn(ctx, query(n))
	assert.Equal(t, StatusProcessed, res.Status)
	assert.Equal(t, "https://shop.example/orders/"+o.ID.String()+"?payment=success", target)

	assert.Equal(t, StatusDuplicate, f.svc.HandleNotification(ctx, n).Status)

	target, res = f.svc.HandleReturn(ctx, query(n))
	assert.Equal(t, StatusDuplicate, res.Status)
	assert.True(t, strings.HasSuffix(target, "?payment=success"))
}

func TestFailedReturnDefersToNotification(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.placeOrder(t, 1)

	target, res := f.svc.HandleReturn(ctx, query(f.notification(t, o, 1006)))
	assert.Equal(t, StatusDeferred, res.Status)
	assert.Equal(t, "https://shop.example/orders/"+o.ID.String()+"?payment=failed", target)

	got, err := f.orders.Resolve(ctx, o.ID.String(), "")
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, got.Status)
	assert.Equal(t, 4, f.stock(t))
}

func TestReturnWithBadSignature(t *testing.T) {
	f := newFixture(t)
	o := f.placeOrder(t, 1)
	q := query(f.notification(t, o, 0))
	q.Set("signature", "00")

	target, res := f.svc.HandleReturn(context.Background(), q)
	assert.Equal(t, StatusRejected, res.Status)
	assert.Equal(t, "https://shop.example/orders/"+o.ID.String()+"?payment=failed", target)

	target, _ = f.svc.HandleReturn(context.Background(), url.Values{})
	assert.Equal(t, "https://shop.example/orders?payment=failed", target)
}

func TestHandlerRoutes(t *testing.T) {
	f := newFixture(t)
	o := f.placeOrder(t, 1)
	r := chi.NewRouter()
	NewHandler(f.svc).RegisterRoutes(r)

	body, err := json.Marshal(f.notification(t, o, 0))
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/payments/momo/notify", strings.NewReader(string(body))))
	require.Equal(t, http.StatusOK, rec.Code)
	var res Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, StatusProcessed, res.Status)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/payments/momo/notify", strings.NewReader("{")))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), StatusRejected)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/payments/momo/return?"+query(f.notification(t, o, 0)).Encode(), nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://shop.example/orders/"+o.ID.String()+"?payment=success", rec.Header().Get("Location"))
}
