package order

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/georgemunganga/storefront-backend/internal/modules/auth"
	"github.com/georgemunganga/storefront-backend/internal/modules/events"
	"github.com/georgemunganga/storefront-backend/internal/modules/inventory"
	"github.com/georgemunganga/storefront-backend/internal/modules/payment"
	"github.com/georgemunganga/storefront-backend/internal/pkg/apperr"
	"github.com/georgemunganga/storefront-backend/internal/pkg/logging"
	"github.com/georgemunganga/storefront-backend/internal/pkg/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// CodeOrderCodeTaken marks a unique-constraint clash on order_code.
	CodeOrderCodeTaken = "ORDER_CODE_TAKEN"
	// CodePaymentSettled marks a cancellation refused because payment moved on.
	CodePaymentSettled = "PAYMENT_SETTLED"
)

const (
	codeAttempts = 3

	ReasonCheckoutFailed = "checkout_failed"
	ReasonPaymentInit    = "payment_init_failed"
	ReasonPaymentFailed  = "payment_failed"
	ReasonPaymentTimeout = "payment_timeout"
	ReasonCustomer       = "cancelled_by_customer"
	ReasonAdmin          = "cancelled_by_admin"
)

var tracer = otel.Tracer("github.com/georgemunganga/storefront-backend/internal/modules/order")

// Service defines the order orchestration business logic.
type Service interface {
	// Preview prices the requested lines exactly as CreateOrder would, without side effects.
	Preview(ctx context.Context, userID string, req PreviewRequest) (*Preview, error)

	// CreateOrder reserves stock, persists the order, initiates gateway payment
	// when requested and clears ordered cart lines. Any failure after the first
	// reservation releases everything reserved.
	CreateOrder(ctx context.Context, userID string, req CreateOrderRequest) (*Order, error)

	// GetOrder returns the full order to its owner or an admin.
	GetOrder(ctx context.Context, caller auth.Principal, id uuid.UUID) (*Order, error)

	// ListMine pages through the caller's own orders.
	ListMine(ctx context.Context, userID string, q ListQuery) (*PageResult, error)

	// ListAll pages through every order.
	ListAll(ctx context.Context, q ListQuery) (*PageResult, error)

	// Cancel cancels a PENDING or CONFIRMED order owned by the caller (or any, for admins).
	Cancel(ctx context.Context, caller auth.Principal, id uuid.UUID, reason string) (*Order, error)

	// UpdateStatus advances an order along the state machine.
	UpdateStatus(ctx context.Context, id uuid.UUID, req UpdateStatusRequest) (*Order, error)

	// UpdatePaymentStatus moves the payment status along the payment state machine.
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, req UpdatePaymentStatusRequest) (*Order, error)

	// CancelAndRestock cancels the order and restores its stock. Only the call
	// whose transition applied restores stock; an already cancelled order is
	// returned with cancelled=false and no error.
	CancelAndRestock(ctx context.Context, id uuid.UUID, reason string) (o *Order, cancelled bool, err error)

	// CancelUnpaid is CancelAndRestock restricted to orders that are still
	// UNPAID at the moment of the write.
	CancelUnpaid(ctx context.Context, id uuid.UUID, reason string) (o *Order, cancelled bool, err error)

	// MarkPaid records a successful payment once. applied is false when the
	// order was not UNPAID.
	MarkPaid(ctx context.Context, id uuid.UUID, txnID string) (o *Order, applied bool, err error)

	// Resolve finds an order by internal reference, falling back to its code.
	Resolve(ctx context.Context, ref, code string) (*Order, error)
}

// CartRemover deletes ordered lines from a cart.
type CartRemover interface {
	Remove(ctx context.Context, userID string, productIDs ...uuid.UUID) error
}

// PurchaseCounter bumps a product's purchases counter.
type PurchaseCounter interface {
	IncrementPurchases(ctx context.Context, id uuid.UUID, n int) error
}

// TaskRunner runs best-effort side effects off the request path.
type TaskRunner interface {
	Go(ctx context.Context, name string, fn func(context.Context) error)
}

// EventEmitter publishes order lifecycle events.
type EventEmitter interface {
	Emit(ctx context.Context, ev events.Event)
}

// PaymentURLs are the callback endpoints handed to the gateway.
type PaymentURLs struct {
	RedirectURL string
	IPNURL      string
}

// Deps wires a Service. Gateway, Tasks, Events and Metrics may be nil.
type Deps struct {
	Repo      Repository
	Snapshot  *SnapshotReader
	Ledger    inventory.Ledger
	Gateway   payment.Gateway
	Cart      CartRemover
	Purchases PurchaseCounter
	Tasks     TaskRunner
	Events    EventEmitter
	Metrics   *metrics.Registry
	URLs      PaymentURLs
}

type service struct {
	Deps
	now func() time.Time
}

// NewService creates a new order service.
func NewService(d Deps) Service {
	if d.Tasks == nil {
		d.Tasks = inlineTasks{}
	}
	return &service{Deps: d, now: time.Now}
}

func (s *service) millis() int64 { return s.now().UnixMilli() }

func (s *service) Preview(ctx context.Context, userID string, req PreviewRequest) (*Preview, error) {
	in, err := parseCandidates(req)
	if err != nil {
		return nil, err
	}
	snap, err := s.Snapshot.ResolveOrderCandidates(ctx, userID, in)
	if err != nil {
		return nil, err
	}
	return &Preview{Source: snap.Source, Lines: snap.Lines, Total: snap.Total}, nil
}

func (s *service) CreateOrder(ctx context.Context, userID string, req CreateOrderRequest) (*Order, error) {
	ctx, span := tracer.Start(ctx, "order.create", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	o, err := s.createOrder(ctx, userID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.KindOf(err)))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("order.id", o.ID.String()),
		attribute.String("order.code", o.OrderCode),
		attribute.Int64("order.total", o.Total),
	)
	return o, nil
}

func (s *service) createOrder(ctx context.Context, userID string, req CreateOrderRequest) (*Order, error) {
	logger := logging.FromContext(ctx).With(zap.String("user_id", userID))

	// ── Validate before any side effect ──────────────────────────────────────
	method, ok := ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		return nil, apperr.Validation("payment_method must be COD or GATEWAY")
	}
	if method == MethodGateway && s.Gateway == nil {
		return nil, apperr.Validation("gateway payment is not available")
	}
	if !validAddress(req.ShippingAddress) {
		return nil, apperr.Validation("shipping_address must be a JSON object")
	}
	in, err := parseCandidates(req.PreviewRequest)
	if err != nil {
		return nil, err
	}

	// ── 1. Snapshot ──────────────────────────────────────────────────────────
	snap, err := s.Snapshot.ResolveOrderCandidates(ctx, userID, in)
	if err != nil {
		s.Metrics.OrderCreateFailed("snapshot")
		return nil, err
	}

	// ── 2. Reserve stock line by line ────────────────────────────────────────
	sg := newSaga(s.Metrics)
	for _, l := range snap.Lines {
		if l.Quantity <= 0 {
			sg.compensate(ctx)
			s.Metrics.OrderCreateFailed("invalid_line")
			return nil, apperr.Validation(fmt.Sprintf("invalid quantity %d for %s", l.Quantity, l.Name))
		}
		applied, err := s.Ledger.AdjustStock(ctx, l.ProductID, -l.Quantity)
		if err == nil && !applied {
			err = apperr.Conflict(apperr.CodeOutOfStock, fmt.Sprintf("%s is out of stock", l.Name))
		}
		if err != nil {
			logger.Info("order_reservation_failed",
				zap.String("product_id", l.ProductID.String()), zap.Error(err))
			sg.compensate(ctx)
			s.Metrics.OrderCreateFailed("out_of_stock")
			return nil, err
		}
		res := inventory.Reservation{ProductID: l.ProductID, Quantity: l.Quantity}
		sg.push("restore_stock", func(ctx context.Context) error {
			return s.Ledger.Restore(ctx, []inventory.Reservation{res})
		})
	}

	// ── 3. Persist ───────────────────────────────────────────────────────────
	now := s.millis()
	o := &Order{
		ID:              uuid.New(),
		UserID:          userID,
		Lines:           snap.Lines,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   method,
		Status:          StatusPending,
		PaymentStatus:   PaymentUnpaid,
		Total:           snap.Total,
		CreatedAt:       now,
		PendingAt:       now,
		UpdatedAt:       now,
	}
	if err := s.persist(ctx, o); err != nil {
		sg.compensate(ctx)
		s.Metrics.OrderCreateFailed("persist")
		return nil, err
	}

	// From here the order owns its reservations.
	reason := ReasonCheckoutFailed
	sg.handOff("cancel_order", func(ctx context.Context) error {
		_, _, err := s.CancelUnpaid(ctx, o.ID, reason)
		return err
	})

	// ── 4. Gateway payment ───────────────────────────────────────────────────
	if method == MethodGateway {
		pi, err := s.Gateway.BuildPaymentRequest(ctx, payment.PaymentRequest{
			OrderCode:   o.OrderCode,
			OrderRef:    o.ID.String(),
			Amount:      o.Total,
			OrderInfo:   fmt.Sprintf("Payment for order %s", o.OrderCode),
			RedirectURL: s.URLs.RedirectURL,
			IPNURL:      s.URLs.IPNURL,
		})
		if err != nil {
			reason = ReasonPaymentInit
			logger.Warn("order_payment_init_failed", zap.String("order_code", o.OrderCode), zap.Error(err))
			sg.compensate(ctx)
			s.Metrics.OrderCreateFailed("gateway")
			return nil, err
		}
		if err := s.Repo.UpdateFields(ctx, o.ID, Patch{
			PaymentURL:           &pi.PayURL,
			PaymentTransactionID: &pi.TransactionID,
		}, s.millis()); err != nil {
			sg.compensate(ctx)
			s.Metrics.OrderCreateFailed("persist")
			return nil, err
		}
		o.PaymentURL = pi.PayURL
		o.PaymentTransactionID = pi.TransactionID
		o.QRCodeURL = pi.QRCodeURL
	}

	// ── 5. Clear ordered cart lines ──────────────────────────────────────────
	if snap.Source == SourceCart && s.Cart != nil {
		ids := make([]uuid.UUID, len(o.Lines))
		for i, l := range o.Lines {
			ids[i] = l.ProductID
		}
		if err := s.Cart.Remove(ctx, userID, ids...); err != nil {
			sg.compensate(ctx)
			s.Metrics.OrderCreateFailed("cart")
			return nil, err
		}
	}

	sg.complete()
	s.Metrics.OrderCreated(string(method))
	s.emit(ctx, events.OrderCreated, o, "")
	logger.Info("order_created",
		zap.String("order_id", o.ID.String()),
		zap.String("order_code", o.OrderCode),
		zap.String("payment_method", string(method)),
		zap.Int64("total", o.Total))
	return o, nil
}

// persist inserts o, drawing a fresh order code when one is already taken.
func (s *service) persist(ctx context.Context, o *Order) error {
	var err error
	for attempt := 0; attempt < codeAttempts; attempt++ {
		o.OrderCode = generateOrderCode(s.now())
		if err = s.Repo.Create(ctx, o); apperr.CodeOf(err) != CodeOrderCodeTaken {
			return err
		}
	}
	return err
}

func (s *service) GetOrder(ctx context.Context, caller auth.Principal, id uuid.UUID) (*Order, error) {
	o, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && o.UserID != caller.UserID {
		return nil, apperr.Forbidden("order belongs to another user")
	}
	return o, nil
}

func (s *service) ListMine(ctx context.Context, userID string, q ListQuery) (*PageResult, error) {
	return s.Repo.ListByUser(ctx, userID, q)
}

func (s *service) ListAll(ctx context.Context, q ListQuery) (*PageResult, error) {
	return s.Repo.ListAll(ctx, q)
}

func (s *service) Cancel(ctx context.Context, caller auth.Principal, id uuid.UUID, reason string) (*Order, error) {
	o, err := s.GetOrder(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return nil, apperr.InvalidTransition(string(o.Status), string(StatusCancelled))
	}
	if reason == "" {
		reason = ReasonCustomer
		if caller.IsAdmin() && o.UserID != caller.UserID {
			reason = ReasonAdmin
		}
	}
	o, cancelled, err := s.CancelAndRestock(ctx, id, reason)
	if err != nil {
		return nil, err
	}
	if !cancelled {
		return nil, apperr.InvalidTransition(string(o.Status), string(StatusCancelled))
	}
	return o, nil
}

func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, req UpdateStatusRequest) (*Order, error) {
	to, ok := ParseStatus(req.Status)
	if !ok {
		return nil, apperr.Validation(fmt.Sprintf("unknown status %q", req.Status))
	}
	if to == StatusCancelled {
		reason := req.Reason
		if reason == "" {
			reason = ReasonAdmin
		}
		o, cancelled, err := s.CancelAndRestock(ctx, id, reason)
		if err != nil {
			return nil, err
		}
		if !cancelled {
			return nil, apperr.InvalidTransition(string(o.Status), string(to))
		}
		return o, nil
	}

	o, err := s.Repo.Transition(ctx, id, Change{To: to, At: s.millis()})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.OrderStatusChanged, o, "")
	if to == StatusDelivered {
		s.countPurchases(ctx, o)
	}
	return o, nil
}

// countPurchases bumps the purchases counter of every line. It never fails the caller.
func (s *service) countPurchases(ctx context.Context, o *Order) {
	if s.Purchases == nil {
		return
	}
	for _, l := range o.Lines {
		s.Tasks.Go(ctx, "increment_purchases", func(ctx context.Context) error {
			return s.Purchases.IncrementPurchases(ctx, l.ProductID, l.Quantity)
		})
	}
}

func (s *service) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, req UpdatePaymentStatusRequest) (*Order, error) {
	to, ok := ParsePaymentStatus(req.PaymentStatus)
	if !ok {
		return nil, apperr.Validation(fmt.Sprintf("unknown payment status %q", req.PaymentStatus))
	}
	o, err := s.Repo.SetPaymentStatus(ctx, id, to, s.millis())
	if err != nil {
		return nil, err
	}
	if to == PaymentPaid {
		s.emit(ctx, events.OrderPaid, o, "")
	} else {
		s.emit(ctx, events.OrderStatusChanged, o, "")
	}
	return o, nil
}

func (s *service) CancelAndRestock(ctx context.Context, id uuid.UUID, reason string) (*Order, bool, error) {
	return s.cancel(ctx, id, reason, "")
}

func (s *service) CancelUnpaid(ctx context.Context, id uuid.UUID, reason string) (*Order, bool, error) {
	return s.cancel(ctx, id, reason, PaymentUnpaid)
}

func (s *service) cancel(ctx context.Context, id uuid.UUID, reason string, ifPayment PaymentStatus) (*Order, bool, error) {
	logger := logging.FromContext(ctx).With(zap.String("order_id", id.String()))
	o, err := s.Repo.Transition(ctx, id, Change{
		To:        StatusCancelled,
		At:        s.millis(),
		Reason:    reason,
		IfPayment: ifPayment,
	})
	if err != nil {
		if !apperr.IsKind(err, apperr.KindInvalidTransition) {
			return nil, false, err
		}
		current, ferr := s.Repo.FindByID(ctx, id)
		if ferr != nil {
			return nil, false, ferr
		}
		if current.Status == StatusCancelled {
			return current, false, nil
		}
		return nil, false, err
	}

	reservations := make([]inventory.Reservation, len(o.Lines))
	for i, l := range o.Lines {
		reservations[i] = inventory.Reservation{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	if err := s.Ledger.Restore(ctx, reservations); err != nil {
		logger.Error("order_restock_failed", zap.Error(err))
		return o, true, err
	}
	s.emit(ctx, events.OrderCancelled, o, reason)
	logger.Info("order_cancelled", zap.String("reason", reason))
	return o, true, nil
}

func (s *service) MarkPaid(ctx context.Context, id uuid.UUID, txnID string) (*Order, bool, error) {
	applied, err := s.Repo.MarkPaid(ctx, id, txnID, s.millis())
	if err != nil {
		return nil, false, err
	}
	o, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, applied, err
	}
	if applied {
		if o.Status == StatusCancelled {
			logging.FromContext(ctx).Warn("paid_after_cancel",
				zap.String("order_id", o.ID.String()),
				zap.String("transaction_id", txnID))
		}
		s.emit(ctx, events.OrderPaid, o, "")
	}
	return o, applied, nil
}

func (s *service) Resolve(ctx context.Context, ref, code string) (*Order, error) {
	if id, err := uuid.Parse(strings.TrimSpace(ref)); err == nil {
		o, err := s.Repo.FindByID(ctx, id)
		if err == nil || !apperr.IsKind(err, apperr.KindNotFound) || code == "" {
			return o, err
		}
	}
	if code == "" {
		return nil, orderNotFound()
	}
	return s.Repo.FindByCode(ctx, code)
}

func (s *service) emit(ctx context.Context, typ string, o *Order, reason string) {
	if s.Events == nil {
		return
	}
	s.Events.Emit(ctx, events.Event{
		Type:          typ,
		OrderID:       o.ID.String(),
		OrderCode:     o.OrderCode,
		UserID:        o.UserID,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Total:         o.Total,
		Reason:        reason,
		OccurredAt:    s.millis(),
	})
}

// ── helpers ──────────────────────────────────────────────────────────────────

func parseCandidates(req PreviewRequest) (CandidateRequest, error) {
	src, ok := ParseSource(req.Source)
	if !ok {
		return CandidateRequest{}, apperr.Validation(fmt.Sprintf("unknown source %q", req.Source))
	}
	in := CandidateRequest{Source: src}
	for _, raw := range req.ProductIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return CandidateRequest{}, apperr.Validation(fmt.Sprintf("invalid product id %q", raw))
		}
		in.ProductIDs = append(in.ProductIDs, id)
	}
	if src == SourceBuyNow {
		for _, it := range req.Items {
			id, err := uuid.Parse(it.ProductID)
			if err != nil {
				return CandidateRequest{}, apperr.Validation(fmt.Sprintf("invalid product id %q", it.ProductID))
			}
			in.Items = append(in.Items, inventory.Reservation{ProductID: id, Quantity: it.Quantity})
		}
	}
	return in, nil
}

func validAddress(raw json.RawMessage) bool {
	var obj map[string]interface{}
	return len(raw) > 0 && json.Unmarshal(raw, &obj) == nil && len(obj) > 0
}

// generateOrderCode creates a human-readable order code: ORD-YYYYMMDD-XXXXXX
func generateOrderCode(now time.Time) string {
	date := now.UTC().Format("20060102")
	suffix := strings.ToUpper(uuid.New().String()[:6])
	return fmt.Sprintf("ORD-%s-%s", date, suffix)
}

func orderNotFound() error {
	return apperr.NotFound(apperr.CodeOrderNotFound, "order not found")
}

func paymentSettled(ps PaymentStatus) error {
	return apperr.Conflict(CodePaymentSettled, fmt.Sprintf("payment is already %s", ps))
}

// inlineTasks runs side effects synchronously and only logs their failure.
type inlineTasks struct{}

func (inlineTasks) Go(ctx context.Context, name string, fn func(context.Context) error) {
	if err := fn(context.WithoutCancel(ctx)); err != nil {
		logging.FromContext(ctx).Warn("side_effect_failed", zap.String("task", name), zap.Error(err))
	}
}
