// Package reconciliation applies asynchronous gateway callbacks to orders.
// Every entry point is idempotent under repeated or reordered delivery.
package reconciliation

import (
	"context"
	"net/url"

	"github.com/georgemunganga/storefront-backend/internal/modules/order"
	"github.com/georgemunganga/storefront-backend/internal/modules/payment"
	"github.com/georgemunganga/storefront-backend/internal/pkg/apperr"
	"github.com/georgemunganga/storefront-backend/internal/pkg/logging"
	"github.com/georgemunganga/storefront-backend/internal/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Result statuses.
const (
	StatusProcessed = "processed"
	StatusDuplicate = "duplicate"
	StatusCancelled = "cancelled"
	StatusDeferred  = "deferred"
	StatusRejected  = "rejected"
	StatusNotFound  = "not_found"
	StatusError     = "error"
)

// Result is the structured acknowledgement returned to the gateway.
type Result struct {
	Status    string `json:"status"`
	OrderID   string `json:"order_id,omitempty"`
	OrderCode string `json:"order_code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Orders is the slice of the order service reconciliation drives.
type Orders interface {
	Resolve(ctx context.Context, ref, code string) (*order.Order, error)
	MarkPaid(ctx context.Context, id uuid.UUID, txnID string) (*order.Order, bool, error)
	CancelUnpaid(ctx context.Context, id uuid.UUID, reason string) (*order.Order, bool, error)
}

// Verifier checks gateway signatures.
type Verifier interface {
	VerifyNotificationSignature(n payment.Notification) bool
}

// Service reconciles gateway callbacks with order state.
type Service struct {
	orders    Orders
	verifier  Verifier
	clientURL string
	metrics   *metrics.Registry
}

// NewService creates a reconciliation service. clientURL is the storefront
// base the return redirect points at.
func NewService(orders Orders, verifier Verifier, clientURL string, m *metrics.Registry) *Service {
	return &Service{orders: orders, verifier: verifier, clientURL: clientURL, metrics: m}
}

// HandleNotification is the authoritative callback path. It never fails; the
// Result says what happened.
func (s *Service) HandleNotification(ctx context.Context, n payment.Notification) Result {
	res := s.handleNotification(ctx, n)
	s.metrics.NotificationHandled(res.Status)
	logging.FromContext(ctx).Info("payment_notification",
		zap.String("status", res.Status),
		zap.String("order_code", n.OrderID),
		zap.String("result_code", n.ResultCode.String()),
		zap.String("message", res.Message))
	return res
}

func (s *Service) handleNotification(ctx context.Context, n payment.Notification) Result {
	o, res, ok := s.lookup(ctx, n)
	if !ok {
		return res
	}
	if o.PaymentStatus != order.PaymentUnpaid {
		return result(StatusDuplicate, o, "payment already "+string(o.PaymentStatus))
	}

	if n.Succeeded() {
		return s.markPaid(ctx, o, n)
	}

	_, cancelled, err := s.orders.CancelUnpaid(ctx, o.ID, order.ReasonPaymentFailed)
	switch {
	case apperr.CodeOf(err) == order.CodePaymentSettled:
		return result(StatusDuplicate, o, "payment settled concurrently")
	case err != nil:
		logging.FromContext(ctx).Error("payment_failure_cancel_failed",
			zap.String("order_id", o.ID.String()), zap.Error(err))
		return result(StatusError, o, "cancellation failed")
	case !cancelled:
		return result(StatusDuplicate, o, "order already cancelled")
	}
	return result(StatusCancelled, o, n.Message)
}

// HandleReturn applies the success case of a return redirect and reports where
// to send the customer. A failure code is left to the notification path.
func (s *Service) HandleReturn(ctx context.Context, q url.Values) (string, Result) {
	n := payment.NotificationFromQuery(q)
	o, res, ok := s.lookup(ctx, n)
	if !ok {
		logging.FromContext(ctx).Info("payment_return", zap.String("status", res.Status))
		if ref, err := uuid.Parse(payment.DecodeOrderRef(n.ExtraData)); err == nil {
			return s.redirect(ref.String(), false), res
		}
		return s.clientURL + "/orders?payment=failed", res
	}

	switch {
	case !n.Succeeded():
		res = result(StatusDeferred, o, "awaiting gateway notification")
	case o.PaymentStatus != order.PaymentUnpaid:
		res = result(StatusDuplicate, o, "payment already "+string(o.PaymentStatus))
	default:
		res = s.markPaid(ctx, o, n)
	}
	logging.FromContext(ctx).Info("payment_return",
		zap.String("status", res.Status), zap.String("order_id", o.ID.String()))

	success := n.Succeeded() && (res.Status == StatusProcessed || res.Status == StatusDuplicate)
	return s.redirect(o.ID.String(), success), res
}

// lookup verifies the signature and resolves the order. ok is false when the
// returned Result is final.
func (s *Service) lookup(ctx context.Context, n payment.Notification) (*order.Order, Result, bool) {
	if !s.verifier.VerifyNotificationSignature(n) {
		logging.FromContext(ctx).Warn("payment_signature_invalid", zap.String("order_code", n.OrderID))
		return nil, Result{Status: StatusRejected, OrderCode: n.OrderID, Message: "invalid signature"}, false
	}
	ref := payment.DecodeOrderRef(n.ExtraData)
	o, err := s.orders.Resolve(ctx, ref, n.OrderID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil, Result{Status: StatusNotFound, OrderCode: n.OrderID, Message: "order not found"}, false
		}
		logging.FromContext(ctx).Error("payment_order_lookup_failed", zap.Error(err))
		return nil, Result{Status: StatusError, OrderCode: n.OrderID, Message: "order lookup failed"}, false
	}
	return o, Result{}, true
}

func (s *Service) markPaid(ctx context.Context, o *order.Order, n payment.Notification) Result {
	if amount, err := n.Amount.Int(); err == nil && amount != o.Total {
		logging.FromContext(ctx).Warn("payment_amount_mismatch",
			zap.String("order_id", o.ID.String()),
			zap.Int64("amount", amount),
			zap.Int64("total", o.Total))
		return result(StatusRejected, o, "amount does not match order total")
	}
	_, applied, err := s.orders.MarkPaid(ctx, o.ID, n.TransID.String())
	if err != nil {
		logging.FromContext(ctx).Error("payment_mark_paid_failed",
			zap.String("order_id", o.ID.String()), zap.Error(err))
		return result(StatusError, o, "recording payment failed")
	}
	if !applied {
		return result(StatusDuplicate, o, "payment already recorded")
	}
	return result(StatusProcessed, o, "payment recorded")
}

func (s *Service) redirect(orderID string, success bool) string {
	outcome := "failed"
	if success {
		outcome = "success"
	}
	return s.clientURL + "/orders/" + url.PathEscape(orderID) + "?payment=" + outcome
}

func result(status string, o *order.Order, msg string) Result {
	return Result{Status: status, OrderID: o.ID.String(), OrderCode: o.OrderCode, Message: msg}
}
