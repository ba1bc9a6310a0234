package order

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// Status represents the fulfilment lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipping  Status = "SHIPPING"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// PaymentStatus tracks money movement independently of fulfilment.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "UNPAID"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// PaymentMethod indicates how the customer pays.
type PaymentMethod string

const (
	MethodCOD     PaymentMethod = "COD"
	MethodGateway PaymentMethod = "GATEWAY"
)

// Source indicates where order candidates come from.
type Source string

const (
	SourceCart   Source = "CART"
	SourceBuyNow Source = "BUY_NOW"
)

// ParseSource normalises the wire value; empty means cart.
func ParseSource(s string) (Source, bool) {
	switch strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(s, "-", "_"))) {
	case "", "CART":
		return SourceCart, true
	case "BUY_NOW", "BUYNOW":
		return SourceBuyNow, true
	}
	return "", false
}

// ParsePaymentMethod normalises the wire value.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "COD", "CASH_ON_DELIVERY":
		return MethodCOD, true
	case "GATEWAY", "MOMO":
		return MethodGateway, true
	}
	return "", false
}

// ParseStatus normalises the wire value.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := statusTimestamp[st]
	return st, ok
}

// ParsePaymentStatus normalises the wire value.
func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	ps := PaymentStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch ps {
	case PaymentUnpaid, PaymentPaid, PaymentRefunded:
		return ps, true
	}
	return "", false
}

// Line is a product snapshot taken when the order was placed. It never changes afterwards.
type Line struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	UnitPrice int64     `json:"unit_price"`
	Quantity  int       `json:"quantity"`
	ImageURL  string    `json:"image_url,omitempty"`
}

func (l Line) Subtotal() int64 { return l.UnitPrice * int64(l.Quantity) }

// Order is a customer's purchase. Amounts are minor currency units and
// timestamps are epoch milliseconds; a zero timestamp means not reached.
type Order struct {
	ID                   uuid.UUID       `json:"id"`
	OrderCode            string          `json:"order_code"`
	UserID               string          `json:"user_id"`
	Lines                []Line          `json:"lines"`
	ShippingAddress      json.RawMessage `json:"shipping_address,omitempty"` // omitted from list reads
	PaymentMethod        PaymentMethod   `json:"payment_method"`
	Status               Status          `json:"status"`
	PaymentStatus        PaymentStatus   `json:"payment_status"`
	PaymentURL           string          `json:"payment_url,omitempty"`
	PaymentTransactionID string          `json:"payment_transaction_id,omitempty"`
	QRCodeURL            string          `json:"qr_code_url,omitempty"` // returned on creation only
	Total                int64           `json:"total"`
	CancelReason         string          `json:"cancel_reason,omitempty"`
	CreatedAt            int64           `json:"created_at"`
	PendingAt            int64           `json:"pending_at,omitempty"`
	ConfirmedAt          int64           `json:"confirmed_at,omitempty"`
	ShippingAt           int64           `json:"shipping_at,omitempty"`
	DeliveredAt          int64           `json:"delivered_at,omitempty"`
	CancelledAt          int64           `json:"cancelled_at,omitempty"`
	UpdatedAt            int64           `json:"updated_at"`
}

// Patch is a partial update of non-state fields. Nil fields are left untouched.
type Patch struct {
	PaymentURL           *string
	PaymentTransactionID *string
}

// Change is a guarded status transition.
type Change struct {
	To        Status
	At        int64
	Reason    string        // recorded on cancellation
	IfPayment PaymentStatus // optional payment status guard
}

// ListQuery pages through orders, optionally filtered by status.
type ListQuery struct {
	Page   int
	Limit  int
	Status Status
}

const (
	defaultLimit = 10
	maxLimit     = 100
)

func (q ListQuery) normalised() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return q
}

func (q ListQuery) offset() int { return (q.Page - 1) * q.Limit }

// PageResult is one page of list projections.
type PageResult struct {
	Orders []*Order `json:"orders"`
	Total  int      `json:"total"`
	Page   int      `json:"page"`
	Limit  int      `json:"limit"`
}

// ── Request DTOs ──────────────────────────────────────────────────────────────

// BuyNowItem is a caller-supplied line for the buy-now flow.
type BuyNowItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// PreviewRequest selects order candidates without side effects.
type PreviewRequest struct {
	Source     string       `json:"source"`
	ProductIDs []string     `json:"product_ids,omitempty"` // narrows selected cart lines
	Items      []BuyNowItem `json:"items,omitempty"`       // buy-now lines
}

// CreateOrderRequest is the payload for placing an order.
type CreateOrderRequest struct {
	PreviewRequest
	ShippingAddress json.RawMessage `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
}

// Preview is the priced snapshot shown before checkout.
type Preview struct {
	Source Source `json:"source"`
	Lines  []Line `json:"lines"`
	Total  int64  `json:"total"`
}

// UpdateStatusRequest is the payload for advancing an order's status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// UpdatePaymentStatusRequest is the admin payload for payment status changes.
type UpdatePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status"`
}

// CancelRequest optionally explains a cancellation.
type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}
