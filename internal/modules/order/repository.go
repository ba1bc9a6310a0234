package order

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines data access for orders.
type Repository interface {
	// Create persists a new order and its lines atomically. A taken order code
	// is a Conflict with code ORDER_CODE_TAKEN.
	Create(ctx context.Context, o *Order) error

	// FindByID retrieves an order with its lines and shipping address.
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByCode retrieves an order by its human-readable code.
	FindByCode(ctx context.Context, code string) (*Order, error)

	// UpdateFields applies a partial update of non-state fields.
	UpdateFields(ctx context.Context, id uuid.UUID, p Patch, at int64) error

	// Transition moves the order to c.To, but only if its current status may
	// precede c.To (and, when set, its payment status is c.IfPayment). The
	// check and the write are one conditional statement. It fails with
	// InvalidTransition, PAYMENT_SETTLED or NotFound and returns the updated order.
	Transition(ctx context.Context, id uuid.UUID, c Change) (*Order, error)

	// MarkPaid sets the payment status to PAID and records txnID, only if the
	// order is still UNPAID. It reports whether the write was applied.
	MarkPaid(ctx context.Context, id uuid.UUID, txnID string, at int64) (bool, error)

	// SetPaymentStatus moves the payment status along the payment state machine.
	SetPaymentStatus(ctx context.Context, id uuid.UUID, to PaymentStatus, at int64) (*Order, error)

	// ListByUser returns one page of the user's orders, newest first, without shipping addresses.
	ListByUser(ctx context.Context, userID string, q ListQuery) (*PageResult, error)

	// ListAll returns one page of all orders, newest first, without shipping addresses.
	ListAll(ctx context.Context, q ListQuery) (*PageResult, error)

	// ListStale returns PENDING/UNPAID orders of method created before the cutoff, oldest first.
	ListStale(ctx context.Context, method PaymentMethod, createdBefore int64, limit int) ([]*Order, error)
}
