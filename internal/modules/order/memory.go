package order

import (
	"context"
	"sort"
	"sync"

	"github.com/georgemunganga/storefront-backend/internal/pkg/apperr"
	"github.com/google/uuid"
)

type memoryRepo struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*Order
	codes  map[string]uuid.UUID
}

// NewMemoryRepository returns an in-process Repository. Conditional writes
// hold the write lock across the check and the write.
func NewMemoryRepository() Repository {
	return &memoryRepo{orders: make(map[uuid.UUID]*Order), codes: make(map[string]uuid.UUID)}
}

func clone(o *Order, withAddress bool) *Order {
	c := *o
	c.Lines = append([]Line(nil), o.Lines...)
	if withAddress && o.ShippingAddress != nil {
		c.ShippingAddress = append([]byte(nil), o.ShippingAddress...)
	} else {
		c.ShippingAddress = nil
	}
	c.QRCodeURL = ""
	return &c
}

func (r *memoryRepo) Create(_ context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.codes[o.OrderCode]; ok {
		return apperr.Conflict(CodeOrderCodeTaken, "order code already taken")
	}
	if _, ok := r.orders[o.ID]; ok {
		return apperr.Conflict("ORDER_EXISTS", "order already exists")
	}
	r.orders[o.ID] = clone(o, true)
	r.codes[o.OrderCode] = o.ID
	return nil
}

func (r *memoryRepo) FindByID(_ context.Context, id uuid.UUID) (*Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, orderNotFound()
	}
	return clone(o, true), nil
}

func (r *memoryRepo) FindByCode(ctx context.Context, code string) (*Order, error) {
	r.mu.RLock()
	id, ok := r.codes[code]
	r.mu.RUnlock()
	if !ok {
		return nil, orderNotFound()
	}
	return r.FindByID(ctx, id)
}

func (r *memoryRepo) UpdateFields(_ context.Context, id uuid.UUID, p Patch, at int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return orderNotFound()
	}
	if p.PaymentURL != nil {
		o.PaymentURL = *p.PaymentURL
	}
	if p.PaymentTransactionID != nil {
		o.PaymentTransactionID = *p.PaymentTransactionID
	}
	o.UpdatedAt = at
	return nil
}

func (r *memoryRepo) Transition(_ context.Context, id uuid.UUID, c Change) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, orderNotFound()
	}
	if !CanTransition(o.Status, c.To) {
		return nil, apperr.InvalidTransition(string(o.Status), string(c.To))
	}
	if c.IfPayment != "" && o.PaymentStatus != c.IfPayment {
		return nil, paymentSettled(o.PaymentStatus)
	}
	o.Status = c.To
	stamp(o, c.To, c.At)
	if c.To == StatusCancelled {
		o.CancelReason = c.Reason
	}
	o.UpdatedAt = c.At
	return clone(o, true), nil
}

func (r *memoryRepo) MarkPaid(_ context.Context, id uuid.UUID, txnID string, at int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return false, orderNotFound()
	}
	if o.PaymentStatus != PaymentUnpaid {
		return false, nil
	}
	o.PaymentStatus = PaymentPaid
	o.PaymentTransactionID = txnID
	o.UpdatedAt = at
	return true, nil
}

func (r *memoryRepo) SetPaymentStatus(_ context.Context, id uuid.UUID, to PaymentStatus, at int64) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, orderNotFound()
	}
	if !CanTransitionPayment(o.PaymentStatus, to) {
		return nil, apperr.InvalidTransition(string(o.PaymentStatus), string(to))
	}
	o.PaymentStatus = to
	o.UpdatedAt = at
	return clone(o, true), nil
}

func (r *memoryRepo) ListByUser(_ context.Context, userID string, q ListQuery) (*PageResult, error) {
	return r.list(q, func(o *Order) bool { return o.UserID == userID }), nil
}

func (r *memoryRepo) ListAll(_ context.Context, q ListQuery) (*PageResult, error) {
	return r.list(q, func(*Order) bool { return true }), nil
}

func (r *memoryRepo) list(q ListQuery, keep func(*Order) bool) *PageResult {
	q = q.normalised()
	r.mu.RLock()
	matched := []*Order{}
	for _, o := range r.orders {
		if keep(o) && (q.Status == "" || o.Status == q.Status) {
			matched = append(matched, clone(o, false))
		}
	}
	r.mu.RUnlock()
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt != matched[j].CreatedAt {
			return matched[i].CreatedAt > matched[j].CreatedAt
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	page := &PageResult{Orders: []*Order{}, Total: len(matched), Page: q.Page, Limit: q.Limit}
	start := q.offset()
	if start >= len(matched) {
		return page
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	page.Orders = matched[start:end]
	return page
}

func (r *memoryRepo) ListStale(_ context.Context, method PaymentMethod, createdBefore int64, limit int) ([]*Order, error) {
	if limit <= 0 {
		limit = maxLimit
	}
	r.mu.RLock()
	out := []*Order{}
	for _, o := range r.orders {
		if o.Status == StatusPending && o.PaymentStatus == PaymentUnpaid &&
			o.PaymentMethod == method && o.CreatedAt < createdBefore {
			out = append(out, clone(o, false))
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
