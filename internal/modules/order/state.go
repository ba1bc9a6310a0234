package order

// validTransitions defines the allowed status state machine.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipping, StatusCancelled},
	StatusShipping:  {StatusDelivered},
	StatusDelivered: {},
	StatusCancelled: {},
}

// validPaymentTransitions is the payment state machine. Paid is never reverted
// except by an explicit refund.
var validPaymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentUnpaid:   {PaymentPaid},
	PaymentPaid:     {PaymentRefunded},
	PaymentRefunded: {},
}

// statusTimestamp names the column recording when a status was reached.
var statusTimestamp = map[Status]string{
	StatusPending:   "pending_at",
	StatusConfirmed: "confirmed_at",
	StatusShipping:  "shipping_at",
	StatusDelivered: "delivered_at",
	StatusCancelled: "cancelled_at",
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanTransitionPayment reports whether from -> to is allowed.
func CanTransitionPayment(from, to PaymentStatus) bool {
	for _, s := range validPaymentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// predecessors returns the statuses from which to may be reached.
func predecessors(to Status) []Status {
	var out []Status
	for _, from := range []Status{StatusPending, StatusConfirmed, StatusShipping, StatusDelivered, StatusCancelled} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

func paymentPredecessors(to PaymentStatus) []PaymentStatus {
	var out []PaymentStatus
	for _, from := range []PaymentStatus{PaymentUnpaid, PaymentPaid, PaymentRefunded} {
		if CanTransitionPayment(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// stamp records that o reached status at.
func stamp(o *Order, status Status, at int64) {
	switch status {
	case StatusPending:
		o.PendingAt = at
	case StatusConfirmed:
		o.ConfirmedAt = at
	case StatusShipping:
		o.ShippingAt = at
	case StatusDelivered:
		o.DeliveredAt = at
	case StatusCancelled:
		o.CancelledAt = at
	}
}
