// Package metrics owns every Prometheus collector the service exports.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Registry groups the collectors. A nil *Registry is valid and records nothing.
type Registry struct {
	OrdersCreated        *prometheus.CounterVec
	OrderCreateFailures  *prometheus.CounterVec
	StockAdjustments     *prometheus.CounterVec
	Compensations        *prometheus.CounterVec
	PaymentNotifications *prometheus.CounterVec
	GatewayRequests      *prometheus.CounterVec
	SideEffects          *prometheus.CounterVec
	OrdersSwept          prometheus.Counter
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		OrdersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "orders_created_total",
			Help: "Orders persisted, by payment method.",
		}, []string{"payment_method"}),
		OrderCreateFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "order_create_failures_total",
			Help: "Order creation attempts that failed, by reason code.",
		}, []string{"reason"}),
		StockAdjustments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "stock_adjustments_total",
			Help: "Conditional stock writes, by direction and outcome.",
		}, []string{"direction", "outcome"}),
		Compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "compensations_total",
			Help: "Compensation steps executed, by step and outcome.",
		}, []string{"step", "outcome"}),
		PaymentNotifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "payment_notifications_total",
			Help: "Gateway notifications handled, by result status.",
		}, []string{"status"}),
		GatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "gateway_requests_total",
			Help: "Outbound payment gateway requests, by outcome.",
		}, []string{"outcome"}),
		SideEffects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "side_effects_total",
			Help: "Fire-and-forget tasks, by task and outcome.",
		}, []string{"task", "outcome"}),
		OrdersSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "orders_swept_total",
			Help: "Stale unpaid gateway orders cancelled by the sweeper.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests, by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		r.OrdersCreated, r.OrderCreateFailures, r.StockAdjustments, r.Compensations,
		r.PaymentNotifications, r.GatewayRequests, r.SideEffects, r.OrdersSwept,
		r.HTTPRequests, r.HTTPDuration,
	)
	return r
}

func (r *Registry) OrderCreated(method string) {
	if r == nil {
		return
	}
	r.OrdersCreated.WithLabelValues(method).Inc()
}

func (r *Registry) OrderCreateFailed(reason string) {
	if r == nil {
		return
	}
	r.OrderCreateFailures.WithLabelValues(reason).Inc()
}

func (r *Registry) StockAdjusted(delta int, applied bool) {
	if r == nil {
		return
	}
	direction := "increment"
	if delta < 0 {
		direction = "decrement"
	}
	outcome := "applied"
	if !applied {
		outcome = "rejected"
	}
	r.StockAdjustments.WithLabelValues(direction, outcome).Inc()
}

func (r *Registry) Compensated(step string, err error) {
	if r == nil {
		return
	}
	r.Compensations.WithLabelValues(step, outcome(err)).Inc()
}

func (r *Registry) NotificationHandled(status string) {
	if r == nil {
		return
	}
	r.PaymentNotifications.WithLabelValues(status).Inc()
}

func (r *Registry) GatewayRequest(err error) {
	if r == nil {
		return
	}
	r.GatewayRequests.WithLabelValues(outcome(err)).Inc()
}

func (r *Registry) SideEffect(task string, err error) {
	if r == nil {
		return
	}
	r.SideEffects.WithLabelValues(task, outcome(err)).Inc()
}

func (r *Registry) Swept(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.OrdersSwept.Add(float64(n))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
