package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Checkout outcomes used as the "outcome" label.
const (
	OutcomeSuccess    = "success"
	OutcomeOutOfStock = "out_of_stock"
	OutcomeRejected   = "rejected"
	OutcomeError      = "error"
)

// CheckoutMetrics counts checkout attempts and the value of placed orders.
type CheckoutMetrics struct {
	attempts   *prometheus.CounterVec
	orderValue prometheus.Histogram
	units      prometheus.Counter
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	m := &CheckoutMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "attempts_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		orderValue: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "order_value",
			Help:      "Final price of placed orders.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		units: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "units_sold_total",
			Help:      "Product units removed from stock by checkout.",
		}),
	}
	reg.MustRegister(m.attempts, m.orderValue, m.units)
	return m
}

// ObserveOrder records a committed order.
func (m *CheckoutMetrics) ObserveOrder(price decimal.Decimal, units int) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(OutcomeSuccess).Inc()
	m.orderValue.Observe(price.InexactFloat64())
	m.units.Add(float64(units))
}

// IncOutcome records a checkout that did not produce an order.
func (m *CheckoutMetrics) IncOutcome(outcome string) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// DeliveryMetrics counts order status transitions.
type DeliveryMetrics struct {
	transitions *prometheus.CounterVec
	rejected    *prometheus.CounterVec
}

func NewDeliveryMetrics(reg prometheus.Registerer) *DeliveryMetrics {
	if reg == nil {
		return &DeliveryMetrics{}
	}
	m := &DeliveryMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "transitions_total",
			Help:      "Accepted order status transitions.",
		}, []string{"from", "to", "role"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "rejected_transitions_total",
			Help:      "Transitions refused by the state machine.",
		}, []string{"from", "role"}),
	}
	reg.MustRegister(m.transitions, m.rejected)
	return m
}

func (m *DeliveryMetrics) IncTransition(from, to, role string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to), normalizeLabel(role)).Inc()
}

func (m *DeliveryMetrics) IncRejected(from, role string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(from), normalizeLabel(role)).Inc()
}
