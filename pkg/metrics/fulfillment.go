package metrics

import "github.com/prometheus/client_golang/prometheus"

// Checkout results.
const (
	CheckoutSuccess           = "success"
	CheckoutInsufficientStock = "insufficient_stock"
	CheckoutCouponIneligible  = "coupon_ineligible"
	CheckoutEmptyCart         = "empty_cart"
	CheckoutError             = "error"
)

// FulfillmentMetrics counts checkout outcomes, order transitions and outbox deliveries.
type FulfillmentMetrics struct {
	checkouts   *prometheus.CounterVec
	transitions *prometheus.CounterVec
	published   *prometheus.CounterVec
}

func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_total",
		Help:      "Checkout attempts by result.",
	}, []string{"result"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_transitions_total",
		Help:      "Applied order status transitions.",
	}, []string{"from", "to"})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_events_total",
		Help:      "Outbox rows handled by the publisher, by event type and result.",
	}, []string{"event_type", "result"})
	reg.MustRegister(checkouts, transitions, published)
	return &FulfillmentMetrics{checkouts: checkouts, transitions: transitions, published: published}
}

func (m *FulfillmentMetrics) IncCheckout(result string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(labelOrUnknown(result)).Inc()
}

func (m *FulfillmentMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(labelOrUnknown(from), labelOrUnknown(to)).Inc()
}

// IncOutbox records a publish attempt; result is published, retry or dead_lettered.
func (m *FulfillmentMetrics) IncOutbox(eventType, result string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(labelOrUnknown(eventType), labelOrUnknown(result)).Inc()
}
