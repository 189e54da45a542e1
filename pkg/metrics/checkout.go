package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records the outcome of order placement attempts.
type CheckoutMetrics struct {
	duration     *prometheus.HistogramVec
	placed       *prometheus.CounterVec
	rejected     *prometheus.CounterVec
	numberRetry  prometheus.Counter
	lostStockRun prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of order placement attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	placed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_orders_placed_total",
		Help: "Orders successfully placed.",
	}, []string{"payment_method"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_rejected_total",
		Help: "Order placement attempts rejected, by error code.",
	}, []string{"code"})
	numberRetry := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_order_number_retries_total",
		Help: "Order numbers regenerated after a unique collision.",
	})
	lostStockRun := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_stock_race_lost_total",
		Help: "Checkouts rolled back because a concurrent order took the stock first.",
	})
	reg.MustRegister(duration, placed, rejected, numberRetry, lostStockRun)
	return &CheckoutMetrics{
		duration:     duration,
		placed:       placed,
		rejected:     rejected,
		numberRetry:  numberRetry,
		lostStockRun: lostStockRun,
	}
}

// ObserveDuration records the duration of an attempt with the given outcome.
func (c *CheckoutMetrics) ObserveDuration(outcome string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncPlaced counts a placed order.
func (c *CheckoutMetrics) IncPlaced(paymentMethod string) {
	if c == nil || c.placed == nil {
		return
	}
	c.placed.WithLabelValues(normalizeLabel(paymentMethod)).Inc()
}

// IncRejected counts a rejected attempt by error code.
func (c *CheckoutMetrics) IncRejected(code string) {
	if c == nil || c.rejected == nil {
		return
	}
	c.rejected.WithLabelValues(normalizeLabel(code)).Inc()
}

// IncOrderNumberRetry counts a regenerated order number.
func (c *CheckoutMetrics) IncOrderNumberRetry() {
	if c == nil || c.numberRetry == nil {
		return
	}
	c.numberRetry.Inc()
}

// IncStockRaceLost counts a conditional decrement that did not apply.
func (c *CheckoutMetrics) IncStockRaceLost() {
	if c == nil || c.lostStockRun == nil {
		return
	}
	c.lostStockRun.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
