// Package metrics exposes the engine's own operational counters and
// histograms (§SPEC_FULL ambient stack), separate from the domain events
// internal/events/internal/audit carry — these are for dashboards and
// alerting, not per-instruction audit trails.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/merl-labs/clob/pkg/types"
)

// Collector holds every metric the dispatcher and matching engine touch.
// It is built on a caller-supplied registry rather than the global
// prometheus.DefaultRegisterer so more than one instance (one per market,
// or one per test) can coexist without a duplicate-registration panic.
type Collector struct {
	ordersPlaced   *prometheus.CounterVec
	ordersFilled   *prometheus.CounterVec
	ordersCanceled *prometheus.CounterVec
	ordersExpired  *prometheus.CounterVec
	ordersRejected *prometheus.CounterVec
	matchLatency   *prometheus.HistogramVec
	globalEvicted  prometheus.Counter
	restingDepth   *prometheus.GaugeVec
}

// New registers the engine's metrics on reg and returns a Collector.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		ordersPlaced: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clob_orders_placed_total",
			Help: "Orders accepted by PlaceOrder, by side and order type.",
		}, []string{"side", "order_type"}),
		ordersFilled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clob_fills_total",
			Help: "Individual maker/taker fills produced by the matching loop.",
		}, []string{"side"}),
		ordersCanceled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clob_orders_canceled_total",
			Help: "Orders removed via explicit Cancel.",
		}, []string{"side"}),
		ordersExpired: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clob_orders_expired_total",
			Help: "Resting orders removed on touch for having a past LastValidSlot.",
		}, []string{"side"}),
		ordersRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clob_orders_rejected_total",
			Help: "PlaceOrder/BatchUpdate calls that returned an error, by reason.",
		}, []string{"reason"}),
		matchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clob_match_latency_seconds",
			Help:    "Wall-clock time spent inside a single PlaceOrder crossing loop.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		}, []string{"side"}),
		globalEvicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "clob_global_evictions_total",
			Help: "Global pool members evicted to make room for a new trader.",
		}),
		restingDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "clob_resting_depth",
			Help: "Number of resting orders on one side of a market's book.",
		}, []string{"side"}),
	}
}

func sideLabel(side types.Side) string {
	if side == types.SideBid {
		return "bid"
	}
	return "ask"
}

func orderTypeLabel(t types.OrderType) string {
	switch t {
	case types.OrderTypeLimit:
		return "limit"
	case types.OrderTypeImmediateOrCancel:
		return "ioc"
	case types.OrderTypePostOnly:
		return "post_only"
	case types.OrderTypeGlobal:
		return "global"
	case types.OrderTypeReverse:
		return "reverse"
	default:
		return "unknown"
	}
}

// ObservePlaceOrder records a completed PlaceOrder call: how long the
// crossing loop took and what it produced.
func (c *Collector) ObservePlaceOrder(side types.Side, orderType types.OrderType, start time.Time, fills, expired int) {
	label := sideLabel(side)
	c.ordersPlaced.WithLabelValues(label, orderTypeLabel(orderType)).Inc()
	c.matchLatency.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if fills > 0 {
		c.ordersFilled.WithLabelValues(label).Add(float64(fills))
	}
	if expired > 0 {
		c.ordersExpired.WithLabelValues(label).Add(float64(expired))
	}
}

// RecordCancel increments the cancellation counter for side.
func (c *Collector) RecordCancel(side types.Side) {
	c.ordersCanceled.WithLabelValues(sideLabel(side)).Inc()
}

// RecordRejection increments the rejection counter for reason, a short
// stable label such as "invalid_input" or "post_only_would_cross".
func (c *Collector) RecordRejection(reason string) {
	c.ordersRejected.WithLabelValues(reason).Inc()
}

// RecordGlobalEviction increments the global-pool eviction counter.
func (c *Collector) RecordGlobalEviction() {
	c.globalEvicted.Inc()
}

// SetRestingDepth sets the current resting-order count for side.
func (c *Collector) SetRestingDepth(side types.Side, depth int) {
	c.restingDepth.WithLabelValues(sideLabel(side)).Set(float64(depth))
}
