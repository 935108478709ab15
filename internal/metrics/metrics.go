package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rental"

// EngineMetrics は注文/在庫まわりのカウンタ。nilでも呼べる
type EngineMetrics struct {
	OrdersCreated       prometheus.Counter
	StockReservations   *prometheus.CounterVec
	ReturnsAdjudicated  *prometheus.CounterVec
	OrderStatusUpdates  *prometheus.CounterVec
	OrderCreateDuration prometheus.Histogram
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Total number of committed orders.",
		}),
		StockReservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_reservations_total",
			Help:      "Stock reservation attempts by result.",
		}, []string{"result"}),
		ReturnsAdjudicated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "returns_adjudicated_total",
			Help:      "Return adjudications by decision.",
		}, []string{"decision"}),
		OrderStatusUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_updates_total",
			Help:      "Order status updates by new status.",
		}, []string{"status"}),
		OrderCreateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_create_duration_ms",
			Help:      "Order creation latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
	}

	reg.MustRegister(m.OrdersCreated, m.StockReservations, m.ReturnsAdjudicated, m.OrderStatusUpdates, m.OrderCreateDuration)
	return m
}

func (m *EngineMetrics) OrderCreated(durationMS float64) {
	if m == nil {
		return
	}
	m.OrdersCreated.Inc()
	m.OrderCreateDuration.Observe(durationMS)
}

// result: ok / insufficient / error
func (m *EngineMetrics) Reservation(result string) {
	if m == nil {
		return
	}
	m.StockReservations.WithLabelValues(result).Inc()
}

func (m *EngineMetrics) Adjudicated(approved bool) {
	if m == nil {
		return
	}
	decision := "rejected"
	if approved {
		decision = "approved"
	}
	m.ReturnsAdjudicated.WithLabelValues(decision).Inc()
}

func (m *EngineMetrics) StatusUpdated(status string) {
	if m == nil {
		return
	}
	m.OrderStatusUpdates.WithLabelValues(status).Inc()
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
