package observability

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type rpcMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

// OffersMetrics tracks the offer lifecycle as seen by the node.
type OffersMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	open       prometheus.Gauge
}

var (
	rpcMetricsOnce sync.Once
	rpcRegistry    *rpcMetrics

	offersMetricsOnce sync.Once
	offersRegistry    *OffersMetrics
)

// RPCMetrics returns the lazily-initialised registry used to record JSON-RPC
// activity.
func RPCMetrics() *rpcMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &rpcMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "escrow",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "escrow",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and error code.",
			}, []string{"method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "escrow",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "escrow",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by the rate limiter.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			rpcRegistry.requests,
			rpcRegistry.errors,
			rpcRegistry.latency,
			rpcRegistry.throttles,
		)
	})
	return rpcRegistry
}

// Observe records the outcome of a JSON-RPC request. A zero code means the
// request succeeded.
func (m *rpcMetrics) Observe(method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(method, fmt.Sprintf("%d", code)).Inc()
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied reason.
func (m *rpcMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

// Offers returns the singleton offer lifecycle metrics.
func Offers() *OffersMetrics {
	offersMetricsOnce.Do(func() {
		offersRegistry = &OffersMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "escrow",
				Subsystem: "offers",
				Name:      "operations_total",
				Help:      "Offer calls segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "escrow",
				Subsystem: "offers",
				Name:      "call_duration_seconds",
				Help:      "Latency of executed offer calls including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			open: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "escrow",
				Subsystem: "offers",
				Name:      "open",
				Help:      "Offers currently holding assets in custody.",
			}),
		}
		prometheus.MustRegister(
			offersRegistry.operations,
			offersRegistry.latency,
			offersRegistry.open,
		)
	})
	return offersRegistry
}

// RecordCall records one executed call. outcome is derived from err using the
// supplied classifier, which maps known errors to stable label values.
func (m *OffersMetrics) RecordCall(operation string, err error, classify func(error) string, duration time.Duration) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		if classify != nil {
			if label := classify(err); label != "" {
				outcome = label
			}
		}
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetOpen publishes the number of open offers.
func (m *OffersMetrics) SetOpen(count uint64) {
	if m == nil {
		return
	}
	m.open.Set(float64(count))
}

// ErrorLabel returns the first label whose sentinel matches err.
func ErrorLabel(err error, labels map[error]string) string {
	for sentinel, label := range labels {
		if errors.Is(err, sentinel) {
			return label
		}
	}
	return ""
}
