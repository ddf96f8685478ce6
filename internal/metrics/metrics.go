// Package metrics provides Prometheus metrics for RADIUS exchanges.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "radclient"
)

// ResultOK is the result label of an exchange that returned a decoded reply.
const ResultOK = "ok"

// Metrics contains the Prometheus metrics recorded by the exchange client.
type Metrics struct {
	// Exchange metrics
	ExchangesActive prometheus.Gauge
	ExchangesTotal  *prometheus.CounterVec
	ExchangeLatency prometheus.Histogram

	// Round trip between sending the request and receiving the reply
	RoundTripLatency prometheus.Histogram

	// Reply metrics
	ResponsesTotal *prometheus.CounterVec

	// Data transfer metrics
	BytesSent     prometheus.Counter
	BytesReceived prometheus.Counter
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the default metrics instance registered with the default registerer.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a new Metrics instance with a custom registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	latencyBuckets := []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

	return &Metrics{
		ExchangesActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "exchanges_active",
			Help:      "Number of exchanges currently in flight",
		}),
		ExchangesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchanges_total",
			Help:      "Total exchanges by request code and result (ok or error kind)",
		}, []string{"code", "result"}),
		ExchangeLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exchange_duration_seconds",
			Help:      "Histogram of complete exchange duration in seconds",
			Buckets:   latencyBuckets,
		}),
		RoundTripLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_trip_seconds",
			Help:      "Histogram of send-to-receive time in seconds",
			Buckets:   latencyBuckets,
		}),
		ResponsesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Total decoded replies by reply code",
		}, []string{"code"}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Total request bytes sent",
		}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Total reply bytes received",
		}),
	}
}

// RecordExchangeStart records an exchange entering flight.
func (m *Metrics) RecordExchangeStart() {
	if m == nil {
		return
	}
	m.ExchangesActive.Inc()
}

// RecordExchangeDone records the outcome of an exchange. result is ResultOK or an error kind.
func (m *Metrics) RecordExchangeDone(code, result string, seconds float64) {
	if m == nil {
		return
	}
	m.ExchangesActive.Dec()
	m.ExchangesTotal.WithLabelValues(code, result).Inc()
	m.ExchangeLatency.Observe(seconds)
}

// RecordRoundTrip records the time between send and receive.
func (m *Metrics) RecordRoundTrip(seconds float64) {
	if m == nil {
		return
	}
	m.RoundTripLatency.Observe(seconds)
}

// RecordResponse records a decoded reply code.
func (m *Metrics) RecordResponse(code string) {
	if m == nil {
		return
	}
	m.ResponsesTotal.WithLabelValues(code).Inc()
}

// RecordBytesSent records request bytes written to the socket.
func (m *Metrics) RecordBytesSent(bytes int) {
	if m == nil {
		return
	}
	m.BytesSent.Add(float64(bytes))
}

// RecordBytesReceived records reply bytes read from the socket.
func (m *Metrics) RecordBytesReceived(bytes int) {
	if m == nil {
		return
	}
	m.BytesReceived.Add(float64(bytes))
}
