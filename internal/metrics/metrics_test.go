package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	if m == nil {
		t.Fatal("NewMetricsWithRegistry returned nil")
	}
	if m.ExchangesActive == nil {
		t.Error("ExchangesActive metric is nil")
	}
	if m.ExchangesTotal == nil {
		t.Error("ExchangesTotal metric is nil")
	}
	if m.BytesSent == nil {
		t.Error("BytesSent metric is nil")
	}
}

func TestRecordExchange(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordExchangeStart()
	m.RecordExchangeStart()
	if got := testutil.ToFloat64(m.ExchangesActive); got != 2 {
		t.Errorf("ExchangesActive = %v, want 2", got)
	}

	m.RecordExchangeDone("Access-Request", ResultOK, 0.01)
	m.RecordExchangeDone("Access-Request", "socket_timeout", 0.5)

	if got := testutil.ToFloat64(m.ExchangesActive); got != 0 {
		t.Errorf("ExchangesActive = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.ExchangesTotal.WithLabelValues("Access-Request", ResultOK)); got != 1 {
		t.Errorf("ExchangesTotal{ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ExchangesTotal.WithLabelValues("Access-Request", "socket_timeout")); got != 1 {
		t.Errorf("ExchangesTotal{socket_timeout} = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.ExchangeLatency); got != 1 {
		t.Errorf("ExchangeLatency series = %d, want 1", got)
	}
}

func TestRecordTraffic(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordBytesSent(100)
	m.RecordBytesSent(50)
	m.RecordBytesReceived(20)
	m.RecordResponse("Access-Accept")
	m.RecordRoundTrip(0.002)

	if got := testutil.ToFloat64(m.BytesSent); got != 150 {
		t.Errorf("BytesSent = %v, want 150", got)
	}
	if got := testutil.ToFloat64(m.BytesReceived); got != 20 {
		t.Errorf("BytesReceived = %v, want 20", got)
	}
	if got := testutil.ToFloat64(m.ResponsesTotal.WithLabelValues("Access-Accept")); got != 1 {
		t.Errorf("ResponsesTotal{Access-Accept} = %v, want 1", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	// Should not panic
	m.RecordExchangeStart()
	m.RecordExchangeDone("Access-Request", ResultOK, 0)
	m.RecordRoundTrip(0)
	m.RecordResponse("Access-Accept")
	m.RecordBytesSent(1)
	m.RecordBytesReceived(1)
}

func TestDefault(t *testing.T) {
	if Default() != Default() {
		t.Error("Default() returned different instances")
	}
}
