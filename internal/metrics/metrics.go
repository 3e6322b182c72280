// Package metrics exposes Prometheus collectors for the transport, the send
// pipeline and the UI bridge.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var connectionStates = []string{"disconnected", "connecting", "connected"}

// Metrics implements transport.Recorder and services.SendRecorder.
type Metrics struct {
	registry *prometheus.Registry

	connectionState *prometheus.GaugeVec
	reconnects      prometheus.Counter
	queueDepth      prometheus.Gauge
	intentsWritten  *prometheus.CounterVec
	eventsReceived  *prometheus.CounterVec
	sends           *prometheus.CounterVec
	sendAttempts    prometheus.Histogram
	sendDuration    prometheus.Histogram
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	streamClients   prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		connectionState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chat_transport_connection_state",
			Help: "1 for the current transport connection state, 0 otherwise",
		}, []string{"state"}),
		reconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "chat_transport_reconnects_total",
			Help: "Total number of reconnect attempts after an unexpected drop",
		}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "chat_transport_queue_depth",
			Help: "Outbound intents waiting to be written",
		}),
		intentsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_transport_intents_written_total",
			Help: "Outbound intents written to the connection",
		}, []string{"type"}),
		eventsReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_transport_events_received_total",
			Help: "Inbound events read from the connection",
		}, []string{"type"}),
		sends: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_message_sends_total",
			Help: "Completed message send confirmations by outcome",
		}, []string{"outcome"}),
		sendAttempts: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "chat_message_send_attempts",
			Help:    "Attempts used per message send",
			Buckets: []float64{1, 2, 3},
		}),
		sendDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "chat_message_send_duration_seconds",
			Help:    "Time from optimistic insert to confirmation or failure",
			Buckets: prometheus.DefBuckets,
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "UI bridge requests by route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "UI bridge request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		streamClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "chat_stream_clients",
			Help: "Connected /v1/stream clients",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ConnectionState(state string) {
	for _, s := range connectionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.connectionState.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) IntentWritten(kind string) {
	m.intentsWritten.WithLabelValues(kind).Inc()
}

func (m *Metrics) EventReceived(kind string) {
	m.eventsReceived.WithLabelValues(kind).Inc()
}

func (m *Metrics) Reconnect() {
	m.reconnects.Inc()
}

func (m *Metrics) QueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) SendResult(outcome string, attempts int, elapsed time.Duration) {
	m.sends.WithLabelValues(outcome).Inc()
	if attempts > 0 {
		m.sendAttempts.Observe(float64(attempts))
	}
	m.sendDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) HTTPRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) StreamClients(delta int) {
	m.streamClients.Add(float64(delta))
}
