package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is nil-safe: a nil *Metrics records nothing.
type Metrics struct {
	sessionsActive  prometheus.Gauge
	sessionsCreated prometheus.Counter
	sessionsClosed  *prometheus.CounterVec
	reconnects      *prometheus.CounterVec
	pings           *prometheus.CounterVec
	closeTimers     *prometheus.CounterVec
	messages        *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "jsonrpcd"
	}
	factory := promauto.With(reg)
	return &Metrics{
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of registered sessions",
		}),
		sessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of sessions created",
		}),
		sessionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Total number of sessions closed, by cause",
		}, []string{"cause"}),
		reconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Reconnect requests by result",
		}, []string{"result"}),
		pings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pings_total",
			Help:      "Ping requests by result",
		}, []string{"result"}),
		closeTimers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "close_timers_total",
			Help:      "Close timer events",
		}, []string{"event"}),
		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Inbound messages by kind",
		}, []string{"kind"}),
	}
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
	m.sessionsActive.Inc()
}

func (m *Metrics) SessionClosed(cause string) {
	if m == nil {
		return
	}
	m.sessionsClosed.WithLabelValues(cause).Inc()
	m.sessionsActive.Dec()
}

func (m *Metrics) Reconnect(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.reconnects.WithLabelValues(result).Inc()
}

func (m *Metrics) Ping(answered bool) {
	if m == nil {
		return
	}
	result := "answered"
	if !answered {
		result = "dropped"
	}
	m.pings.WithLabelValues(result).Inc()
}

// CloseTimer records armed, cancelled, rejected and fired events.
func (m *Metrics) CloseTimer(event string) {
	if m == nil {
		return
	}
	m.closeTimers.WithLabelValues(event).Inc()
}

// Message records request, response and invalid inbound messages.
func (m *Metrics) Message(kind string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(kind).Inc()
}
