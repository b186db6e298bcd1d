// Package metrics exposes broker counters and gauges to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	reg *prometheus.Registry

	frames          *prometheus.CounterVec
	dropped         *prometheus.CounterVec
	persisted       prometheus.Counter
	persistFailures prometheus.Counter
	sessions        prometheus.Gauge
	rooms           prometheus.Gauge
	pairings        prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_frames_total",
			Help: "Inbound frames handled, by type.",
		}, []string{"type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_frames_dropped_total",
			Help: "Frames dropped, by reason.",
		}, []string{"reason"}),
		persisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "huddle_messages_persisted_total",
			Help: "Messages written to the store.",
		}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "huddle_persist_failures_total",
			Help: "Message writes that failed and were relayed live only.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "huddle_sessions",
			Help: "Open connections.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "huddle_rooms",
			Help: "Rooms with at least one member.",
		}),
		pairings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "huddle_call_pairings",
			Help: "Calls being negotiated or active.",
		}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.frames, m.dropped, m.persisted, m.persistFailures,
		m.sessions, m.rooms, m.pairings,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) Frame(kind string) {
	if m != nil {
		m.frames.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) Dropped(reason string) {
	if m != nil {
		m.dropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Persisted() {
	if m != nil {
		m.persisted.Inc()
	}
}

func (m *Metrics) PersistFailed() {
	if m != nil {
		m.persistFailures.Inc()
	}
}

func (m *Metrics) SetSessions(n int) {
	if m != nil {
		m.sessions.Set(float64(n))
	}
}

func (m *Metrics) SetRooms(n int) {
	if m != nil {
		m.rooms.Set(float64(n))
	}
}

func (m *Metrics) SetPairings(n int) {
	if m != nil {
		m.pairings.Set(float64(n))
	}
}
