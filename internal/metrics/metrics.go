// Package metrics exposes switch transitions and read failures as Prometheus
// series on a private registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/switch-sensor/internal/switchctl"
)

// Metrics holds the daemon's collectors.
type Metrics struct {
	registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	readErrors  *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	state       *prometheus.GaugeVec
}

// New registers the switch collectors plus the Go and process collectors on
// a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "switch_transitions_total",
			Help: "Accepted debounced transitions per switch and direction.",
		}, []string{"switch", "event"}),
		readErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "switch_read_errors_total",
			Help: "Failed pin reads per switch.",
		}, []string{"switch"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "switch_events_dropped_total",
			Help: "Transitions not delivered to MQTT or Kafka because the sink queue was full.",
		}, []string{"switch"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "switch_state",
			Help: "Current steady state per switch (1 = ON, 0 = OFF).",
		}, []string{"switch"}),
	}

	m.registry.MustRegister(
		m.transitions,
		m.readErrors,
		m.dropped,
		m.state,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Transition counts an accepted transition and updates the state gauge.
func (m *Metrics) Transition(name string, s switchctl.State) {
	m.transitions.WithLabelValues(name, s.String()).Inc()
	m.SetState(name, s)
}

// ReadError counts a failed read.
func (m *Metrics) ReadError(name string) {
	m.readErrors.WithLabelValues(name).Inc()
}

// Dropped counts a transition that never reached the sinks.
func (m *Metrics) Dropped(name string) {
	m.dropped.WithLabelValues(name).Inc()
}

// SetState records the steady state of a switch.
func (m *Metrics) SetState(name string, s switchctl.State) {
	v := 0.0
	if s.IsOn() {
		v = 1
	}
	m.state.WithLabelValues(name).Set(v)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
