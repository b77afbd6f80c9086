// Package metrics exposes Prometheus counters and gauges for the
// supervisor's own activity: spawns, restarts, stops, and per-entry state.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	entryStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exeio",
			Subsystem: "entry",
			Name:      "starts_total",
			Help:      "Number of entries added through the control plane.",
		}, []string{"id"},
	)
	entryRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exeio",
			Subsystem: "entry",
			Name:      "restarts_total",
			Help:      "Number of restarts requested through the control plane.",
		}, []string{"id"},
	)
	entryStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exeio",
			Subsystem: "entry",
			Name:      "stops_total",
			Help:      "Number of manually requested stops.",
		}, []string{"id"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exeio",
			Subsystem: "entry",
			Name:      "state_transitions_total",
			Help:      "Number of state transitions between entry states.",
		}, []string{"id", "from", "to"},
	)
	currentStates = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "exeio",
			Subsystem: "entry",
			Name:      "current_state",
			Help:      "Current state of each entry (1 = active state, 0 = inactive).",
		}, []string{"id", "state"},
	)
	registeredEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "exeio",
			Subsystem: "registry",
			Name:      "entries",
			Help:      "Total number of entries currently registered.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{entryStarts, entryRestarts, entryStops, stateTransitions, currentStates, registeredEntries}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

func IncStart(id string) {
	if regOK.Load() {
		entryStarts.WithLabelValues(id).Inc()
	}
}

func IncRestart(id string) {
	if regOK.Load() {
		entryRestarts.WithLabelValues(id).Inc()
	}
}

func IncStop(id string) {
	if regOK.Load() {
		entryStops.WithLabelValues(id).Inc()
	}
}

func RecordStateTransition(id, from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(id, from, to).Inc()
	}
}

func SetCurrentState(id, state string, active bool) {
	if regOK.Load() {
		var value float64
		if active {
			value = 1
		}
		currentStates.WithLabelValues(id, state).Set(value)
	}
}

func SetRegisteredEntries(n int) {
	if regOK.Load() {
		registeredEntries.Set(float64(n))
	}
}
