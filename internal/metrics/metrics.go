// Package metrics exposes the ambient observability surface named by
// SPEC_FULL.md §11: counters and gauges over the node's process lifecycle,
// served over Prometheus's exposition format.
//
// Grounded directly on the teacher's internal/metrics/metrics.go (same
// Register-once / label-vec / no-op-until-registered shape), with the
// process_group start-duration histogram dropped (Guillotine's Config has
// no matching field) and a crashes_total counter added for spec.md §4.1's
// crash-backoff policy.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	regOK atomic.Bool

	processStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guillotine",
			Subsystem: "process",
			Name:      "starts_total",
			Help:      "Number of successful process spawns.",
		}, []string{"node", "name"},
	)
	processRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guillotine",
			Subsystem: "process",
			Name:      "restarts_total",
			Help:      "Number of operator-initiated restarts.",
		}, []string{"node", "name"},
	)
	processCrashes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guillotine",
			Subsystem: "process",
			Name:      "crashes_total",
			Help:      "Number of non-zero/signal exits.",
		}, []string{"node", "name"},
	)
	processStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guillotine",
			Subsystem: "process",
			Name:      "stops_total",
			Help:      "Number of graceful or forced stops.",
		}, []string{"node", "name"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guillotine",
			Subsystem: "process",
			Name:      "state_transitions_total",
			Help:      "Number of process state machine transitions.",
		}, []string{"node", "name", "from", "to"},
	)
	currentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "guillotine",
			Subsystem: "process",
			Name:      "current_state",
			Help:      "1 for the process's current state, 0 for every other state label.",
		}, []string{"node", "name", "state"},
	)
	nodesConnected = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "guillotine",
			Subsystem: "host",
			Name:      "node_connected",
			Help:      "1 if the node is currently connected to the host, else 0.",
		}, []string{"node"},
	)
)

// Register registers every collector with r. Safe to call more than once;
// later calls after a success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{processStarts, processRestarts, processCrashes, processStops, stateTransitions, currentState, nodesConnected}
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

// Handler serves the default Prometheus gatherer; the caller wires the route.
func Handler() http.Handler { return promhttp.Handler() }

func IncStart(node, name string) {
	if regOK.Load() {
		processStarts.WithLabelValues(node, name).Inc()
	}
}

func IncRestart(node, name string) {
	if regOK.Load() {
		processRestarts.WithLabelValues(node, name).Inc()
	}
}

func IncCrash(node, name string) {
	if regOK.Load() {
		processCrashes.WithLabelValues(node, name).Inc()
	}
}

func IncStop(node, name string) {
	if regOK.Load() {
		processStops.WithLabelValues(node, name).Inc()
	}
}

func RecordStateTransition(node, name, from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(node, name, from, to).Inc()
	}
}

// SetCurrentState zeroes every other known state label for (node,name) and
// sets state to 1, so a dashboard query for current_state==1 names exactly
// one series per process.
func SetCurrentState(node, name, state string, allStates []string) {
	if !regOK.Load() {
		return
	}
	for _, s := range allStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		currentState.WithLabelValues(node, name, s).Set(v)
	}
}

func SetNodeConnected(node string, connected bool) {
	if regOK.Load() {
		v := 0.0
		if connected {
			v = 1.0
		}
		nodesConnected.WithLabelValues(node).Set(v)
	}
}
