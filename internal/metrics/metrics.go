package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors, registered via Register.
var (
	regOK atomic.Bool

	healthChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procguard",
			Subsystem: "monitor",
			Name:      "checks_total",
			Help:      "Health checks performed, by process and outcome.",
		}, []string{"name", "outcome"}, // outcome: up|down
	)
	restarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procguard",
			Subsystem: "monitor",
			Name:      "restarts_total",
			Help:      "Restart attempts, by process and result.",
		}, []string{"name", "result"}, // result: success|failure
	)
	alerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procguard",
			Subsystem: "monitor",
			Name:      "alerts_total",
			Help:      "Alerts emitted, by process and kind.",
		}, []string{"name", "kind"}, // kind: cpu|mem|down
	)
	daemonState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "procguard",
			Subsystem: "daemon",
			Name:      "state",
			Help:      "Daemon lifecycle state (1 = current state, 0 = otherwise).",
		}, []string{"state"},
	)
)

// Register registers all collectors with r. Safe to call more than once;
// subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	for _, c := range []prometheus.Collector{healthChecks, restarts, alerts, daemonState} {
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

// Handler serves the default gatherer; the caller wires the route.
func Handler() http.Handler { return promhttp.Handler() }

// Recording helpers. They no-op until Register has been called.

func IncCheck(name string, up bool) {
	if !regOK.Load() {
		return
	}
	outcome := "down"
	if up {
		outcome = "up"
	}
	healthChecks.WithLabelValues(name, outcome).Inc()
}

func IncRestart(name string, success bool) {
	if !regOK.Load() {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	restarts.WithLabelValues(name, result).Inc()
}

func IncAlert(name, kind string) {
	if regOK.Load() {
		alerts.WithLabelValues(name, kind).Inc()
	}
}

// SetDaemonState marks state as the current lifecycle state and clears the
// others.
func SetDaemonState(state string, all []string) {
	if !regOK.Load() {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		daemonState.WithLabelValues(s).Set(v)
	}
}
