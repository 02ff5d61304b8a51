// Package metrics exposes scheduler activity as Prometheus metrics,
// driven entirely off the same Event stream the callback bus already
// produces.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nexus-automation/nexus/pkg/types"
)

// Registry bundles the counters and gauges Nexus exports. It can be
// registered against prometheus.DefaultRegisterer or a private Registry
// for tests.
type Registry struct {
	TasksTotal      *prometheus.CounterVec
	HostResults     *prometheus.CounterVec
	HandlersRun     *prometheus.CounterVec
	TasksInFlight   prometheus.Gauge
	CircuitState    *prometheus.GaugeVec
}

// NewRegistry builds a Registry with unregistered collectors; call
// Register to attach it to a prometheus.Registerer.
func NewRegistry() *Registry {
	return &Registry{
		TasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexus",
			Name:      "tasks_total",
			Help:      "Total task invocations by play and task name.",
		}, []string{"play", "task"}),
		HostResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexus",
			Name:      "host_results_total",
			Help:      "Per-host task outcomes by result kind (ok, changed, failed, skipped, unreachable).",
		}, []string{"host", "result"}),
		HandlersRun: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexus",
			Name:      "handlers_run_total",
			Help:      "Handler invocations by handler name.",
		}, []string{"handler"}),
		TasksInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nexus",
			Name:      "tasks_in_flight",
			Help:      "Number of task-host invocations currently executing.",
		}),
		CircuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nexus",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open) by breaker name.",
		}, []string{"breaker"}),
	}
}

// Register attaches every collector to reg.
func (r *Registry) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{r.TasksTotal, r.HostResults, r.HandlersRun, r.TasksInFlight, r.CircuitState}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// EventCallback returns a types.EventCallback that updates metrics from
// the scheduler's emitted events.
func (r *Registry) EventCallback() types.EventCallback {
	return func(ev types.Event) {
		switch ev.Type {
		case types.EventTaskStart:
			r.TasksTotal.WithLabelValues(ev.Play, ev.Task).Inc()
			r.TasksInFlight.Inc()
		case types.EventHostOk, types.EventTaskComplete:
			r.TasksInFlight.Dec()
			r.HostResults.WithLabelValues(ev.Host, "ok").Inc()
		case types.EventHostSkipped:
			r.TasksInFlight.Dec()
			r.HostResults.WithLabelValues(ev.Host, "skipped").Inc()
		case types.EventHostFailed, types.EventTaskFailed:
			r.TasksInFlight.Dec()
			r.HostResults.WithLabelValues(ev.Host, "failed").Inc()
		case types.EventHostUnreachable:
			r.TasksInFlight.Dec()
			r.HostResults.WithLabelValues(ev.Host, "unreachable").Inc()
		case types.EventHandlerStart:
			r.HandlersRun.WithLabelValues(ev.Task).Inc()
		}
	}
}

// SetCircuitState records a circuit breaker's current numeric state
// (0=closed, 1=open, 2=half-open, matching pkg/retry.CircuitState) for
// the named breaker.
func (r *Registry) SetCircuitState(name string, state int) {
	r.CircuitState.WithLabelValues(name).Set(float64(state))
}
