package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nexus-automation/nexus/pkg/types"
)

func TestEventCallbackUpdatesCounters(t *testing.T) {
	reg := NewRegistry()
	registry := prometheus.NewRegistry()
	if err := reg.Register(registry); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	cb := reg.EventCallback()
	cb(types.Event{Type: types.EventTaskStart, Play: "deploy", Task: "install nginx", Host: "web1"})
	cb(types.Event{Type: types.EventHostOk, Host: "web1"})

	if got := testutil.ToFloat64(reg.TasksTotal.WithLabelValues("deploy", "install nginx")); got != 1 {
		t.Errorf("expected tasks_total=1, got %v", got)
	}
	if got := testutil.ToFloat64(reg.HostResults.WithLabelValues("web1", "ok")); got != 1 {
		t.Errorf("expected host_results ok=1, got %v", got)
	}
	if got := testutil.ToFloat64(reg.TasksInFlight); got != 0 {
		t.Errorf("expected tasks_in_flight back to 0, got %v", got)
	}
}

func TestSetCircuitState(t *testing.T) {
	reg := NewRegistry()
	reg.SetCircuitState("ssh-web1", 1)
	if got := testutil.ToFloat64(reg.CircuitState.WithLabelValues("ssh-web1")); got != 1 {
		t.Errorf("expected circuit state 1, got %v", got)
	}
}
