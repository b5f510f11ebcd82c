package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// testRegistry is the registerer every test in this file shares. The
// collectors metrics.go declares are package-level vars, so once Register
// binds them to one prometheus.Registerer, that's the only registry whose
// Gather() sees them — regOK (see metrics.go) then latches true for the
// rest of the test binary and every later Register call is a no-op.
var testRegistry = prometheus.NewRegistry()

func mustRegisterOnce(t *testing.T) {
	t.Helper()
	if err := Register(testRegistry); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := Register(prometheus.NewRegistry()); err != nil {
		t.Fatalf("Register should be a no-op on a second call with a different registerer, got: %v", err)
	}
}

func counterValue(t *testing.T, name string, wantLabels map[string]string) float64 {
	t.Helper()
	mfs, err := testRegistry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if labelsMatch(m.GetLabel(), wantLabels) {
				if m.Counter != nil {
					return m.Counter.GetValue()
				}
				if m.Gauge != nil {
					return m.Gauge.GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, wantLabels)
	return 0
}

func labelsMatch(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) != len(want) {
		return false
	}
	for _, lp := range got {
		if v, ok := want[lp.GetName()]; !ok || v != lp.GetValue() {
			return false
		}
	}
	return true
}

func TestMetrics_IncrementsAreObservable(t *testing.T) {
	mustRegisterOnce(t)

	before := counterValue(t, "guillotine_process_starts_total", map[string]string{"node": "n1", "name": "web"})
	IncStart("n1", "web")
	after := counterValue(t, "guillotine_process_starts_total", map[string]string{"node": "n1", "name": "web"})
	if after != before+1 {
		t.Fatalf("IncStart: expected %v, got %v", before+1, after)
	}

	beforeCrash := counterValue(t, "guillotine_process_crashes_total", map[string]string{"node": "n1", "name": "web"})
	IncCrash("n1", "web")
	afterCrash := counterValue(t, "guillotine_process_crashes_total", map[string]string{"node": "n1", "name": "web"})
	if afterCrash != beforeCrash+1 {
		t.Fatalf("IncCrash: expected %v, got %v", beforeCrash+1, afterCrash)
	}

	RecordStateTransition("n1", "web", "offline", "running")
	v := counterValue(t, "guillotine_process_state_transitions_total", map[string]string{"node": "n1", "name": "web", "from": "offline", "to": "running"})
	if v < 1 {
		t.Fatalf("expected at least 1 state transition, got %v", v)
	}
}

func TestMetrics_SetCurrentStateZeroesOtherStates(t *testing.T) {
	mustRegisterOnce(t)

	states := []string{"offline", "spawning", "running", "scheduled", "stopped"}
	SetCurrentState("n2", "api", "running", states)

	for _, s := range states {
		want := 0.0
		if s == "running" {
			want = 1.0
		}
		got := counterValue(t, "guillotine_process_current_state", map[string]string{"node": "n2", "name": "api", "state": s})
		if got != want {
			t.Fatalf("state %s: expected %v, got %v", s, want, got)
		}
	}
}

func TestMetrics_SetNodeConnected(t *testing.T) {
	mustRegisterOnce(t)

	SetNodeConnected("n3", true)
	if got := counterValue(t, "guillotine_host_node_connected", map[string]string{"node": "n3"}); got != 1 {
		t.Fatalf("expected node_connected=1, got %v", got)
	}

	SetNodeConnected("n3", false)
	if got := counterValue(t, "guillotine_host_node_connected", map[string]string{"node": "n3"}); got != 0 {
		t.Fatalf("expected node_connected=0, got %v", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	mustRegisterOnce(t)
	if Handler() == nil {
		t.Fatal("Handler() returned nil")
	}
}
