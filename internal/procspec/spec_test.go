package procspec

import (
	"strings"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		expectErr   bool
		errContains string
	}{
		{name: "valid", cfg: Config{Name: "web", Command: "/bin/web"}},
		{name: "missing name", cfg: Config{Command: "/bin/web"}, expectErr: true, errContains: "name"},
		{name: "missing command", cfg: Config{Name: "web"}, expectErr: true, errContains: "command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.expectErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("expected error to contain %q, got %q", tt.errContains, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseModuleJSON(t *testing.T) {
	b := []byte(`{"name":"web","command":"/bin/web","args":["-p","8080"],"envs":{"FOO":"bar"}}`)
	cfg, err := ParseModuleJSON(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Name != "web" || cfg.Command != "/bin/web" {
		t.Fatalf("unexpected config: %#v", cfg)
	}
	if len(cfg.Args) != 2 || cfg.Args[1] != "8080" {
		t.Fatalf("unexpected args: %#v", cfg.Args)
	}
	if cfg.Envs["FOO"] != "bar" {
		t.Fatalf("unexpected envs: %#v", cfg.Envs)
	}
}

func TestParseModuleJSON_MissingRequired(t *testing.T) {
	_, err := ParseModuleJSON([]byte(`{"command":"/bin/web"}`))
	if err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestParseModuleJSON_InvalidJSON(t *testing.T) {
	_, err := ParseModuleJSON([]byte(`{not json`))
	if err == nil {
		t.Fatal("expected a JSON decode error")
	}
}

func TestRecordUptime(t *testing.T) {
	r := Record{Status: StatusRunning, LastStartedAt: 1000}
	if got := r.Uptime(1500); got != 500 {
		t.Fatalf("expected uptime 500, got %d", got)
	}
	if got := r.Uptime(500); got != 0 {
		t.Fatalf("expected 0 when now < lastStartedAt, got %d", got)
	}
	r.Status = StatusStopped
	if got := r.Uptime(2000); got != 0 {
		t.Fatalf("expected 0 for a non-running record, got %d", got)
	}
}

func TestNodeProcessLookups(t *testing.T) {
	n := &Node{Name: "n1", Processes: []*Record{
		{ModuleID: 1, Config: Config{Name: "web"}},
		{ModuleID: 2, Config: Config{Name: "worker"}},
	}}
	if rec := n.ProcessByName("worker"); rec == nil || rec.ModuleID != 2 {
		t.Fatalf("ProcessByName(worker) = %#v", rec)
	}
	if rec := n.ProcessByName("missing"); rec != nil {
		t.Fatalf("expected nil for unknown name, got %#v", rec)
	}
	if rec := n.ProcessByID(1); rec == nil || rec.Config.Name != "web" {
		t.Fatalf("ProcessByID(1) = %#v", rec)
	}
	if rec := n.ProcessByID(99); rec != nil {
		t.Fatalf("expected nil for unknown id, got %#v", rec)
	}
}
