package bus

import (
	"encoding/json"
	"testing"

	"github.com/guillotine-sh/guillotine/internal/procspec"
)

func TestNumber_RoundTripsUint64(t *testing.T) {
	n := NumberFromUint64(42)
	b, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != "42" {
		t.Fatalf("expected bare numeric JSON, got %s", b)
	}
	var decoded Number
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	v, err := decoded.Uint64()
	if err != nil {
		t.Fatalf("Uint64: %v", err)
	}
	if v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestNumber_RejectsNegative(t *testing.T) {
	var n Number
	if err := json.Unmarshal([]byte("-5"), &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, err := n.Uint64(); err == nil {
		t.Fatal("expected narrowing a negative number to uint64 to fail")
	}
}

func TestNumber_NarrowsFromFloat(t *testing.T) {
	var n Number
	if err := json.Unmarshal([]byte("100.0"), &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	v, err := n.Uint64()
	if err != nil {
		t.Fatalf("Uint64: %v", err)
	}
	if v != 100 {
		t.Fatalf("expected 100, got %d", v)
	}
}

func TestNumber_RejectsFractional(t *testing.T) {
	var n Number
	if err := json.Unmarshal([]byte("1.5"), &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, err := n.Uint64(); err == nil {
		t.Fatalf("expected narrowing 1.5 to uint64 to fail, got %d", v)
	}
}

func TestNumber_ZeroValueIsZero(t *testing.T) {
	var n Number
	v, err := n.Uint64()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0 {
		t.Fatalf("expected 0 for an unset Number, got %d", v)
	}
}

func TestFromRecord_DetailedVsSummary(t *testing.T) {
	rec := &procspec.Record{
		ModuleID:      1,
		NodeName:      "n1",
		Config:        procspec.Config{Name: "web", Command: "/bin/web"},
		LogDir:        "/logs/web",
		WorkingDir:    "/work/web",
		Status:        procspec.StatusRunning,
		LastStartedAt: 1000,
	}
	v := FromRecord(rec, 2000, false)
	if v.Config != nil {
		t.Fatal("expected summary view to omit Config")
	}
	detailed := FromRecord(rec, 2000, true)
	if detailed.Config == nil || detailed.Config.Name != rec.Config.Name {
		t.Fatal("expected detailed view to include Config")
	}
	if detailed.LogDir != rec.LogDir {
		t.Fatalf("expected LogDir to be included in detailed view, got %q", detailed.LogDir)
	}
}
