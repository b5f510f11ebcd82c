package postgres

import "testing"

func TestNew_RejectsEmptyDSN(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("expected an error for an empty DSN")
	}
}

// A live-connection test (schema creation, Send round-trip) needs a real
// Postgres server. testcontainers-go would provide one but requires Docker,
// which this environment doesn't have — see DESIGN.md's dropped-dependency
// entry for testcontainers-go.
func TestSink_RoundTrip(t *testing.T) {
	t.Skip("requires a live Postgres server; no Docker available to run one via testcontainers-go")
}
