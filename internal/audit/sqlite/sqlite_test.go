package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/guillotine-sh/guillotine/internal/audit"
)

func TestNew_RejectsEmptyDSN(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("expected an error for an empty DSN")
	}
}

func TestNew_StripsSqliteSchemePrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	s, err := New("sqlite://" + path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()
}

func TestSink_SendInsertsRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	e := audit.Event{
		Type:       audit.EventRegistered,
		OccurredAt: time.Now(),
		ModuleID:   7,
		Node:       "n1",
		Name:       "web",
		Status:     "offline",
	}
	if err := s.Send(context.Background(), e); err != nil {
		t.Fatalf("Send: %v", err)
	}

	var count int
	row := s.db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM process_audit WHERE module_id = ?`, 7)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row, got %d", count)
	}
}

func TestSink_SendWithErrorColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	e := audit.Event{Type: audit.EventCrashed, OccurredAt: time.Now(), ModuleID: 9, Node: "n1", Name: "web", Status: "stopped", Error: "exit status 1"}
	if err := s.Send(context.Background(), e); err != nil {
		t.Fatalf("Send: %v", err)
	}

	var errCol string
	row := s.db.QueryRowContext(context.Background(), `SELECT error FROM process_audit WHERE module_id = ?`, 9)
	if err := row.Scan(&errCol); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if errCol != "exit status 1" {
		t.Fatalf("expected error column to round-trip, got %q", errCol)
	}
}
