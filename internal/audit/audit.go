// Package audit is Guillotine's optional event trail: it records lifecycle
// transitions the registry applies (not process state itself, which is
// never persisted — spec.md §3 Non-goals) to an external sink for
// operators who want history beyond what the host keeps in memory.
//
// Grounded on the teacher's internal/history package (Event/Sink shape,
// DSN-based sink selection), narrowed to the three backends SPEC_FULL.md
// §6.4/§11 names: sqlite, postgres, clickhouse. The teacher's opensearch
// sink is dropped — no example repo in the pack imports an OpenSearch
// client, so nothing grounds it beyond the teacher's own code.
package audit

import (
	"context"
	"time"
)

// EventType is the kind of registry-level lifecycle transition recorded.
type EventType string

const (
	EventRegistered     EventType = "registered"
	EventRunning        EventType = "running"
	EventExited         EventType = "exited"
	EventCrashed        EventType = "crashed"
	EventStopped        EventType = "stopped"
	EventDeleted        EventType = "deleted"
	EventNodeConnected  EventType = "node_connected"
	EventNodeLost       EventType = "node_disconnected"
)

// Event is one audit entry.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	ModuleID   uint64    `json:"module_id"`
	Node       string    `json:"node"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// Sink is a destination for audit events. The host loop calls Send inline
// from its own goroutine, one event at a time; Close is called by whoever
// owns the sink.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

// NopSink discards every event; the default when no audit driver is
// configured (SPEC_FULL.md §6.4: audit persistence is optional).
type NopSink struct{}

func (NopSink) Send(context.Context, Event) error { return nil }
func (NopSink) Close() error                       { return nil }
