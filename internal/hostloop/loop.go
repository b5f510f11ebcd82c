// Package hostloop is the host's command loop (spec.md §4.4): the same
// cooperative timer-or-channel shape as internal/node's loop, scaled to the
// whole registry instead of one node's processes. It is the single writer
// of internal/registry.Registry.
package hostloop

import (
	"context"
	"fmt"
	"time"

	"github.com/guillotine-sh/guillotine/internal/audit"
	"github.com/guillotine-sh/guillotine/internal/bus"
	"github.com/guillotine-sh/guillotine/internal/logx"
	"github.com/guillotine-sh/guillotine/internal/metrics"
	"github.com/guillotine-sh/guillotine/internal/procspec"
	"github.com/guillotine-sh/guillotine/internal/registry"
)

const tickInterval = 100 * time.Millisecond

// MsgKind enumerates every message the host loop accepts, split into the
// node→host event family and the CLI→host query/command family (spec.md
// §4.4).
type MsgKind int

const (
	// Node→host events.
	MsgRegisterNode MsgKind = iota
	MsgRegisterProcess
	MsgProcessExited
	MsgProcessRunning
	MsgNodeDisconnected
	// CLI→host queries.
	MsgListNodes
	MsgListAllProcesses
	MsgListProcesses
	MsgGetProcessInfo
	MsgListModules
	// CLI→host commands (routed to the owning node).
	MsgRestartProcess
	MsgStartProcess
	MsgStopProcess
	MsgDeleteProcess
	MsgAddProcess
	MsgGetProcessLogs
)

// Msg is one message drained per loop iteration (spec.md §4.2/§4.4
// "coroutine control flow for select-timer-or-command").
type Msg struct {
	Kind MsgKind

	NodeName string
	NodeAddr string
	Config   procspec.Config
	LogDir   string
	WorkDir  string
	Status   procspec.Status
	ModuleID uint64
	Crash    bool
	// LastStartedAt and CreatedAt are MsgRegisterProcess's two distinct
	// epoch-ms fields (spec.md §3/§4.6); kept separate rather than folded
	// into one so neither is silently lost.
	LastStartedAt uint64
	CreatedAt     uint64
	// AtMillis is the single epoch-ms timestamp MsgProcessRunning carries.
	AtMillis uint64
	Path     string

	Reply chan Reply
}

// Reply carries every possible return shape; callers (the hostrpc layer)
// only read the fields relevant to the Msg.Kind they sent.
type Reply struct {
	Err           error
	ModuleID      uint64
	ShouldRestart bool
	WaitMillis    uint64
	Nodes         []*procspec.Node
	Processes     []*procspec.Record
	Record        *procspec.Record
	Modules       []string
	Stdout        string
	Stderr        string
}

// dialer builds a bus.NodeClient for a node's base address; a field so
// tests can substitute a fake instead of a real HTTP roundtrip.
type dialer func(addr string) *bus.NodeClient

// Loop is the host's single-writer command loop.
type Loop struct {
	reg   *registry.Registry
	ctrl  chan Msg
	log   *logx.Logger
	dial  dialer
	clock func() time.Time
	audit audit.Sink
}

func New(log *logx.Logger, sink audit.Sink) *Loop {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Loop{
		reg:  registry.New(),
		ctrl: make(chan Msg, 64),
		log:  log,
		dial: func(addr string) *bus.NodeClient {
			return bus.NewNodeClient(bus.New(addr, 5*time.Second))
		},
		clock: time.Now,
		audit: sink,
	}
}

// emit best-effort audits an event; failures are logged, never fatal
// (spec.md §6.4 "audit persistence" is ambient, not load-bearing).
func (l *Loop) emit(ctx context.Context, e audit.Event) {
	e.OccurredAt = l.clock()
	if err := l.audit.Send(ctx, e); err != nil {
		l.log.Warn("audit sink write failed", "event", e.Type, "error", err)
	}
}

// Submit enqueues a message for the loop to drain on its next iteration.
func (l *Loop) Submit(m Msg) { l.ctrl <- m }

// Run is the host's cooperative loop (spec.md §4.4, §5).
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// No periodic registry work of its own. There is no node
			// heartbeat or liveness timeout: a node is marked disconnected
			// only when a MsgNodeDisconnected is submitted.
		case m := <-l.ctrl:
			l.handle(ctx, m)
		}
	}
}

func (l *Loop) handle(ctx context.Context, m Msg) {
	var r Reply
	switch m.Kind {
	case MsgRegisterNode:
		l.reg.RegisterNode(m.NodeName, m.NodeAddr)
		metrics.SetNodeConnected(m.NodeName, true)
		l.emit(ctx, audit.Event{Type: audit.EventNodeConnected, Node: m.NodeName})
	case MsgRegisterProcess:
		id, err := l.reg.RegisterProcess(m.NodeName, m.Config, m.LogDir, m.WorkDir, m.Status, m.LastStartedAt, m.CreatedAt)
		r.ModuleID, r.Err = id, err
		if err == nil {
			l.emit(ctx, audit.Event{Type: audit.EventRegistered, ModuleID: id, Node: m.NodeName, Name: m.Config.Name, Status: string(m.Status)})
		}
	case MsgProcessExited:
		should, wait, err := l.reg.ProcessExited(m.NodeName, m.ModuleID, m.Crash)
		r.ShouldRestart, r.WaitMillis, r.Err = should, wait, err
		if err == nil {
			typ := audit.EventExited
			if m.Crash {
				typ = audit.EventCrashed
			}
			l.emit(ctx, audit.Event{Type: typ, ModuleID: m.ModuleID, Node: m.NodeName})
		}
	case MsgProcessRunning:
		r.Err = l.reg.ProcessRunning(m.NodeName, m.ModuleID, m.AtMillis)
		if r.Err == nil {
			l.emit(ctx, audit.Event{Type: audit.EventRunning, ModuleID: m.ModuleID, Node: m.NodeName})
		}
	case MsgNodeDisconnected:
		l.reg.NodeDisconnected(m.NodeName)
		metrics.SetNodeConnected(m.NodeName, false)
		l.emit(ctx, audit.Event{Type: audit.EventNodeLost, Node: m.NodeName})
	case MsgListNodes:
		r.Nodes = l.reg.ListNodes()
	case MsgListAllProcesses:
		r.Processes = l.reg.ListAllProcesses()
	case MsgListProcesses:
		r.Processes, r.Err = l.reg.ListProcesses(m.NodeName)
	case MsgGetProcessInfo:
		r.Record, r.Err = l.reg.GetProcessInfo(m.ModuleID)
	case MsgListModules:
		// Pass-through stub (spec.md §9 open question: exact shape depends on
		// the bus). Best-effort: the host's own known module names.
		for _, rec := range l.reg.ListAllProcesses() {
			r.Modules = append(r.Modules, rec.Config.Name)
		}
	case MsgRestartProcess:
		r.Err = l.routeRestart(ctx, m.ModuleID)
	case MsgStartProcess:
		r.Err = l.routeStart(ctx, m.ModuleID)
	case MsgStopProcess:
		r.Err = l.routeStop(ctx, m.ModuleID)
	case MsgDeleteProcess:
		r.Err = l.routeDelete(ctx, m.ModuleID)
	case MsgAddProcess:
		r.ModuleID, r.Err = l.routeAdd(ctx, m.NodeName, m.Path)
	case MsgGetProcessLogs:
		r.Stdout, r.Stderr, r.Err = l.routeLogs(ctx, m.ModuleID)
	}
	if m.Reply != nil {
		m.Reply <- r
	}
}

// nodeClientFor looks up the owning node, verifies it's connected, and
// dials its RPC surface (spec.md §4.4 "looks up the owning node, verifies
// connected, forwards the call over the bus").
func (l *Loop) nodeClientFor(moduleID uint64) (*bus.NodeClient, string, error) {
	nodeName, ok := l.reg.GetOwningNode(moduleID)
	if !ok {
		return nil, "", fmt.Errorf("no such module: %d", moduleID)
	}
	if !l.reg.NodeConnected(nodeName) {
		return nil, "", fmt.Errorf("node %q is disconnected", nodeName)
	}
	addr, _ := l.reg.NodeAddr(nodeName)
	return l.dial(addr), nodeName, nil
}

func (l *Loop) routeRestart(ctx context.Context, moduleID uint64) error {
	nc, _, err := l.nodeClientFor(moduleID)
	if err != nil {
		return err
	}
	if err := nc.RespawnProcess(ctx, moduleID); err != nil {
		return err
	}
	l.reg.IncrementRestarts(moduleID)
	l.reg.SetLastStartedAt(moduleID, l.clock())
	if rec, err := l.reg.GetProcessInfo(moduleID); err == nil {
		metrics.IncRestart(rec.NodeName, rec.Config.Name)
	}
	return nil
}

func (l *Loop) routeStart(ctx context.Context, moduleID uint64) error {
	nc, _, err := l.nodeClientFor(moduleID)
	if err != nil {
		return err
	}
	if err := nc.StartProcess(ctx, moduleID); err != nil {
		return err
	}
	l.reg.SetLastStartedAt(moduleID, l.clock())
	return nil
}

func (l *Loop) routeStop(ctx context.Context, moduleID uint64) error {
	nc, _, err := l.nodeClientFor(moduleID)
	if err != nil {
		return err
	}
	if err := nc.StopProcess(ctx, moduleID); err != nil {
		return err
	}
	l.reg.SetStatus(moduleID, procspec.StatusStopped)
	l.emit(ctx, audit.Event{Type: audit.EventStopped, ModuleID: moduleID})
	return nil
}

func (l *Loop) routeDelete(ctx context.Context, moduleID uint64) error {
	nc, nodeName, err := l.nodeClientFor(moduleID)
	if err != nil {
		return err
	}
	if err := nc.DeleteProcess(ctx, moduleID); err != nil {
		return err
	}
	if err := l.reg.DeleteProcess(moduleID); err != nil {
		return err
	}
	l.emit(ctx, audit.Event{Type: audit.EventDeleted, ModuleID: moduleID, Node: nodeName})
	return nil
}

func (l *Loop) routeAdd(ctx context.Context, nodeName, path string) (uint64, error) {
	if !l.reg.NodeConnected(nodeName) {
		return 0, fmt.Errorf("node %q is disconnected", nodeName)
	}
	addr, ok := l.reg.NodeAddr(nodeName)
	if !ok {
		return 0, fmt.Errorf("no such node: %q", nodeName)
	}
	nc := l.dial(addr)
	return nc.AddProcess(ctx, path)
}

func (l *Loop) routeLogs(ctx context.Context, moduleID uint64) (string, string, error) {
	nc, _, err := l.nodeClientFor(moduleID)
	if err != nil {
		return "", "", err
	}
	return nc.GetLogs(ctx, moduleID)
}

// WithDialer overrides how node RPC clients are constructed (tests only).
func (l *Loop) WithDialer(d dialer) { l.dial = d }
