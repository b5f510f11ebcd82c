// Package registry implements the host's authoritative process registry
// (spec.md §4.3). It is plain, single-threaded state: every exported method
// assumes it is called only from the host's command loop goroutine
// (internal/hostloop), which is what makes the invariants in spec.md §3
// hold without any locking here.
package registry

import (
	"fmt"
	"time"

	"github.com/guillotine-sh/guillotine/internal/procspec"
)

// Registry holds every known NodeRecord and, transitively, every
// ProcessRecord it owns (invariant 1: exactly one owner per module_id).
type Registry struct {
	nodes    map[string]*procspec.Node
	byModule map[uint64]*procspec.Record
	nextID   uint64
}

// New constructs an empty Registry. Module ids are allocated starting at 1.
func New() *Registry {
	return &Registry{
		nodes:    make(map[string]*procspec.Node),
		byModule: make(map[uint64]*procspec.Record),
		nextID:   1,
	}
}

// RegisterNode is idempotent: it creates the node on first sight or marks an
// existing one connected again. addr is the node's RPC base URL, used for
// command routing (spec.md §4.4).
func (r *Registry) RegisterNode(name, addr string) {
	n, ok := r.nodes[name]
	if !ok {
		r.nodes[name] = &procspec.Node{Name: name, Connected: true, Addr: addr}
		return
	}
	n.Connected = true
	if addr != "" {
		n.Addr = addr
	}
}

// RegisterProcess implements the reconciliation rule (spec.md §4.3 core
// rule): a name already owned by a non-Offline record anywhere is rejected;
// a name owned by an Offline record on the SAME node reuses its module id
// and created_at (invariant 5, testable property 1); any other case
// allocates a fresh, strictly-increasing id (testable property 3).
func (r *Registry) RegisterProcess(nodeName string, cfg procspec.Config, logDir, workDir string, status procspec.Status, lastStartedAt, createdAt uint64) (uint64, error) {
	node, ok := r.nodes[nodeName]
	if !ok {
		return 0, fmt.Errorf("registerProcess: unknown node %q", nodeName)
	}

	owner, existing := r.findOwner(cfg.Name)
	if existing != nil {
		if owner != nodeName {
			return 0, fmt.Errorf("process %q is already registered under the runner %q", cfg.Name, owner)
		}
		if existing.Status != procspec.StatusOffline {
			return 0, fmt.Errorf("process %q is already registered under the runner %q", cfg.Name, owner)
		}
		// Reconnecting node reclaims its prior id; static fields refresh.
		existing.Config = cfg
		existing.LogDir = logDir
		existing.WorkingDir = workDir
		existing.Status = status
		existing.LastStartedAt = lastStartedAt
		return existing.ModuleID, nil
	}

	id := r.nextID
	r.nextID++
	rec := &procspec.Record{
		ModuleID:      id,
		NodeName:      nodeName,
		Config:        cfg,
		LogDir:        logDir,
		WorkingDir:    workDir,
		Status:        status,
		Restarts:      0,
		LastStartedAt: lastStartedAt,
		CreatedAt:     createdAt,
	}
	node.Processes = append(node.Processes, rec)
	r.byModule[id] = rec
	return id, nil
}

// findOwner returns the owning node name and record for a process name,
// across all nodes (invariant 2: (node_name, name) pairs globally unique —
// enforced precisely by this lookup being name-only, not name+node).
func (r *Registry) findOwner(name string) (string, *procspec.Record) {
	for nodeName, n := range r.nodes {
		if rec := n.ProcessByName(name); rec != nil {
			return nodeName, rec
		}
	}
	return "", nil
}

// ProcessExited applies the crash-backoff policy (spec.md §4.3, §8
// properties 4–6). Returns (shouldRestart, waitMillis).
func (r *Registry) ProcessExited(nodeName string, moduleID uint64, crash bool) (bool, uint64, error) {
	rec, err := r.mustOwned(nodeName, moduleID)
	if err != nil {
		return false, 0, err
	}
	rec.Status = procspec.StatusOffline
	if !crash {
		return true, 0, nil
	}
	rec.Crashes++
	rec.ConsecutiveCrashes++
	if rec.ConsecutiveCrashes <= procspec.MaxConsecutiveCrashes {
		return true, 100, nil
	}
	rec.Status = procspec.StatusStopped
	return false, 0, nil
}

// ProcessRunning clears the crash run and marks the process Running
// (spec.md §4.1 "sustained run" transition, relayed through onProcessRunning).
func (r *Registry) ProcessRunning(nodeName string, moduleID uint64, lastStartedAt uint64) error {
	rec, err := r.mustOwned(nodeName, moduleID)
	if err != nil {
		return err
	}
	rec.ConsecutiveCrashes = 0
	rec.LastStartedAt = lastStartedAt
	rec.Status = procspec.StatusRunning
	return nil
}

// NodeDisconnected marks a node disconnected and forces every owned
// ProcessRecord Offline (invariant 3, testable property 7).
func (r *Registry) NodeDisconnected(nodeName string) {
	n, ok := r.nodes[nodeName]
	if !ok {
		return
	}
	n.Connected = false
	for _, rec := range n.Processes {
		rec.Status = procspec.StatusOffline
	}
}

func (r *Registry) mustOwned(nodeName string, moduleID uint64) (*procspec.Record, error) {
	rec, ok := r.byModule[moduleID]
	if !ok {
		return nil, fmt.Errorf("unknown module id: %d", moduleID)
	}
	if rec.NodeName != nodeName {
		return nil, fmt.Errorf("module %d is not owned by node %q", moduleID, nodeName)
	}
	return rec, nil
}

// --- Query operations (spec.md §4.3, §4.6) ---

func (r *Registry) ListNodes() []*procspec.Node {
	out := make([]*procspec.Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n)
	}
	return out
}

func (r *Registry) ListAllProcesses() []*procspec.Record {
	out := make([]*procspec.Record, 0, len(r.byModule))
	for _, n := range r.nodes {
		out = append(out, n.Processes...)
	}
	return out
}

func (r *Registry) ListProcesses(nodeName string) ([]*procspec.Record, error) {
	n, ok := r.nodes[nodeName]
	if !ok {
		return nil, fmt.Errorf("unknown node: %q", nodeName)
	}
	return n.Processes, nil
}

func (r *Registry) GetProcessInfo(moduleID uint64) (*procspec.Record, error) {
	rec, ok := r.byModule[moduleID]
	if !ok {
		return nil, fmt.Errorf("unknown module id: %d", moduleID)
	}
	return rec, nil
}

// GetOwningNode returns the node name owning moduleID, for command routing
// (spec.md §4.4 "forwards the call over the bus with {moduleId: …}").
func (r *Registry) GetOwningNode(moduleID uint64) (string, bool) {
	rec, ok := r.byModule[moduleID]
	if !ok {
		return "", false
	}
	return rec.NodeName, true
}

// NodeAddr returns the node's RPC base URL, for command routing.
func (r *Registry) NodeAddr(nodeName string) (string, bool) {
	n, ok := r.nodes[nodeName]
	if !ok {
		return "", false
	}
	return n.Addr, true
}

// NodeConnected reports whether a node is currently connected.
func (r *Registry) NodeConnected(nodeName string) bool {
	n, ok := r.nodes[nodeName]
	return ok && n.Connected
}

// IncrementRestarts bumps a process's restart counter by one (spec.md §9:
// host-side restarts starts at 0 and increments on every explicit restart
// event, distinct from the node-local -1-based counter).
func (r *Registry) IncrementRestarts(moduleID uint64) {
	if rec, ok := r.byModule[moduleID]; ok {
		rec.Restarts++
	}
}

// SetLastStartedAt updates a record's last_started_at, used after a
// successful routed Start/Restart (spec.md §4.4).
func (r *Registry) SetLastStartedAt(moduleID uint64, t time.Time) {
	if rec, ok := r.byModule[moduleID]; ok {
		rec.LastStartedAt = uint64(t.UnixMilli())
		rec.Status = procspec.StatusRunning
	}
}

// DeleteProcess removes a ProcessRecord entirely (only removal path per
// spec.md §3 "Lifecycles").
func (r *Registry) DeleteProcess(moduleID uint64) error {
	rec, ok := r.byModule[moduleID]
	if !ok {
		return fmt.Errorf("unknown module id: %d", moduleID)
	}
	n := r.nodes[rec.NodeName]
	if n != nil {
		for i, p := range n.Processes {
			if p.ModuleID == moduleID {
				n.Processes = append(n.Processes[:i], n.Processes[i+1:]...)
				break
			}
		}
	}
	delete(r.byModule, moduleID)
	return nil
}

// SetStatus sets a record's status directly (used by routed Stop on success).
func (r *Registry) SetStatus(moduleID uint64, status procspec.Status) {
	if rec, ok := r.byModule[moduleID]; ok {
		rec.Status = status
	}
}
