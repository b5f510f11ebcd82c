// Package node implements the node role: a single-threaded cooperative
// supervisor loop that owns a set of local child processes, reports their
// lifecycle to the host, and obeys host-originated commands (spec.md §4.2).
package node

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/guillotine-sh/guillotine/internal/logx"
	"github.com/guillotine-sh/guillotine/internal/metrics"
	"github.com/guillotine-sh/guillotine/internal/procspec"
)

// allStates lists every state label SetCurrentState needs to zero; kept
// here rather than in internal/metrics so that package stays state-machine
// agnostic.
var allStates = []string{
	stateOffline.String(), stateSpawning.String(), stateRunning.String(),
	stateScheduled.String(), stateStopped.String(),
}

// tickInterval is the node loop's cadence (spec.md §4.2, "Tick" in GLOSSARY).
const tickInterval = 100 * time.Millisecond

// HostClient is the subset of the host RPC surface (spec.md §4.6) a node
// calls into. Kept as an interface here so this package never imports the
// bus transport — internal/bus's client satisfies it.
type HostClient interface {
	RegisterProcess(ctx context.Context, node string, cfg procspec.Config, logDir, workDir string, status procspec.Status, lastStartedAt, createdAt uint64) (moduleID uint64, err error)
	ProcessExited(ctx context.Context, node string, moduleID uint64, crash bool) (shouldRestart bool, waitMillis uint64, err error)
	ProcessRunning(ctx context.Context, node string, moduleID uint64, lastSpawnedAt uint64) error
}

// CmdType enumerates the command-channel messages a Node's loop accepts.
type CmdType int

const (
	CmdRestart CmdType = iota
	CmdAdd
	CmdStart
	CmdStop
	CmdDelete
	CmdGetLogs
)

// Cmd is one operator-originated message, mirroring the teacher's CtrlMsg
// (internal/manager/handler.go) generalized from one-process-per-channel to
// one-node-per-channel addressed by ModuleID.
type Cmd struct {
	Type     CmdType
	ModuleID uint64
	Path     string // CmdAdd only
	Reply    chan Result
}

// Result is the outcome of a Cmd, convertible directly into the node RPC
// surface's {success, error?} / {success, stdout, stderr} shapes.
type Result struct {
	ModuleID uint64
	Err      error
	Stdout   string
	Stderr   string
}

// Node owns every locally-supervised Process and the command channel that
// serializes all mutation of them.
type Node struct {
	Name     string
	LogsRoot string // e.g. <logs>/<node>

	host  HostClient
	procs map[uint64]*Process // keyed by host-assigned module id
	ctrl  chan Cmd
	close atomic.Bool

	log *logx.Logger
}

// New constructs a Node bound to a HostClient used for outbound events.
func New(name, logsRoot string, host HostClient, log *logx.Logger) *Node {
	return &Node{
		Name:     name,
		LogsRoot: logsRoot,
		host:     host,
		procs:    make(map[uint64]*Process),
		ctrl:     make(chan Cmd, 32),
		log:      log,
	}
}

// RequestShutdown sets the global close flag polled on every loop tick
// (spec.md §5 "Cancellation and shutdown").
func (n *Node) RequestShutdown() { n.close.Store(true) }

// Submit enqueues a command for the loop to drain on its next iteration.
// It never blocks on the reply; callers needing the result should pass a
// buffered Reply channel and receive from it themselves.
func (n *Node) Submit(c Cmd) { n.ctrl <- c }

// Run is the cooperative loop: await the first of {timer, command channel},
// process it to completion, then re-arm (spec.md §4.2, §9 "coroutine
// control flow for select-timer-or-command").
func (n *Node) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			n.shutdownAll()
			return
		case <-ticker.C:
			if n.close.Load() {
				n.shutdownAll()
				return
			}
			n.tick(ctx)
		case cmd := <-n.ctrl:
			if n.close.Load() {
				n.shutdownAll()
				return
			}
			n.apply(ctx, cmd)
		}
	}
}

// tick iterates every local process once and applies the state machine
// (spec.md §4.1 transition table).
func (n *Node) tick(ctx context.Context) {
	now := time.Now()
	for id, p := range n.procs {
		n.tickOne(ctx, id, p, now)
	}
}

func (n *Node) tickOne(ctx context.Context, id uint64, p *Process, now time.Time) {
	switch p.state {
	case stateRunning:
		if exited, err := p.tryExitNonBlocking(); exited {
			n.onExit(ctx, id, p, err)
			return
		}
		if p.hasBeenCrashing && now.Sub(p.lastStartedAt) >= stabilityThreshold {
			p.hasBeenCrashing = false
			p.consecutive = 0
			if err := n.host.ProcessRunning(ctx, n.Name, id, p.lastStartedAtMillis()); err != nil {
				n.log.Warn("onProcessRunning failed", "module_id", id, "error", err)
			}
		}
	case stateScheduled:
		if n.close.Load() {
			return // spec.md §9: check close flag before any spawn, even scheduled ones
		}
		if !now.Before(p.startScheduledAt) {
			p.startScheduledAt = time.Time{}
			n.trySpawn(ctx, id, p)
		}
	case stateOffline:
		if p.shouldBeRunning && p.startScheduledAt.IsZero() && !n.close.Load() {
			n.trySpawn(ctx, id, p)
		}
	case stateSpawning, stateStopped:
		// Spawning is transient (resolved synchronously in trySpawn); Stopped
		// waits for an explicit operator Start.
	}
}

// trySpawn spawns p and, on success, notifies the host it is Running —
// except when this spawn is a crash-backoff respawn (p.hasBeenCrashing),
// where the host is told only once the process has survived
// stabilityThreshold (see the stateRunning branch of tickOne above). That
// gate exists to keep ConsecutiveCrashes accumulating across a crash loop
// (spec.md §8 properties 4-6, scenario S2): ProcessRunning resets it, so
// notifying on every respawn would reset the count before the next crash
// and the MaxConsecutiveCrashes cutoff would never trigger. A fresh spawn
// (manual start/restart, or the process's very first run) has no crash run
// to protect, so the host learns Running immediately (spec.md §8 S1).
func (n *Node) trySpawn(ctx context.Context, id uint64, p *Process) {
	from := p.state
	p.state = stateSpawning
	metrics.RecordStateTransition(n.Name, p.Spec.Name, from.String(), p.state.String())
	if err := p.spawn(); err != nil {
		n.log.Error("spawn failed", "module_id", id, "name", p.Spec.Name, "error", err)
		p.state = stateOffline // should_be_running stays true; next tick retries
		metrics.RecordStateTransition(n.Name, p.Spec.Name, stateSpawning.String(), p.state.String())
		metrics.SetCurrentState(n.Name, p.Spec.Name, p.state.String(), allStates)
		return
	}
	p.state = stateRunning
	metrics.RecordStateTransition(n.Name, p.Spec.Name, stateSpawning.String(), p.state.String())
	metrics.SetCurrentState(n.Name, p.Spec.Name, p.state.String(), allStates)
	metrics.IncStart(n.Name, p.Spec.Name)
	if !p.hasBeenCrashing {
		if err := n.host.ProcessRunning(ctx, n.Name, id, p.lastStartedAtMillis()); err != nil {
			n.log.Warn("onProcessRunning failed", "module_id", id, "error", err)
		}
	}
}

func (n *Node) onExit(ctx context.Context, id uint64, p *Process, err error) {
	p.closeLogs()
	from := p.state
	p.state = stateOffline
	metrics.RecordStateTransition(n.Name, p.Spec.Name, from.String(), p.state.String())
	metrics.SetCurrentState(n.Name, p.Spec.Name, p.state.String(), allStates)
	crash := err != nil
	if crash {
		p.crashes++
		p.consecutive++
		p.hasBeenCrashing = true
		metrics.IncCrash(n.Name, p.Spec.Name)
	}
	shouldRestart, waitMillis, rpcErr := n.host.ProcessExited(ctx, n.Name, id, crash)
	if rpcErr != nil {
		n.log.Warn("onProcessExited failed", "module_id", id, "error", rpcErr)
		return
	}
	if !shouldRestart {
		if crash {
			p.shouldBeRunning = false
			p.state = stateStopped
			metrics.RecordStateTransition(n.Name, p.Spec.Name, stateOffline.String(), p.state.String())
			metrics.SetCurrentState(n.Name, p.Spec.Name, p.state.String(), allStates)
		}
		return
	}
	p.startScheduledAt = time.Now().Add(time.Duration(waitMillis) * time.Millisecond)
	p.state = stateScheduled
	metrics.RecordStateTransition(n.Name, p.Spec.Name, stateOffline.String(), p.state.String())
	metrics.SetCurrentState(n.Name, p.Spec.Name, p.state.String(), allStates)
}

// apply handles exactly one drained command (spec.md §4.2 "Add flow" et al).
func (n *Node) apply(ctx context.Context, cmd Cmd) {
	var res Result
	res.ModuleID = cmd.ModuleID
	switch cmd.Type {
	case CmdRestart:
		res.Err = n.restart(ctx, cmd.ModuleID)
	case CmdAdd:
		id, err := n.add(ctx, cmd.Path)
		res.ModuleID = id
		res.Err = err
	case CmdStart:
		res.Err = n.start(ctx, cmd.ModuleID)
	case CmdStop:
		res.Err = n.stop(cmd.ModuleID)
	case CmdDelete:
		res.Err = n.delete(cmd.ModuleID)
	case CmdGetLogs:
		res.Stdout, res.Stderr, res.Err = n.getLogs(cmd.ModuleID)
	}
	if cmd.Reply != nil {
		cmd.Reply <- res
	}
}

func (n *Node) restart(ctx context.Context, id uint64) error {
	p, ok := n.procs[id]
	if !ok {
		return fmt.Errorf("unknown module id: %d", id)
	}
	n.stopSync(p)
	p.shouldBeRunning = true
	n.trySpawn(ctx, id, p)
	if p.state != stateRunning {
		return fmt.Errorf("restart: respawn failed for module %d", id)
	}
	return nil
}

func (n *Node) start(ctx context.Context, id uint64) error {
	p, ok := n.procs[id]
	if !ok {
		return fmt.Errorf("unknown module id: %d", id)
	}
	if p.state == stateRunning || p.state == stateSpawning {
		return nil
	}
	p.shouldBeRunning = true
	n.trySpawn(ctx, id, p)
	if p.state != stateRunning {
		return fmt.Errorf("start: spawn failed for module %d", id)
	}
	return nil
}

func (n *Node) stop(id uint64) error {
	p, ok := n.procs[id]
	if !ok {
		return fmt.Errorf("unknown module id: %d", id)
	}
	n.stopSync(p)
	return nil
}

// stopSync implements spec.md §4.1's graceful shutdown protocol: request,
// wait up to 1000ms for the exit, then force-terminate.
func (n *Node) stopSync(p *Process) {
	p.shouldBeRunning = false
	from := p.state
	if p.state != stateRunning && p.state != stateSpawning && p.state != stateScheduled {
		p.state = stateStopped
		return
	}
	p.startScheduledAt = time.Time{}
	if p.cmd == nil {
		p.state = stateStopped
		return
	}
	p.requestGraceful()
	_ = p.waitExitBlocking(gracefulShutdownWait)
	p.closeLogs()
	p.state = stateStopped
	metrics.RecordStateTransition(n.Name, p.Spec.Name, from.String(), p.state.String())
	metrics.SetCurrentState(n.Name, p.Spec.Name, p.state.String(), allStates)
	metrics.IncStop(n.Name, p.Spec.Name)
}

func (n *Node) delete(id uint64) error {
	p, ok := n.procs[id]
	if !ok {
		return fmt.Errorf("unknown module id: %d", id)
	}
	n.stopSync(p)
	delete(n.procs, id)
	return nil
}

func (n *Node) getLogs(id uint64) (stdout, stderr string, err error) {
	p, ok := n.procs[id]
	if !ok {
		return "", "", fmt.Errorf("unknown module id: %d", id)
	}
	if p.LogDir == "" {
		return "", "", nil
	}
	stdout = readFileOrEmpty(filepath.Join(p.LogDir, "output.log"))
	stderr = readFileOrEmpty(filepath.Join(p.LogDir, "error.log"))
	return stdout, stderr, nil
}

func readFileOrEmpty(path string) string {
	b, err := os.ReadFile(path) // #nosec G304 -- path is derived from node-local config, not user input
	if err != nil {
		return ""
	}
	return string(b)
}

// add resolves a filesystem path to a module.json (directly or inside a
// directory), constructs a Process, and registers it with the host
// (spec.md §4.2 "Add flow").
func (n *Node) add(ctx context.Context, path string) (uint64, error) {
	moduleJSONPath := path
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("add: %w", err)
	}
	if info.IsDir() {
		moduleJSONPath = filepath.Join(path, "module.json")
	}
	b, err := os.ReadFile(moduleJSONPath) // #nosec G304 -- operator-supplied path via CLI/config, not remote input
	if err != nil {
		return 0, fmt.Errorf("add: read %s: %w", moduleJSONPath, err)
	}
	cfg, err := procspec.ParseModuleJSON(b)
	if err != nil {
		return 0, fmt.Errorf("add: %w", err)
	}
	workDir := filepath.Dir(moduleJSONPath)
	var logDir string
	if n.LogsRoot != "" {
		logDir = filepath.Join(n.LogsRoot, cfg.Name)
	}
	now := time.Now()
	moduleID, err := n.host.RegisterProcess(ctx, n.Name, cfg, logDir, workDir, procspec.StatusOffline, 0, millis(now))
	if err != nil {
		return 0, fmt.Errorf("add: registerProcess: %w", err)
	}
	p := NewProcess(moduleID, cfg, workDir, logDir)
	p.shouldBeRunning = true
	n.procs[moduleID] = p
	return moduleID, nil
}

// AttachExisting installs a Process the host already knows about (used when
// the node reconnects and must rebuild its local runtime view before
// driving the supervisor loop; the host retains the authoritative module id
// per invariant 5).
func (n *Node) AttachExisting(moduleID uint64, cfg procspec.Config, workDir, logDir string, autoStart bool) {
	p := NewProcess(moduleID, cfg, workDir, logDir)
	p.shouldBeRunning = autoStart
	n.procs[moduleID] = p
}

func (n *Node) shutdownAll() {
	for _, p := range n.procs {
		n.stopSync(p)
	}
}
