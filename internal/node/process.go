package node

import (
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/guillotine-sh/guillotine/internal/procsignal"
	"github.com/guillotine-sh/guillotine/internal/procspec"
)

// LogRotation is applied to every per-process output.log/error.log writer.
// Defaults mirror the teacher's internal/logger.Config.Writers() (100MB /
// 5 backups / 28 days), overridable via config.LogConfig.
var LogRotation = struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}{MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28, Compress: false}

// state is the composite (running?, should_be_running, has_been_crashing,
// start_scheduled_at) collapsed to the named states of spec.md §4.1.
type state int

const (
	stateOffline state = iota
	stateSpawning
	stateRunning
	stateScheduled
	stateStopped
)

func (s state) String() string {
	switch s {
	case stateOffline:
		return "offline"
	case stateSpawning:
		return "spawning"
	case stateRunning:
		return "running"
	case stateScheduled:
		return "scheduled"
	case stateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// stabilityThreshold is the "sustained run" duration after which a
// previously-crashing process is considered stable again (spec.md §4.1).
const stabilityThreshold = 1000 * time.Millisecond

// gracefulShutdownWait is the bound on graceful shutdown before force-kill
// (spec.md §4.1, §5, §8 property 8).
const gracefulShutdownWait = 1000 * time.Millisecond

// Process is the node-local runtime counterpart to a host procspec.Record.
// It is owned exclusively by the Node's loop goroutine; every field here is
// mutated only from that goroutine, so no internal locking is needed — the
// single-writer discipline comes from the caller, not from this type.
type Process struct {
	ModuleID uint64
	Spec     procspec.Config
	WorkDir  string
	LogDir   string

	state state

	cmd    *exec.Cmd
	exitCh chan error // signaled once by the waiter goroutine when cmd.Wait returns

	stdout, stderr io.WriteCloser

	shouldBeRunning  bool
	hasBeenCrashing  bool
	startScheduledAt time.Time // zero value means "not scheduled"

	restarts      int // starts at -1 so the first spawn brings it to 0 (spec.md §9)
	crashes       uint64
	consecutive   uint64
	lastStartedAt time.Time
	createdAt     time.Time
}

// NewProcess constructs an Offline, not-yet-started Process.
func NewProcess(moduleID uint64, spec procspec.Config, workDir, logDir string) *Process {
	return &Process{
		ModuleID:  moduleID,
		Spec:      spec,
		WorkDir:   workDir,
		LogDir:    logDir,
		state:     stateOffline,
		restarts:  -1,
		createdAt: time.Now(),
	}
}

// buildCmd constructs the *exec.Cmd for this process's spec, honoring the
// optional interpreter indirection (spec.md §3: "when set, command becomes
// its first argument") the same way the teacher's process.Spec.BuildCommand
// decides between direct exec and shell wrapping.
func (p *Process) buildCmd() *exec.Cmd {
	var name string
	var args []string
	if p.Spec.Interpreter != "" {
		name = p.Spec.Interpreter
		args = append([]string{p.Spec.Command}, p.Spec.Args...)
	} else {
		name = p.Spec.Command
		args = p.Spec.Args
	}
	// #nosec G204 -- module.json is operator-authored configuration, not untrusted input.
	cmd := exec.Command(name, args...)
	if p.WorkDir != "" {
		cmd.Dir = p.WorkDir
	}
	env := os.Environ()
	for k, v := range p.Spec.Envs {
		env = append(env, k+"="+v)
	}
	cmd.Env = env
	procsignal.SetProcAttrs(cmd)
	return cmd
}

// openLogs builds rotating output.log/error.log writers under LogDir for
// this spawn, grounded on the teacher's internal/logger.Config.Writers()
// (gopkg.in/natefinch/lumberjack.v2). Per spec.md §4.1, failure to prepare
// the log directory discards both streams rather than failing the spawn.
func (p *Process) openLogs() (stdout, stderr io.WriteCloser) {
	if p.LogDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(p.LogDir, 0o750); err != nil {
		return nil, nil
	}
	mk := func(name string) *lumberjack.Logger {
		return &lumberjack.Logger{
			Filename:   filepath.Join(p.LogDir, name),
			MaxSize:    LogRotation.MaxSizeMB,
			MaxBackups: LogRotation.MaxBackups,
			MaxAge:     LogRotation.MaxAgeDays,
			Compress:   LogRotation.Compress,
		}
	}
	return mk("output.log"), mk("error.log")
}

// spawn starts the child, wiring stdio per spec.md §4.1 (stdin detached,
// stdout/stderr to log files or discarded on open failure).
func (p *Process) spawn() error {
	cmd := p.buildCmd()
	cmd.Stdin = nil
	out, errw := p.openLogs()
	if out != nil {
		cmd.Stdout = out
	} else {
		cmd.Stdout = nil
	}
	if errw != nil {
		cmd.Stderr = errw
	} else {
		cmd.Stderr = nil
	}
	if err := cmd.Start(); err != nil {
		if out != nil {
			_ = out.Close()
		}
		if errw != nil {
			_ = errw.Close()
		}
		return err
	}
	p.cmd = cmd
	p.stdout, p.stderr = out, errw
	p.exitCh = make(chan error, 1)
	p.lastStartedAt = time.Now()
	p.restarts++
	p.state = stateRunning
	waiter := cmd
	ch := p.exitCh
	go func() {
		ch <- waiter.Wait()
	}()
	return nil
}

func (p *Process) closeLogs() {
	if p.stdout != nil {
		_ = p.stdout.Close()
		p.stdout = nil
	}
	if p.stderr != nil {
		_ = p.stderr.Close()
		p.stderr = nil
	}
}

// lastStartedAtMillis and createdAtMillis expose epoch-millisecond
// timestamps for the wire protocol (spec.md §9: survive round trip as u64).
func (p *Process) lastStartedAtMillis() uint64 { return millis(p.lastStartedAt) }
func (p *Process) createdAtMillis() uint64     { return millis(p.createdAt) }

func millis(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixMilli())
}

// tryExitNonBlocking drains exitCh without blocking; returns (exited, err).
func (p *Process) tryExitNonBlocking() (bool, error) {
	if p.exitCh == nil {
		return false, nil
	}
	select {
	case err := <-p.exitCh:
		p.exitCh = nil
		return true, err
	default:
		return false, nil
	}
}

// requestGraceful asks the platform to deliver a graceful-shutdown request.
// Abstracted per spec.md §1 ("platform-specific signal delivery").
func (p *Process) requestGraceful() {
	if p.cmd != nil && p.cmd.Process != nil {
		procsignal.RequestGracefulShutdown(p.cmd.Process)
	}
}

func (p *Process) forceTerminate() {
	if p.cmd != nil && p.cmd.Process != nil {
		procsignal.ForceTerminate(p.cmd.Process)
	}
}

// waitExitBlocking blocks (with a deadline) for the in-flight spawn to exit,
// escalating to force-terminate at gracefulShutdownWait. Used by Stop/Delete
// and the global shutdown path (spec.md §4.1 "Graceful shutdown protocol").
func (p *Process) waitExitBlocking(deadline time.Duration) error {
	if p.exitCh == nil {
		return nil
	}
	select {
	case err := <-p.exitCh:
		p.exitCh = nil
		return err
	case <-time.After(deadline):
		p.forceTerminate()
		select {
		case err := <-p.exitCh:
			p.exitCh = nil
			return err
		case <-time.After(200 * time.Millisecond):
			return nil
		}
	}
}
