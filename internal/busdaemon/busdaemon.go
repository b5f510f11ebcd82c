// Package busdaemon supervises the external bus daemon executable as the
// host's first supervised child (spec.md §4.4 "Bus supervision": "The host
// spawns the bus daemon as its first supervised child, same Process
// machinery as user workloads. If the bus dies, the host tears down its
// bus-facing module, respawns the bus, reconnects, and re-registers
// functions").
//
// Grounded on internal/node/process.go's spawn/graceful-shutdown/crash
// handling, generalized from "many named Processes under a node" to "one
// fixed executable under the host." Log rotation follows the same
// gopkg.in/natefinch/lumberjack.v2 pattern, under a "bus" log subdirectory
// (SPEC_FULL.md §10's per-node bus log subdirectory).
package busdaemon

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/guillotine-sh/guillotine/internal/config"
	"github.com/guillotine-sh/guillotine/internal/logx"
	"github.com/guillotine-sh/guillotine/internal/procsignal"
)

// gracefulShutdownWait mirrors internal/node/process.go's bound: graceful
// request, then force-terminate (spec.md §5 "Cancellation and shutdown").
const gracefulShutdownWait = 1000 * time.Millisecond

// respawnBackoff is the pause before respawning a dead bus daemon, the
// host-level analogue of internal/node's crash-backoff wait.
const respawnBackoff = 100 * time.Millisecond

// Supervisor owns the bus daemon's *exec.Cmd. Like node.Process, it is
// intended to be driven from a single goroutine — no internal locking.
type Supervisor struct {
	cfg    config.JunoConfig
	logDir string

	cmd    *exec.Cmd
	exitCh chan error
}

// New builds a Supervisor for the bus daemon described by cfg, logging
// under <logDir>/bus/.
func New(cfg config.JunoConfig, logDir string) *Supervisor {
	return &Supervisor{cfg: cfg, logDir: filepath.Join(logDir, "bus")}
}

// CheckNotAlreadyRunning refuses to start a second bus daemon against the
// same socket/port (SPEC_FULL.md §10 "Duplicate-bus-instance guard",
// grounded on the original's try_connecting_to_juno-before-spawn check).
func (s *Supervisor) CheckNotAlreadyRunning() error {
	network, addr := s.dialTarget()
	if network == "" {
		return nil
	}
	conn, err := net.DialTimeout(network, addr, 200*time.Millisecond)
	if err != nil {
		return nil // nothing listening: safe to spawn
	}
	_ = conn.Close()
	return fmt.Errorf("busdaemon: something is already listening on %s %s; refusing to start a second bus instance", network, addr)
}

func (s *Supervisor) dialTarget() (network, addr string) {
	switch s.cfg.ConnectionType {
	case "unix_socket":
		if s.cfg.SocketPath == "" {
			return "", ""
		}
		return "unix", s.cfg.SocketPath
	case "inet_socket":
		if s.cfg.Port == 0 {
			return "", ""
		}
		host := s.cfg.BindAddr
		if host == "" {
			host = "127.0.0.1"
		}
		return "tcp", fmt.Sprintf("%s:%d", host, s.cfg.Port)
	default:
		return "", ""
	}
}

// start spawns the daemon once, wiring rotated stdout/stderr logs.
func (s *Supervisor) start() error {
	// #nosec G204 -- JunoConfig.Path is operator-authored configuration, not untrusted input.
	cmd := exec.Command(s.cfg.Path)
	if s.logDir != "" {
		if err := os.MkdirAll(s.logDir, 0o750); err == nil {
			cmd.Stdout = &lumberjack.Logger{Filename: filepath.Join(s.logDir, "output.log"), MaxSize: 100, MaxBackups: 5, MaxAge: 28}
			cmd.Stderr = &lumberjack.Logger{Filename: filepath.Join(s.logDir, "error.log"), MaxSize: 100, MaxBackups: 5, MaxAge: 28}
		}
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("busdaemon: start %s: %w", s.cfg.Path, err)
	}
	s.cmd = cmd
	s.exitCh = make(chan error, 1)
	waiter := cmd
	ch := s.exitCh
	go func() { ch <- waiter.Wait() }()
	return nil
}

// Run starts the bus daemon and keeps it alive until ctx is cancelled,
// respawning on every unexpected exit. It returns nil once ctx is cancelled
// (after gracefully, or forcefully, terminating a running daemon), and an
// error if the duplicate-instance guard refuses or a spawn (initial or
// respawn) fails.
func (s *Supervisor) Run(ctx context.Context, log *logx.Logger) error {
	if err := s.CheckNotAlreadyRunning(); err != nil {
		return err
	}
	if err := s.start(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case err := <-s.exitCh:
			log.Warn("bus daemon exited, respawning", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(respawnBackoff):
			}
			if err := s.CheckNotAlreadyRunning(); err != nil {
				log.Error("bus daemon respawn aborted", "error", err)
				return err
			}
			if err := s.start(); err != nil {
				log.Error("bus daemon respawn failed", "error", err)
				return err
			}
		}
	}
}

// shutdown requests graceful shutdown, escalating to force-kill after
// gracefulShutdownWait (spec.md §5).
func (s *Supervisor) shutdown() {
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}
	procsignal.RequestGracefulShutdown(s.cmd.Process)
	select {
	case <-s.exitCh:
		return
	case <-time.After(gracefulShutdownWait):
		procsignal.ForceTerminate(s.cmd.Process)
		select {
		case <-s.exitCh:
		case <-time.After(200 * time.Millisecond):
		}
	}
}
