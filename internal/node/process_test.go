package node

import (
	"runtime"
	"testing"
	"time"

	"github.com/guillotine-sh/guillotine/internal/procspec"
)

func requireUnixSpec(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a Unix-like shell")
	}
}

func TestProcess_NewProcessStartsRestartsAtMinusOne(t *testing.T) {
	p := NewProcess(1, procspec.Config{Name: "web", Command: "/bin/true"}, "", "")
	if p.restarts != -1 {
		t.Fatalf("expected restarts to start at -1, got %d", p.restarts)
	}
	if p.state != stateOffline {
		t.Fatalf("expected a fresh Process to be Offline, got %s", p.state)
	}
}

func TestProcess_SpawnAndExit(t *testing.T) {
	requireUnixSpec(t)
	p := NewProcess(1, procspec.Config{Name: "ok", Command: "/bin/sh", Args: []string{"-c", "exit 0"}}, "", "")
	if err := p.spawn(); err != nil {
		t.Fatalf("unexpected spawn error: %v", err)
	}
	if p.state != stateRunning {
		t.Fatalf("expected Running immediately after spawn, got %s", p.state)
	}
	select {
	case err := <-p.exitCh:
		if err != nil {
			t.Fatalf("expected a clean exit, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("process did not exit in time")
	}
}

func TestProcess_SpawnNonexistentCommandFails(t *testing.T) {
	p := NewProcess(1, procspec.Config{Name: "ghost", Command: "/no/such/binary-guillotine-test"}, "", "")
	if err := p.spawn(); err == nil {
		t.Fatal("expected spawn of a nonexistent binary to fail")
	}
}

func TestProcess_BuildCmdWithInterpreter(t *testing.T) {
	requireUnixSpec(t)
	p := NewProcess(1, procspec.Config{
		Name:        "script",
		Command:     "/tmp/script.py",
		Interpreter: "/usr/bin/python3",
		Args:        []string{"--flag"},
	}, "", "")
	cmd := p.buildCmd()
	if cmd.Path != "/usr/bin/python3" && cmd.Args[0] != "/usr/bin/python3" {
		t.Fatalf("expected the interpreter to be the executable, got argv=%#v", cmd.Args)
	}
	if len(cmd.Args) < 3 || cmd.Args[1] != "/tmp/script.py" || cmd.Args[2] != "--flag" {
		t.Fatalf("expected command to be the interpreter's first arg, got argv=%#v", cmd.Args)
	}
}

func TestProcess_BuildCmdWithoutInterpreter(t *testing.T) {
	p := NewProcess(1, procspec.Config{Name: "web", Command: "/bin/web", Args: []string{"-p", "8080"}}, "", "")
	cmd := p.buildCmd()
	if len(cmd.Args) != 3 || cmd.Args[1] != "-p" || cmd.Args[2] != "8080" {
		t.Fatalf("unexpected argv: %#v", cmd.Args)
	}
}

func TestProcess_WaitExitBlockingForceTerminates(t *testing.T) {
	requireUnixSpec(t)
	p := NewProcess(1, procspec.Config{Name: "stubborn", Command: "/bin/sh", Args: []string{"-c", "trap '' TERM; sleep 30"}}, "", "")
	if err := p.spawn(); err != nil {
		t.Fatalf("unexpected spawn error: %v", err)
	}
	p.requestGraceful()
	start := time.Now()
	_ = p.waitExitBlocking(150 * time.Millisecond)
	if time.Since(start) > 2*time.Second {
		t.Fatal("waitExitBlocking took far longer than its deadline plus force-kill grace")
	}
}

func TestProcess_TryExitNonBlockingBeforeSpawn(t *testing.T) {
	p := NewProcess(1, procspec.Config{Name: "x", Command: "/bin/true"}, "", "")
	exited, err := p.tryExitNonBlocking()
	if exited || err != nil {
		t.Fatalf("expected no exit signal before a spawn, got exited=%v err=%v", exited, err)
	}
}
