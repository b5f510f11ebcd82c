package busdaemon

import (
	"context"
	"net"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/guillotine-sh/guillotine/internal/config"
	"github.com/guillotine-sh/guillotine/internal/logx"
)

func requireUnixSpec(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("spawns /bin/sh; unix-only")
	}
}

func TestSupervisor_DialTarget(t *testing.T) {
	cases := []struct {
		name        string
		cfg         config.JunoConfig
		wantNetwork string
	}{
		{"unix socket", config.JunoConfig{ConnectionType: "unix_socket", SocketPath: "/tmp/x.sock"}, "unix"},
		{"unix socket no path", config.JunoConfig{ConnectionType: "unix_socket"}, ""},
		{"inet socket", config.JunoConfig{ConnectionType: "inet_socket", Port: 9000}, "tcp"},
		{"inet socket no port", config.JunoConfig{ConnectionType: "inet_socket"}, ""},
		{"unknown", config.JunoConfig{ConnectionType: "carrier_pigeon"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(tc.cfg, t.TempDir())
			network, _ := s.dialTarget()
			if network != tc.wantNetwork {
				t.Fatalf("expected network %q, got %q", tc.wantNetwork, network)
			}
		})
	}
}

func TestSupervisor_CheckNotAlreadyRunning_NothingListening(t *testing.T) {
	s := New(config.JunoConfig{ConnectionType: "inet_socket", Port: 18237, BindAddr: "127.0.0.1"}, t.TempDir())
	if err := s.CheckNotAlreadyRunning(); err != nil {
		t.Fatalf("expected no error when nothing is listening, got %v", err)
	}
}

func TestSupervisor_CheckNotAlreadyRunning_RefusesWhenOccupied(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	addr := lis.Addr().(*net.TCPAddr)
	s := New(config.JunoConfig{ConnectionType: "inet_socket", Port: addr.Port, BindAddr: "127.0.0.1"}, t.TempDir())
	if err := s.CheckNotAlreadyRunning(); err == nil {
		t.Fatal("expected an error when something is already listening on the target port")
	}
}

func TestSupervisor_RunRespawnsAfterExitAndStopsOnCancel(t *testing.T) {
	requireUnixSpec(t)

	logDir := t.TempDir()
	s := New(config.JunoConfig{Path: "/bin/sh", ConnectionType: ""}, logDir)
	// Path normally names a long-lived daemon; here it names a shell that,
	// started with no arguments and no stdin, exits immediately so Run's
	// respawn loop gets exercised.
	s.cfg.Path = "/bin/sh"

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	log := logx.New(os.Stderr, logx.LevelVerbose)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, log) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after its context expired")
	}
}

func TestSupervisor_RunFailsWhenPathDoesNotExist(t *testing.T) {
	requireUnixSpec(t)

	s := New(config.JunoConfig{Path: "/nonexistent/path/to/guillotine-bus"}, t.TempDir())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	log := logx.New(os.Stderr, logx.LevelVerbose)
	if err := s.Run(ctx, log); err == nil {
		t.Fatal("expected an error when the configured path cannot be spawned")
	}
}
