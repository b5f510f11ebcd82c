package node

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/guillotine-sh/guillotine/internal/procspec"
)

func TestNode_WatchModulesDirAutoAdds(t *testing.T) {
	dir := t.TempDir()
	host := newFakeHostClient()
	n := New("n1", filepath.Join(dir, "logs"), host, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = n.WatchModulesDir(ctx, dir)
		close(done)
	}()

	// Give fsnotify's Add() time to register the watch before the write.
	time.Sleep(50 * time.Millisecond)

	moduleDir := filepath.Join(dir, "web")
	if err := os.MkdirAll(moduleDir, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	b, _ := json.Marshal(procspec.Config{Name: "web", Command: "/bin/true"})
	if err := os.WriteFile(filepath.Join(moduleDir, "module.json"), b, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case cmd := <-n.ctrl:
			n.apply(context.Background(), cmd)
			if len(host.registered) == 1 && host.registered[0] == "web" {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for the modules directory watcher to auto-add module.json")
		}
	}
}

func TestNode_HandleWatchEventIgnoresUnrelatedFiles(t *testing.T) {
	host := newFakeHostClient()
	n := New("n1", "", host, testLogger())

	n.handleWatchEvent(fsnotify.Event{Name: "/tmp/some/other/file.txt", Op: fsnotify.Write})

	select {
	case <-n.ctrl:
		t.Fatal("expected no command to be submitted for a non-module.json event")
	case <-time.After(50 * time.Millisecond):
	}
}
