package node

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// WatchModulesDir watches dir for new module subdirectories (each carrying
// a module.json) and submits a CmdAdd for every one it sees, so an operator
// can drop a new module directory in place instead of calling the node's
// addProcess RPC by hand (SPEC_FULL.md §11, supplementing spec.md §4.2's
// Add flow with the original implementation's modules-path scan).
//
// It runs until ctx is cancelled; callers start it in its own goroutine.
func (n *Node) WatchModulesDir(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					// Watch the new subdirectory so its module.json is seen,
					// and pick up one written before the watch was in place.
					_ = w.Add(ev.Name)
					manifest := filepath.Join(ev.Name, "module.json")
					if _, err := os.Stat(manifest); err == nil {
						n.handleWatchEvent(fsnotify.Event{Name: manifest, Op: fsnotify.Create})
					}
					continue
				}
			}
			n.handleWatchEvent(ev)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			n.log.Warn("modules directory watch error", "error", err)
		}
	}
}

func (n *Node) handleWatchEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if strings.ToLower(filepath.Base(ev.Name)) != "module.json" {
		return
	}
	path := filepath.Dir(ev.Name)
	reply := make(chan Result, 1)
	n.Submit(Cmd{Type: CmdAdd, Path: path, Reply: reply})
	go func() {
		res := <-reply
		if res.Err != nil {
			n.log.Warn("auto-add from modules directory failed", "path", path, "error", res.Err)
			return
		}
		n.log.Info("auto-added module from modules directory", "path", path, "module_id", res.ModuleID)
	}()
}
