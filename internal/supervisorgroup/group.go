// Package supervisorgroup wires the host loop, the node loop, their RPC
// servers, and the embedded bus-daemon supervisor into one cancellable unit
// (spec.md §5 "Cancellation and shutdown": "a context cancellation (SIGINT/
// SIGTERM to the runner) propagates down... and the run exits only once
// every owned process has been dealt with").
//
// Grounded on golang.org/x/sync/errgroup's WithContext pattern, as used for
// coordinated goroutine lifetimes in the pack (see other_examples' runc
// process-monitoring use of errgroup.WithContext).
package supervisorgroup

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Loop is anything with the cooperative Run(ctx) shape internal/node.Node
// and internal/hostloop.Loop both implement.
type Loop interface {
	Run(ctx context.Context)
}

// Group runs every component under one errgroup, returning when ctx is
// cancelled and every goroutine has unwound.
type Group struct {
	eg  *errgroup.Group
	ctx context.Context
}

// New builds a Group bound to ctx; cancel ctx (or have any member return an
// error) to begin shutdown of the rest.
func New(ctx context.Context) (*Group, context.Context) {
	eg, gctx := errgroup.WithContext(ctx)
	return &Group{eg: eg, ctx: gctx}, gctx
}

// RunLoop runs a cooperative loop (node.Node or hostloop.Loop) until ctx is
// cancelled.
func (g *Group) RunLoop(l Loop) {
	g.eg.Go(func() error {
		l.Run(g.ctx)
		return nil
	})
}

// RunHTTP serves handler on addr until ctx is cancelled, then shuts down
// with a bounded grace period. Both *gin.Engine (host) and *echo.Echo (node)
// satisfy http.Handler, so this one adapter drives either RPC surface.
func (g *Group) RunHTTP(handler http.Handler, addr string, shutdownGrace time.Duration) {
	srv := &http.Server{Addr: addr, Handler: handler}
	g.eg.Go(func() error {
		errCh := make(chan error, 1)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
				return
			}
			errCh <- nil
		}()
		select {
		case err := <-errCh:
			return err
		case <-g.ctx.Done():
			sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return srv.Shutdown(sctx)
		}
	})
}

// RunFunc runs an arbitrary background task under the group (e.g. the
// fsnotify modules-directory watcher, or the bus-daemon supervisor loop).
func (g *Group) RunFunc(fn func(ctx context.Context) error) {
	g.eg.Go(func() error { return fn(g.ctx) })
}

// Wait blocks until every member has returned, returning the first non-nil
// error (if any).
func (g *Group) Wait() error { return g.eg.Wait() }
