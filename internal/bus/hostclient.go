package bus

import (
	"context"
	"fmt"

	"github.com/guillotine-sh/guillotine/internal/procspec"
)

// HostClient calls the host RPC surface (spec.md §4.6) from a node process.
// It satisfies node.HostClient without internal/node importing this package.
type HostClient struct{ c *Client }

func NewHostClient(c *Client) *HostClient { return &HostClient{c: c} }

func (h *HostClient) RegisterNode(ctx context.Context, name, addr string) error {
	req := &RegisterNodeRequest{Name: name, Addr: addr}
	var resp SuccessResponse
	if err := h.c.Call(ctx, "registerNode", req, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("registerNode: %s", resp.Error)
	}
	return nil
}

func (h *HostClient) RegisterProcess(ctx context.Context, node string, cfg procspec.Config, logDir, workDir string, status procspec.Status, lastStartedAt, createdAt uint64) (uint64, error) {
	req := &RegisterProcessRequest{
		Node:          node,
		Config:        cfg,
		LogDir:        logDir,
		WorkingDir:    workDir,
		Status:        status,
		LastStartedAt: NumberFromUint64(lastStartedAt),
		CreatedAt:     NumberFromUint64(createdAt),
	}
	var resp RegisterProcessResponse
	if err := h.c.Call(ctx, "registerProcess", req, &resp); err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, fmt.Errorf("%s", resp.Error)
	}
	return resp.ModuleID, nil
}

func (h *HostClient) ProcessExited(ctx context.Context, node string, moduleID uint64, crash bool) (bool, uint64, error) {
	req := &OnProcessExitedRequest{Node: node, ModuleID: moduleID, Crash: crash}
	var resp OnProcessExitedResponse
	if err := h.c.Call(ctx, "onProcessExited", req, &resp); err != nil {
		return false, 0, err
	}
	wait, err := resp.WaitDuration.Uint64()
	if err != nil {
		return false, 0, err
	}
	return resp.ShouldRestart, wait, nil
}

func (h *HostClient) ProcessRunning(ctx context.Context, node string, moduleID uint64, lastSpawnedAt uint64) error {
	req := &OnProcessRunningRequest{Node: node, ModuleID: moduleID, LastSpawnedAt: NumberFromUint64(lastSpawnedAt)}
	var resp SuccessResponse
	if err := h.c.Call(ctx, "onProcessRunning", req, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("onProcessRunning: %s", resp.Error)
	}
	return nil
}
