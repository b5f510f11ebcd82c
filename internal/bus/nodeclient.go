package bus

import (
	"context"
	"fmt"
)

// NodeClient calls one node's RPC surface (spec.md §4.5) from the host's
// command loop, used for every operator command the host routes to the
// owning node.
type NodeClient struct{ c *Client }

func NewNodeClient(c *Client) *NodeClient { return &NodeClient{c: c} }

func (n *NodeClient) RespawnProcess(ctx context.Context, moduleID uint64) error {
	return n.callSimple(ctx, "respawnProcess", moduleID)
}

func (n *NodeClient) StartProcess(ctx context.Context, moduleID uint64) error {
	return n.callSimple(ctx, "startProcess", moduleID)
}

func (n *NodeClient) StopProcess(ctx context.Context, moduleID uint64) error {
	return n.callSimple(ctx, "stopProcess", moduleID)
}

func (n *NodeClient) DeleteProcess(ctx context.Context, moduleID uint64) error {
	return n.callSimple(ctx, "deleteProcess", moduleID)
}

func (n *NodeClient) callSimple(ctx context.Context, fn string, moduleID uint64) error {
	req := &ModuleIDRequest{ModuleID: moduleID}
	var resp SuccessResponse
	if err := n.c.Call(ctx, fn, req, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s", resp.Error)
	}
	return nil
}

func (n *NodeClient) AddProcess(ctx context.Context, path string) (uint64, error) {
	req := &PathRequest{Path: path}
	var resp AddResponse
	if err := n.c.Call(ctx, "addProcess", req, &resp); err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, fmt.Errorf("%s", resp.Error)
	}
	return resp.ModuleID, nil
}

func (n *NodeClient) GetLogs(ctx context.Context, moduleID uint64) (stdout, stderr string, err error) {
	req := &ModuleIDRequest{ModuleID: moduleID}
	var resp LogsResponse
	if err := n.c.Call(ctx, "getLogs", req, &resp); err != nil {
		return "", "", err
	}
	if !resp.Success {
		return "", "", fmt.Errorf("%s", resp.Error)
	}
	return resp.Stdout, resp.Stderr, nil
}
