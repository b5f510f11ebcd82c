package bus

import (
	"context"
	"fmt"
)

// CLIClient calls the host's RPC surface (spec.md §4.6) from the guillotine
// CLI, grounded on the teacher's cmd/provisr/client.go APIClient — one
// method per endpoint, JSON in/out, errors surfaced from the response body
// rather than the HTTP status alone.
type CLIClient struct{ c *Client }

func NewCLIClient(c *Client) *CLIClient { return &CLIClient{c: c} }

func (cl *CLIClient) Reachable(ctx context.Context) bool { return cl.c.Reachable(ctx) }

func (cl *CLIClient) ListNodes(ctx context.Context) ([]NodeView, error) {
	var resp ListNodesResponse
	if err := cl.c.Call(ctx, "listNodes", &Envelope{}, &resp); err != nil {
		return nil, err
	}
	return resp.Nodes, nil
}

func (cl *CLIClient) ListAllProcesses(ctx context.Context) ([]ProcessView, error) {
	var resp ListProcessesResponse
	if err := cl.c.Call(ctx, "listAllProcesses", &Envelope{}, &resp); err != nil {
		return nil, err
	}
	return resp.Processes, nil
}

func (cl *CLIClient) ListProcesses(ctx context.Context, node string) ([]ProcessView, error) {
	req := &RegisterNodeRequest{Name: node}
	var resp ListProcessesResponse
	if err := cl.c.Call(ctx, "listProcesses", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("listProcesses: node %q not found", node)
	}
	return resp.Processes, nil
}

func (cl *CLIClient) GetProcessInfo(ctx context.Context, moduleID uint64) (ProcessView, error) {
	req := &ModuleIDRequest{ModuleID: moduleID}
	var resp GetProcessInfoResponse
	if err := cl.c.Call(ctx, "getProcessInfo", req, &resp); err != nil {
		return ProcessView{}, err
	}
	if !resp.Success {
		return ProcessView{}, fmt.Errorf("%s", resp.Error)
	}
	return resp.Process, nil
}

func (cl *CLIClient) ListModules(ctx context.Context) ([]string, error) {
	var resp ListModulesResponse
	if err := cl.c.Call(ctx, "listModules", &Envelope{}, &resp); err != nil {
		return nil, err
	}
	return resp.Modules, nil
}

func (cl *CLIClient) RestartProcess(ctx context.Context, moduleID uint64) error {
	return cl.callSimple(ctx, "restartProcess", moduleID)
}

func (cl *CLIClient) StartProcess(ctx context.Context, moduleID uint64) error {
	return cl.callSimple(ctx, "startProcess", moduleID)
}

func (cl *CLIClient) StopProcess(ctx context.Context, moduleID uint64) error {
	return cl.callSimple(ctx, "stopProcess", moduleID)
}

func (cl *CLIClient) DeleteProcess(ctx context.Context, moduleID uint64) error {
	return cl.callSimple(ctx, "deleteProcess", moduleID)
}

func (cl *CLIClient) callSimple(ctx context.Context, fn string, moduleID uint64) error {
	req := &ModuleIDRequest{ModuleID: moduleID}
	var resp SuccessResponse
	if err := cl.c.Call(ctx, fn, req, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s", resp.Error)
	}
	return nil
}

func (cl *CLIClient) GetProcessLogs(ctx context.Context, moduleID uint64) (stdout, stderr string, err error) {
	req := &ModuleIDRequest{ModuleID: moduleID}
	var resp LogsResponse
	if err := cl.c.Call(ctx, "getProcessLogs", req, &resp); err != nil {
		return "", "", err
	}
	if !resp.Success {
		return "", "", fmt.Errorf("%s", resp.Error)
	}
	return resp.Stdout, resp.Stderr, nil
}

func (cl *CLIClient) AddProcess(ctx context.Context, node, path string) (uint64, error) {
	req := &struct {
		Envelope
		Node string `json:"node"`
		Path string `json:"path"`
	}{Node: node, Path: path}
	var resp AddResponse
	if err := cl.c.Call(ctx, "addProcess", req, &resp); err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, fmt.Errorf("%s", resp.Error)
	}
	return resp.ModuleID, nil
}
