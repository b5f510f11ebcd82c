package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// printJSON renders a response the same way the teacher's cmd/provisr does
// (encoding/json, indented, to stdout) — no templating, matches spec.md §7's
// "terminal table rendering" non-goal by keeping output machine-parseable.
func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func newListNodesCmd(o *cliOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "list-nodes",
		Short: "list every node known to the host",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := resolveClient(o)
			nodes, err := c.ListNodes(ctx)
			if err != nil {
				return fmt.Errorf("error sending command: %w", err)
			}
			printJSON(nodes)
			return nil
		},
	}
}

func newListAllProcessesCmd(o *cliOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "list-all-processes",
		Short: "list every process on every node",
		RunE: func(cmd *cobra.Command, args []string) error {
			procs, err := resolveClient(o).ListAllProcesses(cmd.Context())
			if err != nil {
				return fmt.Errorf("error sending command: %w", err)
			}
			printJSON(procs)
			return nil
		},
	}
}

func newListProcessesCmd(o *cliOpts) *cobra.Command {
	var node string
	c := &cobra.Command{
		Use:   "list-processes",
		Short: "list the processes owned by one node",
		RunE: func(cmd *cobra.Command, args []string) error {
			procs, err := resolveClient(o).ListProcesses(cmd.Context(), node)
			if err != nil {
				return fmt.Errorf("error sending command: %w", err)
			}
			printJSON(procs)
			return nil
		},
	}
	c.Flags().StringVar(&node, "node", "", "node name (required)")
	return c
}

func newListModulesCmd(o *cliOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "list-modules",
		Short: "list known module names (best-effort, non-authoritative)",
		RunE: func(cmd *cobra.Command, args []string) error {
			mods, err := resolveClient(o).ListModules(cmd.Context())
			if err != nil {
				return fmt.Errorf("error sending command: %w", err)
			}
			printJSON(mods)
			return nil
		},
	}
}

func newInfoCmd(o *cliOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "info {moduleId}",
		Short: "show detailed info for one process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseModuleID(args[0])
			if err != nil {
				return err
			}
			proc, err := resolveClient(o).GetProcessInfo(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("error sending command: %w", err)
			}
			printJSON(proc)
			return nil
		},
	}
}

func newRestartCmd(o *cliOpts) *cobra.Command {
	return moduleIDCommand(o, "restart {moduleId}", "restart one process", func(ctx context.Context, id uint64) error {
		return resolveClient(o).RestartProcess(ctx, id)
	})
}

func newStartCmd(o *cliOpts) *cobra.Command {
	return moduleIDCommand(o, "start {moduleId}", "start a stopped process", func(ctx context.Context, id uint64) error {
		return resolveClient(o).StartProcess(ctx, id)
	})
}

func newStopCmd(o *cliOpts) *cobra.Command {
	return moduleIDCommand(o, "stop {moduleId}", "stop a running process", func(ctx context.Context, id uint64) error {
		return resolveClient(o).StopProcess(ctx, id)
	})
}

func newDeleteCmd(o *cliOpts) *cobra.Command {
	return moduleIDCommand(o, "delete {moduleId}", "stop and forget a process", func(ctx context.Context, id uint64) error {
		return resolveClient(o).DeleteProcess(ctx, id)
	})
}

func moduleIDCommand(o *cliOpts, use, short string, run func(ctx context.Context, id uint64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseModuleID(args[0])
			if err != nil {
				return err
			}
			if err := run(cmd.Context(), id); err != nil {
				return fmt.Errorf("error sending command: %w", err)
			}
			fmt.Printf("{\"success\":true,\"moduleId\":%d}\n", id)
			return nil
		},
	}
}

func newLogsCmd(o *cliOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "logs {moduleId}",
		Short: "print a process's stdout/stderr",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseModuleID(args[0])
			if err != nil {
				return err
			}
			stdout, stderr, err := resolveClient(o).GetProcessLogs(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("error sending command: %w", err)
			}
			printJSON(struct {
				Stdout string `json:"stdout"`
				Stderr string `json:"stderr"`
			}{stdout, stderr})
			return nil
		},
	}
}

func newAddCmd(o *cliOpts) *cobra.Command {
	var node string
	var autostart bool
	c := &cobra.Command{
		Use:   "add {path}",
		Short: "register a module.json (or its containing directory) on a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if node == "" {
				return fmt.Errorf("--node is required")
			}
			id, err := resolveClient(o).AddProcess(cmd.Context(), node, args[0])
			if err != nil {
				return fmt.Errorf("error sending command: %w", err)
			}
			// autostart is the node's own default for a freshly-added module
			// (internal/node.add always sets shouldBeRunning=true); the flag
			// exists for parity with spec.md §6's CLI surface and to make the
			// intent explicit even though the node-side behavior is fixed.
			_ = autostart
			fmt.Printf("{\"success\":true,\"moduleId\":%d}\n", id)
			return nil
		},
	}
	c.Flags().StringVar(&node, "node", "", "node to add the module to (required)")
	c.Flags().BoolVar(&autostart, "autostart", true, "start the module immediately after registering it")
	return c
}
