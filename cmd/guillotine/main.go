// Command guillotine is the single binary for every role (spec.md §2): run
// it as host, node, host+node, or as a short-lived CLI client issuing one
// query or command against an already-running host.
//
// Grounded on the teacher's cmd/provisr/main.go (one cobra root, persistent
// flags shared by every subcommand, os.Exit(1) on any reported error).
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// cliOpts holds the persistent flags every CLI subcommand (everything but
// "run") reads to reach a host.
type cliOpts struct {
	configPath string
	hostAddr   string
	timeout    time.Duration
}

func main() {
	opts := &cliOpts{}

	root := &cobra.Command{
		Use:   "guillotine",
		Short: "distributed process supervisor",
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "./config.json", "path to runner configuration file")
	root.PersistentFlags().StringVar(&opts.hostAddr, "host-addr", "", "host RPC base URL (default: derived from --config, else http://127.0.0.1:8080/guillotine)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "RPC call timeout")

	root.AddCommand(
		newRunCmd(),
		newAddCmd(opts),
		newDeleteCmd(opts),
		newLogsCmd(opts),
		newInfoCmd(opts),
		newListAllProcessesCmd(opts),
		newListModulesCmd(opts),
		newListNodesCmd(opts),
		newListProcessesCmd(opts),
		newRestartCmd(opts),
		newStartCmd(opts),
		newStopCmd(opts),
	)

	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
