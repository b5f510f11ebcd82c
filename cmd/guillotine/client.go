package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/guillotine-sh/guillotine/internal/bus"
	"github.com/guillotine-sh/guillotine/internal/config"
)

// resolveClient builds a bus.CLIClient against the operator-specified host,
// falling back to the host section of --config, then a hardcoded default —
// mirroring the teacher's cmd/provisr/client.go fallback chain
// (flag → config → "http://127.0.0.1:8080/api").
func resolveClient(o *cliOpts) *bus.CLIClient {
	addr := o.hostAddr
	if addr == "" {
		if cfg, err := config.Load(o.configPath); err == nil && cfg.Host != nil && cfg.Host.Listen != "" {
			addr = "http://" + hostPart(cfg.Host.Listen) + "/guillotine"
		}
	}
	if addr == "" {
		addr = "http://127.0.0.1:8080/guillotine"
	}
	return bus.NewCLIClient(bus.New(addr, o.timeout))
}

// hostPart turns a listen address like ":8080" into "127.0.0.1:8080" so it
// can be used as an HTTP client target.
func hostPart(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "127.0.0.1" + listen
	}
	return listen
}

// parseModuleID parses a CLI positional argument as a module id, surfacing
// a clear error rather than cobra's generic parse failure.
func parseModuleID(arg string) (uint64, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid module id %q: %w", arg, err)
	}
	return id, nil
}
