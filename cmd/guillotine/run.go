package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/guillotine-sh/guillotine/internal/audit"
	"github.com/guillotine-sh/guillotine/internal/bus"
	"github.com/guillotine-sh/guillotine/internal/busdaemon"
	"github.com/guillotine-sh/guillotine/internal/config"
	"github.com/guillotine-sh/guillotine/internal/hostloop"
	"github.com/guillotine-sh/guillotine/internal/hostrpc"
	"github.com/guillotine-sh/guillotine/internal/logx"
	"github.com/guillotine-sh/guillotine/internal/metrics"
	"github.com/guillotine-sh/guillotine/internal/node"
	"github.com/guillotine-sh/guillotine/internal/noderpc"
	"github.com/guillotine-sh/guillotine/internal/supervisorgroup"
)

// newRunCmd builds the long-running supervisor process: host, node, or
// both, per the loaded configuration (spec.md §2: "A single binary can run
// in any combination: host-only, node-only, or host+node co-located").
func newRunCmd() *cobra.Command {
	var configPath string
	c := &cobra.Command{
		Use:   "run",
		Short: "run the host and/or node supervisor loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupervisor(cmd.Context(), configPath)
		},
	}
	c.Flags().StringVar(&configPath, "config", "./config.json", "path to runner configuration file")
	return c
}

func runSupervisor(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		// Configuration errors are fatal at startup (spec.md §7 kind 1);
		// reported through the logger before the caller's os.Exit(1).
		logx.Default().Error("configuration invalid", "error", err)
		return err
	}
	log := buildLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	grp, gctx := supervisorgroup.New(ctx)

	sink, err := auditSink(cfg.Audit)
	if err != nil {
		log.Error("audit sink unavailable, continuing without persistence", "error", err)
		sink = audit.NopSink{}
	}

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			log.Warn("metrics registration failed", "error", err)
		}
		grp.RunHTTP(metrics.Handler(), cfg.Metrics.Listen, 2*time.Second)
	}

	var logsRoot string
	if cfg.Node != nil {
		logsRoot = cfg.Node.LogsDir
	}

	if cfg.Juno.Path != "" {
		sup := busdaemon.New(cfg.Juno, logsRoot)
		grp.RunFunc(func(ctx context.Context) error { return sup.Run(ctx, log) })
	}

	if cfg.Host != nil {
		l := hostloop.New(log, sink)
		grp.RunLoop(l)
		grp.RunHTTP(hostrpc.New(l), cfg.Host.Listen, 2*time.Second)
	}

	if cfg.Node != nil {
		if err := runNode(gctx, grp, cfg, log); err != nil {
			return err
		}
	}

	return grp.Wait()
}

func runNode(ctx context.Context, grp *supervisorgroup.Group, cfg config.SpecificConfig, log *logx.Logger) error {
	nodeCfg := cfg.Node
	hostAddr := nodeCfg.HostAddr
	if hostAddr == "" {
		return fmt.Errorf("node configuration requires host_addr")
	}
	hostClient := bus.NewHostClient(bus.New(hostAddr, 10*time.Second))

	publicAddr := nodeCfg.PublicAddr
	if publicAddr == "" {
		publicAddr = "http://" + hostPart(nodeCfg.Listen)
	}
	registerCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := hostClient.RegisterNode(registerCtx, nodeCfg.Name, publicAddr); err != nil {
		return fmt.Errorf("registerNode: %w", err)
	}

	if lc := cfg.Log; lc != nil {
		if lc.MaxSizeMB > 0 {
			node.LogRotation.MaxSizeMB = lc.MaxSizeMB
		}
		if lc.MaxBackups > 0 {
			node.LogRotation.MaxBackups = lc.MaxBackups
		}
		if lc.MaxAgeDays > 0 {
			node.LogRotation.MaxAgeDays = lc.MaxAgeDays
		}
		node.LogRotation.Compress = lc.Compress
	}

	n := node.New(nodeCfg.Name, nodeCfg.LogsDir, hostClient, log)
	grp.RunLoop(n)
	grp.RunHTTP(noderpc.New(n), nodeCfg.Listen, 2*time.Second)

	if cfg.Modules != nil && cfg.Modules.Path != "" {
		scanModulesDir(n, cfg.Modules.Path, log)
		grp.RunFunc(func(ctx context.Context) error {
			if err := n.WatchModulesDir(ctx, cfg.Modules.Path); err != nil {
				log.Warn("modules directory watch stopped", "error", err)
			}
			return nil
		})
	}
	return nil
}

// scanModulesDir submits a CmdAdd for every subdirectory of dir carrying a
// module.json, so modules already on disk at startup are picked up without
// waiting for an fsnotify event (the directory-based module discovery of
// SPEC_FULL.md §11).
func scanModulesDir(n *node.Node, dir string, log *logx.Logger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn("modules directory scan failed", "dir", dir, "error", err)
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if _, err := os.Stat(filepath.Join(path, "module.json")); err != nil {
			continue
		}
		reply := make(chan node.Result, 1)
		n.Submit(node.Cmd{Type: node.CmdAdd, Path: path, Reply: reply})
		res := <-reply
		if res.Err != nil {
			log.Warn("startup module add failed", "path", path, "error", res.Err)
		}
	}
}

func buildLogger(lc *config.LogConfig) *logx.Logger {
	level := slog.LevelInfo
	if lc != nil {
		switch strings.ToLower(lc.Level) {
		case "verbose":
			level = logx.LevelVerbose
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	return logx.New(os.Stderr, level)
}

func auditSink(ac *config.AuditConfig) (audit.Sink, error) {
	if ac == nil {
		return audit.NopSink{}, nil
	}
	return audit.NewSink(ac.Driver, ac.DSN)
}
