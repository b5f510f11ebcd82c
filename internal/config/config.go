// Package config loads a runner's configuration file: a top-level
// version/config/configs shape where "configs" entries are matched against
// the running GOOS/GOARCH to pick the active environment (spec.md §6.1).
//
// Grounded on the teacher's internal/config/config.go (viper.Unmarshal into
// a concrete struct, mapstructure discriminated decoding), generalized from
// provisr's groups/processes/store sections to Guillotine's
// juno/modules/host/node sections (field shapes per
// original_source/src/models/config_types.rs).
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// EnvRequirements gates a GuillotinePerEnvConfig entry to the hosts it
// applies to; any empty field matches unconditionally.
type EnvRequirements struct {
	TargetFamily string `mapstructure:"target_family"`
	TargetOS     string `mapstructure:"target_os"`
	TargetArch   string `mapstructure:"target_arch"`
	TargetEndian string `mapstructure:"target_endian"`
}

// Matches reports whether the current process's runtime target satisfies
// every non-empty field of r (spec.md §6.1 "config/configs target matching").
func (r EnvRequirements) Matches() bool {
	if r.TargetOS != "" && !strings.EqualFold(r.TargetOS, runtime.GOOS) {
		return false
	}
	if r.TargetArch != "" && !strings.EqualFold(r.TargetArch, runtime.GOARCH) {
		return false
	}
	if r.TargetFamily != "" && !strings.EqualFold(r.TargetFamily, unixOrWindows()) {
		return false
	}
	if r.TargetEndian != "" && !strings.EqualFold(r.TargetEndian, "little") {
		return false // every Go-supported build target guillotine ships to is little-endian
	}
	return true
}

func unixOrWindows() string {
	if runtime.GOOS == "windows" {
		return "windows"
	}
	return "unix"
}

// JunoConfig describes how to reach or spawn the bus daemon (spec.md §4.4
// "Bus supervision"; named after the original implementation's embedded bus
// process, kept as the field name since it names a concrete executable the
// config points at, not an abstraction).
type JunoConfig struct {
	Path           string `mapstructure:"path"`
	ConnectionType string `mapstructure:"connection_type"` // "unix_socket" | "inet_socket"
	Port           int    `mapstructure:"port"`
	BindAddr       string `mapstructure:"bind_addr"`
	SocketPath     string `mapstructure:"socket_path"`
}

func (j JunoConfig) Validate() error {
	switch j.ConnectionType {
	case "unix_socket":
		if j.SocketPath == "" {
			return fmt.Errorf("juno: connection_type=unix_socket requires socket_path")
		}
	case "inet_socket":
		if j.Port == 0 {
			return fmt.Errorf("juno: connection_type=inet_socket requires port")
		}
	default:
		return fmt.Errorf("juno: unknown connection_type %q (allowed: unix_socket, inet_socket)", j.ConnectionType)
	}
	return nil
}

// ModuleConfig points at the directory of module.json-carrying processes a
// node should discover and, optionally, auto-add on startup.
type ModuleConfig struct {
	Path string `mapstructure:"path"`
	Logs string `mapstructure:"logs"`
}

// HostConfig configures the host role.
type HostConfig struct {
	Listen string `mapstructure:"listen"`
}

// NodeConfig configures the node role.
type NodeConfig struct {
	Name       string `mapstructure:"name"`
	Listen     string `mapstructure:"listen"`
	HostAddr   string `mapstructure:"host_addr"`
	PublicAddr string `mapstructure:"public_addr"` // advertised to the host for routing
	LogsDir    string `mapstructure:"logs_dir"`
}

// SpecificConfig is the per-environment payload (spec.md §6.1).
type SpecificConfig struct {
	Juno    JunoConfig     `mapstructure:"juno"`
	Modules *ModuleConfig  `mapstructure:"modules"`
	Host    *HostConfig    `mapstructure:"host"`
	Node    *NodeConfig    `mapstructure:"node"`
	Metrics *MetricsConfig `mapstructure:"metrics"`
	Log     *LogConfig     `mapstructure:"log"`
	Audit   *AuditConfig   `mapstructure:"audit"`
}

// MetricsConfig turns on the prometheus exporter (SPEC_FULL.md §11).
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// LogConfig mirrors the teacher's LogConfig shape, retargeted at
// lumberjack-rotated per-process logs instead of provisr's single daemon log
// (SPEC_FULL.md §6.4).
type LogConfig struct {
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// AuditConfig selects an optional history sink (SPEC_FULL.md §6.4, §11).
type AuditConfig struct {
	Driver string `mapstructure:"driver"` // "", "sqlite", "postgres", "clickhouse"
	DSN    string `mapstructure:"dsn"`
}

// PerEnvConfig gates a SpecificConfig behind EnvRequirements.
type PerEnvConfig struct {
	Env    EnvRequirements `mapstructure:"env"`
	Config SpecificConfig  `mapstructure:"config"`
}

// RunnerConfig is the parsed file's top-level shape: either a single
// "config" for every environment, or a "configs" list matched by env.
type RunnerConfig struct {
	Version string          `mapstructure:"version"`
	Config  *SpecificConfig `mapstructure:"config"`
	Configs []PerEnvConfig  `mapstructure:"configs"`
}

// Active resolves the SpecificConfig applicable to this process: the bare
// "config" if present, else the first "configs" entry whose env matches.
func (c RunnerConfig) Active() (SpecificConfig, error) {
	if c.Config != nil {
		return *c.Config, nil
	}
	for _, entry := range c.Configs {
		if entry.Env.Matches() {
			return entry.Config, nil
		}
	}
	return SpecificConfig{}, fmt.Errorf("config: no entry in configs[] matches this host (os=%s arch=%s)", runtime.GOOS, runtime.GOARCH)
}

// Load reads and decodes a runner config file (any format viper supports:
// yaml, json, toml) and returns its environment-resolved SpecificConfig.
func Load(path string) (SpecificConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return SpecificConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var rc RunnerConfig
	if err := v.Unmarshal(&rc); err != nil {
		return SpecificConfig{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	active, err := rc.Active()
	if err != nil {
		return SpecificConfig{}, err
	}
	if err := active.Juno.Validate(); err != nil {
		return SpecificConfig{}, err
	}
	return active, nil
}
