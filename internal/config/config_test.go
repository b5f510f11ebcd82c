package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestEnvRequirements_Matches(t *testing.T) {
	cases := []struct {
		name string
		req  EnvRequirements
		want bool
	}{
		{"empty matches everything", EnvRequirements{}, true},
		{"matching os", EnvRequirements{TargetOS: runtime.GOOS}, true},
		{"wrong os", EnvRequirements{TargetOS: "plan9"}, false},
		{"matching arch", EnvRequirements{TargetArch: runtime.GOARCH}, true},
		{"wrong arch", EnvRequirements{TargetArch: "riscv64"}, false},
		{"wrong family", EnvRequirements{TargetFamily: "neither-unix-nor-windows"}, false},
		{"little endian matches", EnvRequirements{TargetEndian: "little"}, true},
		{"big endian never matches", EnvRequirements{TargetEndian: "big"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.req.Matches(); got != tc.want {
				t.Fatalf("Matches() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestJunoConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     JunoConfig
		wantErr bool
	}{
		{"unix socket with path", JunoConfig{ConnectionType: "unix_socket", SocketPath: "/tmp/guillotine.sock"}, false},
		{"unix socket missing path", JunoConfig{ConnectionType: "unix_socket"}, true},
		{"inet socket with port", JunoConfig{ConnectionType: "inet_socket", Port: 9000}, false},
		{"inet socket missing port", JunoConfig{ConnectionType: "inet_socket"}, true},
		{"unknown connection type", JunoConfig{ConnectionType: "carrier_pigeon"}, true},
		{"empty connection type", JunoConfig{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestRunnerConfig_Active_BareConfig(t *testing.T) {
	rc := RunnerConfig{Config: &SpecificConfig{Host: &HostConfig{Listen: ":8080"}}}
	active, err := rc.Active()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if active.Host == nil || active.Host.Listen != ":8080" {
		t.Fatalf("unexpected active config: %#v", active)
	}
}

func TestRunnerConfig_Active_MatchingConfigsEntry(t *testing.T) {
	rc := RunnerConfig{Configs: []PerEnvConfig{
		{Env: EnvRequirements{TargetOS: "plan9"}, Config: SpecificConfig{Host: &HostConfig{Listen: ":1"}}},
		{Env: EnvRequirements{TargetOS: runtime.GOOS}, Config: SpecificConfig{Host: &HostConfig{Listen: ":2"}}},
	}}
	active, err := rc.Active()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if active.Host == nil || active.Host.Listen != ":2" {
		t.Fatalf("expected the matching entry's config, got %#v", active)
	}
}

func TestRunnerConfig_Active_NoMatch(t *testing.T) {
	rc := RunnerConfig{Configs: []PerEnvConfig{
		{Env: EnvRequirements{TargetOS: "plan9"}, Config: SpecificConfig{}},
	}}
	if _, err := rc.Active(); err == nil {
		t.Fatal("expected an error when no configs[] entry matches this host")
	}
}

func TestLoad_ReadsJSONConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guillotine.json")
	contents := `{
		"version": "1",
		"config": {
			"juno": {"connection_type": "unix_socket", "socket_path": "/tmp/guillotine-bus.sock", "path": "/usr/local/bin/guillotine-bus"},
			"host": {"listen": ":7777"},
			"node": {"name": "n1", "listen": ":7778", "host_addr": "http://127.0.0.1:7777"}
		}
	}`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	active, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if active.Host == nil || active.Host.Listen != ":7777" {
		t.Fatalf("unexpected host config: %#v", active.Host)
	}
	if active.Node == nil || active.Node.Name != "n1" {
		t.Fatalf("unexpected node config: %#v", active.Node)
	}
	if active.Juno.SocketPath != "/tmp/guillotine-bus.sock" {
		t.Fatalf("unexpected juno config: %#v", active.Juno)
	}
}

func TestLoad_RejectsInvalidJuno(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guillotine.json")
	contents := `{"version": "1", "config": {"juno": {"connection_type": "carrier_pigeon"}}}`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an invalid juno connection_type")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
