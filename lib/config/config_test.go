// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	config := Default()
	config.Expand()
	if err := config.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if config.Client.Port != 9999 {
		t.Errorf("client.port = %d, want 9999", config.Client.Port)
	}
	if !strings.HasPrefix(config.Server.History.Path, config.Root) {
		t.Errorf("history path %q not under root %q", config.Server.History.Path, config.Root)
	}
}

func TestLoadRequiresEnvironment(t *testing.T) {
	t.Setenv(EnvVar, "")
	_, err := Load()
	if err == nil {
		t.Fatal("Load succeeded without PARLEY_CONFIG")
	}
	if !strings.Contains(err.Error(), EnvVar) {
		t.Errorf("error %q does not name %s", err, EnvVar)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	path := writeConfig(t, "parley.yaml", `
root: /srv/parley
server:
  listen: ":7000"
  history:
    backend: sqlite
    path: ${PARLEY_ROOT}/chat.db
client:
  name: alice
  servers: [10.0.0.1, 10.0.0.2]
  port: 7000
  port_span: 3
  reconnect:
    max_attempts: 9
`)
	t.Setenv(EnvVar, path)

	config, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := config.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if config.Server.Listen != ":7000" {
		t.Errorf("server.listen = %q", config.Server.Listen)
	}
	if config.Server.History.Path != "/srv/parley/chat.db" {
		t.Errorf("history path = %q, want /srv/parley/chat.db", config.Server.History.Path)
	}
	if config.Client.DownloadDir != "/srv/parley/received" {
		t.Errorf("download dir = %q, want default under new root", config.Client.DownloadDir)
	}
	if got := strings.Join(config.Client.Servers, ","); got != "10.0.0.1,10.0.0.2" {
		t.Errorf("servers = %q", got)
	}
	if config.Client.Reconnect.MaxAttempts != 9 {
		t.Errorf("max_attempts = %d, want 9", config.Client.Reconnect.MaxAttempts)
	}
	// Unset fields keep defaults.
	if config.Client.Reconnect.InitialBackoff != "500ms" {
		t.Errorf("initial_backoff = %q, want default", config.Client.Reconnect.InitialBackoff)
	}
}

func TestLoadFileJSONC(t *testing.T) {
	path := writeConfig(t, "parley.jsonc", `{
  // comments are allowed
  "server": {
    "transport": "websocket",
    "websocket_path": "/chat",
  },
}`)
	config, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if config.Server.Transport != TransportWebSocket {
		t.Errorf("transport = %q", config.Server.Transport)
	}
	if config.Server.WebSocketPath != "/chat" {
		t.Errorf("websocket_path = %q", config.Server.WebSocketPath)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("LoadFile of missing file succeeded")
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	config := Default()
	config.Expand()
	config.Server.Transport = "carrier-pigeon"
	config.Server.History.Backend = "tape"
	config.Client.Port = 0
	config.Client.Reconnect.MaxAttempts = 0
	config.Client.Reconnect.InitialBackoff = "soon"

	err := config.Validate()
	if err == nil {
		t.Fatal("Validate accepted a broken config")
	}
	for _, field := range []string{
		"server.transport",
		"server.history.backend",
		"client.port",
		"client.reconnect.max_attempts",
		"client.reconnect.initial_backoff",
	} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error does not mention %s:\n%v", field, err)
		}
	}
}

func TestValidateBackoffOrder(t *testing.T) {
	client := Default().Client
	client.Reconnect.InitialBackoff = "10s"
	client.Reconnect.MaxBackoff = "1s"
	if err := client.Validate(); err == nil || !strings.Contains(err.Error(), "max_backoff") {
		t.Fatalf("Validate = %v, want max_backoff error", err)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"250ms", 250 * time.Millisecond, false},
		{"2m", 2 * time.Minute, false},
		{"-1s", 0, true},
		{"fast", 0, true},
	}
	for _, test := range tests {
		got, err := ParseDuration(test.input)
		if (err != nil) != test.wantErr {
			t.Errorf("ParseDuration(%q) error = %v, wantErr %v", test.input, err, test.wantErr)
			continue
		}
		if got != test.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", test.input, got, test.want)
		}
	}
}

func TestExpandVarsDefault(t *testing.T) {
	t.Setenv("PARLEY_TEST_UNSET", "")
	got := expandVars("${PARLEY_TEST_UNSET:-/fallback}/x", map[string]string{})
	if got != "/fallback/x" {
		t.Errorf("expandVars = %q, want /fallback/x", got)
	}
}

func TestTimeoutAccessors(t *testing.T) {
	config := Default()
	write, handshake := config.Server.Timeouts()
	if write != 10*time.Second || handshake != 10*time.Second {
		t.Errorf("server timeouts = %v, %v", write, handshake)
	}
	initial, maximum := config.Client.Reconnect.Backoff()
	if initial != 500*time.Millisecond || maximum != 30*time.Second {
		t.Errorf("backoff = %v, %v", initial, maximum)
	}
}
