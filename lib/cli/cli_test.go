// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/parley/lib/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"Error":   slog.LevelError,
	}
	for input, want := range tests {
		got, err := ParseLevel(input)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", input, got, err, want)
		}
	}
	if _, err := ParseLevel("chatty"); err == nil {
		t.Error("ParseLevel accepted an unknown level")
	}
}

func TestFileLoggerWritesJSON(t *testing.T) {
	var buffer bytes.Buffer
	logger := NewFileLogger(&buffer, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("client joined", "name", "alice")

	lines := strings.Split(strings.TrimSpace(buffer.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buffer.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if record["msg"] != "client joined" || record["name"] != "alice" {
		t.Errorf("record = %v", record)
	}
}

func TestLoadConfigFromFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parley.yaml")
	content := "root: /srv/parley\nserver:\n  listen: \":7000\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.EnvVar, "/nonexistent/parley.yaml")

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Server.Listen != ":7000" {
		t.Errorf("listen = %q", loaded.Server.Listen)
	}
	if loaded.Server.History.Path != "/srv/parley/history.cbor" {
		t.Errorf("history path = %q", loaded.Server.History.Path)
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parley.json")
	if err := os.WriteFile(path, []byte(`{"client": {"name": "alice", /* who */ "port": 8000}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.EnvVar, path)

	loaded, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Client.Name != "alice" || loaded.Client.Port != 8000 {
		t.Errorf("client = %+v", loaded.Client)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv(config.EnvVar, "")
	t.Setenv("HOME", t.TempDir())

	loaded, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if strings.Contains(loaded.Client.DownloadDir, "${") {
		t.Errorf("download dir not expanded: %q", loaded.Client.DownloadDir)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parley.yaml")
	if err := os.WriteFile(path, []byte("server:\n  write_timeout: soon\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig accepted an invalid duration")
	}
}
