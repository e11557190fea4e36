// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable [Load] reads.
const EnvVar = "PARLEY_CONFIG"

// Transport names accepted by server.transport and client.transport.
const (
	TransportTCP       = "tcp"
	TransportWebSocket = "websocket"
)

// History backends accepted by server.history.backend.
const (
	HistoryMemory = "memory"
	HistoryFile   = "file"
	HistorySQLite = "sqlite"
)

// Config is the root of a Parley configuration file.
type Config struct {
	// Root is the base directory for server history and client
	// downloads. Other paths may refer to it as ${PARLEY_ROOT}.
	Root string `yaml:"root"`

	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
}

// ServerConfig configures parley-server.
type ServerConfig struct {
	// Listen is the address to accept connections on, e.g. ":9999".
	Listen string `yaml:"listen"`

	// Transport is "tcp" or "websocket".
	Transport string `yaml:"transport"`

	// WebSocketPath is the HTTP path upgraded to a WebSocket when
	// Transport is "websocket".
	WebSocketPath string `yaml:"websocket_path"`

	History HistoryConfig `yaml:"history"`

	// WriteTimeout bounds each write to a client. "0" disables it, in
	// which case one stalled client can hold up a broadcast.
	WriteTimeout string `yaml:"write_timeout"`

	// HandshakeTimeout bounds how long a new connection may take to
	// send its display name.
	HandshakeTimeout string `yaml:"handshake_timeout"`

	// MaxFileSize is the largest file payload, in bytes, the server
	// accepts.
	MaxFileSize int64 `yaml:"max_file_size"`

	// AnnouncePresence broadcasts join and leave notices.
	AnnouncePresence bool `yaml:"announce_presence"`
}

// HistoryConfig selects where the server keeps the chat backlog.
type HistoryConfig struct {
	// Backend is "memory", "file" (CBOR log) or "sqlite".
	Backend string `yaml:"backend"`

	// Path is the log file or database. Ignored for "memory".
	Path string `yaml:"path"`
}

// ClientConfig configures the parley client.
type ClientConfig struct {
	// Name is the display name sent in the handshake.
	Name string `yaml:"name"`

	// Servers are the candidate hosts, tried in order.
	Servers []string `yaml:"servers"`

	// Port is the base port dialed on each server.
	Port int `yaml:"port"`

	// PortSpan is how many consecutive ports from Port are tried on one
	// server before moving to the next.
	PortSpan int `yaml:"port_span"`

	Transport     string `yaml:"transport"`
	WebSocketPath string `yaml:"websocket_path"`

	// DownloadDir holds received files, one subdirectory per local
	// display name.
	DownloadDir string `yaml:"download_dir"`

	// CompressFiles compresses outgoing file payloads when that makes
	// them smaller.
	CompressFiles bool `yaml:"compress_files"`

	Reconnect ReconnectConfig `yaml:"reconnect"`

	ConnectTimeout string `yaml:"connect_timeout"`
	WriteTimeout   string `yaml:"write_timeout"`
}

// ReconnectConfig bounds the client's redial loop.
type ReconnectConfig struct {
	// MaxAttempts is the number of consecutive failed dials after which
	// the client gives up.
	MaxAttempts int `yaml:"max_attempts"`

	// InitialBackoff is the wait after the first failure. It doubles per
	// failure up to MaxBackoff.
	InitialBackoff string `yaml:"initial_backoff"`
	MaxBackoff     string `yaml:"max_backoff"`
}

// Default returns the built-in configuration. Path fields still contain
// ${PARLEY_ROOT}; call [Config.Expand] before use when no file is loaded.
func Default() *Config {
	homeDirectory, _ := os.UserHomeDir()
	return &Config{
		Root: filepath.Join(homeDirectory, ".cache", "parley"),
		Server: ServerConfig{
			Listen:        ":9999",
			Transport:     TransportTCP,
			WebSocketPath: "/parley",
			History: HistoryConfig{
				Backend: HistoryFile,
				Path:    "${PARLEY_ROOT}/history.cbor",
			},
			WriteTimeout:     "10s",
			HandshakeTimeout: "10s",
			MaxFileSize:      256 << 20,
			AnnouncePresence: true,
		},
		Client: ClientConfig{
			Servers:       []string{"127.0.0.1"},
			Port:          9999,
			PortSpan:      1,
			Transport:     TransportTCP,
			WebSocketPath: "/parley",
			DownloadDir:   "${PARLEY_ROOT}/received",
			CompressFiles: true,
			Reconnect: ReconnectConfig{
				MaxAttempts:    5,
				InitialBackoff: "500ms",
				MaxBackoff:     "30s",
			},
			ConnectTimeout: "5s",
			WriteTimeout:   "10s",
		},
	}
}

// Load reads the file named by PARLEY_CONFIG. It fails if the variable
// is unset rather than guessing a location.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your parley.yaml, or use --config", EnvVar)
	}
	return LoadFile(path)
}

// LoadFile reads path over the defaults and expands variables. Fields
// absent from the file keep their default values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	config.Expand()
	return config, nil
}

// Expand replaces ${HOME}, ${PARLEY_ROOT} and ${VAR:-default} in Root and
// every path field.
func (c *Config) Expand() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Root = expandVars(c.Root, vars)
	vars["PARLEY_ROOT"] = c.Root

	c.Server.History.Path = expandVars(c.Server.History.Path, vars)
	c.Client.DownloadDir = expandVars(c.Client.DownloadDir, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, fallback := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return fallback
	})
}

// Validate checks both sections and joins every problem found.
func (c *Config) Validate() error {
	return errors.Join(c.Server.Validate(), c.Client.Validate())
}

// Validate checks the server section.
func (s *ServerConfig) Validate() error {
	var errs []error
	if s.Listen == "" {
		errs = append(errs, errors.New("server.listen is required"))
	}
	errs = append(errs, validateTransport("server", s.Transport, s.WebSocketPath))
	switch s.History.Backend {
	case HistoryMemory:
	case HistoryFile, HistorySQLite:
		if s.History.Path == "" {
			errs = append(errs, fmt.Errorf("server.history.path is required for the %s backend", s.History.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("server.history.backend must be one of %v, got %q",
			[]string{HistoryMemory, HistoryFile, HistorySQLite}, s.History.Backend))
	}
	errs = append(errs,
		validateDuration("server.write_timeout", s.WriteTimeout),
		validateDuration("server.handshake_timeout", s.HandshakeTimeout),
	)
	if s.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_file_size must be positive, got %d", s.MaxFileSize))
	}
	return errors.Join(errs...)
}

// Validate checks the client section. Name is not checked here because
// the binary may take it from a flag or a prompt.
func (c *ClientConfig) Validate() error {
	var errs []error
	if len(c.Servers) == 0 {
		errs = append(errs, errors.New("client.servers must list at least one host"))
	}
	if slices.Contains(c.Servers, "") {
		errs = append(errs, errors.New("client.servers contains an empty host"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("client.port must be in 1..65535, got %d", c.Port))
	}
	if c.PortSpan < 1 {
		errs = append(errs, fmt.Errorf("client.port_span must be at least 1, got %d", c.PortSpan))
	} else if c.Port+c.PortSpan-1 > 65535 {
		errs = append(errs, fmt.Errorf("client.port_span %d runs past port 65535", c.PortSpan))
	}
	errs = append(errs, validateTransport("client", c.Transport, c.WebSocketPath))
	if c.Reconnect.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("client.reconnect.max_attempts must be at least 1, got %d", c.Reconnect.MaxAttempts))
	}
	errs = append(errs,
		validateDuration("client.reconnect.initial_backoff", c.Reconnect.InitialBackoff),
		validateDuration("client.reconnect.max_backoff", c.Reconnect.MaxBackoff),
		validateDuration("client.connect_timeout", c.ConnectTimeout),
		validateDuration("client.write_timeout", c.WriteTimeout),
	)
	initial, initialErr := ParseDuration(c.Reconnect.InitialBackoff)
	maximum, maximumErr := ParseDuration(c.Reconnect.MaxBackoff)
	if initialErr == nil && maximumErr == nil && maximum < initial {
		errs = append(errs, fmt.Errorf("client.reconnect.max_backoff %s is less than initial_backoff %s", maximum, initial))
	}
	return errors.Join(errs...)
}

func validateTransport(section, transport, path string) error {
	switch transport {
	case TransportTCP:
		return nil
	case TransportWebSocket:
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("%s.websocket_path must start with /, got %q", section, path)
		}
		return nil
	default:
		return fmt.Errorf("%s.transport must be %q or %q, got %q", section, TransportTCP, TransportWebSocket, transport)
	}
}

func validateDuration(field, value string) error {
	if _, err := ParseDuration(value); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

// ParseDuration parses a Go duration string. Empty means zero. Negative
// durations are rejected.
func ParseDuration(value string) (time.Duration, error) {
	if value == "" || value == "0" {
		return 0, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if duration < 0 {
		return 0, fmt.Errorf("duration %s is negative", value)
	}
	return duration, nil
}

// Timeouts returns the parsed write and handshake timeouts. Call after
// Validate; malformed values read as zero.
func (s *ServerConfig) Timeouts() (write, handshake time.Duration) {
	write, _ = ParseDuration(s.WriteTimeout)
	handshake, _ = ParseDuration(s.HandshakeTimeout)
	return write, handshake
}

// Backoff returns the parsed initial and maximum reconnect backoff.
func (r *ReconnectConfig) Backoff() (initial, maximum time.Duration) {
	initial, _ = ParseDuration(r.InitialBackoff)
	maximum, _ = ParseDuration(r.MaxBackoff)
	return initial, maximum
}

// Timeouts returns the parsed connect and write timeouts.
func (c *ClientConfig) Timeouts() (connect, write time.Duration) {
	connect, _ = ParseDuration(c.ConnectTimeout)
	write, _ = ParseDuration(c.WriteTimeout)
	return connect, write
}
