// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/parley/history"
	"github.com/bureau-foundation/parley/lib/cli"
	"github.com/bureau-foundation/parley/lib/config"
	"github.com/bureau-foundation/parley/lib/version"
	"github.com/bureau-foundation/parley/server"
	"github.com/bureau-foundation/parley/transport"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options are the command-line flags. Empty strings leave the
// configuration file's value alone.
type options struct {
	configPath    string
	listen        string
	transport     string
	websocketPath string
	history       string
	historyPath   string
	logLevel      string
	quiet         bool
	showVersion   bool
}

func parseFlags(args []string) (*options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("parley-server", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to parley.yaml (default: $"+config.EnvVar+", then built-in defaults)")
	flagSet.StringVarP(&opts.listen, "listen", "l", "", "address to listen on, host:port")
	flagSet.StringVar(&opts.transport, "transport", "", "tcp or websocket")
	flagSet.StringVar(&opts.websocketPath, "websocket-path", "", "HTTP path for the websocket transport")
	flagSet.StringVar(&opts.history, "history", "", "history backend: memory, file or sqlite")
	flagSet.StringVar(&opts.historyPath, "history-path", "", "history file or database path")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	flagSet.BoolVarP(&opts.quiet, "quiet", "q", false, "do not announce joins and leaves")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", extra[0])
	}
	return &opts, nil
}

// apply writes the flags that were given over the server section.
func (o *options) apply(section *config.ServerConfig) {
	if o.listen != "" {
		section.Listen = o.listen
	}
	if o.transport != "" {
		section.Transport = o.transport
	}
	if o.websocketPath != "" {
		section.WebSocketPath = o.websocketPath
	}
	if o.history != "" {
		section.History.Backend = o.history
	}
	if o.historyPath != "" {
		section.History.Path = o.historyPath
	}
	if o.quiet {
		section.AnnouncePresence = false
	}
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.showVersion {
		fmt.Printf("parley-server %s\n", version.Full())
		return nil
	}

	level, err := cli.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	logger := cli.NewLogger(level)

	loaded, err := cli.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	section := loaded.Server
	opts.apply(&section)
	if err := section.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, section, logger)
}

// serve runs the server described by section until ctx is cancelled.
func serve(ctx context.Context, section config.ServerConfig, logger *slog.Logger) error {
	store, err := history.Open(section.History.Backend, section.History.Path, logger)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("closing history", "error", err)
		}
	}()

	listener, err := newListener(section, logger)
	if err != nil {
		return err
	}

	writeTimeout, handshakeTimeout := section.Timeouts()
	srv, err := server.New(server.Config{
		History:          store,
		WriteTimeout:     writeTimeout,
		HandshakeTimeout: handshakeTimeout,
		MaxFileSize:      section.MaxFileSize,
		AnnouncePresence: section.AnnouncePresence,
		Logger:           logger,
	})
	if err != nil {
		listener.Close()
		return err
	}

	logger.Info("starting parley server",
		"version", version.Info(),
		"transport", section.Transport,
		"history", section.History.Backend,
		"history_path", section.History.Path,
	)
	return srv.Serve(ctx, listener)
}

func newListener(section config.ServerConfig, logger *slog.Logger) (transport.Listener, error) {
	switch section.Transport {
	case config.TransportWebSocket:
		return transport.NewWebSocketListener(section.Listen, section.WebSocketPath, logger)
	default:
		return transport.NewTCPListener(section.Listen, logger)
	}
}
