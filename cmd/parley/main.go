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

	"github.com/bureau-foundation/parley/client"
	"github.com/bureau-foundation/parley/lib/cli"
	"github.com/bureau-foundation/parley/lib/config"
	"github.com/bureau-foundation/parley/lib/version"
	"github.com/bureau-foundation/parley/transfer"
	"github.com/bureau-foundation/parley/transport"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	name        string
	servers     []string
	port        int
	downloadDir string
	transport   string
	noCompress  bool
	bell        bool
	logLevel    string
	logFile     string
	showVersion bool
}

func parseFlags(args []string) (*options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("parley", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to parley.yaml (default: $"+config.EnvVar+", then built-in defaults)")
	flagSet.StringVarP(&opts.name, "name", "n", "", "display name (default: client.name from the config, then $USER)")
	flagSet.StringSliceVarP(&opts.servers, "server", "s", nil, "server host to try; repeat or comma-separate for fallbacks")
	flagSet.IntVarP(&opts.port, "port", "p", 0, "base server port")
	flagSet.StringVar(&opts.downloadDir, "download-dir", "", "where received files are saved")
	flagSet.StringVar(&opts.transport, "transport", "", "tcp or websocket")
	flagSet.BoolVar(&opts.noCompress, "no-compress", false, "send files uncompressed")
	flagSet.BoolVar(&opts.bell, "bell", false, "ring the terminal bell on incoming messages")
	flagSet.StringVar(&opts.logLevel, "log-level", "warn", "debug, info, warn or error")
	flagSet.StringVar(&opts.logFile, "log-file", "", "write JSON logs to this file instead of stderr")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", extra[0])
	}
	return &opts, nil
}

// apply writes the flags that were given over the client section.
func (o *options) apply(section *config.ClientConfig) {
	if o.name != "" {
		section.Name = o.name
	}
	if section.Name == "" {
		section.Name = os.Getenv("USER")
	}
	if len(o.servers) > 0 {
		section.Servers = o.servers
	}
	if o.port != 0 {
		section.Port = o.port
	}
	if o.downloadDir != "" {
		section.DownloadDir = o.downloadDir
	}
	if o.transport != "" {
		section.Transport = o.transport
	}
	if o.noCompress {
		section.CompressFiles = false
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
		fmt.Printf("parley %s\n", version.Info())
		return nil
	}

	level, err := cli.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	logger := cli.NewLogger(level)
	if opts.logFile != "" {
		file, err := os.OpenFile(opts.logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer file.Close()
		logger = cli.NewFileLogger(file, level)
	}

	loaded, err := cli.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	section := loaded.Client
	opts.apply(&section)
	if err := section.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	screen := newConsole(os.Stdout, opts.bell)
	chat, err := client.New(clientConfig(section, screen, logger))
	if err != nil {
		return err
	}
	screen.attach(chat)

	screen.status(fmt.Sprintf("connecting as %s to %v", chat.Name(), section.Servers))
	if err := chat.Connect(ctx); err != nil {
		return err
	}
	defer chat.Disconnect()

	return screen.loop(ctx, os.Stdin)
}

// clientConfig translates the configuration section into client.Config
// with the console's callbacks attached.
func clientConfig(section config.ClientConfig, screen *console, logger *slog.Logger) client.Config {
	connectTimeout, writeTimeout := section.Timeouts()
	initialBackoff, maxBackoff := section.Reconnect.Backoff()

	var dialer transport.Dialer = &transport.TCPDialer{Timeout: connectTimeout}
	if section.Transport == config.TransportWebSocket {
		dialer = &transport.WebSocketDialer{Path: section.WebSocketPath, HandshakeTimeout: connectTimeout}
	}

	return client.Config{
		Name:           section.Name,
		Servers:        section.Servers,
		Port:           section.Port,
		PortSpan:       section.PortSpan,
		Dialer:         dialer,
		ConnectTimeout: connectTimeout,
		WriteTimeout:   writeTimeout,
		CompressFiles:  section.CompressFiles,
		MaxAttempts:    section.Reconnect.MaxAttempts,
		InitialBackoff: initialBackoff,
		MaxBackoff:     maxBackoff,
		Destination:    transfer.Directory{Root: section.DownloadDir},
		Notifier:       screen,
		OnText:         screen.text,
		OnFile:         screen.file,
		OnStateChange:  screen.state,
		Logger:         logger,
	}
}
