// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/parley/client"
	"github.com/bureau-foundation/parley/wire"
)

// engine is the part of *client.Client the console drives.
type engine interface {
	SendText(body string) error
	SendFile(path string) error
	LastReceived() string
}

// senderColors are ANSI palette entries that read well on both light
// and dark backgrounds.
var senderColors = []string{"1", "2", "3", "4", "5", "6", "9", "10", "12", "13", "14"}

// console prints chat events and turns input lines into sends. Output
// from the client's callbacks and from the input loop is serialized.
type console struct {
	mu     sync.Mutex
	out    io.Writer
	bell   bool
	engine engine

	renderer    *lipgloss.Renderer
	noticeStyle lipgloss.Style
	statusStyle lipgloss.Style
	errorStyle  lipgloss.Style
	stampStyle  lipgloss.Style
}

func newConsole(out io.Writer, bell bool) *console {
	renderer := lipgloss.NewRenderer(out)
	return &console{
		out:         out,
		bell:        bell,
		renderer:    renderer,
		noticeStyle: renderer.NewStyle().Faint(true).Italic(true),
		statusStyle: renderer.NewStyle().Foreground(lipgloss.Color("8")),
		errorStyle:  renderer.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		stampStyle:  renderer.NewStyle().Faint(true),
	}
}

func (c *console) attach(e engine) {
	c.mu.Lock()
	c.engine = e
	c.mu.Unlock()
}

func (c *console) println(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, line)
}

// text prints a received chat line or notice.
func (c *console) text(message wire.Text) {
	body := ansi.Strip(message.Body)
	prefix := ""
	if stamp := message.Time(); !stamp.IsZero() {
		prefix = c.stampStyle.Render(stamp.Local().Format("15:04")) + " "
	}
	if message.IsNotice() {
		c.println(prefix + c.noticeStyle.Render("* "+body))
		return
	}
	c.println(prefix + c.senderStyle(message.Sender).Render(ansi.Strip(message.Sender)) + ": " + body)
}

// file announces a saved file.
func (c *console) file(received client.ReceivedFile) {
	c.println(c.noticeStyle.Render(fmt.Sprintf("* %s sent %s (%d bytes), saved to %s",
		ansi.Strip(received.Sender), ansi.Strip(received.Name), received.Size, received.Path)))
}

// state reports connection changes worth a user's attention.
func (c *console) state(state client.State) {
	switch state {
	case client.StateConnected:
		c.status("connected")
	case client.StateReconnecting:
		c.status("connection lost, reconnecting")
	case client.StateFailed:
		c.failure("could not reach any server; /quit to exit")
	}
}

// Notify rings the bell when enabled. It makes console a client.Notifier.
func (c *console) Notify(title, body string) {
	if !c.bell {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	io.WriteString(c.out, "\a")
}

func (c *console) status(line string) {
	c.println(c.statusStyle.Render("-- " + line))
}

func (c *console) failure(line string) {
	c.println(c.errorStyle.Render("!! " + line))
}

// senderStyle colors a name the same way every time.
func (c *console) senderStyle(name string) lipgloss.Style {
	hash := fnv.New32a()
	hash.Write([]byte(name))
	color := senderColors[hash.Sum32()%uint32(len(senderColors))]
	return c.renderer.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
}

// handle runs one input line. It reports whether the user asked to
// quit.
func (c *console) handle(line string) bool {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		c.report(c.engine.SendText(line))
		return false
	}

	command, argument, _ := strings.Cut(strings.TrimSpace(line), " ")
	argument = strings.TrimSpace(argument)
	switch command {
	case "/quit", "/exit":
		return true
	case "/file":
		if argument == "" {
			c.failure("usage: /file <path>")
			return false
		}
		if err := c.engine.SendFile(argument); err != nil {
			c.report(err)
			return false
		}
		c.status("sent " + argument)
	case "/last":
		if last := c.engine.LastReceived(); last != "" {
			c.status("last received: " + last)
		} else {
			c.status("no files received yet")
		}
	case "/help":
		c.status("/file <path>  send a file")
		c.status("/last         show the last received file")
		c.status("/quit         exit")
	default:
		c.failure("unknown command " + command + "; try /help")
	}
	return false
}

func (c *console) report(err error) {
	switch {
	case err == nil:
	case errors.Is(err, client.ErrNotConnected):
		c.failure("not connected; message not sent")
	default:
		c.failure(err.Error())
	}
}

// loop reads lines from in until /quit, end of input, or ctx ends.
func (c *console) loop(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), wire.MaxHeaderLength)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			if c.handle(line) {
				return nil
			}
		}
	}
}
