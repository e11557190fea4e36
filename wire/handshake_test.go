// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/bureau-foundation/parley/lib/codec"
)

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := codec.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return data
}

func TestValidateName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"alice", "alice", false},
		{"  bob  ", "bob", false},
		{"Zoë", "Zoë", false},
		{"", "", true},
		{"   ", "", true},
		{"tab\there", "", true},
		{"bell\a", "", true},
		{strings.Repeat("n", MaxNameLength), strings.Repeat("n", MaxNameLength), false},
		{strings.Repeat("n", MaxNameLength+1), "", true},
		{"bad\xffutf8", "", true},
	}
	for _, test := range tests {
		got, err := ValidateName(test.input)
		if (err != nil) != test.wantErr {
			t.Errorf("ValidateName(%q) error = %v, wantErr %v", test.input, err, test.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidHandshake) {
			t.Errorf("ValidateName(%q) error %v does not wrap ErrInvalidHandshake", test.input, err)
		}
		if got != test.want {
			t.Errorf("ValidateName(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

// The first frame often arrives in the same segment as the name. The
// decoder must hand those bytes to Next rather than drop them.
func TestHandshakeFollowedByFrame(t *testing.T) {
	t.Parallel()
	var stream bytes.Buffer
	if err := WriteHandshake(&stream, "alice"); err != nil {
		t.Fatalf("WriteHandshake: %v", err)
	}
	if err := WriteMessage(&stream, Text{Sender: "alice", Body: "hi"}); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	for _, wrap := range []func(io.Reader) io.Reader{
		func(r io.Reader) io.Reader { return r },
		iotest.OneByteReader,
	} {
		decoder := NewDecoder(wrap(bytes.NewReader(stream.Bytes())), 0)
		name, err := decoder.ReadHandshake()
		if err != nil {
			t.Fatalf("ReadHandshake: %v", err)
		}
		if name != "alice" {
			t.Errorf("name = %q, want alice", name)
		}
		message, err := decoder.Next()
		if err != nil {
			t.Fatalf("Next after handshake: %v", err)
		}
		if text := message.(Text); text.Body != "hi" {
			t.Errorf("body = %q, want hi", text.Body)
		}
	}
}

func TestReadHandshakeAcceptsCRLF(t *testing.T) {
	t.Parallel()
	name, err := NewDecoder(strings.NewReader("bob\r\n"), 0).ReadHandshake()
	if err != nil {
		t.Fatalf("ReadHandshake: %v", err)
	}
	if name != "bob" {
		t.Errorf("name = %q, want bob", name)
	}
}

func TestReadHandshakeErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		stream string
		target error
	}{
		{"too long", strings.Repeat("x", MaxNameLength+5) + "\n", ErrInvalidHandshake},
		{"blank", "   \n", ErrInvalidHandshake},
		{"control", "a\x00b\n", ErrInvalidHandshake},
		{"no newline", "alice", io.ErrUnexpectedEOF},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewDecoder(strings.NewReader(test.stream), 0).ReadHandshake()
			var framingErr *FramingError
			if !errors.As(err, &framingErr) {
				t.Fatalf("err = %v, want *FramingError", err)
			}
			if !errors.Is(err, test.target) {
				t.Errorf("err = %v, want %v", err, test.target)
			}
		})
	}
}

func TestReadHandshakeCleanEOF(t *testing.T) {
	t.Parallel()
	if _, err := NewDecoder(strings.NewReader(""), 0).ReadHandshake(); err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
}

func TestWriteHandshakeRejectsInvalidName(t *testing.T) {
	t.Parallel()
	var buffer bytes.Buffer
	if err := WriteHandshake(&buffer, "line\nbreak"); !errors.Is(err, ErrInvalidHandshake) {
		t.Fatalf("err = %v, want ErrInvalidHandshake", err)
	}
	if buffer.Len() != 0 {
		t.Errorf("wrote %d bytes for an invalid name", buffer.Len())
	}
}
