// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"time"
)

// Frame tags. Each is exactly four bytes on the wire.
const (
	TagText = "TEXT"
	TagFile = "FILE"
)

// Compression schemes a FileOffer payload may use.
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
	CompressionLZ4  = "lz4"
)

const (
	// MaxHeaderLength bounds the CBOR header of any frame.
	MaxHeaderLength = 1 << 20

	// DefaultMaxFileSize bounds a FileOffer payload when the decoder is
	// not given a limit.
	DefaultMaxFileSize = 256 << 20

	// MaxNameLength bounds the handshake display name, in bytes.
	MaxNameLength = 64
)

// Message is one decoded frame: a [Text] or a [FileOffer].
type Message interface {
	// Tag returns the four-byte frame tag.
	Tag() string
}

// Notice codes. A notice with a code tells the client something it
// must act on; the body is for people.
const (
	// NoticeNameInUse precedes the server closing a connection whose
	// handshake name belongs to another client.
	NoticeNameInUse = "name-in-use"
)

// Text is a chat line. Sender is empty for server notices such as join
// and leave announcements. Timestamp is Unix milliseconds, set by the
// server on receipt; whatever a client sends there is overwritten.
// Code is only set on notices.
type Text struct {
	Sender    string `cbor:"sender"`
	Body      string `cbor:"body"`
	Timestamp int64  `cbor:"ts,omitempty"`
	Code      string `cbor:"code,omitempty"`
}

func (Text) Tag() string { return TagText }

// Time returns Timestamp as a time.Time, or the zero time if unset.
func (t Text) Time() time.Time {
	if t.Timestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(t.Timestamp)
}

// IsNotice reports whether t came from the server rather than a peer.
func (t Text) IsNotice() bool { return t.Sender == "" }

// FileOffer is a file sent to every other participant. Payload carries
// the Size bytes that follow the header on the stream; it is not part of
// the CBOR header.
//
// When Compression is not "none", Payload is compressed and OriginalSize
// is the length after decompression. Digest is a BLAKE3 hash of the
// uncompressed content, checked by the receiver before saving. Both are
// produced and consumed by package transfer; the wire layer only carries
// them.
type FileOffer struct {
	Sender       string `cbor:"sender"`
	Name         string `cbor:"name"`
	Size         int64  `cbor:"size"`
	MimeHint     string `cbor:"mime,omitempty"`
	Compression  string `cbor:"compression,omitempty"`
	OriginalSize int64  `cbor:"original_size,omitempty"`
	Digest       []byte `cbor:"digest,omitempty"`

	Payload []byte `cbor:"-"`
}

func (FileOffer) Tag() string { return TagFile }

// validate checks the header fields against maxFileSize. It does not look
// at Payload.
func (f *FileOffer) validate(maxFileSize int64) error {
	if f.Name == "" {
		return fmt.Errorf("%w: file name is empty", ErrInvalidHeader)
	}
	if f.Size < 0 {
		return fmt.Errorf("%w: negative file size %d", ErrInvalidHeader, f.Size)
	}
	if f.Size > maxFileSize {
		return fmt.Errorf("%w: %d bytes exceeds limit %d", ErrFileTooLarge, f.Size, maxFileSize)
	}
	switch f.Compression {
	case "", CompressionNone, CompressionZstd, CompressionLZ4:
	default:
		return fmt.Errorf("%w: unknown compression %q", ErrInvalidHeader, f.Compression)
	}
	if f.OriginalSize < 0 {
		return fmt.Errorf("%w: negative original size %d", ErrInvalidHeader, f.OriginalSize)
	}
	return nil
}
