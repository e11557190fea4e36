// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/bureau-foundation/parley/lib/codec"
)

// payloadChunk caps the buffer preallocated for a file payload. Larger
// payloads grow as bytes actually arrive, so a header that lies about its
// Size cannot force a large allocation up front.
const payloadChunk = 1 << 20

// Decoder reads the handshake line and frames from one stream. It is not
// safe for concurrent use; a session has exactly one reader.
type Decoder struct {
	reader      *bufio.Reader
	maxFileSize int64
}

// NewDecoder returns a Decoder reading from r. maxFileSize bounds
// FileOffer payloads; zero or negative means DefaultMaxFileSize.
func NewDecoder(r io.Reader, maxFileSize int64) *Decoder {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Decoder{
		reader:      bufio.NewReaderSize(r, 64*1024),
		maxFileSize: maxFileSize,
	}
}

// Next blocks until one complete message has been read. It returns
// io.EOF if the stream ends cleanly before a new frame starts, a
// *FramingError if the stream is malformed or ends mid-frame, and the
// underlying error, wrapped, for any other read failure.
func (d *Decoder) Next() (Message, error) {
	var prefix [frameHeaderLength]byte
	if _, err := io.ReadFull(d.reader, prefix[:4]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, readError("read tag", err)
	}
	tag := string(prefix[:4])
	if tag != TagText && tag != TagFile {
		return nil, &FramingError{Op: "read tag", Err: fmt.Errorf("%w %q", ErrUnknownTag, tag)}
	}

	if _, err := io.ReadFull(d.reader, prefix[4:]); err != nil {
		return nil, readError("read header length", err)
	}
	headerLength := binary.BigEndian.Uint32(prefix[4:])
	if headerLength > MaxHeaderLength {
		return nil, &FramingError{
			Op:  "read header length",
			Err: fmt.Errorf("%w: %d bytes exceeds %d", ErrHeaderTooLarge, headerLength, MaxHeaderLength),
		}
	}

	header := make([]byte, headerLength)
	if _, err := io.ReadFull(d.reader, header); err != nil {
		return nil, readError("read header", err)
	}

	if tag == TagText {
		var text Text
		if err := codec.Unmarshal(header, &text); err != nil {
			return nil, &FramingError{Op: "decode text header", Err: fmt.Errorf("%w: %v", ErrInvalidHeader, err)}
		}
		return text, nil
	}

	var offer FileOffer
	if err := codec.Unmarshal(header, &offer); err != nil {
		return nil, &FramingError{Op: "decode file header", Err: fmt.Errorf("%w: %v", ErrInvalidHeader, err)}
	}
	if err := offer.validate(d.maxFileSize); err != nil {
		return nil, &FramingError{Op: "decode file header", Err: err}
	}

	var payload bytes.Buffer
	payload.Grow(int(min(offer.Size, payloadChunk)))
	copied, err := io.CopyN(&payload, d.reader, offer.Size)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, readError(fmt.Sprintf("read payload (%d of %d bytes)", copied, offer.Size), err)
	}
	offer.Payload = payload.Bytes()
	return offer, nil
}

// ReadHandshake reads the display name line that opens every connection
// and returns it validated and trimmed. It returns io.EOF if the stream
// ends before any byte arrives.
func (d *Decoder) ReadHandshake() (string, error) {
	line := make([]byte, 0, MaxNameLength+2)
	for {
		b, err := d.reader.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && len(line) == 0 {
				return "", io.EOF
			}
			return "", readError("read handshake", err)
		}
		if b == '\n' {
			break
		}
		// Allow for a trailing '\r' beyond the name limit.
		if len(line) > MaxNameLength {
			return "", &FramingError{
				Op:  "read handshake",
				Err: fmt.Errorf("%w: name longer than %d bytes", ErrInvalidHandshake, MaxNameLength),
			}
		}
		line = append(line, b)
	}
	line = bytes.TrimSuffix(line, []byte{'\r'})
	name, err := ValidateName(string(line))
	if err != nil {
		return "", &FramingError{Op: "read handshake", Err: err}
	}
	return name, nil
}

// readError classifies a failed read. Running out of bytes partway
// through a frame is a framing error; anything else (closed connection,
// deadline, reset) passes through wrapped so callers can tell a broken
// stream from a broken socket.
func readError(op string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &FramingError{Op: op, Err: io.ErrUnexpectedEOF}
	}
	return fmt.Errorf("wire: %s: %w", op, err)
}
