// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/bureau-foundation/parley/lib/codec"
)

// frameHeaderLength is the tag plus the header length field.
const frameHeaderLength = 8

// EncodeText returns the complete frame for t.
func EncodeText(t Text) ([]byte, error) {
	return encodeFrame(TagText, t)
}

// EncodeFileOffer returns the frame header for f: tag, length and CBOR
// header. The Size payload bytes are not included; [WriteMessage] sends
// both.
func EncodeFileOffer(f FileOffer) ([]byte, error) {
	if err := f.validate(f.Size); err != nil {
		return nil, err
	}
	return encodeFrame(TagFile, f)
}

func encodeFrame(tag string, header any) ([]byte, error) {
	encoded, err := codec.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("encoding %s header: %w", tag, err)
	}
	if len(encoded) > MaxHeaderLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, len(encoded))
	}
	frame := make([]byte, frameHeaderLength, frameHeaderLength+len(encoded))
	copy(frame[0:4], tag)
	binary.BigEndian.PutUint32(frame[4:8], uint32(len(encoded)))
	return append(frame, encoded...), nil
}

// WriteMessage writes message to w as one frame. For a FileOffer the
// header and payload go out back to back in a single vectored write, and
// len(Payload) must equal Size.
//
// WriteMessage does no locking. Concurrent writers to one stream must
// serialize, which session.Session does.
func WriteMessage(w io.Writer, message Message) error {
	switch m := message.(type) {
	case Text:
		frame, err := EncodeText(m)
		if err != nil {
			return err
		}
		if _, err := w.Write(frame); err != nil {
			return fmt.Errorf("writing text frame: %w", err)
		}
		return nil
	case *Text:
		return WriteMessage(w, *m)
	case FileOffer:
		if int64(len(m.Payload)) != m.Size {
			return fmt.Errorf("%w: payload is %d bytes, header says %d", ErrInvalidHeader, len(m.Payload), m.Size)
		}
		frame, err := EncodeFileOffer(m)
		if err != nil {
			return err
		}
		buffers := net.Buffers{frame, m.Payload}
		if _, err := buffers.WriteTo(w); err != nil {
			return fmt.Errorf("writing file frame: %w", err)
		}
		return nil
	case *FileOffer:
		return WriteMessage(w, *m)
	default:
		return fmt.Errorf("wire: cannot encode %T", message)
	}
}
