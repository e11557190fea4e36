// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "errors"

var (
	ErrUnknownTag       = errors.New("unknown frame tag")
	ErrHeaderTooLarge   = errors.New("frame header too large")
	ErrInvalidHeader    = errors.New("invalid frame header")
	ErrFileTooLarge     = errors.New("file too large")
	ErrInvalidHandshake = errors.New("invalid handshake")
)

// FramingError reports a stream that cannot be decoded. It is fatal to
// the connection that produced it and to nothing else.
type FramingError struct {
	// Op names the decoding step that failed, e.g. "read header".
	Op  string
	Err error
}

func (e *FramingError) Error() string {
	return "wire: " + e.Op + ": " + e.Err.Error()
}

func (e *FramingError) Unwrap() error { return e.Err }
