// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines Parley's framing over a raw byte stream.
//
// A connection starts with a handshake line: the client's display name
// in UTF-8 followed by '\n'. Everything after that is a sequence of
// frames:
//
//	+--------+---------------+---------------------+-----------------------+
//	| tag 4B | header len 4B | CBOR header (len B) | FILE only: Size bytes |
//	+--------+---------------+---------------------+-----------------------+
//
// The tag is "TEXT" or "FILE" and the length is big-endian. A TEXT header
// decodes to [Text]; a FILE header decodes to [FileOffer] and is followed
// by exactly Size raw payload bytes, which [Decoder.Next] reads before it
// returns. Headers are encoded with lib/codec, so the same message always
// produces the same bytes.
//
// [Decoder] reads through a buffered reader with io.ReadFull, so frames
// split across any number of reads decode the same as frames delivered
// whole. The handshake line is read by the same Decoder, so bytes of the
// first frame that arrive in the same segment as the name are not lost.
//
// A stream that ends exactly on a frame boundary yields io.EOF. Anything
// else that cannot be decoded yields a [*FramingError]; truncation wraps
// io.ErrUnexpectedEOF.
package wire
