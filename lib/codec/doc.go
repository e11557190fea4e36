// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is Parley's single point of contact with CBOR.
//
// Frame headers on the wire (package wire) and records in the append-only
// history log (package history) are CBOR maps. Both go through the modes
// configured here so encoding is deterministic and decoding is strict in
// the same way everywhere. Struct fields use `cbor:"..."` tags.
package codec
