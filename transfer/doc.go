// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transfer prepares files for the wire and saves them on the
// other end.
//
// [Prepare] turns file contents into a wire.FileOffer: it derives a MIME
// hint from the name, hashes the content with keyed BLAKE3, and
// optionally compresses the payload with zstd (text-like content) or LZ4
// (everything else), keeping the raw bytes whenever compression would
// not make them smaller. [Unpack] reverses that and rejects content whose
// digest does not match.
//
// [Directory] stores received files under <root>/<receiver>/<name>. It
// never overwrites: a clashing name gets a " (n)" suffix before the
// extension. Content is written to a temporary file and renamed into
// place, so a failed save leaves nothing behind.
package transfer
