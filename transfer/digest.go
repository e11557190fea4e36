// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transfer

import (
	"crypto/subtle"
	"errors"

	"github.com/zeebo/blake3"
)

// DigestSize is the length of a file digest in bytes.
const DigestSize = 32

// ErrDigestMismatch means received content does not hash to the digest
// the sender attached.
var ErrDigestMismatch = errors.New("file digest mismatch")

// fileDomainKey keys BLAKE3 so file digests never collide with hashes
// of the same bytes computed for another purpose. ASCII, zero-padded.
var fileDomainKey = [32]byte{
	'p', 'a', 'r', 'l', 'e', 'y', '.', 't', 'r', 'a', 'n', 's', 'f', 'e', 'r', '.',
	'f', 'i', 'l', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Digest returns the keyed BLAKE3 hash of uncompressed file content.
func Digest(data []byte) []byte {
	hasher, err := blake3.NewKeyed(fileDomainKey[:])
	if err != nil {
		panic("transfer: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	return hasher.Sum(nil)
}

// VerifyDigest checks data against digest. An empty digest is accepted:
// the sender chose not to attach one.
func VerifyDigest(data, digest []byte) error {
	if len(digest) == 0 {
		return nil
	}
	if subtle.ConstantTimeCompare(Digest(data), digest) != 1 {
		return ErrDigestMismatch
	}
	return nil
}
