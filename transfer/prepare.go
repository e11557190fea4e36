// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transfer

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/bureau-foundation/parley/wire"
)

// Prepare builds the FileOffer for a file named name with contents
// data. Only the base name travels. With compress set, the payload is
// compressed when that makes it smaller. Sender is left for the server
// to fill in.
func Prepare(name string, data []byte, compress bool) (wire.FileOffer, error) {
	base := filepath.Base(name)
	if err := CheckName(base); err != nil {
		return wire.FileOffer{}, err
	}
	offer := wire.FileOffer{
		Name:        base,
		MimeHint:    MimeHint(base),
		Compression: wire.CompressionNone,
		Digest:      Digest(data),
		Payload:     data,
	}
	if compress {
		scheme := SelectCompression(data, offer.MimeHint)
		compressed, err := Compress(data, scheme)
		switch {
		case errors.Is(err, errIncompressible):
		case err != nil:
			return wire.FileOffer{}, err
		case scheme != wire.CompressionNone:
			offer.Compression = scheme
			offer.OriginalSize = int64(len(data))
			offer.Payload = compressed
		}
	}
	offer.Size = int64(len(offer.Payload))
	return offer, nil
}

// Unpack returns the original file content carried by offer, verifying
// the digest when one is attached. limit caps the decompressed size as
// in Decompress.
func Unpack(offer wire.FileOffer, limit int64) ([]byte, error) {
	data, err := Decompress(offer.Payload, offer.Compression, offer.OriginalSize, limit)
	if err != nil {
		return nil, fmt.Errorf("unpacking %s: %w", offer.Name, err)
	}
	if err := VerifyDigest(data, offer.Digest); err != nil {
		return nil, fmt.Errorf("unpacking %s: %w", offer.Name, err)
	}
	return data, nil
}
