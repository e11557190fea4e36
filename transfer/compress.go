// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transfer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/bureau-foundation/parley/wire"
)

// minCompressSize is the smallest payload worth compressing. Below it
// the frame header dwarfs any saving.
const minCompressSize = 512

// maxLZ4Ratio bounds how far one LZ4 block can expand: long matches
// and literal runs cost one length byte per 255 bytes of output.
// lz4Slack covers the fixed sequence overhead of tiny blocks.
const (
	maxLZ4Ratio = 255
	lz4Slack    = 16
)

// errIncompressible means the compressed form was not smaller. Callers
// send the raw bytes instead.
var errIncompressible = errors.New("data is incompressible")

// zstd.Encoder and zstd.Decoder are safe for concurrent use with
// EncodeAll and DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("transfer: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecodeAllCapLimit(true))
	if err != nil {
		panic("transfer: zstd decoder initialization failed: " + err.Error())
	}
}

// SelectCompression picks a scheme for data. Text-like MIME types go
// straight to zstd. Other content is probed with zstd: a ratio of 1.5
// or better keeps zstd, 1.1 or better uses the faster LZ4, anything less
// is sent raw.
func SelectCompression(data []byte, mimeHint string) string {
	if len(data) < minCompressSize {
		return wire.CompressionNone
	}
	if isTextLike(mimeHint) {
		return wire.CompressionZstd
	}
	compressed := zstdEncoder.EncodeAll(data, nil)
	ratio := float64(len(data)) / float64(len(compressed))
	switch {
	case ratio >= 1.5:
		return wire.CompressionZstd
	case ratio >= 1.1:
		return wire.CompressionLZ4
	default:
		return wire.CompressionNone
	}
}

func isTextLike(mimeHint string) bool {
	if strings.HasPrefix(mimeHint, "text/") {
		return true
	}
	switch mimeHint {
	case "application/json", "application/x-ndjson", "application/xml",
		"application/yaml", "application/x-yaml", "application/sql",
		"application/javascript", "image/svg+xml":
		return true
	}
	return false
}

// Compress applies scheme to data. It returns errIncompressible when the
// result is not smaller than the input.
func Compress(data []byte, scheme string) ([]byte, error) {
	switch scheme {
	case "", wire.CompressionNone:
		return data, nil
	case wire.CompressionZstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return nil, errIncompressible
		}
		return compressed, nil
	case wire.CompressionLZ4:
		destination := make([]byte, lz4.CompressBlockBound(len(data)))
		written, err := lz4.CompressBlock(data, destination, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		// CompressBlock reports 0 for incompressible input.
		if written == 0 || written >= len(data) {
			return nil, errIncompressible
		}
		return destination[:written], nil
	default:
		return nil, fmt.Errorf("unsupported compression %q", scheme)
	}
}

// Decompress reverses Compress. originalSize must match the
// decompressed length exactly and may not exceed limit; a non-positive
// limit means wire.DefaultMaxFileSize. Output is never allowed to grow
// past originalSize, whatever the payload claims.
func Decompress(payload []byte, scheme string, originalSize, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = wire.DefaultMaxFileSize
	}
	switch scheme {
	case "", wire.CompressionNone:
		return payload, nil
	case wire.CompressionZstd, wire.CompressionLZ4:
	default:
		return nil, fmt.Errorf("unsupported compression %q", scheme)
	}
	if originalSize < 0 || originalSize > limit {
		return nil, fmt.Errorf("%s decompress: original size %d: %w (limit %d)", scheme, originalSize, wire.ErrFileTooLarge, limit)
	}

	if scheme == wire.CompressionZstd {
		// The decoder is built with WithDecodeAllCapLimit, so the
		// capacity of dst is a hard ceiling on output.
		result, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, originalSize))
		if errors.Is(err, zstd.ErrDecoderSizeExceeded) {
			return nil, fmt.Errorf("zstd decompress: output exceeds declared size %d", originalSize)
		}
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if int64(len(result)) != originalSize {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), originalSize)
		}
		return result, nil
	}

	// An LZ4 block cannot expand by much more than maxLZ4Ratio, so a
	// size claim beyond that is refused before allocating for it.
	if originalSize > (int64(len(payload))+lz4Slack)*maxLZ4Ratio {
		return nil, fmt.Errorf("lz4 decompress: %d payload bytes cannot hold %d bytes", len(payload), originalSize)
	}
	destination := make([]byte, originalSize)
	read, err := lz4.UncompressBlock(payload, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if int64(read) != originalSize {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, originalSize)
	}
	return destination, nil
}
