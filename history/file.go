// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/bureau-foundation/parley/lib/codec"
	"github.com/bureau-foundation/parley/wire"
)

// FileStore appends each message as one CBOR item to a log file and
// replays by decoding the file from the start.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	file   *os.File
	closed bool
}

// OpenFile opens or creates the log at path. If the last record is
// incomplete, the file is truncated to the end of the last whole record
// so later appends stay readable.
func OpenFile(path string, logger *slog.Logger) (*FileStore, error) {
	if path == "" {
		return nil, &StoreError{Op: "open", Err: errors.New("path is required")}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}

	records, validLength, err := scan(file)
	if err != nil {
		file.Close()
		return nil, &StoreError{Op: "open", Err: fmt.Errorf("%s: %w", path, err)}
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, &StoreError{Op: "open", Err: err}
	}
	if info.Size() > validLength {
		logger.Warn("dropping incomplete trailing history record",
			"path", path,
			"records", records,
			"dropped_bytes", info.Size()-validLength,
		)
		if err := file.Truncate(validLength); err != nil {
			file.Close()
			return nil, &StoreError{Op: "open", Err: fmt.Errorf("truncating %s: %w", path, err)}
		}
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		file.Close()
		return nil, &StoreError{Op: "open", Err: err}
	}

	logger.Info("history log opened", "path", path, "records", records)
	return &FileStore{path: path, logger: logger, file: file}, nil
}

// scan decodes r from the start and returns the number of whole records
// and the byte length they occupy. A truncated final record is not an
// error; a record that is complete but undecodable is.
func scan(r io.ReadSeeker) (int, int64, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, 0, err
	}
	decoder := codec.NewDecoder(r)
	var count int
	var validLength int64
	for {
		var text wire.Text
		err := decoder.Decode(&text)
		if errors.Is(err, io.EOF) {
			return count, validLength, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return count, validLength, nil
		}
		if err != nil {
			return count, validLength, fmt.Errorf("record %d: %w", count, err)
		}
		count++
		validLength = int64(decoder.NumBytesRead())
	}
}

// Append writes text as a single write call, so a crash mid-append
// leaves at most one incomplete record at the tail.
func (f *FileStore) Append(ctx context.Context, text wire.Text) error {
	if err := ctx.Err(); err != nil {
		return &StoreError{Op: "append", Err: err}
	}
	record, err := codec.Marshal(text)
	if err != nil {
		return &StoreError{Op: "append", Err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return &StoreError{Op: "append", Err: os.ErrClosed}
	}
	if _, err := f.file.Write(record); err != nil {
		return &StoreError{Op: "append", Err: err}
	}
	return nil
}

// ReplayAll decodes the log from a separate read handle.
func (f *FileStore) ReplayAll(ctx context.Context) ([]wire.Text, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StoreError{Op: "replay", Err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, &StoreError{Op: "replay", Err: os.ErrClosed}
	}

	reader, err := os.Open(f.path)
	if err != nil {
		return nil, &StoreError{Op: "replay", Err: err}
	}
	defer reader.Close()

	var messages []wire.Text
	decoder := codec.NewDecoder(reader)
	for {
		var text wire.Text
		err := decoder.Decode(&text)
		if errors.Is(err, io.EOF) {
			return messages, nil
		}
		if err != nil {
			return messages, &StoreError{Op: "replay", Err: fmt.Errorf("record %d: %w", len(messages), err)}
		}
		messages = append(messages, text)
	}
}

func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	if err := f.file.Close(); err != nil {
		return &StoreError{Op: "close", Err: err}
	}
	f.logger.Info("history log closed", "path", f.path)
	return nil
}
