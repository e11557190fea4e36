// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ValidateName checks a display name and returns it with surrounding
// whitespace removed. A name is at most MaxNameLength bytes of valid
// UTF-8 with no control characters, and is not blank.
func ValidateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	switch {
	case trimmed == "":
		return "", fmt.Errorf("%w: name is empty", ErrInvalidHandshake)
	case len(trimmed) > MaxNameLength:
		return "", fmt.Errorf("%w: name longer than %d bytes", ErrInvalidHandshake, MaxNameLength)
	case !utf8.ValidString(trimmed):
		return "", fmt.Errorf("%w: name is not valid UTF-8", ErrInvalidHandshake)
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: name contains control character %U", ErrInvalidHandshake, r)
		}
	}
	return trimmed, nil
}

// WriteHandshake writes the display name line that opens a connection.
func WriteHandshake(w io.Writer, name string) error {
	valid, err := ValidateName(name)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, valid+"\n"); err != nil {
		return fmt.Errorf("writing handshake: %w", err)
	}
	return nil
}
