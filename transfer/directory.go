// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transfer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafeName rejects file names that could escape the destination
// directory.
var ErrUnsafeName = errors.New("unsafe file name")

// maxCollisionSuffix bounds the " (n)" search.
const maxCollisionSuffix = 10000

// CheckName rejects names that are empty, "." or "..", or that contain
// a path separator or NUL.
func CheckName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrUnsafeName, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrUnsafeName, name)
	}
	return nil
}

// Directory saves received files under Root, one subdirectory per
// receiving display name.
type Directory struct {
	Root string
}

// Save writes data to <Root>/<receiver>/<name> and returns the path
// actually used. receiver is made path-safe; name must pass CheckName.
func (d Directory) Save(receiver, name string, data []byte) (string, error) {
	if err := CheckName(name); err != nil {
		return "", err
	}
	directory := filepath.Join(d.Root, segment(receiver))
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", directory, err)
	}

	temporary, err := os.CreateTemp(directory, ".parley-*.part")
	if err != nil {
		return "", fmt.Errorf("creating temporary file: %w", err)
	}
	temporaryPath := temporary.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(temporaryPath)
		}
	}()

	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		return "", fmt.Errorf("writing %s: %w", temporaryPath, err)
	}
	if err := temporary.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", temporaryPath, err)
	}

	// Claim the final name with O_EXCL, then rename over the claim.
	// Rename replaces our own empty placeholder and nothing else.
	for n := 0; n < maxCollisionSuffix; n++ {
		candidate := filepath.Join(directory, withSuffix(name, n))
		placeholder, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("reserving %s: %w", candidate, err)
		}
		placeholder.Close()
		if err := os.Rename(temporaryPath, candidate); err != nil {
			os.Remove(candidate)
			return "", fmt.Errorf("moving into %s: %w", candidate, err)
		}
		committed = true
		return candidate, nil
	}
	return "", fmt.Errorf("no free name for %s in %s", name, directory)
}

// withSuffix returns name for n == 0 and "stem (n).ext" otherwise.
func withSuffix(name string, n int) string {
	if n == 0 {
		return name
	}
	extension := filepath.Ext(name)
	stem := strings.TrimSuffix(name, extension)
	if stem == "" {
		// Dotfiles such as ".bashrc" have no stem to suffix.
		return fmt.Sprintf("%s (%d)", name, n)
	}
	return fmt.Sprintf("%s (%d)%s", stem, n, extension)
}

// segment makes a display name usable as one path component.
func segment(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '_'
		}
		return r
	}, name)
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return "_"
	}
	return cleaned
}
