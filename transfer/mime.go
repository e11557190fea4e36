// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transfer

import (
	"mime"
	"path/filepath"
	"strings"
)

// fallbackMimeType is used for names with no extension.
const fallbackMimeType = "application/octet-stream"

// MimeHint guesses a type for a file name: the registered MIME type for
// its extension without parameters, else the bare extension ("dat"),
// else application/octet-stream.
func MimeHint(name string) string {
	extension := strings.ToLower(filepath.Ext(name))
	if extension == "" || extension == "." {
		return fallbackMimeType
	}
	if mimeType := mime.TypeByExtension(extension); mimeType != "" {
		if mediaType, _, err := mime.ParseMediaType(mimeType); err == nil {
			return mediaType
		}
		return mimeType
	}
	return strings.TrimPrefix(extension, ".")
}
