// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads Parley configuration for the server and the
// client from a single YAML file.
//
// The file is named by the PARLEY_CONFIG environment variable (via
// [Load]) or a --config flag (via [LoadFile]). There is no search path
// and no per-field environment override; command-line flags are the only
// layer above the file. Files ending in .json or .jsonc are accepted too:
// comments and trailing commas are stripped and the result parsed as
// YAML, of which JSON is a subset.
//
// After loading, ${HOME}, ${PARLEY_ROOT} and ${VAR:-default} patterns in
// path fields are expanded. Durations are written as Go duration strings
// ("10s", "500ms") and parsed by the accessor methods; [Config.Validate]
// reports every malformed field at once.
//
// This package depends on no other Parley packages.
package config
