// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli holds the start-up plumbing shared by parley-server and
// parley: choosing a log handler for the terminal, and finding the
// configuration file.
package cli
