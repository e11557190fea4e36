// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"os"

	"github.com/bureau-foundation/parley/lib/config"
)

// LoadConfig finds the configuration: the --config path when given,
// otherwise the file named by PARLEY_CONFIG, otherwise the built-in
// defaults. The result is expanded and validated.
func LoadConfig(path string) (*config.Config, error) {
	var (
		loaded *config.Config
		err    error
	)
	switch {
	case path != "":
		loaded, err = config.LoadFile(path)
	case os.Getenv(config.EnvVar) != "":
		loaded, err = config.Load()
	default:
		loaded = config.Default()
		loaded.Expand()
	}
	if err != nil {
		return nil, err
	}
	if err := loaded.Validate(); err != nil {
		return nil, err
	}
	return loaded, nil
}
