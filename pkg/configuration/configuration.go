// Copyright (C) 2024 stencil contributors
// Copyright (C) 2022-2023 Outreach Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Description: loads the cvmirror.yaml run configuration: target
// descriptor, index/store location, mirror output directory, and
// fetch concurrency. Grounded on the teacher's NewManifest/
// NewDefaultManifest pair: search a small, fixed list of well-known
// paths, decode with the internal/yaml wrapper, validate before
// handing the result back to the caller.

// Package configuration loads the run configuration a cvmirror
// invocation is driven by.
package configuration

import (
	"fmt"
	"os"

	"github.com/crates-vendor/cvmirror/internal/yaml"
	"github.com/crates-vendor/cvmirror/pkg/target"
)

// IndexSource describes where the upstream package index (spec.md
// §6's version-store client) is read from: a git repository at a URI
// and, optionally, a ref.
type IndexSource struct {
	// URI is the git remote to clone, e.g.
	// "https://github.com/rust-lang/crates.io-index".
	URI string `yaml:"uri"`

	// Ref is the branch to check out; it is always resolved as a branch
	// name, never as a tag. Empty means the repository's default branch.
	Ref string `yaml:"ref,omitempty"`
}

// Config is the root cvmirror.yaml run configuration.
type Config struct {
	// Target is the fixed target descriptor every dependency's
	// target_guard is evaluated against (spec.md §4.3).
	Target target.Descriptor `yaml:"target"`

	// Index describes the upstream package index to read from.
	Index IndexSource `yaml:"index"`

	// MirrorDir is the directory the mirror is written to.
	MirrorDir string `yaml:"mirrorDir"`

	// Concurrency bounds how many archive fetches the mirror writer
	// runs at once (spec.md §5). Zero means mirror.DefaultConcurrency.
	Concurrency int `yaml:"concurrency,omitempty"`
}

// Load reads and parses a run configuration from path.
func Load(path string) (*Config, error) {
	//nolint:gosec // Why: path comes from CLI flags/well-known locations, not remote input.
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run configuration %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse run configuration %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("run configuration %q: %w", path, err)
	}

	return &cfg, nil
}

// LoadDefault reads a run configuration from a standard set of
// well-known paths.
func LoadDefault() (*Config, error) {
	candidates := []string{"cvmirror.yaml", "cvmirror.yml"}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return nil, fmt.Errorf("no run configuration found (searched %v)", candidates)
}

// Validate reports whether cfg carries enough information to start a
// resolver run. Spec.md §7's "Target not resolvable" fatal error
// originates here when Target is incomplete.
func (c *Config) Validate() error {
	if err := c.Target.Validate(); err != nil {
		return fmt.Errorf("target not resolvable: %w", err)
	}
	if c.Index.URI == "" {
		return fmt.Errorf("index.uri is required")
	}
	if c.MirrorDir == "" {
		return fmt.Errorf("mirrorDir is required")
	}
	return nil
}
