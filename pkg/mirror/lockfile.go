// Copyright (C) 2024 stencil contributors
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

// Description: a closure snapshot written alongside the mirror, so a
// later run can tell what was last produced without re-walking the
// version store. Loosely grounded on pkg/stencil/lockfile_test.go's
// API shape (Load/Prune/Sort over a flat entry list), adapted from a
// rendered-file manifest to a resolved-release manifest.

package mirror

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/crates-vendor/cvmirror/internal/resolve"
	"github.com/crates-vendor/cvmirror/pkg/registry"
	"gopkg.in/yaml.v3"
)

const lockfileName = "cvmirror.lock"

// LockfileEntry is one release recorded in a mirror build's lockfile.
type LockfileEntry struct {
	Name     string `yaml:"name"`
	Version  string `yaml:"version"`
	Download bool   `yaml:"download"`
}

// Lockfile records every release a mirror build produced.
type Lockfile struct {
	Version string          `yaml:"version"`
	Entries []LockfileEntry `yaml:"entries"`
}

// NewLockfile builds a Lockfile from a resolved closure.
func NewLockfile(version string, closure resolve.Closure) *Lockfile {
	l := &Lockfile{Version: version}
	for _, e := range closure.Entries() {
		l.Entries = append(l.Entries, LockfileEntry{
			Name:     string(e.Release.Name),
			Version:  e.Release.Version,
			Download: e.Download,
		})
	}
	l.Sort()
	return l
}

// Sort orders entries by name then version, for diff-friendly output.
func (l *Lockfile) Sort() {
	sort.Slice(l.Entries, func(i, j int) bool {
		if l.Entries[i].Name != l.Entries[j].Name {
			return l.Entries[i].Name < l.Entries[j].Name
		}
		return l.Entries[i].Version < l.Entries[j].Version
	})
}

// Prune removes entries for releases no longer present in current,
// returning the names@versions that were dropped. This lets a
// subsequent mirror build detect releases that aged out of the
// resolver's closure since the last run.
func (l *Lockfile) Prune(current resolve.Closure) []string {
	var dropped []string
	kept := l.Entries[:0]
	for _, e := range l.Entries {
		if _, ok := current.Get(registry.Name(e.Name), e.Version); ok {
			kept = append(kept, e)
			continue
		}
		dropped = append(dropped, fmt.Sprintf("%s@%s", e.Name, e.Version))
	}
	l.Entries = kept
	return dropped
}

// WriteLockfile marshals l as YAML into dir/cvmirror.lock.
func WriteLockfile(dir string, l *Lockfile) error {
	b, err := yaml.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to marshal lockfile: %w", err)
	}
	//nolint:gosec // Why: mirror output is not executable content.
	if err := os.WriteFile(filepath.Join(dir, lockfileName), b, 0o644); err != nil {
		return fmt.Errorf("failed to write lockfile: %w", err)
	}
	return nil
}

// LoadLockfile reads dir/cvmirror.lock, returning an empty Lockfile if
// it does not yet exist (a first mirror build has nothing to prune
// against).
func LoadLockfile(dir string) (*Lockfile, error) {
	b, err := os.ReadFile(filepath.Join(dir, lockfileName))
	if os.IsNotExist(err) {
		return &Lockfile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read lockfile: %w", err)
	}

	var l Lockfile
	if err := yaml.Unmarshal(b, &l); err != nil {
		return nil, fmt.Errorf("failed to parse lockfile: %w", err)
	}
	return &l, nil
}
