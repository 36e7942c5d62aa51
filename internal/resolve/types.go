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

// Description: This file implements the shared types the release
// selector, activation engine and closure walker pass between each
// other.

// Package resolve implements the dependency/feature-activation
// resolver: release selection (C5), per-dependency activation (C6)
// and the closure walker (C7) that ties them together into the final
// download/index-only release set.
package resolve

import (
	"github.com/crates-vendor/cvmirror/pkg/registry"
)

// Root is an externally-selected (package, version) pair that seeds
// the walk.
type Root struct {
	Name    registry.Name
	Version string
}

// ClosureEntry is one (name, version) pair's resolved state: whether
// any context that reached it required the archive to be downloaded.
type ClosureEntry struct {
	Release  *registry.Release
	Download bool

	// enabled is the union, across every context that has visited this
	// release, of feature names claimed active on it. Re-visits are
	// only skipped once a new request's enabled set is a subset of this
	// (spec.md §4.7).
	enabled map[string]bool
}

// Closure is the resolver's output: every (name, version) reached from
// the root set, flagged download/index-only.
type Closure map[closureKey]*ClosureEntry

type closureKey struct {
	name    registry.Name
	version string
}

func keyOf(r *registry.Release) closureKey {
	return closureKey{name: r.Name, version: r.Version}
}

// Entries returns the closure's entries as a slice, in no particular
// order.
func (c Closure) Entries() []*ClosureEntry {
	out := make([]*ClosureEntry, 0, len(c))
	for _, e := range c {
		out = append(out, e)
	}
	return out
}

// Get returns the entry for (name, version), if present.
func (c Closure) Get(name registry.Name, version string) (*ClosureEntry, bool) {
	e, ok := c[closureKey{name: name, version: version}]
	return e, ok
}

// Features returns the names of every feature activated on this entry
// across every context that reached it, in no particular order.
func (e *ClosureEntry) Features() []string {
	out := make([]string, 0, len(e.enabled))
	for name, on := range e.enabled {
		if on {
			out = append(out, name)
		}
	}
	return out
}
