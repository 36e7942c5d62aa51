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

// Description: parses a release's raw feature table into the
// normalized entry forms the activation engine consumes, and applies
// the implicit-feature rule.

// Package features parses and normalizes a release's feature table:
// the raw activation strings attached to each feature name become
// typed FeatureEntry values, and optional dependencies that were never
// named under a "dep:" prefix get an implicit same-named feature.
package features

import (
	"fmt"
	"strings"

	"github.com/crates-vendor/cvmirror/pkg/registry"
)

// EntryKind distinguishes the four parsed forms a raw activation
// string can take.
type EntryKind int

// The four forms a raw feature-table entry parses into.
const (
	// Feature activates another feature of the same release.
	Feature EntryKind = iota
	// Dep activates an optional dependency, and its implicit feature.
	Dep
	// DepStrong activates a dependency (optional or required) and
	// additionally enables one of its features.
	DepStrong
	// DepWeak enables one of a dependency's features only if something
	// else activates that dependency.
	DepWeak
)

// Entry is one parsed activation directive.
type Entry struct {
	Kind EntryKind

	// Name is the feature name (Feature) or the dependency's ref_name
	// (Dep, DepStrong, DepWeak).
	Name string

	// TargetFeature is the dependency feature to enable; set only for
	// DepStrong and DepWeak.
	TargetFeature string
}

// Table is a release's parsed feature table: feature name to an
// ordered list of Entry.
type Table map[string][]Entry

// Parse parses r's raw feature table and applies the implicit-feature
// rule (spec.md §4.4): every optional dependency whose ref_name was
// never the subject of a "dep:" prefix, and that is not itself a
// feature-table key, gets an implicit entry `name -> [Dep(name)]`.
func Parse(r *registry.Release) (Table, error) {
	optionalRefs := map[string]bool{}
	allRefs := map[string]bool{}
	for _, d := range r.Dependencies {
		allRefs[d.RefName] = true
		if d.Optional {
			optionalRefs[d.RefName] = true
		}
	}

	table := Table{}
	suppressed := map[string]bool{}

	for name, raw := range r.Features {
		entries := make([]Entry, 0, len(raw))
		for _, item := range raw {
			entry, suppressedName, err := parseOne(item, name, r.Features, optionalRefs, allRefs)
			if err != nil {
				return nil, fmt.Errorf("release %s: feature %q: %w", r, name, err)
			}
			if suppressedName != "" {
				suppressed[suppressedName] = true
			}
			entries = append(entries, entry)
		}
		table[name] = entries
	}

	for ref := range optionalRefs {
		if suppressed[ref] {
			continue
		}
		if _, exists := table[ref]; exists {
			continue
		}
		table[ref] = []Entry{{Kind: Dep, Name: ref}}
	}

	return table, nil
}

// parseOne parses a single raw activation string per the table in
// spec.md §4.4, checked in order. It returns the parsed entry and, if
// the entry carries a "dep:" prefix, the ref_name that is now
// implicit-feature-suppressed.
func parseOne(raw, ownerFeature string, allFeatures map[string][]string, optionalRefs, allRefs map[string]bool) (entry Entry, suppressedName string, err error) {
	suppress := false
	if strings.HasPrefix(raw, "dep:") {
		suppress = true
		raw = strings.TrimPrefix(raw, "dep:")
	}

	if name, feat, weak, ok := splitDepFeature(raw); ok {
		if weak {
			if !optionalRefs[name] {
				return Entry{}, "", fmt.Errorf("weak dependency feature %q: %q is not an optional dependency", raw, name)
			}
			entry = Entry{Kind: DepWeak, Name: name, TargetFeature: feat}
		} else {
			if !allRefs[name] {
				return Entry{}, "", fmt.Errorf("dependency feature %q: %q is not a dependency", raw, name)
			}
			entry = Entry{Kind: DepStrong, Name: name, TargetFeature: feat}
		}
		if suppress {
			suppressedName = name
		}
		return entry, suppressedName, nil
	}

	name := raw
	if suppress {
		if !optionalRefs[name] {
			return Entry{}, "", fmt.Errorf("dep:%s: not an optional dependency", name)
		}
		return Entry{Kind: Dep, Name: name}, name, nil
	}

	switch {
	case name == ownerFeature:
		return Entry{}, "", fmt.Errorf("feature %q cannot reference itself", name)
	case isFeatureKey(name, allFeatures):
		return Entry{Kind: Feature, Name: name}, "", nil
	case optionalRefs[name]:
		return Entry{Kind: Dep, Name: name}, "", nil
	default:
		return Entry{}, "", fmt.Errorf("entry %q is neither a feature nor an optional dependency of this release", name)
	}
}

func isFeatureKey(name string, allFeatures map[string][]string) bool {
	_, ok := allFeatures[name]
	return ok
}

// splitDepFeature recognizes the "name/feat" and "name?/feat" forms.
func splitDepFeature(raw string) (name, feat string, weak, ok bool) {
	idx := strings.IndexByte(raw, '/')
	if idx < 0 {
		return "", "", false, false
	}
	name = raw[:idx]
	feat = raw[idx+1:]
	if strings.HasSuffix(name, "?") {
		return strings.TrimSuffix(name, "?"), feat, true, true
	}
	return name, feat, false, true
}
