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

// Description: This file implements the closure walker (C7): starting
// from a root set, it recursively resolves and activates dependencies
// and merges them into a single download/index-only flagged closure.
// The worklist shape is grounded on internal/modules/modules.go's
// FetchModules, which also walks a frontier of not-yet-resolved
// entries while tracking per-entry resolution history.

package resolve

import (
	"fmt"

	"github.com/crates-vendor/cvmirror/pkg/cfgexpr"
	"github.com/crates-vendor/cvmirror/pkg/features"
	"github.com/crates-vendor/cvmirror/pkg/registry"
	"github.com/crates-vendor/cvmirror/pkg/target"
	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/sirupsen/logrus"
)

// visit is one pending unit of work for the walker: a release to
// process under a given enabled feature set and download-context.
type visit struct {
	release         *registry.Release
	enabled         map[string]bool
	defaultFeatures bool
	downloadParent  bool
	isRoot          bool

	// parent/refName are carried only for error messages.
	parent  string
	refName string
}

// Walker runs C7 against a fixed registry.Store and target.Descriptor.
type Walker struct {
	Store    registry.Store
	Target   *target.Descriptor
	Log      logrus.FieldLogger
	AbortFn  func() bool

	memo map[closureKey]uint64
}

// memoState is hashed to produce the memoization key C7 requires
// (spec.md §4.7): "(name, version) -> (enabled-feature-set,
// download-flag)". hashstructure gives a stable hash of the set
// independent of iteration order, which lets Resolve short-circuit a
// re-entry that strictly repeats prior work without tracking full
// subset containment on every visit.
type memoState struct {
	Enabled  []string `hash:"set"`
	Download bool
}

// Resolve walks the closure starting from roots, per spec.md §4.7:
// roots are processed with E = the release's full feature-name set,
// default_features_flag = true, download_parent = true, and
// force_activate = true for every optional direct dependency.
func (w *Walker) Resolve(roots []Root) (Closure, error) {
	closure := Closure{}
	w.memo = map[closureKey]uint64{}

	var queue []visit
	var verrs *multierror.Error

	for _, root := range roots {
		rec, err := w.Store.Get(root.Name)
		if err != nil {
			verrs = multierror.Append(verrs, fmt.Errorf("root %s: package not found: %w", root.Name, err))
			continue
		}

		var release *registry.Release
		for _, r := range rec.Releases {
			if r.Version == root.Version {
				release = r
				break
			}
		}
		if release == nil {
			verrs = multierror.Append(verrs, fmt.Errorf("root %s@%s: version not found", root.Name, root.Version))
			continue
		}
		if release.Withdrawn {
			verrs = multierror.Append(verrs, fmt.Errorf("root %s@%s: release is withdrawn", root.Name, root.Version))
			continue
		}

		full := make(map[string]bool, len(release.Features))
		for name := range release.Features {
			full[name] = true
		}

		queue = append(queue, visit{
			release:         release,
			enabled:         full,
			defaultFeatures: true,
			downloadParent:  true,
			isRoot:          true,
			parent:          "<root>",
		})
	}

	if verrs.ErrorOrNil() != nil {
		return nil, verrs.ErrorOrNil()
	}

	for len(queue) > 0 {
		if w.AbortFn != nil && w.AbortFn() {
			return nil, fmt.Errorf("resolve aborted")
		}

		v := queue[0]
		queue = queue[1:]

		next, err := w.visitOne(closure, v)
		if err != nil {
			return nil, err
		}
		queue = append(queue, next...)
	}

	return closure, nil
}

// visitOne processes a single (release, enabled-set, ...) quadruple
// and returns any further visits it produced.
func (w *Walker) visitOne(closure Closure, v visit) ([]visit, error) {
	r := v.release
	if r.Withdrawn {
		return nil, nil
	}

	// Step 1: normalize E against default_features_flag.
	enabled := map[string]bool{}
	for f := range v.enabled {
		enabled[f] = true
	}
	if _, hasDefault := r.Features["default"]; hasDefault {
		if v.defaultFeatures {
			enabled["default"] = true
		} else {
			delete(enabled, "default")
		}
	}

	key := keyOf(r)
	state := memoState{Download: v.downloadParent}
	for f := range enabled {
		state.Enabled = append(state.Enabled, f)
	}
	h, err := hashstructure.Hash(state, hashstructure.FormatV2, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to hash memoization state: %w", r, err)
	}

	entry, exists := closure[key]
	if exists {
		downloadGrows := v.downloadParent && !entry.Download
		repeats := w.memo[key] == h || isSubset(enabled, entry.enabled)
		if repeats && !downloadGrows {
			// The new request strictly repeats, or is a subset of, the
			// state this release was already walked under; its
			// dependencies were already visited with an enabled set and
			// download-flag at least as large.
			return nil, nil
		}
		entry.Download = entry.Download || v.downloadParent
	} else {
		entry = &ClosureEntry{Release: r, Download: v.downloadParent, enabled: map[string]bool{}}
		closure[key] = entry
	}
	for f := range enabled {
		entry.enabled[f] = true
	}
	w.memo[key] = h

	// Step 2: parse the feature table.
	table, err := features.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("feature-table malformed: %w", err)
	}

	var out []visit
	for i := range r.Dependencies {
		d := &r.Dependencies[i]
		if d.Kind == registry.Dev {
			continue
		}

		guard, err := cfgexpr.Parse(d.TargetGuard)
		if err != nil {
			return nil, fmt.Errorf("%s: dependency %s: target_guard parse error: %w", r, d.RefName, err)
		}
		guardTrue := guard.Eval(w.Target, func(format string, args ...any) {
			if w.Log != nil {
				w.Log.Warnf(format, args...)
			}
		})
		downloadChild := v.downloadParent && guardTrue

		forceActivate := v.isRoot && d.Optional
		result := Activate(table, d, enabled, forceActivate, w.Log)
		if !result.Activated {
			continue
		}

		release, found, err := SelectRelease(w.Store, w.Log, d.PackageName, d.Requirement)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}

		out = append(out, visit{
			release:         release,
			enabled:         result.Features,
			defaultFeatures: d.DefaultFeatures,
			downloadParent:  downloadChild,
			isRoot:          false,
			parent:          string(r.Name),
			refName:         d.RefName,
		})
	}

	return out, nil
}

func isSubset(a, b map[string]bool) bool {
	for f := range a {
		if !b[f] {
			return false
		}
	}
	return true
}
