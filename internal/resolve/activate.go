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

// Description: This file implements the activation engine (C6): for
// one dependency of a release with a claimed "enabled feature set",
// decide whether the dependency is activated and, if so, which
// features to enable on the picked target release.

package resolve

import (
	"github.com/crates-vendor/cvmirror/pkg/features"
	"github.com/crates-vendor/cvmirror/pkg/registry"
	"github.com/sirupsen/logrus"
)

// ActivationResult is the outcome of running C6 for one dependency.
type ActivationResult struct {
	// Activated is true if the dependency should be included.
	Activated bool

	// Features is the enabled feature set to propagate into the target
	// release, valid only when Activated is true.
	Features map[string]bool
}

// Activate runs the per-dependency activation algorithm of spec.md
// §4.6 for dependency d of a release whose parsed feature table is
// table, given the enabled feature set enabled and whether the root
// force-activation policy (spec.md §4.6's "maximize coverage" rule for
// roots) applies to this dependency.
func Activate(table features.Table, d *registry.DependencyRef, enabled map[string]bool, forceActivate bool, log logrus.FieldLogger) ActivationResult {
	h := map[string]bool{}
	for _, f := range d.Features {
		if f == "" {
			// Empty feature names arising from trailing separators are
			// silently skipped (spec.md §7).
			continue
		}
		h[f] = true
	}
	if d.DefaultFeatures {
		h["default"] = true
	}

	w := map[string]bool{}
	active := !d.Optional || forceActivate

	seen := map[string]bool{}
	queue := make([]string, 0, len(enabled))
	for f := range enabled {
		if f == "" {
			continue
		}
		queue = append(queue, f)
		seen[f] = true
	}

	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]

		entries, ok := table[f]
		if !ok {
			if log != nil {
				log.WithField("feature", f).Warn("feature referenced but absent from table")
			}
			continue
		}

		for _, e := range entries {
			switch e.Kind {
			case features.Feature:
				if !seen[e.Name] {
					seen[e.Name] = true
					queue = append(queue, e.Name)
				}
			case features.Dep:
				if e.Name == d.RefName {
					if !d.Optional && log != nil {
						log.WithField("dependency", d.RefName).
							Warn("feature table activates a required dependency via Dep(); ignoring malformed entry semantics, dependency was already active")
					}
					active = true
				}
			case features.DepStrong:
				if e.Name == d.RefName {
					active = true
					h[e.TargetFeature] = true
				}
			case features.DepWeak:
				if e.Name == d.RefName {
					if !d.Optional && log != nil {
						log.WithField("dependency", d.RefName).
							Warn("feature table references a required dependency via a weak feature; this is malformed, continuing")
					}
					w[e.TargetFeature] = true
				}
			}
		}
	}

	if !active {
		return ActivationResult{Activated: false}
	}

	result := make(map[string]bool, len(h)+len(w))
	for f := range h {
		result[f] = true
	}
	for f := range w {
		result[f] = true
	}
	return ActivationResult{Activated: true, Features: result}
}
