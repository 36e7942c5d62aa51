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

// Description: This file implements release selection (C5): picking
// the newest compatible, non-withdrawn release of a package for a
// given version requirement. Grounded on
// internal/modules/resolver/resolver.go's Resolve, which sorts
// candidates and returns the first that satisfies every criterion.

package resolve

import (
	"fmt"

	"github.com/crates-vendor/cvmirror/pkg/registry"
	"github.com/crates-vendor/cvmirror/pkg/semver"
	"github.com/sirupsen/logrus"
)

// FatalError marks an error that must abort the resolve entirely,
// versus a condition that is merely logged and skipped (spec.md §7).
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

func fatalf(format string, args ...any) error {
	return &FatalError{Err: fmt.Errorf(format, args...)}
}

// SelectRelease implements C5. Every failure here, including a store
// lookup error such as registry.ErrNotFound, is returned as a
// *FatalError per spec.md §4.5; the one non-fatal case, "no compatible
// release", is logged at warning level and reported via the second
// (bool) return value.
func SelectRelease(store registry.Store, log logrus.FieldLogger, name registry.Name, requirement string) (*registry.Release, bool, error) {
	rec, err := store.Get(name)
	if err != nil {
		return nil, false, fatalf("package %q not found: %w", name, err)
	}

	req, err := semver.ParseRequirement(requirement)
	if err != nil {
		return nil, false, fatalf("package %q: requirement %q unparsable: %w", name, requirement, err)
	}

	// Iterate newest-first: the store returns releases in repository
	// order, and the caller treats the last-first reverse as newest
	// first (spec.md §4.1).
	for i := len(rec.Releases) - 1; i >= 0; i-- {
		r := rec.Releases[i]
		if r.Withdrawn {
			continue
		}

		ver, err := semver.ParseVersion(r.Version)
		if err != nil {
			return nil, false, fatalf("package %q: candidate version %q unparsable: %w", name, r.Version, err)
		}

		if semver.Matches(req, ver) {
			return r, true, nil
		}
	}

	if log != nil {
		log.WithField("package", name).WithField("requirement", requirement).
			Warn("no compatible release found; dropping dependency from closure for this context")
	}
	return nil, false, nil
}
