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

// Package semver wraps github.com/Masterminds/semver/v3 to provide
// the version parsing and requirement matching behavior a Cargo-style
// registry expects: caret/tilde/wildcard/exact clauses, and
// prereleases that only satisfy requirements that explicitly mention
// a prerelease.
package semver

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is a parsed semantic version.
type Version struct {
	raw string
	v   *semver.Version
}

// String returns the original, unmodified version string.
func (v *Version) String() string {
	return v.raw
}

// Prerelease returns the prerelease component of the version, or an
// empty string if the version is not a prerelease.
func (v *Version) Prerelease() string {
	return v.v.Prerelease()
}

// GreaterThan reports whether v is greater than other.
func (v *Version) GreaterThan(other *Version) bool {
	return v.v.GreaterThan(other.v)
}

// ParseVersion parses a version string. It is an error if the string
// does not follow semantic versioning.
func ParseVersion(s string) (*Version, error) {
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse version %q: %w", s, err)
	}
	return &Version{raw: s, v: v}, nil
}

// Requirement is a parsed version requirement, e.g. "^1.2", "~1.2.3",
// "=1.0.0", or a comma-joined combination of clauses.
type Requirement struct {
	raw string
	c   *semver.Constraints
}

// String returns the original, unmodified requirement string.
func (r *Requirement) String() string {
	return r.raw
}

// ParseRequirement parses a version requirement expression. Clauses
// may be joined with commas, all of which must be satisfied
// (Masterminds/semver's native AND-of-comma-clauses behavior, which is
// also how Cargo's own VersionReq syntax composes clauses).
func ParseRequirement(s string) (*Requirement, error) {
	if s == "" {
		s = "*"
	}

	c, err := semver.NewConstraint(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse requirement %q: %w", s, err)
	}
	return &Requirement{raw: s, c: c}, nil
}

// Matches reports whether ver satisfies req, delegating entirely to
// Masterminds/semver: a prerelease version only satisfies a
// requirement whose clause itself carries a prerelease tag. The
// clause's version core is not compared with the candidate's, so
// unlike Cargo a prerelease of a different major.minor.patch can
// still match such a clause.
func Matches(req *Requirement, ver *Version) bool {
	return req.c.Check(ver.v)
}

// IsPrerelease reports whether ver carries a prerelease component.
func IsPrerelease(ver *Version) bool {
	return ver.v.Prerelease() != ""
}

// CorePrerelease returns the first dot-separated segment of the
// version's prerelease tag, which is what release trains (e.g.
// "1.0.0-alpha.1" -> "alpha") are keyed on.
func CorePrerelease(ver *Version) string {
	return strings.SplitN(ver.v.Prerelease(), ".", 2)[0]
}
