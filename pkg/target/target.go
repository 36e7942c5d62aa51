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

// Description: the fixed target descriptor every dependency's
// target_guard (pkg/cfgexpr) is evaluated against, plus a small static
// table of known target triples so callers can build a Descriptor from
// a triple string alone.

// Package target describes the single build target a mirror is
// produced for: its triple, OS, architecture, and the other attributes
// spec.md §4.3's cfg(...) predicates compare against.
package target

import "fmt"

// Descriptor is the fixed target descriptor T of spec.md §4.3: family,
// OS, environment, architecture, pointer width, endianness, and the
// full triple it was derived from. It is configured once, at resolver
// construction, and never mutated afterward.
type Descriptor struct {
	// Triple is the full target triple, e.g.
	// "x86_64-unknown-linux-gnu".
	Triple string `yaml:"triple"`

	// Family is the target_family cfg attribute, e.g. "unix" or
	// "windows".
	Family string `yaml:"family"`

	// OS is the target_os cfg attribute, e.g. "linux", "windows",
	// "macos".
	OS string `yaml:"os"`

	// Env is the target_env cfg attribute, e.g. "gnu", "msvc", or
	// empty.
	Env string `yaml:"env,omitempty"`

	// Arch is the target_arch cfg attribute, e.g. "x86_64", "aarch64".
	Arch string `yaml:"arch"`

	// PointerWidth is the target_pointer_width cfg attribute, e.g.
	// "64" or "32".
	PointerWidth string `yaml:"pointer_width,omitempty"`

	// Endian is the target_endian cfg attribute, "little" or "big".
	Endian string `yaml:"endian,omitempty"`

	// Features is the set of target features (cfg(target_feature =
	// "...")) the build is assumed to enable. Per spec.md §4.3 every
	// target_feature predicate is assumed true regardless of this set;
	// it is carried here only for completeness/inspection, not
	// consulted by cfgexpr.
	Features []string `yaml:"features,omitempty"`
}

// attrs returns the cfg attribute lookup table for d: the set of
// "target_<key>" names a cfg(...) key=value predicate may reference,
// per spec.md §4.3 ("target(<key>=<val>)", composite target_os,
// target_family, etc. — evaluated against T").
func (d *Descriptor) attrs() map[string]string {
	return map[string]string{
		"target_family":        d.Family,
		"target_os":            d.OS,
		"target_env":           d.Env,
		"target_arch":          d.Arch,
		"target_pointer_width": d.PointerWidth,
		"target_endian":        d.Endian,
		"target":               d.Triple,
	}
}

// Attr looks up a cfg attribute key (e.g. "target_os") against d,
// reporting whether the key is one this descriptor knows about.
// Unknown keys are the cfgexpr caller's responsibility to warn on and
// treat as false, per spec.md §4.3.
func (d *Descriptor) Attr(key string) (string, bool) {
	v, ok := d.attrs()[key]
	return v, ok
}

// Validate reports whether d carries enough information to serve as a
// resolver target: a triple, an OS, and an architecture. Family, env,
// pointer width, and endian are cfg-predicate conveniences and may be
// left blank for targets that don't need them matched.
func (d *Descriptor) Validate() error {
	if d.Triple == "" {
		return fmt.Errorf("target triple is required")
	}
	if d.OS == "" {
		return fmt.Errorf("target %q: os is required", d.Triple)
	}
	if d.Arch == "" {
		return fmt.Errorf("target %q: arch is required", d.Triple)
	}
	return nil
}

// known is a small static registry of common target triples, in the
// same "fixed map of well-known values" style the teacher uses for its
// own small built-in registries. It is not exhaustive; callers with an
// unlisted triple should construct a Descriptor directly instead of
// going through Lookup.
var known = map[string]Descriptor{
	"x86_64-unknown-linux-gnu": {
		Triple: "x86_64-unknown-linux-gnu", Family: "unix", OS: "linux",
		Env: "gnu", Arch: "x86_64", PointerWidth: "64", Endian: "little",
	},
	"x86_64-unknown-linux-musl": {
		Triple: "x86_64-unknown-linux-musl", Family: "unix", OS: "linux",
		Env: "musl", Arch: "x86_64", PointerWidth: "64", Endian: "little",
	},
	"aarch64-unknown-linux-gnu": {
		Triple: "aarch64-unknown-linux-gnu", Family: "unix", OS: "linux",
		Env: "gnu", Arch: "aarch64", PointerWidth: "64", Endian: "little",
	},
	"x86_64-pc-windows-msvc": {
		Triple: "x86_64-pc-windows-msvc", Family: "windows", OS: "windows",
		Env: "msvc", Arch: "x86_64", PointerWidth: "64", Endian: "little",
	},
	"x86_64-pc-windows-gnu": {
		Triple: "x86_64-pc-windows-gnu", Family: "windows", OS: "windows",
		Env: "gnu", Arch: "x86_64", PointerWidth: "64", Endian: "little",
	},
	"x86_64-apple-darwin": {
		Triple: "x86_64-apple-darwin", Family: "unix", OS: "macos",
		Arch: "x86_64", PointerWidth: "64", Endian: "little",
	},
	"aarch64-apple-darwin": {
		Triple: "aarch64-apple-darwin", Family: "unix", OS: "macos",
		Arch: "aarch64", PointerWidth: "64", Endian: "little",
	},
	"wasm32-unknown-unknown": {
		Triple: "wasm32-unknown-unknown", Family: "", OS: "unknown",
		Arch: "wasm32", PointerWidth: "32", Endian: "little",
	},
}

// Lookup returns the built-in Descriptor for a known target triple. It
// returns an error for any triple not in the static table — the caller
// should fall back to constructing a Descriptor by hand (e.g. from run
// configuration) in that case.
func Lookup(triple string) (*Descriptor, error) {
	d, ok := known[triple]
	if !ok {
		return nil, fmt.Errorf("target %q is not a known built-in triple", triple)
	}
	return &d, nil
}
