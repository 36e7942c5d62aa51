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

// Description: a fluent harness for testing the resolver end to end
// against a registry.Store, snapshotting the resulting closure
// instead of a rendered file. Adapted from pkg/stenciltest's
// New/Args/Run shape (itself snapshotting rendered templates via
// cupaloy): the object under test is a resolve.Closure rather than a
// []codegen.File, but the "build inputs, run the thing, snapshot the
// deterministic summary" flow is the same.

// Package resolvetest contains code for testing dependency closures
// produced by the resolver against golden snapshots.
package resolvetest

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/bradleyjkemp/cupaloy"
	"github.com/crates-vendor/cvmirror/internal/resolve"
	"github.com/crates-vendor/cvmirror/pkg/registry"
	"github.com/crates-vendor/cvmirror/pkg/target"
	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
	"gotest.tools/v3/assert"
)

// Case is a resolver test under construction.
type Case struct {
	t      *testing.T
	store  registry.Store
	target *target.Descriptor
	roots  []resolve.Root

	errStr string
}

// New creates a new resolver test against store, resolving against
// target (defaulting to a generic x86_64 Linux gnu target when nil).
func New(t *testing.T, store registry.Store, tgt *target.Descriptor) *Case {
	if tgt == nil {
		tgt = &target.Descriptor{
			Triple: "x86_64-unknown-linux-gnu", Family: "unix", OS: "linux",
			Env: "gnu", Arch: "x86_64", PointerWidth: "64", Endian: "little",
		}
	}
	return &Case{t: t, store: store, target: tgt}
}

// Roots sets the root set to resolve from.
func (c *Case) Roots(roots ...resolve.Root) *Case {
	c.roots = roots
	return c
}

// Root is a convenience for Roots(resolve.Root{Name: name, Version: version}).
func (c *Case) Root(name, version string) *Case {
	c.roots = append(c.roots, resolve.Root{Name: registry.Name(name), Version: version})
	return c
}

// ErrorContains denotes that Resolve is expected to fail, with an
// error containing msg.
func (c *Case) ErrorContains(msg string) *Case {
	c.errStr = msg
	return c
}

// Run resolves the configured root set and, on success, asserts the
// resulting closure matches its golden snapshot. On failure, when
// ErrorContains was set, asserts the error matches instead.
func (c *Case) Run() resolve.Closure {
	c.t.Helper()

	w := &resolve.Walker{Store: c.store, Target: c.target, Log: logrus.New()}
	closure, err := w.Resolve(c.roots)
	if c.errStr != "" {
		assert.ErrorContains(c.t, err, c.errStr)
		return nil
	}
	if err != nil {
		c.t.Logf("roots that failed to resolve: %s", spew.Sdump(c.roots))
		c.t.Fatalf("failed to resolve: %v", err)
	}

	cupaloy.New(cupaloy.CreateNewAutomatically(true)).SnapshotT(c.t, Summarize(closure))
	return closure
}

// Summarize renders closure as a deterministic, diff-friendly string:
// one line per entry, sorted by name then version, recording its
// enabled features and download flag. This is what gets snapshotted,
// rather than the map itself, since map iteration order is
// unspecified.
func Summarize(closure resolve.Closure) string {
	entries := closure.Entries()
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Release.Name != entries[j].Release.Name {
			return entries[i].Release.Name < entries[j].Release.Name
		}
		return entries[i].Release.Version < entries[j].Release.Version
	})

	var sb strings.Builder
	for _, e := range entries {
		features := append([]string{}, e.Features()...)
		sort.Strings(features)
		fmt.Fprintf(&sb, "%s@%s download=%t features=[%s]\n",
			e.Release.Name, e.Release.Version, e.Download, strings.Join(features, ","))
	}
	return sb.String()
}
