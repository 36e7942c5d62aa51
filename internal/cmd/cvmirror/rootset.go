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

// Description: builds the root set the resolver is given, per
// spec.md §6's "--from-file" and "--most-downloaded" CLI forms. This
// is CLI plumbing, not core: it only ever emits (name, version)
// pairs, same as any other caller of the resolver.

package cvmirror

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/crates-vendor/cvmirror/internal/resolve"
	"github.com/crates-vendor/cvmirror/internal/slicesext"
	"github.com/crates-vendor/cvmirror/pkg/registry"
	"github.com/crates-vendor/cvmirror/pkg/semver"
	"github.com/pkg/errors"
)

// ErrNoRootSelection is returned when neither --from-file nor
// --most-downloaded names any packages; per spec.md §6 this is a
// usage error (exit code 1), not a resolver failure.
var ErrNoRootSelection = errors.New("no root selection: pass --from-file or --most-downloaded")

// PopularityFetcher retrieves the most-downloaded package names from
// an upstream popularity endpoint, paginated 50-per-page per spec.md
// §6.
type PopularityFetcher interface {
	TopDownloaded(ctx context.Context, n int) ([]string, error)
}

// readNamesFile reads a newline-delimited package-name list, skipping
// blank lines.
func readNamesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open root-set file %q", path)
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		names = append(names, line)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read root-set file %q", path)
	}
	return names, nil
}

// highestNormalVersion returns the highest non-withdrawn, non-prerelease
// release of name in store, matching spec.md §6's "highest normal
// version of each is chosen."
func highestNormalVersion(store registry.Store, name string) (*registry.Release, error) {
	rec, err := store.Get(registry.Name(name))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to look up root package %q", name)
	}

	var best *registry.Release
	var bestVer *semver.Version
	for _, r := range rec.Releases {
		if r.Withdrawn {
			continue
		}
		v, err := semver.ParseVersion(r.Version)
		if err != nil {
			return nil, errors.Wrapf(err, "package %q has unparsable release version %q", name, r.Version)
		}
		if semver.IsPrerelease(v) {
			continue
		}
		if best == nil || v.GreaterThan(bestVer) {
			best, bestVer = r, v
		}
	}
	if best == nil {
		return nil, fmt.Errorf("package %q has no normal (non-withdrawn, non-prerelease) release", name)
	}
	return best, nil
}

// BuildRootSet resolves the CLI's root-selection flags into a root
// set for the resolver. Exactly one of fromFile or mostDownloaded
// (>0) is expected; if neither is set, ErrNoRootSelection is
// returned.
func BuildRootSet(ctx context.Context, store registry.Store, pop PopularityFetcher,
	fromFile string, mostDownloaded int) ([]resolve.Root, error) {
	var names []string
	switch {
	case fromFile != "":
		n, err := readNamesFile(fromFile)
		if err != nil {
			return nil, err
		}
		names = n
	case mostDownloaded > 0:
		n, err := pop.TopDownloaded(ctx, mostDownloaded)
		if err != nil {
			return nil, errors.Wrap(err, "failed to fetch most-downloaded packages")
		}
		names = n
	default:
		return nil, ErrNoRootSelection
	}

	// A root-set file or popularity page can repeat a name; dedupe by
	// name before resolving versions, then sort for a reproducible
	// build order independent of input order.
	unique := slicesext.FromMap(slicesext.Map(names, func(n string) string { return n }))
	sort.Strings(unique)

	roots := make([]resolve.Root, 0, len(unique))
	for _, name := range unique {
		r, err := highestNormalVersion(store, name)
		if err != nil {
			return nil, err
		}
		roots = append(roots, resolve.Root{Name: r.Name, Version: r.Version})
	}
	return roots, nil
}
