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

// Description: a Store backed by a clone of a crates.io-index-shaped
// git repository, grounded on internal/modules/module.go's GetFS
// (go-git clone + go-billy filesystem + giturls.Parse).

package registry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	giturls "github.com/whilp/git-urls"
)

// indexDep is one dependency entry of a crates.io-index package
// record, in the upstream's own field naming.
type indexDep struct {
	Name            string   `json:"name"`
	Package         string   `json:"package"`
	Req             string   `json:"req"`
	Kind            string   `json:"kind"`
	Optional        bool     `json:"optional"`
	DefaultFeatures bool     `json:"default_features"`
	Features        []string `json:"features"`
	Target          string   `json:"target"`
}

// GitStore is a Store backed by a single clone of a crates.io-index
// style git repository: one file per package, at a path derived from
// the lowercased package name's length and first characters, holding
// one JSON object per line (oldest release first).
//
// Cloning happens once, eagerly, in NewGitStore; per-package parsing
// is lazy and memoized, since a full index is large and most mirror
// runs only touch a small slice of it.
type GitStore struct {
	fs billy.Filesystem

	mu       sync.Mutex
	cache    map[string]*PackageRecord
	notFound map[string]bool
}

// NewGitStore clones uri at ref into a local working directory and
// returns a Store reading from it. ref may be empty, in which case the
// repository's default branch is used.
func NewGitStore(uri, ref string) (*GitStore, error) {
	if _, err := giturls.Parse(uri); err != nil {
		return nil, fmt.Errorf("failed to parse index URI: %w", err)
	}

	dir, err := cloneDir()
	if err != nil {
		return nil, err
	}

	opts := &gogit.CloneOptions{URL: uri, Depth: 1}
	if ref != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(ref)
	}
	if _, err := gogit.PlainClone(dir, false, opts); err != nil {
		return nil, fmt.Errorf("failed to clone index %q: %w", uri, err)
	}

	return &GitStore{fs: osfs.New(dir), cache: map[string]*PackageRecord{}, notFound: map[string]bool{}}, nil
}

// cloneDir creates a fresh temporary directory to clone an index
// into.
func cloneDir() (string, error) {
	dir, err := os.MkdirTemp("", "cvmirror-index-*")
	if err != nil {
		return "", fmt.Errorf("failed to create clone directory: %w", err)
	}
	return dir, nil
}

// Get implements Store.
func (s *GitStore) Get(name Name) (*PackageRecord, error) {
	key := strings.ToLower(string(name))

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.cache[key]; ok {
		return rec, nil
	}
	if s.notFound[key] {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	f, err := s.fs.Open(indexPath(key))
	if err != nil {
		if s.notFound == nil {
			s.notFound = map[string]bool{}
		}
		s.notFound[key] = true
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	defer f.Close()

	rec := &PackageRecord{Name: name}
	scanner := bufio.NewScanner(f)
	// Index lines can be long; widen the default scan buffer.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rawRec struct {
			Name    string              `json:"name"`
			Vers    string              `json:"vers"`
			Yanked  bool                `json:"yanked"`
			Deps    []indexDep          `json:"deps"`
			Features map[string][]string `json:"features"`
		}
		if err := json.Unmarshal([]byte(line), &rawRec); err != nil {
			return nil, fmt.Errorf("%s: malformed index record: %w", name, err)
		}

		rec.Releases = append(rec.Releases, &Release{
			Name:         name,
			Version:      rawRec.Vers,
			Withdrawn:    rawRec.Yanked,
			Dependencies: convertDeps(rawRec.Deps),
			Features:     rawRec.Features,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: failed reading index file: %w", name, err)
	}

	s.cache[key] = rec
	return rec, nil
}

func convertDeps(deps []indexDep) []DependencyRef {
	out := make([]DependencyRef, 0, len(deps))
	for _, d := range deps {
		refName := d.Name
		pkgName := d.Name
		if d.Package != "" {
			pkgName = d.Package
		}

		kind := Normal
		switch strings.ToLower(d.Kind) {
		case "build":
			kind = Build
		case "dev":
			kind = Dev
		}

		out = append(out, DependencyRef{
			RefName:         refName,
			PackageName:     Name(pkgName),
			Requirement:     d.Req,
			Kind:            kind,
			Optional:        d.Optional,
			DefaultFeatures: d.DefaultFeatures,
			Features:        d.Features,
			TargetGuard:     d.Target,
		})
	}
	return out
}

// indexPath derives the on-disk path of a package's index file,
// matching the crates.io-index layout: 1 and 2 character names live
// directly under a directory named for their length, 3 character
// names are nested one level under their first character, and longer
// names are nested under their first two and next two characters.
func indexPath(lowerName string) string {
	switch len(lowerName) {
	case 1:
		return "1/" + lowerName
	case 2:
		return "2/" + lowerName
	case 3:
		return "3/" + lowerName[:1] + "/" + lowerName
	default:
		return lowerName[:2] + "/" + lowerName[2:4] + "/" + lowerName
	}
}
