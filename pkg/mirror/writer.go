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

// Description: the reference Writer implementation: lays out the
// index/ and registry/ directories per spec.md §6, validates every
// index record against recordSchema before it touches disk, commits
// the index directory to git, and fetches archives with bounded
// concurrency.

package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/crates-vendor/cvmirror/internal/resolve"
	"github.com/crates-vendor/cvmirror/pkg/registry"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/hashicorp/go-hclog"
)

// FileWriter is the reference Writer: a local filesystem mirror
// directory, fetched archives regulated by a counting semaphore, and
// a git-committed index.
type FileWriter struct {
	// Dir is the mirror root directory (created if absent).
	Dir string

	// Fetcher downloads archive blobs for download-flagged entries.
	Fetcher ArchiveFetcher

	// Log receives subsystem diagnostics. Defaults to hclog.Default()
	// when nil, matching the teacher's one-logger-per-boundary split
	// between the CLI's logrus logger and this out-of-band subsystem.
	Log hclog.Logger
}

var _ Writer = (*FileWriter)(nil)

// Write implements Writer.
func (fw *FileWriter) Write(ctx context.Context, closure resolve.Closure, concurrency int) error {
	log := fw.Log
	if log == nil {
		log = hclog.Default()
	}

	entries := closure.Entries()
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Release.Name != entries[j].Release.Name {
			return entries[i].Release.Name < entries[j].Release.Name
		}
		return entries[i].Release.Version < entries[j].Release.Version
	})

	log.Info("writing mirror index", "entries", len(entries), "dir", fw.Dir)

	fs := osfs.New(fw.Dir)
	indexDir := filepath.Join(fw.Dir, "index")
	if err := fs.MkdirAll("index", 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	if err := fs.MkdirAll("registry", 0o755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	if err := writeConfig(fs, fw.Dir); err != nil {
		return err
	}

	if err := writeIndexFiles(fs, entries); err != nil {
		return err
	}

	log.Debug("committing index directory")
	if err := commitIndex(indexDir); err != nil {
		return err
	}

	log.Info("fetching archives", "concurrency", concurrency)
	blobs, err := fetchAll(ctx, fw.Fetcher, entries, concurrency)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if !e.Download {
			continue
		}
		blob, ok := blobs[keyOfEntry(e)]
		if !ok {
			return fmt.Errorf("internal error: no fetched archive for download-flagged %s", e.Release)
		}
		if err := writeArchive(fs, e.Release.Name, e.Release.Version, blob); err != nil {
			return err
		}
	}

	log.Info("mirror build complete", "dir", fw.Dir)
	return nil
}

// writeConfig writes index/config.json, whose "dl" field downstream
// tools resolve archive download URLs against.
func writeConfig(fs billy.Filesystem, absDir string) error {
	cfg := configJSON{DL: "file://" + filepath.Join(absDir, "registry")}
	b, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal index config: %w", err)
	}
	return writeFile(fs, filepath.Join("index", "config.json"), b)
}

// writeIndexFiles groups entries by package name and writes one
// newline-delimited-JSON file per package, each record validated
// against recordSchema before being appended.
func writeIndexFiles(fs billy.Filesystem, entries []*resolve.ClosureEntry) error {
	schema, err := compileRecordSchema()
	if err != nil {
		return err
	}

	byName := map[string][]*resolve.ClosureEntry{}
	var names []string
	for _, e := range entries {
		name := string(e.Release.Name)
		if _, ok := byName[name]; !ok {
			names = append(names, name)
		}
		byName[name] = append(byName[name], e)
	}
	sort.Strings(names)

	for _, name := range names {
		releases := byName[name]
		sort.Slice(releases, func(i, j int) bool { return releases[i].Release.Version < releases[j].Release.Version })

		var body []byte
		for _, e := range releases {
			rec := toRecord(e)
			if err := validate(schema, rec); err != nil {
				return err
			}
			line, err := marshalLine(rec)
			if err != nil {
				return err
			}
			body = append(body, line...)
		}

		relPath := filepath.Join("index", indexFilePath(name))
		if err := writeFile(fs, relPath, body); err != nil {
			return err
		}
	}

	return nil
}

// writeArchive writes one release's archive blob to its registry/
// path.
func writeArchive(fs billy.Filesystem, name registry.Name, version string, blob []byte) error {
	return writeFile(fs, archivePath(string(name), version), blob)
}

// writeFile creates relPath (and any missing parent directories)
// under fs and writes b to it.
func writeFile(fs billy.Filesystem, relPath string, b []byte) error {
	if err := fs.MkdirAll(filepath.Dir(relPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", relPath, err)
	}

	f, err := fs.Create(relPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", relPath, err)
	}
	defer f.Close()

	if _, err := f.Write(b); err != nil {
		return fmt.Errorf("failed to write %s: %w", relPath, err)
	}
	return nil
}
