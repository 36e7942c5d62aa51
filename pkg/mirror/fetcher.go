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

// Description: bounded-concurrency archive fetching, per spec.md §5:
// at most N concurrent fetches regulated by a counting semaphore, any
// single failure fatal to the whole mirror build.

package mirror

import (
	"context"
	"fmt"
	"sync"

	"github.com/crates-vendor/cvmirror/internal/resolve"
)

// DefaultConcurrency is the default number of concurrent archive
// fetches, per spec.md §5.
const DefaultConcurrency = 100

// fetchResult pairs one closure entry with its fetched archive bytes
// or the error that aborted the fetch.
type fetchResult struct {
	entry *resolve.ClosureEntry
	blob  []byte
	err   error
}

// fetchAll downloads the archive for every download-flagged entry in
// closure, at most concurrency fetches in flight at once. A single
// failure cancels the remaining in-flight work and is returned; per
// spec.md §5 a partial mirror is never an acceptable result.
func fetchAll(ctx context.Context, fetcher ArchiveFetcher, entries []*resolve.ClosureEntry, concurrency int) (map[closureKey][]byte, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	toFetch := make([]*resolve.ClosureEntry, 0, len(entries))
	for _, e := range entries {
		if e.Download {
			toFetch = append(toFetch, e)
		}
	}

	sem := make(chan struct{}, concurrency)
	results := make(chan fetchResult, len(toFetch))

	var wg sync.WaitGroup
	for _, e := range toFetch {
		e := e
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			blob, err := fetcher.Fetch(ctx, e)
			results <- fetchResult{entry: e, blob: blob, err: err}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	blobs := make(map[closureKey][]byte, len(toFetch))
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to fetch archive for %s: %w", res.entry.Release, res.err)
				cancel()
			}
			continue
		}
		blobs[keyOfEntry(res.entry)] = res.blob
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return blobs, nil
}

type closureKey struct {
	name    string
	version string
}

func keyOfEntry(e *resolve.ClosureEntry) closureKey {
	return closureKey{name: string(e.Release.Name), version: e.Release.Version}
}
