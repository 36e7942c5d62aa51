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

// Description: defines the mirror writer's contract (C8) with the
// resolver core and the reference implementation of it.

// Package mirror implements the external collaborator that turns a
// fully materialized resolve.Closure into an on-disk mirror: an
// index/ directory in the exact layout crates.io-style tooling
// expects, committed to a local git repository, plus the downloaded
// archive blobs under registry/.
package mirror

import (
	"context"

	"github.com/crates-vendor/cvmirror/internal/resolve"
)

// ArchiveFetcher fetches the archive blob for one release. Real
// implementations hit a network transport; tests may stub this out.
type ArchiveFetcher interface {
	Fetch(ctx context.Context, entry *resolve.ClosureEntry) ([]byte, error)
}

// Writer is the contract spec.md §5/§6 describes for the mirror
// writer: given a fully materialized closure, produce a complete
// mirror directory or fail outright, never leaving partial state that
// looks like success.
type Writer interface {
	// Write lays out the index files and, for every download-flagged
	// entry, fetches and stores its archive blob. concurrency bounds how
	// many archive fetches run at once.
	Write(ctx context.Context, closure resolve.Closure, concurrency int) error
}
