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

// Description: the real ArchiveFetcher, fetching one release's
// archive blob over HTTP from an upstream download-URL template.

package mirror

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/crates-vendor/cvmirror/internal/resolve"
)

// HTTPFetcher fetches archive blobs from an upstream download-URL
// template, e.g. "https://static.crates.io/crates/{crate}/{crate}-{version}.crate".
type HTTPFetcher struct {
	// URLTemplate contains the literal tokens "{crate}" and
	// "{version}", substituted per release.
	URLTemplate string

	// Client is the HTTP client used for requests. Defaults to
	// http.DefaultClient when nil.
	Client *http.Client
}

var _ ArchiveFetcher = (*HTTPFetcher)(nil)

// Fetch implements ArchiveFetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, entry *resolve.ClosureEntry) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	url := strings.NewReplacer(
		"{crate}", string(entry.Release.Name),
		"{version}", entry.Release.Version,
	).Replace(f.URLTemplate)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build archive request for %s: %w", entry.Release, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch archive for %s: %w", entry.Release, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch archive for %s: unexpected status %s", entry.Release, resp.Status)
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive body for %s: %w", entry.Release, err)
	}
	return blob, nil
}
