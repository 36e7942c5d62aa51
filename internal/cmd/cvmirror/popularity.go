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

// Description: implements the "--most-downloaded" root-selection
// form (spec.md §6): a thin paginated HTTP client over an upstream
// popularity endpoint, 50 results per page. This is CLI plumbing, not
// core; it only ever produces a list of package names.

package cvmirror

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

const popularityPageSize = 50

// HTTPPopularityFetcher implements PopularityFetcher against an
// upstream crates.io-style popularity endpoint that paginates with
// "?page=N&per_page=50" query parameters and returns a JSON body of
// {"crates": [{"name": "..."}]}.
type HTTPPopularityFetcher struct {
	// BaseURL is the popularity endpoint, e.g.
	// "https://crates.io/api/v1/crates?sort=downloads".
	BaseURL string

	// Client is the HTTP client used for requests. Defaults to
	// http.DefaultClient when nil.
	Client *http.Client
}

type popularityPage struct {
	Crates []struct {
		Name string `json:"name"`
	} `json:"crates"`
}

// TopDownloaded implements PopularityFetcher.
func (f *HTTPPopularityFetcher) TopDownloaded(ctx context.Context, n int) ([]string, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	sep := "?"
	if strings.Contains(f.BaseURL, "?") {
		sep = "&"
	}

	var names []string
	for page := 1; len(names) < n; page++ {
		url := fmt.Sprintf("%s%spage=%d&per_page=%d", f.BaseURL, sep, page, popularityPageSize)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to build popularity request for page %d", page)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fetch popularity page %d", page)
		}

		var body popularityPage
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decode popularity page %d", page)
		}

		if len(body.Crates) == 0 {
			break
		}
		for _, c := range body.Crates {
			names = append(names, c.Name)
			if len(names) == n {
				break
			}
		}
	}

	return names, nil
}
