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

// Description: the on-disk index layout described in spec.md §6.

package mirror

import (
	"path"
	"strings"
)

// indexFilePath derives the index-file path (relative to index/) for
// a lowercased package name, per spec.md §6: 1/2 letter names live
// directly under a directory named for their length, 3-letter names
// nest under their first letter, and longer names nest under their
// first two and next two characters.
func indexFilePath(name string) string {
	lower := strings.ToLower(name)
	switch len(lower) {
	case 1:
		return path.Join("1", lower)
	case 2:
		return path.Join("2", lower)
	case 3:
		return path.Join("3", lower[:1], lower)
	default:
		return path.Join(lower[:2], lower[2:4], lower)
	}
}

// archivePath derives the registry/ path (relative to the mirror
// root) for a release's downloaded archive blob.
func archivePath(name, version string) string {
	return path.Join("registry", name, version, "download")
}

// configJSON is the index/config.json contract: downstream tools
// resolve download URLs relative to "dl".
type configJSON struct {
	DL string `json:"dl"`
}
