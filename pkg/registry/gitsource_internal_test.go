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

// Description: exercises GitStore's record parsing against an
// in-memory filesystem, sidestepping NewGitStore's real clone. Lives
// in package registry (not registry_test) since GitStore's fs field
// is unexported.

package registry

import (
	"testing"

	"github.com/crates-vendor/cvmirror/internal/testing/testmemfs"
	"gotest.tools/v3/assert"
)

const serdeIndexRecord = `{"name":"serde","vers":"1.0.0","yanked":false,"deps":[{"name":"serde_derive","req":"^1.0","kind":"normal","optional":true,"default_features":true}],"features":{"derive":["dep:serde_derive"]}}
{"name":"serde","vers":"1.0.1","yanked":true,"deps":[],"features":{}}
`

func TestGitStoreGetParsesIndexRecords(t *testing.T) {
	fs, err := testmemfs.WithFiles(map[string]string{
		"se/rd/serde": serdeIndexRecord,
	})
	assert.NilError(t, err)

	s := &GitStore{fs: fs, cache: map[string]*PackageRecord{}}

	rec, err := s.Get("serde")
	assert.NilError(t, err)
	assert.Equal(t, len(rec.Releases), 2)
	assert.Equal(t, rec.Releases[0].Version, "1.0.0")
	assert.Equal(t, rec.Releases[0].Dependencies[0].PackageName, Name("serde_derive"))
	assert.Equal(t, rec.Releases[0].Dependencies[0].Optional, true)
	assert.Equal(t, rec.Releases[1].Withdrawn, true)
}

func TestGitStoreGetIsMemoized(t *testing.T) {
	fs, err := testmemfs.WithFiles(map[string]string{
		"se/rd/serde": serdeIndexRecord,
	})
	assert.NilError(t, err)

	s := &GitStore{fs: fs, cache: map[string]*PackageRecord{}}

	first, err := s.Get("serde")
	assert.NilError(t, err)
	second, err := s.Get("SERDE")
	assert.NilError(t, err)
	assert.Assert(t, first == second)
}

func TestGitStoreGetNotFound(t *testing.T) {
	fs, err := testmemfs.WithFiles(map[string]string{})
	assert.NilError(t, err)

	s := &GitStore{fs: fs, cache: map[string]*PackageRecord{}}

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
