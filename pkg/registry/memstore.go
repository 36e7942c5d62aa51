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

// Description: an in-memory Store for tests, grounded on the builder
// style of internal/modules/modulestest.

package registry

import "strings"

// MemStore is an in-memory, case-insensitive Store, intended for unit
// and end-to-end resolver tests. Use NewMemStore and Add to build one
// up, then pass it anywhere a Store is expected.
type MemStore struct {
	records map[string]*PackageRecord
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{records: map[string]*PackageRecord{}}
}

// Add registers releases under name, appending to any releases already
// present. Releases are stored in the order Add is called; callers
// that care about "newest first" ordering (spec.md §4.5) should add
// them oldest first, matching how a real index file is read top to
// bottom.
func (s *MemStore) Add(name Name, releases ...*Release) *MemStore {
	key := strings.ToLower(string(name))
	rec, ok := s.records[key]
	if !ok {
		rec = &PackageRecord{Name: name}
		s.records[key] = rec
	}
	rec.Releases = append(rec.Releases, releases...)
	return s
}

// Get implements Store.
func (s *MemStore) Get(name Name) (*PackageRecord, error) {
	rec, ok := s.records[strings.ToLower(string(name))]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}
