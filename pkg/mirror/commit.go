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

// Description: initializes the index/ directory as a git repository
// and commits every file under it, per spec.md §6 ("The index
// directory is additionally initialized as a version-control
// repository with one commit whose tree contains every file under
// index/"). Grounded on the go-git/go-git usage already present in
// internal/modules/module.go, applied here to writing instead of
// reading.

package mirror

import (
	"fmt"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// commitSignature identifies the automated committer for every mirror
// build; there is no human author for a generated index commit.
var commitSignature = object.Signature{
	Name:  "cvmirror",
	Email: "cvmirror@localhost",
}

// commitIndex initializes indexDir as a fresh git repository (failing
// if one already exists there from a prior, incomplete run) and
// commits every file beneath it.
func commitIndex(indexDir string) error {
	repo, err := gogit.PlainInit(indexDir, false)
	if err != nil {
		return fmt.Errorf("failed to init index repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to open index worktree: %w", err)
	}

	if err := wt.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return fmt.Errorf("failed to stage index files: %w", err)
	}

	now := commitSignature
	now.When = time.Now()

	if _, err := wt.Commit("build mirror index", &gogit.CommitOptions{
		Author:    &now,
		Committer: &now,
	}); err != nil {
		return fmt.Errorf("failed to commit index: %w", err)
	}

	return nil
}
