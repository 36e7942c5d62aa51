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

// Description: Command orchestrates a full mirror build from an
// already loaded configuration: build the root set, run the resolver,
// and hand its closure to the mirror writer. This is a thin wrapper, in the
// teacher's own "Command owns the run, main just wires it up"
// pattern (previously internal/cmd/stencil/stencil.go's Command).

// Package cvmirror implements the cvmirror command: CLI-facing root
// set construction and the orchestration that drives the resolver and
// mirror writer from a loaded run configuration.
package cvmirror

import (
	"context"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/crates-vendor/cvmirror/internal/resolve"
	"github.com/crates-vendor/cvmirror/pkg/configuration"
	"github.com/crates-vendor/cvmirror/pkg/mirror"
	"github.com/crates-vendor/cvmirror/pkg/registry"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultDownloadURLTemplate is the archive download URL template used
// when a run configuration does not override it.
const DefaultDownloadURLTemplate = "https://static.crates.io/crates/{crate}/{crate}-{version}.crate"

// DefaultPopularityURL is the popularity endpoint used when a run
// configuration does not override it.
const DefaultPopularityURL = "https://crates.io/api/v1/crates?sort=downloads"

// Command owns a single mirror-build invocation.
type Command struct {
	// Config is the loaded run configuration.
	Config *configuration.Config

	// Log receives CLI-facing progress output.
	Log logrus.FieldLogger

	// FromFile and MostDownloaded select the root set, per spec.md §6;
	// exactly one should be set.
	FromFile       string
	MostDownloaded int

	// AssumeYes skips the confirmation prompt before removing a
	// previous, possibly-partial mirror directory.
	AssumeYes bool

	// store and fetchers are overridable for tests.
	store      registry.Store
	popularity PopularityFetcher
}

// NewCommand builds a Command from a loaded configuration and CLI
// flags.
func NewCommand(cfg *configuration.Config, log logrus.FieldLogger, fromFile string, mostDownloaded int, assumeYes bool) *Command {
	return &Command{
		Config:         cfg,
		Log:            log,
		FromFile:       fromFile,
		MostDownloaded: mostDownloaded,
		AssumeYes:      assumeYes,
	}
}

// Run executes a full mirror build: load or open the version store,
// build the root set, resolve the closure, and write the mirror.
func (c *Command) Run(ctx context.Context) error {
	store, err := c.versionStore()
	if err != nil {
		return errors.Wrap(err, "failed to open version store")
	}

	if c.popularity == nil {
		c.popularity = &HTTPPopularityFetcher{BaseURL: DefaultPopularityURL}
	}

	roots, err := BuildRootSet(ctx, store, c.popularity, c.FromFile, c.MostDownloaded)
	if err != nil {
		return err
	}

	// Read the previous build's lockfile before confirmOverwrite clears
	// the mirror directory, so Prune below has something to compare.
	prior, err := mirror.LoadLockfile(c.Config.MirrorDir)
	if err != nil {
		return errors.Wrap(err, "failed to load prior lockfile")
	}

	if err := c.confirmOverwrite(); err != nil {
		return err
	}

	c.Log.Infof("resolving closure for %d root(s)", len(roots))
	walker := &resolve.Walker{Store: store, Target: &c.Config.Target, Log: c.Log}
	closure, err := walker.Resolve(roots)
	if err != nil {
		return errors.Wrap(err, "failed to resolve dependency closure")
	}
	c.Log.Infof("resolved closure: %d release(s)", len(closure))

	if dropped := prior.Prune(closure); len(dropped) > 0 {
		c.Log.WithField("count", len(dropped)).Debug("releases no longer reachable since the last mirror build")
	}

	writer := &mirror.FileWriter{
		Dir:     c.Config.MirrorDir,
		Fetcher: &mirror.HTTPFetcher{URLTemplate: DefaultDownloadURLTemplate},
		Log:     hclog.Default().Named("mirror-writer"),
	}
	concurrency := c.Config.Concurrency
	if concurrency <= 0 {
		concurrency = mirror.DefaultConcurrency
	}
	if err := writer.Write(ctx, closure, concurrency); err != nil {
		return errors.Wrap(err, "failed to write mirror")
	}

	lock := mirror.NewLockfile(os.Getenv("CVMIRROR_BUILD_ID"), closure)
	if err := mirror.WriteLockfile(c.Config.MirrorDir, lock); err != nil {
		return errors.Wrap(err, "failed to write lockfile")
	}

	c.Log.Info("mirror build complete")
	return nil
}

// versionStore returns the Command's configured Store, cloning the
// configured index on first use.
func (c *Command) versionStore() (registry.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	store, err := registry.NewGitStore(c.Config.Index.URI, c.Config.Index.Ref)
	if err != nil {
		return nil, err
	}
	c.store = store
	return store, nil
}

// confirmOverwrite implements spec.md §5's "leave it in a clearly
// failed state that the next run's 'remove then recreate' step will
// clean up": before clobbering a directory that may hold a prior,
// incomplete mirror, ask for confirmation unless AssumeYes is set.
func (c *Command) confirmOverwrite() error {
	info, err := os.Stat(c.Config.MirrorDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	entries, err := os.ReadDir(c.Config.MirrorDir)
	if err != nil || len(entries) == 0 {
		return nil
	}

	if c.AssumeYes {
		return os.RemoveAll(c.Config.MirrorDir)
	}

	confirm := false
	prompt := &survey.Confirm{
		Message: "Mirror directory " + c.Config.MirrorDir + " is not empty (possibly a partial prior build). Remove it and continue?",
	}
	if err := survey.AskOne(prompt, &confirm); err != nil {
		return errors.Wrap(err, "failed to read confirmation")
	}
	if !confirm {
		return errors.New("aborted: mirror directory not empty")
	}

	return os.RemoveAll(c.Config.MirrorDir)
}
