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

// Package main implements the cvmirror CLI. This is the entrypoint
// for the CLI.
package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/crates-vendor/cvmirror/internal/cmd/cvmirror"
	"github.com/crates-vendor/cvmirror/internal/version"
	"github.com/crates-vendor/cvmirror/pkg/configuration"
	"github.com/pkg/errors"
)

// main is the entrypoint for the cvmirror CLI.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := logrus.New()

	app := cli.App{
		Version:     version.Version,
		Name:        "cvmirror",
		Usage:       "cvmirror [options] <mirror-directory>",
		Description: "builds an offline, crates.io-index-compatible mirror from a resolved dependency closure",
		ArgsUsage:   "<mirror-directory>",
		Action: func(c *cli.Context) error {
			log.Infof("cvmirror %s", c.App.Version)

			if c.Bool("debug") {
				log.SetLevel(logrus.DebugLevel)
				log.Debug("debug logging enabled")
			}

			var cfg *configuration.Config
			var err error
			if path := c.String("config"); path != "" {
				cfg, err = configuration.Load(path)
			} else {
				cfg, err = configuration.LoadDefault()
			}
			if err != nil {
				return errors.Wrap(err, "failed to load run configuration")
			}
			if dir := c.Args().First(); dir != "" {
				cfg.MirrorDir = dir
			}

			fromFile := c.String("from-file")
			mostDownloaded := c.Int("most-downloaded")
			if fromFile == "" && mostDownloaded == 0 {
				return cvmirror.ErrNoRootSelection
			}

			cmd := cvmirror.NewCommand(cfg, log, fromFile, mostDownloaded, c.Bool("yes"))
			return errors.Wrap(cmd.Run(ctx), "build mirror")
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to the cvmirror run configuration. Defaults to cvmirror.yaml/cvmirror.yml in the current directory.",
			},
			&cli.StringFlag{
				Name:  "from-file",
				Usage: "Newline-delimited file of package names to use as the root set",
			},
			&cli.IntFlag{
				Name:  "most-downloaded",
				Usage: "Use the N most-downloaded packages as the root set",
			},
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "Remove a pre-existing, non-empty mirror directory without prompting",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enables debug logging for resolution and mirror writing",
				Aliases: []string{"d"},
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		//nolint:gocritic // Why: We're OK not canceling context in this case.
		log.WithError(err).Error("failed to run")
		if errors.Is(err, cvmirror.ErrNoRootSelection) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}
