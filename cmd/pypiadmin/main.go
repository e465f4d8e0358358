// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/pypiserver/lib/config"
	"github.com/bureau-foundation/pypiserver/lib/logging"
	"github.com/bureau-foundation/pypiserver/lib/pkgmeta"
	"github.com/bureau-foundation/pypiserver/lib/process"
	"github.com/bureau-foundation/pypiserver/lib/registry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newApp(os.Stdout, os.Stderr).root().Execute(ctx, os.Args[1:])
	stop()
	if err != nil {
		process.Fatal(err)
	}
}

// app carries what every command shares: output streams and the
// --config value.
type app struct {
	stdout     io.Writer
	stderr     io.Writer
	configPath string
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr}
}

// flagSet returns a flag set carrying the global --config flag.
func (a *app) flagSet(name string) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.StringVar(&a.configPath, "config", a.configPath,
		"path to the YAML configuration (default $"+config.EnvironmentVariable+")")
	return flagSet
}

// open loads the configuration and opens the local registry. The
// caller closes it.
func (a *app) open(ctx context.Context) (*registry.Local, error) {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFile(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, pkgmeta.Wrap(pkgmeta.KindUsage, "loading configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, pkgmeta.Wrap(pkgmeta.KindUsage, "invalid configuration", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, pkgmeta.Wrap(pkgmeta.KindIOFailure, "preparing catalog directory", err)
	}

	// Commands report on stdout; the log only carries warnings such
	// as orphaned artifacts.
	logger, err := logging.New(a.stderr, logging.Options{Level: "warn", Format: cfg.Log.Format})
	if err != nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return registry.OpenLocal(ctx, registry.LocalConfig{
		CatalogPath:     cfg.Catalog.Path,
		CatalogPoolSize: cfg.Catalog.PoolSize,
		ArtifactRoot:    cfg.Artifacts.Root,
		Logger:          logger,
	})
}
