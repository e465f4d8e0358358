// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/pypiserver/lib/config"
	"github.com/bureau-foundation/pypiserver/lib/logging"
	"github.com/bureau-foundation/pypiserver/lib/pkgmeta"
	"github.com/bureau-foundation/pypiserver/lib/process"
	"github.com/bureau-foundation/pypiserver/lib/registry"
	"github.com/bureau-foundation/pypiserver/lib/service"
	"github.com/bureau-foundation/pypiserver/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		process.Fatal(err)
	}
}

func run(args []string, stdout io.Writer) error {
	flags := pflag.NewFlagSet("pypiserver", pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	var (
		configPath  string
		showVersion bool
	)
	flags.StringVar(&configPath, "config", "", "path to the YAML configuration (default $"+config.EnvironmentVariable+")")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(stdout, "Usage:\n  pypiserver [flags]\n\nFlags:\n%s", flags.FlagUsages())
			return nil
		}
		return pkgmeta.Usage("pypiserver", "%v", err)
	}

	if showVersion {
		fmt.Fprintf(stdout, "pypiserver %s\n", version.Info())
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(os.Stderr, logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return pkgmeta.Usage("pypiserver", "%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	local, err := registry.OpenLocal(ctx, registry.LocalConfig{
		CatalogPath:     cfg.Catalog.Path,
		CatalogPoolSize: cfg.Catalog.PoolSize,
		ArtifactRoot:    cfg.Artifacts.Root,
		Logger:          logger,
		Metrics:         registry.NewMetrics(metricsRegistry),
	})
	if err != nil {
		return err
	}
	defer local.Close()

	handlerConfig := HandlerConfig{
		Registry:       local.Registry,
		PackagesPrefix: cfg.HTTP.PackagesPrefix,
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
		Logger:         logger.With("component", "http"),
	}
	if cfg.HTTP.Metrics {
		handlerConfig.Gatherer = metricsRegistry
	}
	handler, err := NewHandler(handlerConfig)
	if err != nil {
		return err
	}

	server, err := service.NewHTTPServer(service.HTTPServerConfig{
		Address:         cfg.HTTP.Address,
		Handler:         handler,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	logger.Info("pypiserver starting",
		"version", version.Info(),
		"environment", string(cfg.Environment),
		"address", cfg.HTTP.Address,
	)
	return server.Serve(ctx)
}

// loadConfig reads path, or PYPISERVER_CONFIG when path is empty, and
// prepares the catalog directory. A bad configuration is a Usage error.
func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
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
	return cfg, nil
}
