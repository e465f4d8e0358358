// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"log/slog"

	"github.com/bureau-foundation/pypiserver/lib/artifactstore"
	"github.com/bureau-foundation/pypiserver/lib/catalog"
)

// LocalConfig describes a registry backed by an SQLite catalog and a
// filesystem artifact store on this machine.
type LocalConfig struct {
	// CatalogPath is the SQLite database file.
	CatalogPath string

	// CatalogPoolSize is the catalog connection pool size. Zero picks
	// the default.
	CatalogPoolSize int

	// ArtifactRoot is an existing, writeable directory.
	ArtifactRoot string

	Logger  *slog.Logger
	Metrics *Metrics
}

// Local is a Registry together with the stores it owns.
type Local struct {
	*Registry
	Catalog *catalog.SQLite
	Store   *artifactstore.FS
}

// OpenLocal opens the artifact store and the catalog and wires them
// into a Registry. The artifact root is checked first so a bad root
// is reported as Usage before any database file is created.
func OpenLocal(ctx context.Context, cfg LocalConfig) (*Local, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store, err := artifactstore.NewFS(cfg.ArtifactRoot, logger.With("component", "artifactstore"))
	if err != nil {
		return nil, err
	}

	repository, err := catalog.Open(ctx, catalog.Config{
		Path:     cfg.CatalogPath,
		PoolSize: cfg.CatalogPoolSize,
		Logger:   logger.With("component", "catalog"),
	})
	if err != nil {
		return nil, err
	}

	registry, err := New(Config{
		Catalog: repository,
		Store:   store,
		Logger:  logger.With("component", "registry"),
		Metrics: cfg.Metrics,
	})
	if err != nil {
		repository.Close()
		return nil, err
	}

	logger.Info("registry opened",
		"catalog", cfg.CatalogPath,
		"artifact_root", store.Root(),
	)
	return &Local{Registry: registry, Catalog: repository, Store: store}, nil
}

// Close closes the catalog.
func (l *Local) Close() error {
	return l.Catalog.Close()
}
