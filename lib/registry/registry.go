// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/pypiserver/lib/artifactstore"
	"github.com/bureau-foundation/pypiserver/lib/catalog"
	"github.com/bureau-foundation/pypiserver/lib/clock"
	"github.com/bureau-foundation/pypiserver/lib/pkgmeta"
)

// Store is the artifact storage the registry writes through.
// *artifactstore.FS implements it.
type Store interface {
	Resolve(meta pkgmeta.Meta) (artifactstore.Address, error)
	Save(address artifactstore.Address, content []byte) error
	Load(address artifactstore.Address) ([]byte, error)
	Delete(address artifactstore.Address) error
}

// Config holds a Registry's collaborators. Catalog and Store are
// required.
type Config struct {
	Catalog catalog.Repository
	Store   Store

	// Logger defaults to a discarding logger.
	Logger *slog.Logger

	// Clock times operations for Metrics. Defaults to clock.Real().
	Clock clock.Clock

	// Metrics may be nil.
	Metrics *Metrics

	// NewID returns the unique path segment of each new location.
	// Defaults to random UUIDs.
	NewID func() string
}

// Registry publishes, replaces, deletes and fetches packages. Safe for
// concurrent use.
type Registry struct {
	catalog catalog.Repository
	store   Store
	logger  *slog.Logger
	clock   clock.Clock
	metrics *Metrics
	newID   func() string
	locks   *keyLocks
}

// New returns a Registry over cfg.Catalog and cfg.Store.
func New(cfg Config) (*Registry, error) {
	if cfg.Catalog == nil {
		return nil, pkgmeta.Usage("registry", "catalog is required")
	}
	if cfg.Store == nil {
		return nil, pkgmeta.Usage("registry", "artifact store is required")
	}
	registry := &Registry{
		catalog: cfg.Catalog,
		store:   cfg.Store,
		logger:  cfg.Logger,
		clock:   cfg.Clock,
		metrics: cfg.Metrics,
		newID:   cfg.NewID,
		locks:   newKeyLocks(),
	}
	if registry.logger == nil {
		registry.logger = slog.New(slog.DiscardHandler)
	}
	if registry.clock == nil {
		registry.clock = clock.Real()
	}
	if registry.newID == nil {
		registry.newID = uuid.NewString
	}
	return registry, nil
}

// observe is deferred by every operation with the start time captured
// at the defer statement.
func (r *Registry) observe(operation string, start time.Time, err *error) {
	r.metrics.observe(operation, clock.Since(r.clock, start), *err)
}

func (r *Registry) assign(upload pkgmeta.Upload) pkgmeta.Meta {
	return pkgmeta.Meta{
		Name:     upload.Name,
		Version:  upload.Version,
		Location: artifactstore.Location(upload.Name, upload.Version, r.newID(), upload.Filename),
	}
}

// Publish stores a new release. Conflict if (name, version) is
// already published; the upload's bytes are then removed again.
func (r *Registry) Publish(ctx context.Context, upload pkgmeta.Upload) (meta pkgmeta.Meta, err error) {
	defer r.observe("publish", r.clock.Now(), &err)

	upload, err = upload.Validate()
	if err != nil {
		return pkgmeta.Meta{}, err
	}
	meta = r.assign(upload)

	unlock, err := r.locks.lock(ctx, meta.Key())
	if err != nil {
		return pkgmeta.Meta{}, err
	}
	defer unlock()

	address, err := r.store.Resolve(meta)
	if err != nil {
		return pkgmeta.Meta{}, err
	}
	if err := r.store.Save(address, upload.Content); err != nil {
		return pkgmeta.Meta{}, err
	}
	if err := r.catalog.Add(ctx, meta); err != nil {
		return pkgmeta.Meta{}, r.compensate(meta, address, err)
	}

	r.logger.Info("package published",
		"name", meta.Name,
		"version", meta.Version,
		"location", meta.Location,
		"size", len(upload.Content),
	)
	return meta, nil
}

// Replace swaps the bytes of an existing release. The new artifact is
// saved under a fresh location and the catalog row is pointed at it;
// only then is the previous artifact removed. NotFound if the release
// does not exist.
func (r *Registry) Replace(ctx context.Context, upload pkgmeta.Upload) (meta pkgmeta.Meta, err error) {
	defer r.observe("replace", r.clock.Now(), &err)

	upload, err = upload.Validate()
	if err != nil {
		return pkgmeta.Meta{}, err
	}
	meta = r.assign(upload)

	unlock, err := r.locks.lock(ctx, meta.Key())
	if err != nil {
		return pkgmeta.Meta{}, err
	}
	defer unlock()

	previous, found, err := r.catalog.Get(ctx, meta.Name, meta.Version)
	if err != nil {
		return pkgmeta.Meta{}, err
	}
	if !found {
		return pkgmeta.Meta{}, pkgmeta.NotFound("registry replace", "%s@%s is not published", meta.Name, meta.Version)
	}

	address, err := r.store.Resolve(meta)
	if err != nil {
		return pkgmeta.Meta{}, err
	}
	if err := r.store.Save(address, upload.Content); err != nil {
		return pkgmeta.Meta{}, err
	}
	if err := r.catalog.Replace(ctx, previous, meta); err != nil {
		return pkgmeta.Meta{}, r.compensate(meta, address, err)
	}

	// The new row is committed. Failing to remove the old bytes only
	// leaks disk space.
	r.removeSuperseded(previous)

	r.logger.Info("package replaced",
		"name", meta.Name,
		"version", meta.Version,
		"location", meta.Location,
		"previous_location", previous.Location,
		"size", len(upload.Content),
	)
	return meta, nil
}

func (r *Registry) removeSuperseded(previous pkgmeta.Meta) {
	address, err := r.store.Resolve(previous)
	if err == nil {
		err = r.store.Delete(address)
	}
	switch {
	case err == nil:
	case errors.Is(err, pkgmeta.ErrNotFound):
		r.logger.Warn("superseded artifact already missing",
			"name", previous.Name, "version", previous.Version, "location", previous.Location)
	default:
		r.logger.Warn("superseded artifact not removed",
			"name", previous.Name, "version", previous.Version, "location", previous.Location, "error", err)
	}
}

// compensate removes an artifact whose catalog write failed and
// returns the error to report: primary, joined with the cleanup error
// if the artifact could not be removed.
func (r *Registry) compensate(meta pkgmeta.Meta, address artifactstore.Address, primary error) error {
	cleanupErr := r.store.Delete(address)
	if cleanupErr == nil {
		r.metrics.compensated(true)
		r.logger.Debug("removed artifact after failed catalog write",
			"name", meta.Name, "version", meta.Version, "address", address, "cause", primary)
		return primary
	}

	r.metrics.compensated(false)
	r.logger.Error("artifact orphaned after failed catalog write",
		"name", meta.Name,
		"version", meta.Version,
		"address", address,
		"cause", primary,
		"error", cleanupErr,
	)
	return errors.Join(primary, fmt.Errorf("removing artifact %s: %w", address, cleanupErr))
}

// Delete unpublishes meta, which must match the catalog row exactly
// (name, version and location). A missing artifact is logged and
// otherwise ignored; an artifact that cannot be removed yields
// PartialDelete.
func (r *Registry) Delete(ctx context.Context, meta pkgmeta.Meta) (err error) {
	defer r.observe("delete", r.clock.Now(), &err)

	meta.Name = pkgmeta.NormalizeName(meta.Name)
	unlock, err := r.locks.lock(ctx, meta.Key())
	if err != nil {
		return err
	}
	defer unlock()

	return r.unpublish(ctx, meta)
}

// DeleteVersion unpublishes whatever release is catalogued for (name,
// version). The row is read under the key lock, so a Replace that
// moved the location beforehand cannot make the delete miss. found is
// false when nothing is published under the key.
func (r *Registry) DeleteVersion(ctx context.Context, name, version string) (meta pkgmeta.Meta, found bool, err error) {
	defer r.observe("delete", r.clock.Now(), &err)

	if err := pkgmeta.ValidateName(name); err != nil {
		return pkgmeta.Meta{}, false, err
	}
	key := pkgmeta.Meta{Name: pkgmeta.NormalizeName(name), Version: version}
	unlock, err := r.locks.lock(ctx, key.Key())
	if err != nil {
		return pkgmeta.Meta{}, false, err
	}
	defer unlock()

	meta, found, err = r.catalog.Get(ctx, key.Name, version)
	if err != nil || !found {
		return pkgmeta.Meta{}, false, err
	}
	return meta, true, r.unpublish(ctx, meta)
}

// unpublish removes the row and then the artifact. The caller holds
// the key lock.
func (r *Registry) unpublish(ctx context.Context, meta pkgmeta.Meta) error {
	if err := r.catalog.Delete(ctx, meta); err != nil {
		return err
	}

	address, err := r.store.Resolve(meta)
	if err == nil {
		err = r.store.Delete(address)
	}
	switch {
	case err == nil:
	case errors.Is(err, pkgmeta.ErrNotFound):
		r.logger.Warn("deleted package had no artifact",
			"name", meta.Name, "version", meta.Version, "location", meta.Location)
	default:
		r.logger.Error("artifact orphaned by delete",
			"name", meta.Name, "version", meta.Version, "location", meta.Location, "error", err)
		return pkgmeta.Wrap(pkgmeta.KindPartialDelete, "registry delete",
			fmt.Errorf("%s unpublished but artifact %s remains: %w", meta.Key(), meta.Location, err))
	}

	r.logger.Info("package deleted", "name", meta.Name, "version", meta.Version)
	return nil
}

// Get returns a release and its bytes. A catalog row whose artifact is
// missing is Inconsistent.
func (r *Registry) Get(ctx context.Context, name, version string) (pkg pkgmeta.Package, found bool, err error) {
	defer r.observe("get", r.clock.Now(), &err)

	meta, found, err := r.Lookup(ctx, name, version)
	if err != nil || !found {
		return pkgmeta.Package{}, false, err
	}

	// A concurrent Replace may remove the artifact between reading the
	// row and loading the bytes. Re-read the row once before calling
	// it inconsistent.
	for attempt := 0; ; attempt++ {
		address, err := r.store.Resolve(meta)
		if err != nil {
			r.logger.Error("catalog row with unresolvable location",
				"name", meta.Name, "version", meta.Version, "location", meta.Location, "error", err)
			return pkgmeta.Package{}, false, pkgmeta.Wrap(pkgmeta.KindInconsistent, "registry get",
				fmt.Errorf("%s is catalogued at %s, which the store cannot resolve: %w", meta.Key(), meta.Location, err))
		}
		content, err := r.store.Load(address)
		if err == nil {
			return pkgmeta.Package{Meta: meta, Content: content}, true, nil
		}
		if !errors.Is(err, pkgmeta.ErrNotFound) {
			return pkgmeta.Package{}, false, err
		}

		current, stillFound, lookupErr := r.catalog.Get(ctx, meta.Name, meta.Version)
		switch {
		case lookupErr != nil:
			return pkgmeta.Package{}, false, lookupErr
		case !stillFound:
			return pkgmeta.Package{}, false, nil
		case current.Location == meta.Location || attempt > 0:
			r.logger.Error("catalog row without artifact",
				"name", meta.Name, "version", meta.Version, "location", meta.Location)
			return pkgmeta.Package{}, false, pkgmeta.Wrap(pkgmeta.KindInconsistent, "registry get",
				fmt.Errorf("%s is catalogued at %s but the artifact is missing: %w", meta.Key(), meta.Location, err))
		}
		meta = current
	}
}

// Lookup returns the catalog row for (name, version) without touching
// the artifact.
func (r *Registry) Lookup(ctx context.Context, name, version string) (pkgmeta.Meta, bool, error) {
	if err := pkgmeta.ValidateName(name); err != nil {
		return pkgmeta.Meta{}, false, err
	}
	return r.catalog.Get(ctx, pkgmeta.NormalizeName(name), version)
}

// Versions returns every release of name in publication order.
func (r *Registry) Versions(ctx context.Context, name string) ([]pkgmeta.Meta, error) {
	if err := pkgmeta.ValidateName(name); err != nil {
		return nil, err
	}
	return r.catalog.WithName(ctx, pkgmeta.NormalizeName(name))
}

// All returns every release in publication order.
func (r *Registry) All(ctx context.Context) ([]pkgmeta.Meta, error) {
	return r.catalog.All(ctx)
}
