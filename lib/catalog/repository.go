// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"

	"github.com/bureau-foundation/pypiserver/lib/pkgmeta"
)

// Repository is a persistent catalog of package metadata.
type Repository interface {
	// Add inserts meta. Conflict if a row with the same name and
	// version exists.
	Add(ctx context.Context, meta pkgmeta.Meta) error

	// Delete removes the row matching meta's name, version and
	// location exactly. NotFound if there is no such row.
	Delete(ctx context.Context, meta pkgmeta.Meta) error

	// Get returns the row for (name, version).
	Get(ctx context.Context, name, version string) (pkgmeta.Meta, bool, error)

	// WithName returns every version of name in creation order.
	WithName(ctx context.Context, name string) ([]pkgmeta.Meta, error)

	// All returns every row in creation order.
	All(ctx context.Context) ([]pkgmeta.Meta, error)

	// Replace moves the row for old's (name, version) from
	// old.Location to updated.Location. NotFound if the row is gone,
	// Conflict if its location is no longer old.Location.
	Replace(ctx context.Context, old, updated pkgmeta.Meta) error
}

func validate(op string, meta pkgmeta.Meta) error {
	if err := pkgmeta.ValidateName(meta.Name); err != nil {
		return err
	}
	if err := pkgmeta.ValidateVersion(meta.Version); err != nil {
		return err
	}
	if meta.Location == "" {
		return pkgmeta.Invalid(op, "%s: location is empty", meta.Key())
	}
	return nil
}

func validateReplace(old, updated pkgmeta.Meta) error {
	if err := validate("catalog replace", updated); err != nil {
		return err
	}
	if old.Name != updated.Name || old.Version != updated.Version {
		return pkgmeta.Invalid("catalog replace", "cannot replace %s@%s with %s@%s",
			old.Name, old.Version, updated.Name, updated.Version)
	}
	return nil
}
