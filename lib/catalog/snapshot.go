// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bureau-foundation/pypiserver/lib/codec"
	"github.com/bureau-foundation/pypiserver/lib/pkgmeta"
)

// SnapshotFormatVersion is written into every snapshot. Import refuses
// snapshots from a newer format.
const SnapshotFormatVersion = 1

// Snapshot is the serialised form of a catalog: every row in creation
// order.
type Snapshot struct {
	FormatVersion int            `cbor:"format_version"`
	Packages      []pkgmeta.Meta `cbor:"packages"`
}

// ImportResult counts what Import did.
type ImportResult struct {
	Added   int
	Skipped int

	// Conflicts lists snapshot rows whose key already exists with a
	// different location. They are left untouched.
	Conflicts []pkgmeta.Meta
}

// Export writes every row of repo to w as a CBOR snapshot and returns
// the number of rows written.
func Export(ctx context.Context, repo Repository, w io.Writer) (int, error) {
	rows, err := repo.All(ctx)
	if err != nil {
		return 0, err
	}
	snapshot := Snapshot{FormatVersion: SnapshotFormatVersion, Packages: rows}
	if err := codec.NewEncoder(w).Encode(snapshot); err != nil {
		return 0, pkgmeta.Wrap(pkgmeta.KindIOFailure, "catalog export", err)
	}
	return len(rows), nil
}

// Import reads a snapshot from r and adds its rows to repo in order.
// Names are stored in normalised form, so rows spelled "Foo_Bar" and
// "foo-bar" land on the same key. A row that already exists with the
// same location is skipped. A row
// whose key exists with a different location is recorded in
// Conflicts, and Import then returns a Conflict error alongside the
// result once every other row has been added.
func Import(ctx context.Context, repo Repository, r io.Reader) (ImportResult, error) {
	var snapshot Snapshot
	if err := codec.NewDecoder(r).Decode(&snapshot); err != nil {
		return ImportResult{}, pkgmeta.Invalid("catalog import", "decoding snapshot: %v", err)
	}
	if snapshot.FormatVersion < 1 || snapshot.FormatVersion > SnapshotFormatVersion {
		return ImportResult{}, pkgmeta.Invalid("catalog import",
			"unsupported snapshot format %d (this build reads up to %d)",
			snapshot.FormatVersion, SnapshotFormatVersion)
	}

	var result ImportResult
	for _, row := range snapshot.Packages {
		if err := pkgmeta.ValidateName(row.Name); err != nil {
			return result, err
		}
		row.Name = pkgmeta.NormalizeName(row.Name)
		err := repo.Add(ctx, row)
		if err == nil {
			result.Added++
			continue
		}
		if !errors.Is(err, pkgmeta.ErrConflict) {
			return result, err
		}

		existing, found, getErr := repo.Get(ctx, row.Name, row.Version)
		if getErr != nil {
			return result, getErr
		}
		if found && existing.Location == row.Location {
			result.Skipped++
			continue
		}
		result.Conflicts = append(result.Conflicts, row)
	}

	if len(result.Conflicts) > 0 {
		first := result.Conflicts[0]
		return result, pkgmeta.Conflict("catalog import",
			"%d rows conflict with the existing catalog (first: %s@%s)",
			len(result.Conflicts), first.Name, first.Version)
	}
	return result, nil
}

// String summarises the result for operator output.
func (r ImportResult) String() string {
	return fmt.Sprintf("added %d, skipped %d, conflicts %d", r.Added, r.Skipped, len(r.Conflicts))
}
