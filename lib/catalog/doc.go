// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package catalog is the registry's metadata repository: the durable
// list of published (name, version, location) rows.
//
// [Repository] is implemented by [SQLite], the production store, and
// [Memory], which tests and ephemeral servers use. Both give the same
// guarantees:
//
//   - At most one row per (name, version). A second Add of the same
//     key fails with [pkgmeta.KindConflict]; uniqueness comes from a
//     single constrained insert, never a read followed by a write.
//   - WithName and All return rows in creation order. Replace updates
//     a row in place, so a replaced release keeps its position.
//   - Get reports absence as ok == false, not as an error.
//
// Names are stored exactly as given. The registry normalises them
// before they get here.
//
// [Export] and [Import] move a catalog between stores as a CBOR
// snapshot (see lib/codec).
package catalog
