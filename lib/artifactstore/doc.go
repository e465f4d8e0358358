// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package artifactstore keeps package bytes on the local filesystem.
//
// The store is rooted at a directory that must already exist and be
// writeable by the server; [NewFS] checks this and fails with
// [pkgmeta.KindUsage] otherwise. Artifacts are addressed by catalog
// locations of the form "fs://<relative/path>" ("file://" is accepted
// as a synonym). [FS.Resolve] maps a location to an [Address], an
// absolute path under the root, and refuses locations that would
// escape it.
//
// # Durability
//
// [FS.Save] never writes the destination in place. Content goes to a
// temporary file in <root>/.scratch (same filesystem, so the rename is
// atomic), is fsynced and closed, and is then renamed over the
// destination, after which the parent directory is fsynced so the new
// entry survives power loss. A crash before the rename leaves the
// destination untouched and at worst an orphaned scratch file, which
// the next [NewFS] removes once it is older than [StaleScratchAge].
//
// Readers racing a Save to the same address see either the old file
// or the new one, never a mixture.
package artifactstore
