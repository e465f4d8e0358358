// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry keeps the catalog and the artifact store coherent.
//
// Every write goes through [Registry]: the artifact is saved first and
// the catalog row is written second, so a reader that finds a row can
// always find its bytes. When the catalog write fails, the registry
// deletes the artifact it just saved (compensation) and returns the
// catalog error; if that cleanup also fails, both errors are returned
// joined, with the catalog error first so [pkgmeta.KindOf] reports it.
//
// Each publish or replace attempt writes to a fresh location,
// fs://<name>/<version>/<id>/<filename>, so compensation can never
// remove bytes that another writer committed. Writes to the same
// (name, version) are additionally serialised by a per-key lock.
//
// Delete removes the catalog row before the artifact. If the artifact
// then cannot be removed the row is already gone and the caller gets
// [pkgmeta.KindPartialDelete]: the release is unpublished but its
// bytes are orphaned.
//
// Names are normalised (PEP 503) on the way in, so "Foo_Bar",
// "foo-bar" and "FOO.bar" are the same project.
package registry
