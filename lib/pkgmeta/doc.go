// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pkgmeta defines the registry's data model and error taxonomy.
//
// A package is identified by its (name, version) pair. [Meta] carries
// that pair plus the location of the stored artifact; [Package] pairs a
// copy of the metadata with the artifact bytes; [Upload] is what a
// client hands the registry before a location has been assigned.
//
// Names follow the Python packaging grammar: one or more ASCII
// letters or digits, optionally separated by single runs of ".", "_"
// or "-", beginning and ending with a letter or digit. Comparison is
// by [NormalizeName] (PEP 503): lowercase, every run of separators
// collapsed to "-". The registry stores normalised names, so the
// catalog never holds two spellings of the same project.
//
// Every failure the storage layers and the registry return carries a
// [Kind] (see errors.go). HTTP and CLI layers switch on [KindOf]
// rather than on message text.
package pkgmeta
