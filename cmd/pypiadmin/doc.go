// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// pypiadmin administers a pypiserver registry directly, without going
// through the HTTP service: listing and inspecting releases,
// publishing, replacing and deleting them, checking that every
// catalogued artifact is present, and moving the catalog between
// machines as a CBOR snapshot.
//
// Every command reads the same YAML configuration as pypiserver, from
// --config or PYPISERVER_CONFIG. Running pypiadmin alongside a live
// server is safe: the catalog is SQLite in WAL mode and artifact
// writes are atomic renames.
package main
