// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so tests never block forever on a channel. They are the
// only place tests use real wall-clock timeouts.
//
// [UniqueID] returns process-unique identifiers for test data that
// must not collide across parallel tests.
//
// [WriteFile] creates a file with the given content under a test's
// temporary directory.
//
// Helpers call t.Fatalf on failure; setup failures are not
// recoverable.
package testutil
