// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the pypiserver
// binaries.
//
// [GitCommit], [GitDirty], [BuildTime] and [Version] are injected at
// link time:
//
//	go build -ldflags "-X github.com/bureau-foundation/pypiserver/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Untouched, they read "unknown" and "0.1.0-dev".
package version
