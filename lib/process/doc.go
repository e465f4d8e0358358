// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helpers shared by the
// pypiserver binaries: reporting an error that happened before (or
// instead of) the structured logger, and choosing the exit status for
// it.
package process
