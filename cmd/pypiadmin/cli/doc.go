// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command-tree framework behind pypiadmin.
//
// A [Command] either dispatches to named subcommands or parses its
// pflag set and calls Run with the remaining positional arguments.
// Unknown commands and flags are reported as usage errors (with a
// spelling suggestion when one is close), so process.Fatal exits with
// the usage status for them.
package cli
