// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/pypiserver/lib/pkgmeta"
)

// Exit statuses. Usage follows the sysexits convention so service
// managers can tell a bad configuration from a runtime failure.
const (
	ExitFailure = 1
	ExitUsage   = 64
)

// ErrHelp is returned by command parsers when the user asked for help.
// Fatal exits zero for it.
var ErrHelp = errors.New("help requested")

// ExitCode maps err to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, ErrHelp):
		return 0
	case pkgmeta.KindOf(err) == pkgmeta.KindUsage:
		return ExitUsage
	}
	return ExitFailure
}

// Report writes "error: err" to w unless err is nil or ErrHelp, and
// returns the exit status for err.
func Report(w io.Writer, err error) int {
	code := ExitCode(err)
	if code != 0 {
		fmt.Fprintf(w, "error: %v\n", err)
	}
	return code
}

// Fatal reports err on stderr and exits with ExitCode(err). Use it in
// main() for errors returned from run().
func Fatal(err error) {
	os.Exit(Report(os.Stderr, err))
}
