// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pkgmeta

import (
	"errors"
	"fmt"
)

// Kind classifies registry failures so callers can decide what to do
// (map to a status code, fail startup, alert) without parsing text.
type Kind string

const (
	// KindInvalid: the caller supplied a malformed name, version,
	// filename or location. Fix the input; retrying will not help.
	KindInvalid Kind = "invalid"

	// KindConflict: the (name, version) already exists, or the row
	// changed underneath an explicit replace.
	KindConflict Kind = "conflict"

	// KindNotFound: no matching catalog row or artifact.
	KindNotFound Kind = "not_found"

	// KindUsage: invalid configuration or a failed startup
	// precondition (artifact root missing, not a directory, not
	// writeable).
	KindUsage Kind = "usage"

	// KindIOFailure: the underlying disk or database operation failed.
	KindIOFailure Kind = "io_failure"

	// KindInconsistent: the catalog and the artifact store disagree,
	// for example a row whose artifact is missing.
	KindInconsistent Kind = "inconsistent"

	// KindPartialDelete: the catalog row was removed but the artifact
	// could not be. The bytes are orphaned until a reconciliation
	// sweep removes them.
	KindPartialDelete Kind = "partial_delete"
)

// Sentinels for errors.Is. An *Error matches the sentinel of its kind:
//
//	if errors.Is(err, pkgmeta.ErrConflict) { ... }
var (
	ErrInvalid       = &Error{Kind: KindInvalid}
	ErrConflict      = &Error{Kind: KindConflict}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrUsage         = &Error{Kind: KindUsage}
	ErrIOFailure     = &Error{Kind: KindIOFailure}
	ErrInconsistent  = &Error{Kind: KindInconsistent}
	ErrPartialDelete = &Error{Kind: KindPartialDelete}
)

// Error is a classified failure. Op names the operation that failed
// ("catalog add", "artifact save"); Err is the underlying cause and is
// preserved for errors.Is / errors.As.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return string(e.Kind)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or the
// empty Kind if err carries no classification.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return ""
}

// Wrap classifies err. A nil err returns nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func newError(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Invalid creates a KindInvalid error.
func Invalid(op, format string, args ...any) *Error {
	return newError(KindInvalid, op, format, args...)
}

// Conflict creates a KindConflict error.
func Conflict(op, format string, args ...any) *Error {
	return newError(KindConflict, op, format, args...)
}

// NotFound creates a KindNotFound error.
func NotFound(op, format string, args ...any) *Error {
	return newError(KindNotFound, op, format, args...)
}

// Usage creates a KindUsage error.
func Usage(op, format string, args ...any) *Error {
	return newError(KindUsage, op, format, args...)
}

// IOFailure creates a KindIOFailure error.
func IOFailure(op, format string, args ...any) *Error {
	return newError(KindIOFailure, op, format, args...)
}

// Inconsistent creates a KindInconsistent error.
func Inconsistent(op, format string, args ...any) *Error {
	return newError(KindInconsistent, op, format, args...)
}

// PartialDelete creates a KindPartialDelete error.
func PartialDelete(op, format string, args ...any) *Error {
	return newError(KindPartialDelete, op, format, args...)
}
