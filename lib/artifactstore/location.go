// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package artifactstore

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/pypiserver/lib/pkgmeta"
)

// Scheme is the location scheme the store writes.
const Scheme = "fs"

// Address is the absolute filesystem path of a stored artifact.
type Address string

func (a Address) String() string { return string(a) }

// Location builds an "fs://" location from slash-separated path
// elements.
func Location(elements ...string) string {
	return Scheme + "://" + path.Join(elements...)
}

// relativePath extracts and checks the path part of a location. The
// result is a local, cleaned, OS-specific relative path.
func relativePath(location string) (string, error) {
	scheme, rest, found := strings.Cut(location, "://")
	if !found {
		return "", pkgmeta.Invalid("resolve location", "location %q has no scheme", location)
	}
	if scheme != Scheme && scheme != "file" {
		return "", pkgmeta.Invalid("resolve location", "location %q: unsupported scheme %q", location, scheme)
	}
	if rest == "" || strings.HasPrefix(rest, "/") {
		return "", pkgmeta.Invalid("resolve location", "location %q must name a relative path", location)
	}
	relative := filepath.Clean(filepath.FromSlash(rest))
	if relative == "." || !filepath.IsLocal(relative) {
		return "", pkgmeta.Invalid("resolve location", "location %q escapes the artifact root", location)
	}
	if first, _, _ := strings.Cut(filepath.ToSlash(relative), "/"); first == scratchDir {
		return "", pkgmeta.Invalid("resolve location", "location %q points into the scratch directory", location)
	}
	return relative, nil
}
