// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pkgmeta

import (
	"regexp"
	"strings"

	packageurl "github.com/package-url/packageurl-go"
)

// MaxVersionLength bounds the version string. Versions become path
// components of artifact locations.
const MaxVersionLength = 128

var (
	namePattern      = regexp.MustCompile(`(?i)^([A-Z0-9]|[A-Z0-9][A-Z0-9._-]*[A-Z0-9])$`)
	separatorPattern = regexp.MustCompile(`[-_.]+`)
	versionPattern   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+!-]*$`)
)

// Meta is the catalog record for one published package version.
// Location is an opaque locator ("fs://relative/path") that the
// artifact store resolves to a concrete address.
type Meta struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Location string `json:"location"`
}

// Key returns the normalised identity used for per-package locking
// and de-duplication. Two metas with equal keys name the same release.
func (m Meta) Key() string {
	return NormalizeName(m.Name) + "@" + m.Version
}

// PURL returns the package URL for this release, for example
// "pkg:pypi/typing-extensions@4.0.0".
func (m Meta) PURL() string {
	return packageurl.NewPackageURL(
		packageurl.TypePyPi, "", NormalizeName(m.Name), m.Version, nil, "",
	).ToString()
}

// Package is a release together with its artifact bytes. It owns a
// copy of its metadata.
type Package struct {
	Meta    Meta
	Content []byte
}

// Upload is a client's request to publish or replace a release. The
// registry assigns the location; Filename is the final path element of
// that location and defaults to "<name>-<version>".
type Upload struct {
	Name     string
	Version  string
	Filename string
	Content  []byte
}

// ValidateName reports whether name matches the package-name grammar.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return Invalid("validate name", "invalid package name %q", name)
	}
	return nil
}

// NormalizeName returns the PEP 503 normalised form of name.
func NormalizeName(name string) string {
	return strings.ToLower(separatorPattern.ReplaceAllString(name, "-"))
}

// ValidateVersion reports whether version is usable as a release
// version and as a location path element.
func ValidateVersion(version string) error {
	if len(version) > MaxVersionLength {
		return Invalid("validate version", "version is %d bytes, maximum is %d", len(version), MaxVersionLength)
	}
	if !versionPattern.MatchString(version) {
		return Invalid("validate version", "invalid version %q", version)
	}
	return nil
}

// ValidateFilename reports whether filename is a single, visible path
// element.
func ValidateFilename(filename string) error {
	switch {
	case filename == "":
		return Invalid("validate filename", "filename is empty")
	case strings.ContainsAny(filename, "/\\\x00"):
		return Invalid("validate filename", "filename %q contains a path separator", filename)
	case strings.HasPrefix(filename, "."):
		return Invalid("validate filename", "filename %q starts with a dot", filename)
	}
	return nil
}

// Validate checks the name and version of an upload and fills in the
// default filename. The returned upload has a normalised name.
func (u Upload) Validate() (Upload, error) {
	if err := ValidateName(u.Name); err != nil {
		return Upload{}, err
	}
	if err := ValidateVersion(u.Version); err != nil {
		return Upload{}, err
	}
	u.Name = NormalizeName(u.Name)
	if u.Filename == "" {
		u.Filename = u.Name + "-" + u.Version
	}
	if err := ValidateFilename(u.Filename); err != nil {
		return Upload{}, err
	}
	return u, nil
}
