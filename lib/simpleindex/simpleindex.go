// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package simpleindex turns catalog rows into PEP 503 "simple" index
// links.
//
// The projections are pure: they read an ordered slice of metadata and
// yield links lazily, in input order, without I/O or shared state.
// Running one twice over the same input yields the same links. Link
// text and hrefs are raw strings; HTML escaping is the renderer's job.
package simpleindex

import (
	"iter"
	"path"

	"github.com/bureau-foundation/pypiserver/lib/pkgmeta"
)

// Link is one anchor in an index page.
type Link struct {
	Text string
	Href string
}

// Projector builds index links. The zero value serves files from
// relative hrefs.
type Projector struct {
	// FilesPrefix is prepended to per-project file hrefs, for example
	// "/packages/".
	FilesPrefix string
}

// Root yields one link per distinct project, in order of first
// appearance. Text is the normalised name and Href is "<name>/".
func (p Projector) Root(metas []pkgmeta.Meta) iter.Seq[Link] {
	return func(yield func(Link) bool) {
		seen := make(map[string]struct{})
		for _, meta := range metas {
			name := pkgmeta.NormalizeName(meta.Name)
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			if !yield(Link{Text: name, Href: name + "/"}) {
				return
			}
		}
	}
}

// Project yields one link per release of project, in input order.
// Text is the artifact filename and Href is
// FilesPrefix + "<name>/<version>/<filename>". Rows for other projects
// are skipped, so the whole catalog may be passed in.
func (p Projector) Project(metas []pkgmeta.Meta, project string) iter.Seq[Link] {
	want := pkgmeta.NormalizeName(project)
	return func(yield func(Link) bool) {
		for _, meta := range metas {
			name := pkgmeta.NormalizeName(meta.Name)
			if name != want {
				continue
			}
			filename := Filename(meta)
			href := p.FilesPrefix + name + "/" + meta.Version + "/" + filename
			if !yield(Link{Text: filename, Href: href}) {
				return
			}
		}
	}
}

// Filename is the download name of a release: the last element of its
// location, or "<name>-<version>" when the location has none.
func Filename(meta pkgmeta.Meta) string {
	base := path.Base(meta.Location)
	if meta.Location == "" || base == "." || base == "/" || base == meta.Location {
		return pkgmeta.NormalizeName(meta.Name) + "-" + meta.Version
	}
	return base
}

// Collect drains seq into a slice.
func Collect(seq iter.Seq[Link]) []Link {
	var links []Link
	for link := range seq {
		links = append(links, link)
	}
	return links
}
