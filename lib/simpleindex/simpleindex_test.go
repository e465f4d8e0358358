// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package simpleindex

import (
	"slices"
	"testing"

	"github.com/bureau-foundation/pypiserver/lib/pkgmeta"
)

func meta(name, version, location string) pkgmeta.Meta {
	return pkgmeta.Meta{Name: name, Version: version, Location: location}
}

func TestRootDistinctInOrder(t *testing.T) {
	metas := []pkgmeta.Meta{
		meta("foo", "1.0", "fs://foo/1.0/a/foo-1.0.tar.gz"),
		meta("bar", "1.0", "fs://bar/1.0/b/bar-1.0.tar.gz"),
		meta("foo", "2.0", "fs://foo/2.0/c/foo-2.0.tar.gz"),
	}
	got := Collect(Projector{}.Root(metas))
	want := []Link{{Text: "foo", Href: "foo/"}, {Text: "bar", Href: "bar/"}}
	if !slices.Equal(got, want) {
		t.Errorf("Root = %v, want %v", got, want)
	}
}

func TestRootNormalisesNames(t *testing.T) {
	metas := []pkgmeta.Meta{
		meta("Foo_Bar", "1.0", "fs://x"),
		meta("foo.bar", "2.0", "fs://y"),
	}
	got := Collect(Projector{}.Root(metas))
	want := []Link{{Text: "foo-bar", Href: "foo-bar/"}}
	if !slices.Equal(got, want) {
		t.Errorf("Root = %v, want %v", got, want)
	}
}

func TestRootDeterministic(t *testing.T) {
	metas := []pkgmeta.Meta{meta("foo", "1.0", "fs://a"), meta("bar", "1.0", "fs://b")}
	projector := Projector{}
	first := Collect(projector.Root(metas))
	second := Collect(projector.Root(metas))
	if !slices.Equal(first, second) {
		t.Errorf("projections differ: %v vs %v", first, second)
	}
}

func TestProject(t *testing.T) {
	metas := []pkgmeta.Meta{
		meta("foo", "1.0", "fs://foo/1.0/a/foo-1.0.tar.gz"),
		meta("bar", "1.0", "fs://bar/1.0/b/bar-1.0.tar.gz"),
		meta("foo", "1.1", "fs://foo/1.1/c/foo-1.1-py3-none-any.whl"),
	}
	got := Collect(Projector{FilesPrefix: "/packages/"}.Project(metas, "Foo"))
	want := []Link{
		{Text: "foo-1.0.tar.gz", Href: "/packages/foo/1.0/foo-1.0.tar.gz"},
		{Text: "foo-1.1-py3-none-any.whl", Href: "/packages/foo/1.1/foo-1.1-py3-none-any.whl"},
	}
	if !slices.Equal(got, want) {
		t.Errorf("Project = %v, want %v", got, want)
	}
}

func TestProjectUnknown(t *testing.T) {
	metas := []pkgmeta.Meta{meta("foo", "1.0", "fs://x")}
	if got := Collect(Projector{}.Project(metas, "bar")); len(got) != 0 {
		t.Errorf("Project(bar) = %v, want empty", got)
	}
}

func TestEarlyStop(t *testing.T) {
	metas := []pkgmeta.Meta{meta("a", "1", "fs://a"), meta("b", "1", "fs://b"), meta("c", "1", "fs://c")}
	var seen []string
	for link := range (Projector{}).Root(metas) {
		seen = append(seen, link.Text)
		if len(seen) == 2 {
			break
		}
	}
	if !slices.Equal(seen, []string{"a", "b"}) {
		t.Errorf("seen = %v", seen)
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		meta pkgmeta.Meta
		want string
	}{
		{meta("foo", "1.0", "fs://foo/1.0/id/foo-1.0.tar.gz"), "foo-1.0.tar.gz"},
		{meta("foo", "1.0", "fs://here"), "here"},
		{meta("Foo", "1.0", ""), "foo-1.0"},
	}
	for _, test := range tests {
		if got := Filename(test.meta); got != test.want {
			t.Errorf("Filename(%v) = %q, want %q", test.meta, got, test.want)
		}
	}
}
