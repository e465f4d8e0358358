// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/bureau-foundation/pypiserver/lib/artifactstore"
	"github.com/bureau-foundation/pypiserver/lib/catalog"
	"github.com/bureau-foundation/pypiserver/lib/clock"
	"github.com/bureau-foundation/pypiserver/lib/pkgmeta"
)

// memoryStore is an in-memory Store with injectable failures.
type memoryStore struct {
	mu        sync.Mutex
	artifacts map[artifactstore.Address][]byte
	saveErr    error
	deleteErr  error
	resolveErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{artifacts: make(map[artifactstore.Address][]byte)}
}

func (s *memoryStore) Resolve(meta pkgmeta.Meta) (artifactstore.Address, error) {
	if s.resolveErr != nil {
		return "", s.resolveErr
	}
	return artifactstore.Address(meta.Location), nil
}

func (s *memoryStore) Save(address artifactstore.Address, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.artifacts[address] = bytes.Clone(content)
	return nil
}

func (s *memoryStore) Load(address artifactstore.Address) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.artifacts[address]
	if !ok {
		return nil, pkgmeta.NotFound("artifact load", "no artifact at %s", address)
	}
	return bytes.Clone(content), nil
}

func (s *memoryStore) Delete(address artifactstore.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.artifacts[address]; !ok {
		return pkgmeta.NotFound("artifact delete", "no artifact at %s", address)
	}
	delete(s.artifacts, address)
	return nil
}

func (s *memoryStore) addresses() []artifactstore.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.artifacts))
}

// faultyCatalog fails selected operations of an otherwise working
// repository.
type faultyCatalog struct {
	catalog.Repository
	addErr     error
	replaceErr error
}

func (c *faultyCatalog) Add(ctx context.Context, meta pkgmeta.Meta) error {
	if c.addErr != nil {
		return c.addErr
	}
	return c.Repository.Add(ctx, meta)
}

func (c *faultyCatalog) Replace(ctx context.Context, old, updated pkgmeta.Meta) error {
	if c.replaceErr != nil {
		return c.replaceErr
	}
	return c.Repository.Replace(ctx, old, updated)
}

type fixture struct {
	registry *Registry
	catalog  *faultyCatalog
	store    *memoryStore
	metrics  *Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		catalog: &faultyCatalog{Repository: catalog.NewMemory()},
		store:   newMemoryStore(),
		metrics: NewMetrics(nil),
	}
	var next atomic.Int64
	registry, err := New(Config{
		Catalog: f.catalog,
		Store:   f.store,
		Clock:   clock.Fake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
		Metrics: f.metrics,
		NewID: func() string {
			return fmt.Sprintf("id%d", next.Add(1))
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.registry = registry
	return f
}

func (f *fixture) publish(t *testing.T, name, version, content string) pkgmeta.Meta {
	t.Helper()
	meta, err := f.registry.Publish(context.Background(), pkgmeta.Upload{
		Name: name, Version: version, Content: []byte(content),
	})
	if err != nil {
		t.Fatalf("Publish(%s@%s): %v", name, version, err)
	}
	return meta
}

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	var metric dto.Metric
	if err := vec.WithLabelValues(labels...).Write(&metric); err != nil {
		t.Fatalf("reading counter %v: %v", labels, err)
	}
	return metric.GetCounter().GetValue()
}

func TestNewRequiresStores(t *testing.T) {
	if _, err := New(Config{Store: newMemoryStore()}); !errors.Is(err, pkgmeta.ErrUsage) {
		t.Errorf("New without catalog = %v, want Usage", err)
	}
	if _, err := New(Config{Catalog: catalog.NewMemory()}); !errors.Is(err, pkgmeta.ErrUsage) {
		t.Errorf("New without store = %v, want Usage", err)
	}
}

func TestPublishAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	meta := f.publish(t, "Foo_Bar", "1.0", "wheel bytes")
	want := pkgmeta.Meta{Name: "foo-bar", Version: "1.0", Location: "fs://foo-bar/1.0/id1/foo-bar-1.0"}
	if meta != want {
		t.Errorf("Publish = %v, want %v", meta, want)
	}

	for _, spelling := range []string{"foo-bar", "FOO.bar", "Foo_Bar"} {
		pkg, found, err := f.registry.Get(ctx, spelling, "1.0")
		if err != nil || !found {
			t.Fatalf("Get(%s) = %v, %v", spelling, found, err)
		}
		if pkg.Meta != want || string(pkg.Content) != "wheel bytes" {
			t.Errorf("Get(%s) = %v %q", spelling, pkg.Meta, pkg.Content)
		}
	}

	if got := counterValue(t, f.metrics.operations, "publish", "ok"); got != 1 {
		t.Errorf("publish ok counter = %v, want 1", got)
	}
}

func TestPublishKeepsFilename(t *testing.T) {
	f := newFixture(t)
	meta, err := f.registry.Publish(context.Background(), pkgmeta.Upload{
		Name: "foo", Version: "1.0", Filename: "foo-1.0-py3-none-any.whl", Content: []byte("x"),
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if meta.Location != "fs://foo/1.0/id1/foo-1.0-py3-none-any.whl" {
		t.Errorf("Location = %s", meta.Location)
	}
}

func TestPublishInvalidUpload(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.Publish(context.Background(), pkgmeta.Upload{Name: "not valid", Version: "1.0"})
	if !errors.Is(err, pkgmeta.ErrInvalid) {
		t.Fatalf("Publish = %v, want Invalid", err)
	}
	if len(f.store.addresses()) != 0 {
		t.Error("invalid upload reached the store")
	}
	if got := counterValue(t, f.metrics.operations, "publish", "invalid"); got != 1 {
		t.Errorf("publish invalid counter = %v, want 1", got)
	}
}

func TestPublishConflictCompensates(t *testing.T) {
	f := newFixture(t)
	first := f.publish(t, "foo", "1.0", "original")

	_, err := f.registry.Publish(context.Background(), pkgmeta.Upload{
		Name: "foo", Version: "1.0", Content: []byte("impostor"),
	})
	if !errors.Is(err, pkgmeta.ErrConflict) {
		t.Fatalf("second Publish = %v, want Conflict", err)
	}

	addresses := f.store.addresses()
	if len(addresses) != 1 || string(addresses[0]) != first.Location {
		t.Errorf("store holds %v, want only %s", addresses, first.Location)
	}
	pkg, _, _ := f.registry.Get(context.Background(), "foo", "1.0")
	if string(pkg.Content) != "original" {
		t.Errorf("content = %q, want the original", pkg.Content)
	}
	if got := counterValue(t, f.metrics.compensations, "ok"); got != 1 {
		t.Errorf("compensations ok = %v, want 1", got)
	}
}

func TestPublishCompensationFailureReportsBoth(t *testing.T) {
	f := newFixture(t)
	f.catalog.addErr = pkgmeta.IOFailure("catalog add", "database is locked")
	f.store.deleteErr = pkgmeta.IOFailure("artifact delete", "permission denied")

	_, err := f.registry.Publish(context.Background(), pkgmeta.Upload{
		Name: "foo", Version: "1.0", Content: []byte("x"),
	})
	if pkgmeta.KindOf(err) != pkgmeta.KindIOFailure {
		t.Fatalf("KindOf = %q, want io_failure", pkgmeta.KindOf(err))
	}
	if !errors.Is(err, f.catalog.addErr) || !errors.Is(err, f.store.deleteErr) {
		t.Errorf("error %v does not carry both the catalog and cleanup failures", err)
	}
	if got := counterValue(t, f.metrics.compensations, "failed"); got != 1 {
		t.Errorf("compensations failed = %v, want 1", got)
	}
}

func TestPublishSaveFailureLeavesCatalogEmpty(t *testing.T) {
	f := newFixture(t)
	f.store.saveErr = pkgmeta.IOFailure("artifact save", "disk full")

	_, err := f.registry.Publish(context.Background(), pkgmeta.Upload{Name: "foo", Version: "1.0"})
	if !errors.Is(err, pkgmeta.ErrIOFailure) {
		t.Fatalf("Publish = %v, want IOFailure", err)
	}
	rows, _ := f.registry.All(context.Background())
	if len(rows) != 0 {
		t.Errorf("catalog rows = %v, want none", rows)
	}
}

func TestReplace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.publish(t, "bar", "1.0", "bar")
	first := f.publish(t, "foo", "1.0", "v1")

	updated, err := f.registry.Replace(ctx, pkgmeta.Upload{Name: "foo", Version: "1.0", Content: []byte("v2")})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if updated.Location == first.Location {
		t.Error("Replace reused the old location")
	}

	pkg, _, err := f.registry.Get(ctx, "foo", "1.0")
	if err != nil || string(pkg.Content) != "v2" {
		t.Errorf("Get after Replace = %q, %v", pkg.Content, err)
	}
	if _, err := f.store.Load(artifactstore.Address(first.Location)); !errors.Is(err, pkgmeta.ErrNotFound) {
		t.Errorf("superseded artifact still stored (%v)", err)
	}

	rows, _ := f.registry.All(ctx)
	if len(rows) != 2 || rows[1].Name != "foo" {
		t.Errorf("rows = %v, want replaced row to keep its position", rows)
	}
}

func TestReplaceMissing(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.Replace(context.Background(), pkgmeta.Upload{Name: "foo", Version: "1.0", Content: []byte("x")})
	if !errors.Is(err, pkgmeta.ErrNotFound) {
		t.Fatalf("Replace = %v, want NotFound", err)
	}
	if len(f.store.addresses()) != 0 {
		t.Error("Replace of a missing release stored bytes")
	}
}

func TestReplaceCatalogFailureKeepsOldRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.publish(t, "foo", "1.0", "v1")
	f.catalog.replaceErr = pkgmeta.IOFailure("catalog replace", "disk I/O error")

	_, err := f.registry.Replace(ctx, pkgmeta.Upload{Name: "foo", Version: "1.0", Content: []byte("v2")})
	if !errors.Is(err, pkgmeta.ErrIOFailure) {
		t.Fatalf("Replace = %v, want IOFailure", err)
	}
	addresses := f.store.addresses()
	if len(addresses) != 1 || string(addresses[0]) != first.Location {
		t.Errorf("store holds %v, want only the original artifact", addresses)
	}
	pkg, _, _ := f.registry.Get(ctx, "foo", "1.0")
	if string(pkg.Content) != "v1" {
		t.Errorf("content = %q, want v1", pkg.Content)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	meta := f.publish(t, "foo", "1.0", "x")

	if err := f.registry.Delete(ctx, meta); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, _ := f.registry.Get(ctx, "foo", "1.0"); found {
		t.Error("release still visible after Delete")
	}
	if len(f.store.addresses()) != 0 {
		t.Error("artifact survived Delete")
	}
	if err := f.registry.Delete(ctx, meta); !errors.Is(err, pkgmeta.ErrNotFound) {
		t.Errorf("second Delete = %v, want NotFound", err)
	}
}

func TestDeleteArtifactFailureIsPartial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	meta := f.publish(t, "foo", "1.0", "x")
	f.store.deleteErr = pkgmeta.IOFailure("artifact delete", "read-only file system")

	err := f.registry.Delete(ctx, meta)
	if pkgmeta.KindOf(err) != pkgmeta.KindPartialDelete {
		t.Fatalf("Delete = %v, want partial_delete", err)
	}
	if _, found, _ := f.registry.Lookup(ctx, "foo", "1.0"); found {
		t.Error("catalog row survived a partial delete")
	}
}

func TestDeleteMissingArtifactSucceeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	meta := f.publish(t, "foo", "1.0", "x")
	if err := f.store.Delete(artifactstore.Address(meta.Location)); err != nil {
		t.Fatal(err)
	}

	if err := f.registry.Delete(ctx, meta); err != nil {
		t.Fatalf("Delete = %v, want success", err)
	}
}

func TestGetInconsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.catalog.Add(ctx, pkgmeta.Meta{Name: "foo", Version: "1.0", Location: "fs://gone"}); err != nil {
		t.Fatal(err)
	}

	_, found, err := f.registry.Get(ctx, "foo", "1.0")
	if !errors.Is(err, pkgmeta.ErrInconsistent) {
		t.Fatalf("Get = %v, %v; want Inconsistent", found, err)
	}
}

func TestGetAbsent(t *testing.T) {
	f := newFixture(t)
	_, found, err := f.registry.Get(context.Background(), "foo", "1.0")
	if err != nil || found {
		t.Errorf("Get = %v, %v; want false, nil", found, err)
	}
}

func TestVersionsOrder(t *testing.T) {
	f := newFixture(t)
	for _, version := range []string{"1.0", "1.1", "2.0"} {
		f.publish(t, "foo", version, version)
	}
	f.publish(t, "bar", "1.0", "bar")

	rows, err := f.registry.Versions(context.Background(), "Foo")
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	var got []string
	for _, row := range rows {
		got = append(got, row.Version)
	}
	if !slices.Equal(got, []string{"1.0", "1.1", "2.0"}) {
		t.Errorf("versions = %v", got)
	}
}

func TestConcurrentPublishSameKey(t *testing.T) {
	f := newFixture(t)
	const writers = 16

	var (
		waitGroup sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := range writers {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			_, err := f.registry.Publish(context.Background(), pkgmeta.Upload{
				Name: "foo", Version: "1.0", Content: []byte(fmt.Sprint(i)),
			})
			if err != nil && !errors.Is(err, pkgmeta.ErrConflict) {
				t.Errorf("Publish: %v", err)
			}
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	waitGroup.Wait()

	if successes != 1 {
		t.Errorf("successes = %d, want 1", successes)
	}
	if n := len(f.store.addresses()); n != 1 {
		t.Errorf("store holds %d artifacts, want 1", n)
	}
	if n := f.registry.locks.size(); n != 0 {
		t.Errorf("%d lock entries leaked", n)
	}
}

func TestGetUnresolvableLocationIsInconsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.publish(t, "foo", "1.0", "x")
	f.store.resolveErr = pkgmeta.Invalid("artifact resolve", "unsupported location scheme %q", "s3")

	_, found, err := f.registry.Get(ctx, "foo", "1.0")
	if !errors.Is(err, pkgmeta.ErrInconsistent) {
		t.Fatalf("Get = %v, %v; want Inconsistent", found, err)
	}
	if pkgmeta.KindOf(err) != pkgmeta.KindInconsistent {
		t.Errorf("KindOf = %q, want %q", pkgmeta.KindOf(err), pkgmeta.KindInconsistent)
	}
}

func TestDeleteVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	published := f.publish(t, "Foo_Bar", "1.0", "x")

	meta, found, err := f.registry.DeleteVersion(ctx, "foo.bar", "1.0")
	if err != nil || !found {
		t.Fatalf("DeleteVersion = %v, %v, %v", meta, found, err)
	}
	if meta != published {
		t.Errorf("deleted %v, want %v", meta, published)
	}
	if addresses := f.store.addresses(); len(addresses) != 0 {
		t.Errorf("artifacts left behind: %v", addresses)
	}

	_, found, err = f.registry.DeleteVersion(ctx, "foo-bar", "1.0")
	if err != nil || found {
		t.Errorf("second DeleteVersion = %v, %v; want false, nil", found, err)
	}
	if _, _, err := f.registry.DeleteVersion(ctx, "-bad", "1.0"); !errors.Is(err, pkgmeta.ErrInvalid) {
		t.Errorf("DeleteVersion(invalid name) = %v, want Invalid", err)
	}
}

// A delete queued behind a writer on the same key must act on the row
// that writer leaves behind, not on the row visible before it.
func TestDeleteVersionFollowsMovedLocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	original := f.publish(t, "foo", "1.0", "old")

	unlock, err := f.registry.locks.lock(ctx, original.Key())
	if err != nil {
		t.Fatal(err)
	}

	type outcome struct {
		meta  pkgmeta.Meta
		found bool
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		meta, found, err := f.registry.DeleteVersion(ctx, "foo", "1.0")
		done <- outcome{meta, found, err}
	}()

	moved := original
	moved.Location = "fs://foo/1.0/moved/foo-1.0"
	if err := f.store.Save(artifactstore.Address(moved.Location), []byte("new")); err != nil {
		t.Fatal(err)
	}
	if err := f.catalog.Replace(ctx, original, moved); err != nil {
		t.Fatalf("catalog Replace: %v", err)
	}
	unlock()

	result := <-done
	if result.err != nil || !result.found {
		t.Fatalf("DeleteVersion = %v, %v; want found, nil", result.found, result.err)
	}
	if result.meta.Location != moved.Location {
		t.Errorf("deleted location %q, want %q", result.meta.Location, moved.Location)
	}
	if _, found, _ := f.registry.Lookup(ctx, "foo", "1.0"); found {
		t.Error("row survived DeleteVersion")
	}
}

func TestImportedRowsResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	source := catalog.NewMemory()
	if err := source.Add(ctx, pkgmeta.Meta{Name: "Foo_Bar", Version: "1.0", Location: "fs://Foo_Bar/1.0/a/foo.whl"}); err != nil {
		t.Fatal(err)
	}
	var snapshot bytes.Buffer
	if _, err := catalog.Export(ctx, source, &snapshot); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if _, err := catalog.Import(ctx, f.catalog, &snapshot); err != nil {
		t.Fatalf("Import: %v", err)
	}

	all, err := f.registry.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 || all[0].Name != "foo-bar" {
		t.Fatalf("All = %v, want one row named foo-bar", all)
	}
	versions, err := f.registry.Versions(ctx, all[0].Name)
	if err != nil || len(versions) != 1 {
		t.Errorf("Versions(%q) = %v, %v", all[0].Name, versions, err)
	}
	if _, found, err := f.registry.Lookup(ctx, "Foo_Bar", "1.0"); err != nil || !found {
		t.Errorf("Lookup(Foo_Bar, 1.0) = %v, %v; want found", found, err)
	}
}
