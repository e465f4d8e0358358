// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"slices"
	"sync"

	"github.com/bureau-foundation/pypiserver/lib/pkgmeta"
)

// Memory is an in-process Repository. Its contents are lost when the
// process exits.
type Memory struct {
	mu   sync.RWMutex
	rows []pkgmeta.Meta
}

// NewMemory returns an empty catalog.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) indexOf(name, version string) int {
	return slices.IndexFunc(m.rows, func(row pkgmeta.Meta) bool {
		return row.Name == name && row.Version == version
	})
}

func (m *Memory) Add(_ context.Context, meta pkgmeta.Meta) error {
	if err := validate("catalog add", meta); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexOf(meta.Name, meta.Version) >= 0 {
		return pkgmeta.Conflict("catalog add", "%s@%s already exists", meta.Name, meta.Version)
	}
	m.rows = append(m.rows, meta)
	return nil
}

func (m *Memory) Delete(_ context.Context, meta pkgmeta.Meta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	index := m.indexOf(meta.Name, meta.Version)
	if index < 0 || m.rows[index].Location != meta.Location {
		return pkgmeta.NotFound("catalog delete", "%s@%s at %s", meta.Name, meta.Version, meta.Location)
	}
	m.rows = slices.Delete(m.rows, index, index+1)
	return nil
}

func (m *Memory) Get(_ context.Context, name, version string) (pkgmeta.Meta, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	index := m.indexOf(name, version)
	if index < 0 {
		return pkgmeta.Meta{}, false, nil
	}
	return m.rows[index], true, nil
}

func (m *Memory) WithName(_ context.Context, name string) ([]pkgmeta.Meta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []pkgmeta.Meta
	for _, row := range m.rows {
		if row.Name == name {
			result = append(result, row)
		}
	}
	return result, nil
}

func (m *Memory) All(context.Context) ([]pkgmeta.Meta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.rows), nil
}

func (m *Memory) Replace(_ context.Context, old, updated pkgmeta.Meta) error {
	if err := validateReplace(old, updated); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	index := m.indexOf(old.Name, old.Version)
	if index < 0 {
		return pkgmeta.NotFound("catalog replace", "%s@%s", old.Name, old.Version)
	}
	if m.rows[index].Location != old.Location {
		return pkgmeta.Conflict("catalog replace", "%s@%s moved to %s", old.Name, old.Version, m.rows[index].Location)
	}
	m.rows[index] = updated
	return nil
}
