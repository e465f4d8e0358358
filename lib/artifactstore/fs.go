// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package artifactstore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/pypiserver/lib/pkgmeta"
)

const scratchDir = ".scratch"

// StaleScratchAge is how old a scratch file must be before NewFS
// treats it as debris from a crashed save. Younger files may belong to
// another process saving into the same root.
const StaleScratchAge = time.Hour

// renameAttempts bounds how often Save recreates a parent directory
// that a concurrent Delete pruned between MkdirAll and Rename.
const renameAttempts = 3

// FS is an artifact store rooted at a local directory. Safe for
// concurrent use.
type FS struct {
	root    string
	scratch string
	logger  *slog.Logger
}

// NewFS opens the store rooted at root. The root must already exist,
// be a directory, and be writeable; anything else is a Usage error so
// a misconfigured server fails at startup.
func NewFS(root string, logger *slog.Logger) (*FS, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if root == "" {
		return nil, pkgmeta.Usage("artifact store", "artifact root is required")
	}
	absolute, err := filepath.Abs(root)
	if err != nil {
		return nil, pkgmeta.Usage("artifact store", "resolving %s: %v", root, err)
	}

	info, err := os.Stat(absolute)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, pkgmeta.Usage("artifact store", "artifact root %s does not exist", absolute)
	case err != nil:
		return nil, pkgmeta.Wrap(pkgmeta.KindIOFailure, "artifact store", err)
	case !info.IsDir():
		return nil, pkgmeta.Usage("artifact store", "artifact root %s is not a directory", absolute)
	}
	// The mode check catches read-only roots even for root, which
	// access(2) would let through.
	if info.Mode().Perm()&0o222 == 0 || unix.Access(absolute, unix.W_OK) != nil {
		return nil, pkgmeta.Usage("artifact store", "artifact root %s is not writeable", absolute)
	}

	store := &FS{
		root:    absolute,
		scratch: filepath.Join(absolute, scratchDir),
		logger:  logger,
	}
	if err := os.MkdirAll(store.scratch, 0o755); err != nil {
		return nil, pkgmeta.Wrap(pkgmeta.KindIOFailure, "artifact store", err)
	}
	store.sweepScratch(time.Now())
	return store, nil
}

// Root returns the absolute artifact root.
func (s *FS) Root() string { return s.root }

// Resolve returns the address of meta's artifact.
func (s *FS) Resolve(meta pkgmeta.Meta) (Address, error) {
	return s.ResolveLocation(meta.Location)
}

// ResolveLocation maps a catalog location to an address under the
// root. Distinct cleaned locations map to distinct addresses.
func (s *FS) ResolveLocation(location string) (Address, error) {
	relative, err := relativePath(location)
	if err != nil {
		return "", err
	}
	return Address(filepath.Join(s.root, relative)), nil
}

// contains rejects addresses that were not produced by Resolve.
func (s *FS) contains(op string, address Address) error {
	relative, err := filepath.Rel(s.root, string(address))
	if err != nil || !filepath.IsLocal(relative) ||
		relative == scratchDir || strings.HasPrefix(relative, scratchDir+string(filepath.Separator)) {
		return pkgmeta.Invalid(op, "address %s is outside the artifact root", address)
	}
	return nil
}

// Save atomically writes content to address, replacing any existing
// file there.
func (s *FS) Save(address Address, content []byte) error {
	const op = "artifact save"
	if err := s.contains(op, address); err != nil {
		return err
	}

	scratchFile, err := os.CreateTemp(s.scratch, "save-*")
	if err != nil {
		return pkgmeta.Wrap(pkgmeta.KindIOFailure, op, err)
	}
	scratchPath := scratchFile.Name()

	success := false
	defer func() {
		if !success {
			scratchFile.Close()
			os.Remove(scratchPath)
		}
	}()

	if err := scratchFile.Chmod(0o644); err != nil {
		return pkgmeta.Wrap(pkgmeta.KindIOFailure, op, err)
	}
	if _, err := scratchFile.Write(content); err != nil {
		return pkgmeta.Wrap(pkgmeta.KindIOFailure, op, fmt.Errorf("writing scratch file: %w", err))
	}
	if err := scratchFile.Sync(); err != nil {
		return pkgmeta.Wrap(pkgmeta.KindIOFailure, op, fmt.Errorf("syncing scratch file: %w", err))
	}
	if err := scratchFile.Close(); err != nil {
		return pkgmeta.Wrap(pkgmeta.KindIOFailure, op, fmt.Errorf("closing scratch file: %w", err))
	}

	parent := filepath.Dir(string(address))
	for attempt := 1; ; attempt++ {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return pkgmeta.Wrap(pkgmeta.KindIOFailure, op, err)
		}
		err := os.Rename(scratchPath, string(address))
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrNotExist) || attempt == renameAttempts {
			return pkgmeta.Wrap(pkgmeta.KindIOFailure, op, err)
		}
	}
	success = true

	if err := syncDir(parent); err != nil {
		return pkgmeta.Wrap(pkgmeta.KindIOFailure, op, fmt.Errorf("syncing %s: %w", parent, err))
	}
	s.logger.Debug("artifact saved", "address", address, "size", len(content))
	return nil
}

// Load returns the artifact's bytes.
func (s *FS) Load(address Address) ([]byte, error) {
	const op = "artifact load"
	if err := s.contains(op, address); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(string(address))
	if err != nil {
		return nil, classify(op, address, err)
	}
	return content, nil
}

// Open returns the artifact for streaming, with its size. The caller
// closes the file. Because Save replaces by rename, an open file keeps
// its content even if the address is overwritten meanwhile.
func (s *FS) Open(address Address) (*os.File, int64, error) {
	const op = "artifact open"
	if err := s.contains(op, address); err != nil {
		return nil, 0, err
	}
	file, err := os.Open(string(address))
	if err != nil {
		return nil, 0, classify(op, address, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, pkgmeta.Wrap(pkgmeta.KindIOFailure, op, err)
	}
	if info.IsDir() {
		file.Close()
		return nil, 0, pkgmeta.NotFound(op, "%s is a directory", address)
	}
	return file, info.Size(), nil
}

// Exists reports whether a regular file is stored at address.
func (s *FS) Exists(address Address) (bool, error) {
	const op = "artifact exists"
	if err := s.contains(op, address); err != nil {
		return false, err
	}
	info, err := os.Stat(string(address))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, pkgmeta.Wrap(pkgmeta.KindIOFailure, op, err)
	}
	return info.Mode().IsRegular(), nil
}

// Delete removes the artifact and then any parent directories it left
// empty, stopping at the root.
func (s *FS) Delete(address Address) error {
	const op = "artifact delete"
	if err := s.contains(op, address); err != nil {
		return err
	}
	if err := os.Remove(string(address)); err != nil {
		return classify(op, address, err)
	}
	for dir := filepath.Dir(string(address)); dir != s.root; dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break
		}
	}
	s.logger.Debug("artifact deleted", "address", address)
	return nil
}

// Digest returns the hex BLAKE3-256 digest of the artifact.
func (s *FS) Digest(address Address) (string, error) {
	const op = "artifact digest"
	file, _, err := s.Open(address)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", pkgmeta.Wrap(pkgmeta.KindIOFailure, op, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// sweepScratch removes scratch files older than StaleScratchAge.
func (s *FS) sweepScratch(now time.Time) {
	entries, err := os.ReadDir(s.scratch)
	if err != nil {
		s.logger.Warn("reading scratch directory failed", "path", s.scratch, "error", err)
		return
	}
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || now.Sub(info.ModTime()) < StaleScratchAge {
			continue
		}
		path := filepath.Join(s.scratch, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			s.logger.Warn("removing stale scratch file failed", "path", path, "error", err)
			continue
		}
		s.logger.Info("removed stale scratch file", "path", path, "modified", info.ModTime())
	}
}

func classify(op string, address Address, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return pkgmeta.NotFound(op, "no artifact at %s", address)
	}
	return pkgmeta.Wrap(pkgmeta.KindIOFailure, op, err)
}

func syncDir(path string) error {
	dir, err := os.Open(path)
	if err != nil {
		return err
	}
	defer dir.Close()
	return dir.Sync()
}
