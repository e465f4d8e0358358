// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/pypiserver/lib/pkgmeta"
	"github.com/bureau-foundation/pypiserver/lib/sqlitepool"
)

// schema runs on every new connection. Each statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS packages (
	id       INTEGER PRIMARY KEY,
	name     TEXT NOT NULL,
	version  TEXT NOT NULL,
	location TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS packages_name_version ON packages (name, version);
`

// Config configures an SQLite catalog.
type Config struct {
	// Path is the database file. Created if missing; its directory
	// must exist.
	Path string

	// PoolSize defaults to sqlitepool's default.
	PoolSize int

	Logger *slog.Logger
}

// SQLite is the durable Repository.
type SQLite struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// Open opens (creating if needed) the catalog at cfg.Path and verifies
// that the schema can be applied.
func Open(ctx context.Context, cfg Config) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, pkgmeta.Usage("catalog open", "catalog path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:        cfg.Path,
		PoolSize:    cfg.PoolSize,
		Synchronous: sqlitepool.SynchronousFull,
		Logger:      logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, pkgmeta.Wrap(pkgmeta.KindIOFailure, "catalog open", err)
	}

	// Take one connection now so a bad path or a corrupt file fails at
	// startup rather than on the first request.
	if err := pool.With(ctx, func(*sqlite.Conn) error { return nil }); err != nil {
		pool.Close()
		return nil, pkgmeta.Wrap(pkgmeta.KindIOFailure, "catalog open", err)
	}

	return &SQLite{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (s *SQLite) Close() error {
	return s.pool.Close()
}

func (s *SQLite) Add(ctx context.Context, meta pkgmeta.Meta) error {
	if err := validate("catalog add", meta); err != nil {
		return err
	}
	err := s.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"INSERT INTO packages (name, version, location) VALUES (?, ?, ?)",
			&sqlitex.ExecOptions{Args: []any{meta.Name, meta.Version, meta.Location}})
	})
	if sqlite.ErrCode(err) == sqlite.ResultConstraintUnique {
		return pkgmeta.Wrap(pkgmeta.KindConflict, "catalog add",
			fmt.Errorf("%s@%s already exists: %w", meta.Name, meta.Version, err))
	}
	return pkgmeta.Wrap(pkgmeta.KindIOFailure, "catalog add", err)
}

func (s *SQLite) Delete(ctx context.Context, meta pkgmeta.Meta) error {
	var changed int
	err := s.pool.With(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			"DELETE FROM packages WHERE name = ? AND version = ? AND location = ?",
			&sqlitex.ExecOptions{Args: []any{meta.Name, meta.Version, meta.Location}})
		changed = conn.Changes()
		return err
	})
	if err != nil {
		return pkgmeta.Wrap(pkgmeta.KindIOFailure, "catalog delete", err)
	}
	if changed == 0 {
		return pkgmeta.NotFound("catalog delete", "%s@%s at %s", meta.Name, meta.Version, meta.Location)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, name, version string) (pkgmeta.Meta, bool, error) {
	var (
		meta  pkgmeta.Meta
		found bool
	)
	err := s.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT name, version, location FROM packages WHERE name = ? AND version = ?",
			&sqlitex.ExecOptions{
				Args: []any{name, version},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					meta = scanMeta(stmt)
					found = true
					return nil
				},
			})
	})
	if err != nil {
		return pkgmeta.Meta{}, false, pkgmeta.Wrap(pkgmeta.KindIOFailure, "catalog get", err)
	}
	return meta, found, nil
}

func (s *SQLite) WithName(ctx context.Context, name string) ([]pkgmeta.Meta, error) {
	rows, err := s.query(ctx,
		"SELECT name, version, location FROM packages WHERE name = ? ORDER BY id", name)
	if err != nil {
		return nil, pkgmeta.Wrap(pkgmeta.KindIOFailure, "catalog with name", err)
	}
	return rows, nil
}

func (s *SQLite) All(ctx context.Context) ([]pkgmeta.Meta, error) {
	rows, err := s.query(ctx, "SELECT name, version, location FROM packages ORDER BY id")
	if err != nil {
		return nil, pkgmeta.Wrap(pkgmeta.KindIOFailure, "catalog all", err)
	}
	return rows, nil
}

func (s *SQLite) Replace(ctx context.Context, old, updated pkgmeta.Meta) error {
	if err := validateReplace(old, updated); err != nil {
		return err
	}

	var outcome error
	err := s.pool.With(ctx, func(conn *sqlite.Conn) (err error) {
		endTransaction, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer endTransaction(&err)

		err = sqlitex.Execute(conn,
			"UPDATE packages SET location = ? WHERE name = ? AND version = ? AND location = ?",
			&sqlitex.ExecOptions{Args: []any{updated.Location, old.Name, old.Version, old.Location}})
		if err != nil || conn.Changes() == 1 {
			return err
		}

		current := ""
		found := false
		err = sqlitex.Execute(conn,
			"SELECT location FROM packages WHERE name = ? AND version = ?",
			&sqlitex.ExecOptions{
				Args: []any{old.Name, old.Version},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					current = stmt.ColumnText(0)
					found = true
					return nil
				},
			})
		switch {
		case err != nil:
		case !found:
			outcome = pkgmeta.NotFound("catalog replace", "%s@%s", old.Name, old.Version)
		default:
			outcome = pkgmeta.Conflict("catalog replace", "%s@%s moved to %s", old.Name, old.Version, current)
		}
		return err
	})
	if err != nil {
		return pkgmeta.Wrap(pkgmeta.KindIOFailure, "catalog replace", err)
	}
	return outcome
}

func (s *SQLite) query(ctx context.Context, query string, args ...any) ([]pkgmeta.Meta, error) {
	var rows []pkgmeta.Meta
	err := s.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rows = append(rows, scanMeta(stmt))
				return nil
			},
		})
	})
	return rows, err
}

func scanMeta(stmt *sqlite.Stmt) pkgmeta.Meta {
	return pkgmeta.Meta{
		Name:     stmt.ColumnText(0),
		Version:  stmt.ColumnText(1),
		Location: stmt.ColumnText(2),
	}
}
