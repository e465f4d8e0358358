// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens SQLite databases for the registry.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool with a fixed pragma
// set and an optional per-connection hook. Callers [Pool.Take] a
// connection, do their work, and [Pool.Put] it back; [Pool.With] does
// both around a callback. A connection is owned by one goroutine at a
// time.
//
// # Pragmas
//
//   - journal_mode=WAL: readers never block the single writer.
//   - synchronous: FULL by default. A committed catalog row must
//     survive power loss, because the artifact it points at has already
//     been fsynced. [Config.Synchronous] may relax this to NORMAL for
//     scratch databases.
//   - busy_timeout=5000: a writer waits up to five seconds for the
//     lock instead of failing with SQLITE_BUSY.
//   - temp_store=MEMORY.
//
// # Usage
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   "/var/lib/pypiserver/catalog.db",
//	    Logger: logger,
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        return sqlitex.ExecuteScript(conn, schema, nil)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	err = pool.With(ctx, func(conn *sqlite.Conn) error {
//	    return sqlitex.Execute(conn, "SELECT 1", nil)
//	})
package sqlitepool
