// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package sqlite implements the sqlstore.Client contract (spec.md §4.2)
// against a SQLite backend using modernc.org/sqlite, the teacher's own
// cgo-free SQLite driver dependency (chosen, per DESIGN.md, over
// mattn/go-sqlite3 to keep the server cgo-free end to end).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/huandu/go-sqlbuilder"
	"modernc.org/sqlite"

	"github.com/opsml/registry/sqlstore"
	"github.com/opsml/registry/sqlstore/schema"
)

// NewClient opens a SQLite database at path (or ":memory:"), migrates it to
// the current schema, and wraps it in a sqlstore.Client. cacheSize bounds
// the version-resolution cache (SPEC_FULL.md §11); pass 0 to disable it.
func NewClient(path string, cacheSize int) (sqlstore.Client, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers; a single connection avoids "database is
	// locked" errors under concurrent catalog writes.
	db.SetMaxOpenConns(1)
	if err := schema.Migrate(context.Background(), db, sqlbuilder.SQLite); err != nil {
		return nil, err
	}
	return sqlstore.NewBaseClient(db, sqlbuilder.SQLite, cacheSize, isDuplicateKeyErr), nil
}

func isDuplicateKeyErr(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return strings.Contains(strings.ToLower(sqliteErr.Error()), "unique constraint")
	}
	return false
}
