// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package postgres implements the sqlstore.Client contract (spec.md §4.2)
// against a Postgres backend using github.com/lib/pq, the teacher's own
// Postgres driver dependency.
package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"github.com/opsml/registry/sqlstore"
	"github.com/opsml/registry/sqlstore/schema"
)

// uniqueViolation is the Postgres SQLSTATE for a unique_violation error.
const uniqueViolation = "23505"

// NewClient opens a Postgres connection pool at dsn, migrates it to the
// current schema, and wraps it in a sqlstore.Client. cacheSize bounds the
// version-resolution cache (SPEC_FULL.md §11); pass 0 to disable it.
func NewClient(dsn string, cacheSize int) (sqlstore.Client, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := schema.Migrate(context.Background(), db, sqlbuilder.PostgreSQL); err != nil {
		return nil, err
	}
	return sqlstore.NewBaseClient(db, sqlbuilder.PostgreSQL, cacheSize, isDuplicateKeyErr), nil
}

func isDuplicateKeyErr(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
