// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package mysql implements the sqlstore.Client contract (spec.md §4.2)
// against a MySQL backend using github.com/go-sql-driver/mysql, the
// teacher's own MySQL driver dependency.
package mysql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/huandu/go-sqlbuilder"

	"github.com/opsml/registry/sqlstore"
	"github.com/opsml/registry/sqlstore/schema"
)

// erDupEntry is the MySQL error number for a duplicate-key violation.
const erDupEntry = 1062

// NewClient opens a MySQL connection pool at dsn, migrates it to the
// current schema, and wraps it in a sqlstore.Client. cacheSize bounds the
// version-resolution cache (SPEC_FULL.md §11); pass 0 to disable it.
func NewClient(dsn string, cacheSize int) (sqlstore.Client, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := schema.Migrate(context.Background(), db, sqlbuilder.MySQL); err != nil {
		return nil, err
	}
	return sqlstore.NewBaseClient(db, sqlbuilder.MySQL, cacheSize, isDuplicateKeyErr), nil
}

func isDuplicateKeyErr(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == erDupEntry
	}
	return false
}
