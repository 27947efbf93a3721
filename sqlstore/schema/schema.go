// Package schema embeds the DDL for the tables every sqlstore backend
// expects to already exist: the six card registries, artifact_key,
// opsml_user, the three telemetry tables, and opsml_audit_log. Each
// backend's NewClient calls Migrate once at startup, mirroring the
// teacher's storage/disk partition bootstrap (one idempotent pass over a
// fixed set of DDL statements, safe to run against an already-migrated
// database).
package schema

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

//go:embed postgres.sql
var postgresDDL string

//go:embed mysql.sql
var mysqlDDL string

//go:embed sqlite.sql
var sqliteDDL string

// Migrate runs the embedded DDL for flavor against db. Statements are
// idempotent (CREATE TABLE/INDEX IF NOT EXISTS), so Migrate is safe to call
// every time a backend client is constructed.
func Migrate(ctx context.Context, db *sql.DB, flavor sqlbuilder.Flavor) error {
	var ddl string
	switch flavor {
	case sqlbuilder.PostgreSQL:
		ddl = postgresDDL
	case sqlbuilder.MySQL:
		ddl = mysqlDDL
	case sqlbuilder.SQLite:
		ddl = sqliteDDL
	default:
		return fmt.Errorf("schema: no DDL for flavor %v", flavor)
	}

	for _, stmt := range splitStatements(ddl) {
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema: exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// splitStatements breaks a .sql file on statement-terminating semicolons.
// The embedded files never put a semicolon inside a string literal, so this
// stays a plain split rather than a real SQL tokenizer.
func splitStatements(ddl string) []string {
	parts := strings.Split(ddl, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func firstLine(stmt string) string {
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i]
	}
	return stmt
}
