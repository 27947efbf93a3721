package schema

import (
	"strings"
	"testing"
)

func TestSplitStatementsKeepsEmptyTail(t *testing.T) {
	stmts := splitStatements("CREATE TABLE a (x INT);\nCREATE TABLE b (y INT);\n")
	if len(stmts) != 3 {
		t.Fatalf("len(stmts) = %d, want 3 (including the trailing empty split)", len(stmts))
	}
	if !strings.HasPrefix(stmts[0], "CREATE TABLE a") {
		t.Fatalf("stmts[0] = %q", stmts[0])
	}
	if !strings.HasPrefix(stmts[1], "CREATE TABLE b") {
		t.Fatalf("stmts[1] = %q", stmts[1])
	}
	if stmts[2] != "" {
		t.Fatalf("stmts[2] = %q, want empty trailing split", stmts[2])
	}
}

func TestEmbeddedDDLCoversEveryRegistryTable(t *testing.T) {
	tables := []string{
		"opsml_data_registry", "opsml_model_registry", "opsml_experiment_registry",
		"opsml_audit_registry", "opsml_prompt_registry", "opsml_service_registry",
		"artifact_key", "opsml_user",
		"opsml_experiment_metric", "opsml_experiment_parameter", "opsml_experiment_hardware_metric",
		"opsml_audit_log",
	}
	for _, ddl := range []string{postgresDDL, mysqlDDL, sqliteDDL} {
		for _, tbl := range tables {
			if !strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS "+tbl+" ") {
				t.Errorf("missing CREATE TABLE for %s", tbl)
			}
		}
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("CREATE TABLE a (\n  x INT\n)"); got != "CREATE TABLE a (" {
		t.Fatalf("firstLine = %q", got)
	}
	if got := firstLine("single line"); got != "single line" {
		t.Fatalf("firstLine = %q", got)
	}
}
