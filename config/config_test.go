package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want %q", cfg.Server.ListenAddr, ":8080")
	}
	if cfg.Database.Dialect != "sqlite" {
		t.Errorf("Dialect = %q, want %q", cfg.Database.Dialect, "sqlite")
	}
	if cfg.Storage.Backend != "local" {
		t.Errorf("Backend = %q, want %q", cfg.Storage.Backend, "local")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
database:
  dialect: postgres
  dsn: "postgres://localhost/opsml"
storage:
  backend: s3
  bucket: opsml-artifacts
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Dialect != "postgres" {
		t.Errorf("Dialect = %q, want %q", cfg.Database.Dialect, "postgres")
	}
	if cfg.Storage.Bucket != "opsml-artifacts" {
		t.Errorf("Bucket = %q, want %q", cfg.Storage.Bucket, "opsml-artifacts")
	}
}

func TestLoadRejectsUnsupportedDialect(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("database:\n  dialect: oracle\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected Load to reject an unsupported dialect")
	}
}

func TestLoadRequiresDSNForNonSQLite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("database:\n  dialect: postgres\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected Load to require a dsn for postgres")
	}
}
