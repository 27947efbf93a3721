// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Command opsml-server starts the registry's HTTP API surface, wiring the
// catalog, keystore, object store, uploader, service-card engine,
// telemetry, and auth components into one httpapi.Server, following the
// teacher's cmd/run.go: a cobra root command with a single "serve"
// subcommand reading layered file/env/flag configuration.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/huandu/go-sqlbuilder"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/opsml/registry/audit"
	"github.com/opsml/registry/auth"
	"github.com/opsml/registry/catalog"
	"github.com/opsml/registry/config"
	"github.com/opsml/registry/httpapi"
	"github.com/opsml/registry/keystore"
	"github.com/opsml/registry/logging"
	"github.com/opsml/registry/metrics"
	"github.com/opsml/registry/objstore"
	"github.com/opsml/registry/objstore/local"
	"github.com/opsml/registry/objstore/s3"
	"github.com/opsml/registry/servicecard"
	"github.com/opsml/registry/sqlstore"
	"github.com/opsml/registry/sqlstore/schema"
	"github.com/opsml/registry/telemetry"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "opsml-server",
		Short: "Run the opsml artifact registry server",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the registry's HTTP API surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	serveCmd.Flags().StringVar(&configPath, "config", "", "path to a registry config file")
	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New()
	log.SetLevel(parseLevel(cfg.Logging.Level))

	dialect := sqlstore.Dialect(cfg.Database.Dialect)
	cat, err := catalog.Open(dialect, cfg.Database.DSN, cfg.Database.VersionCacheSize)
	if err != nil {
		return fmt.Errorf("open catalog store: %w", err)
	}

	// The auth, telemetry, and audit stores share the artifact_key/opsml_user/
	// telemetry/audit_log tables the catalog's dialect client already
	// migrated (package schema); they open their own connection pool against
	// the same dsn rather than reaching into the catalog client's private
	// *sql.DB.
	db, flavor, err := openAux(dialect, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open auxiliary database handle: %w", err)
	}
	if err := schema.Migrate(context.Background(), db, flavor); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	objects, err := openObjectStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}

	masterKeyHex := os.Getenv("OPSML_MASTER_KEY")
	var masterKey *keystore.MasterKey
	if masterKeyHex != "" {
		masterKey, err = keystore.InitGlobal([]byte(masterKeyHex))
		if err != nil {
			return fmt.Errorf("init master key: %w", err)
		}
	} else {
		log.Warn("OPSML_MASTER_KEY not set; artifact keys will not be minted")
	}

	keys := keystore.NewSQLStore(db, flavor)
	users := auth.NewStore(db, flavor)
	telemetryStore := telemetry.NewStore(db, flavor)
	auditSink := audit.NewSQLSink(db, flavor)
	engine := servicecard.NewEngine(cat, objects)

	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)

	if cfg.Auth.JWTSigningKey == "" {
		log.Warn("auth.jwt_signing_key not set; login/refresh will fail to sign tokens")
	}
	tokens := auth.NewTokenIssuer([]byte(cfg.Auth.JWTSigningKey))

	server := httpapi.New().
		WithCatalog(cat).
		WithKeyStore(keys).
		WithMasterKey(masterKey).
		WithObjectStore(objects).
		WithServiceEngine(engine).
		WithTelemetry(telemetryStore).
		WithUsers(users).
		WithTokenIssuer(tokens).
		WithAuditSink(auditSink).
		WithMetrics(rec).
		WithTokenTTLs(cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)

	mux := http.NewServeMux()
	mux.Handle("/", server.Router())
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	log.Info("listening on %s", cfg.Server.ListenAddr)
	ln, err := net.Listen("tcp", cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.ListenAddr, err)
	}
	return http.Serve(ln, mux)
}

// openAux opens a second connection pool against dsn for the non-catalog
// stores (keystore, auth, telemetry, audit), using the same driver name the
// corresponding sqlstore/<dialect> package registers against database/sql.
func openAux(dialect sqlstore.Dialect, dsn string) (*sql.DB, sqlbuilder.Flavor, error) {
	switch dialect {
	case sqlstore.DialectPostgres:
		db, err := sql.Open("postgres", dsn)
		return db, sqlbuilder.PostgreSQL, err
	case sqlstore.DialectMySQL:
		db, err := sql.Open("mysql", dsn)
		return db, sqlbuilder.MySQL, err
	case sqlstore.DialectSQLite:
		db, err := sql.Open("sqlite", dsn)
		return db, sqlbuilder.SQLite, err
	default:
		return nil, 0, fmt.Errorf("unsupported dialect %q", dialect)
	}
}

func openObjectStore(cfg config.StorageConfig) (objstore.FileSystem, error) {
	switch cfg.Backend {
	case "s3":
		return s3.New(context.Background(), cfg.Bucket)
	case "local":
		return local.New(cfg.LocalRoot, cfg.LocalIndexDir)
	case "gcs":
		// No GCS SDK appears anywhere in the example pack's dependency
		// surface (see DESIGN.md); only s3 and local are wired.
		return nil, fmt.Errorf("gcs storage backend is not implemented")
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

func parseLevel(level string) logging.Level {
	switch level {
	case "debug":
		return logging.Debug
	case "warn":
		return logging.Warn
	case "error":
		return logging.Error
	default:
		return logging.Info
	}
}
