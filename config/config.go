// Package config implements registry server configuration file parsing and
// validation, using viper the same way the teacher's cmd layer wires
// cobra/viper for flag and file-based configuration.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/opsml/registry/opsmlerr"
)

// Config is the registry server's top-level configuration, sourced from
// built-in defaults, an optional config file, and environment variables
// (OPSML_ prefix), in that ascending order of precedence. No command-line
// flag overrides individual settings.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

type DatabaseConfig struct {
	Dialect          string `mapstructure:"dialect"` // postgres, mysql, sqlite
	DSN              string `mapstructure:"dsn"`
	VersionCacheSize int    `mapstructure:"version_cache_size"`
}

type StorageConfig struct {
	Backend       string `mapstructure:"backend"` // s3, gcs, local
	Bucket        string `mapstructure:"bucket"`
	LocalRoot     string `mapstructure:"local_root"`
	LocalIndexDir string `mapstructure:"local_index_dir"`
}

type AuthConfig struct {
	JWTSigningKey    string        `mapstructure:"jwt_signing_key"`
	AccessTokenTTL   time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL  time.Duration `mapstructure:"refresh_token_ttl"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text, json-pretty
}

const envPrefix = "OPSML"

// Load reads configuration from path (if non-empty) layered under
// environment variables and the package's defaults, and validates the
// result.
func Load(path string) (*Config, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, opsmlerr.Wrap(opsmlerr.InvalidRequest, err, "read config file %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, opsmlerr.Wrap(opsmlerr.InvalidRequest, err, "unmarshal config")
	}
	return &cfg, cfg.validate()
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("database.dialect", "sqlite")
	v.SetDefault("database.version_cache_size", 1024)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_root", "./data/objects")
	v.SetDefault("storage.local_index_dir", "./data/index")
	v.SetDefault("auth.access_token_ttl", 15*time.Minute)
	v.SetDefault("auth.refresh_token_ttl", 30*24*time.Hour)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func (c Config) validate() error {
	switch c.Database.Dialect {
	case "postgres", "mysql", "sqlite":
	default:
		return opsmlerr.New(opsmlerr.InvalidRequest, "unsupported database dialect %q", c.Database.Dialect)
	}
	switch c.Storage.Backend {
	case "s3", "gcs", "local":
	default:
		return opsmlerr.New(opsmlerr.InvalidRequest, "unsupported storage backend %q", c.Storage.Backend)
	}
	if c.Database.Dialect != "sqlite" && c.Database.DSN == "" {
		return opsmlerr.New(opsmlerr.InvalidRequest, "database.dsn is required for dialect %q", c.Database.Dialect)
	}
	return nil
}
