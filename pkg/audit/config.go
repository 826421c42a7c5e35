package audit

import (
	"fmt"
	"os"
	"path/filepath"
)

// StoreType selects the audit backend.
type StoreType string

const (
	// StoreTypeSQLite uses an SQLite file (default).
	StoreTypeSQLite StoreType = "sqlite"

	// StoreTypePostgres uses PostgreSQL.
	StoreTypePostgres StoreType = "postgres"

	// StoreTypeBadger uses an embedded BadgerDB directory.
	StoreTypeBadger StoreType = "badger"
)

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: $XDG_DATA_HOME/sandboxd/audit.db
	Path string `mapstructure:"path" yaml:"path" json:"path,omitempty"`
}

// PostgresConfig contains PostgreSQL-specific configuration.
type PostgresConfig struct {
	Host         string `mapstructure:"host" yaml:"host" json:"host,omitempty"`
	Port         int    `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port" json:"port,omitempty"`
	Database     string `mapstructure:"database" yaml:"database" json:"database,omitempty"`
	User         string `mapstructure:"user" yaml:"user" json:"user,omitempty"`
	Password     string `mapstructure:"password" yaml:"password,omitempty" json:"password,omitempty"`
	SSLMode      string `mapstructure:"sslmode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full" yaml:"sslmode" json:"sslmode,omitempty"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"omitempty,min=1" yaml:"max_open_conns" json:"max_open_conns,omitempty"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"omitempty,min=0" yaml:"max_idle_conns" json:"max_idle_conns,omitempty"`
}

// DSN returns the PostgreSQL connection string.
func (c *PostgresConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		c.Host, c.Port, c.User, c.Password, c.Database)
	if c.SSLMode != "" {
		dsn += fmt.Sprintf(" sslmode=%s", c.SSLMode)
	}
	return dsn
}

// BadgerConfig contains BadgerDB-specific configuration.
type BadgerConfig struct {
	// Path is the database directory.
	// Default: $XDG_DATA_HOME/sandboxd/audit
	Path string `mapstructure:"path" yaml:"path" json:"path,omitempty"`
}

// Config selects and configures the audit backend.
type Config struct {
	// Enabled turns auditing on. Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// Type is one of sqlite, postgres, badger. Default: sqlite
	Type StoreType `mapstructure:"type" validate:"omitempty,oneof=sqlite postgres badger" yaml:"type" json:"type,omitempty"`

	SQLite   SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite" json:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres" json:"postgres"`
	Badger   BadgerConfig   `mapstructure:"badger" yaml:"badger" json:"badger"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = StoreTypeSQLite
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = filepath.Join(DataDir(), "audit.db")
	}
	if c.Badger.Path == "" {
		c.Badger.Path = filepath.Join(DataDir(), "audit")
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = "disable"
	}
	if c.Postgres.MaxOpenConns == 0 {
		c.Postgres.MaxOpenConns = 10
	}
	if c.Postgres.MaxIdleConns == 0 {
		c.Postgres.MaxIdleConns = 2
	}
}

// Validate checks that the selected backend is fully configured.
func (c *Config) Validate() error {
	switch c.Type {
	case StoreTypeSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case StoreTypePostgres:
		if c.Postgres.Host == "" {
			return fmt.Errorf("postgres host is required")
		}
		if c.Postgres.Database == "" {
			return fmt.Errorf("postgres database is required")
		}
		if c.Postgres.User == "" {
			return fmt.Errorf("postgres user is required")
		}
	case StoreTypeBadger:
		if c.Badger.Path == "" {
			return fmt.Errorf("badger path is required")
		}
	default:
		return fmt.Errorf("unsupported audit store type: %s", c.Type)
	}
	return nil
}

// WritablePath returns the filesystem path the backend writes to, or "" for
// network backends.
func (c *Config) WritablePath() string {
	switch c.Type {
	case StoreTypeSQLite:
		return filepath.Dir(c.SQLite.Path)
	case StoreTypeBadger:
		return c.Badger.Path
	default:
		return ""
	}
}

// DataDir returns $XDG_DATA_HOME/sandboxd, falling back to
// ~/.local/share/sandboxd.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "sandboxd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "sandboxd")
}
