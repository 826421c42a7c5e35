package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GORMStore implements Store on SQLite or PostgreSQL via GORM.
type GORMStore struct {
	db     *gorm.DB
	config *Config
}

// NewGORMStore opens the database described by cfg and migrates the
// audit_events table.
func NewGORMStore(cfg *Config) (*GORMStore, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case StoreTypeSQLite:
		if cfg.SQLite.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		// WAL lets readers (sandboxd audit list) run while the server writes.
		dsn := cfg.SQLite.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		dialector = sqlite.Open(dsn)

	case StoreTypePostgres:
		dialector = postgres.Open(cfg.Postgres.DSN())

	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}
	switch cfg.Type {
	case StoreTypePostgres:
		sqlDB.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	case StoreTypeSQLite:
		// A single writer connection avoids SQLITE_BUSY under concurrent sessions.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&Event{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to run database migration: %w", err)
	}

	return &GORMStore{db: db, config: cfg}, nil
}

// Record inserts e.
func (s *GORMStore) Record(ctx context.Context, e Event) error {
	if err := prepare(&e); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(&e).Error; err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	return nil
}

// List returns matching events, newest first.
func (s *GORMStore) List(ctx context.Context, f Filter) ([]Event, error) {
	q := s.db.WithContext(ctx).Model(&Event{})
	if f.SessionID != "" {
		q = q.Where("session_id = ?", f.SessionID)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since.UTC())
	}

	var events []Event
	if err := q.Order("created_at DESC").Order("id DESC").Limit(f.limit()).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}

// Healthcheck pings the database.
func (s *GORMStore) Healthcheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (s *GORMStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

// DB returns the underlying GORM handle.
func (s *GORMStore) DB() *gorm.DB {
	return s.db
}

var _ Store = (*GORMStore)(nil)
