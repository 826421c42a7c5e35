// Package audit persists a trail of session activity: authentication
// attempts, executed commands and session ends.
//
// Backends:
//   - sqlite / postgres: GORM-managed table audit_events
//   - badger: embedded key-value store keyed by time-ordered event id
//   - nop: used when auditing is disabled
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind classifies an audit event.
type Kind string

const (
	// KindAuth records a handshake outcome.
	KindAuth Kind = "auth"

	// KindCommand records one executed command.
	KindCommand Kind = "command"

	// KindSession records the end of a session.
	KindSession Kind = "session"
)

// Event is one audit record.
type Event struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id" yaml:"id"`
	SessionID  string    `gorm:"index;size:36;not null" json:"session_id" yaml:"session_id"`
	ClientAddr string    `gorm:"size:255" json:"client_addr" yaml:"client_addr"`
	Kind       Kind      `gorm:"index;size:16;not null" json:"kind" yaml:"kind"`
	Verb       string    `gorm:"size:16" json:"verb,omitempty" yaml:"verb,omitempty"`
	Argument   string    `gorm:"size:4096" json:"argument,omitempty" yaml:"argument,omitempty"`
	Outcome    string    `gorm:"size:32" json:"outcome" yaml:"outcome"`
	Detail     string    `gorm:"size:1024" json:"detail,omitempty" yaml:"detail,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"created_at" yaml:"created_at"`
}

// TableName returns the table name for GORM.
func (Event) TableName() string {
	return "audit_events"
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	SessionID string
	Kind      Kind
	Since     time.Time
	// Limit caps the number of events returned (0 = DefaultListLimit).
	Limit int
}

// DefaultListLimit is the List limit when Filter.Limit is zero.
const DefaultListLimit = 100

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

func (f Filter) matches(e *Event) bool {
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}

// Store persists audit events.
//
// Thread safety: implementations must be safe for concurrent use, since every
// session goroutine records into the same store.
type Store interface {
	// Record persists e. Missing ID and CreatedAt are filled in.
	Record(ctx context.Context, e Event) error

	// List returns matching events, newest first.
	List(ctx context.Context, f Filter) ([]Event, error)

	// Healthcheck verifies the backend is reachable.
	Healthcheck(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("audit: store closed")

// New opens the store selected by cfg. A disabled configuration yields a
// NopStore.
func New(cfg *Config) (Store, error) {
	if cfg == nil || !cfg.Enabled {
		return NopStore{}, nil
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid audit configuration: %w", err)
	}

	switch cfg.Type {
	case StoreTypeSQLite, StoreTypePostgres:
		return NewGORMStore(cfg)
	case StoreTypeBadger:
		return NewBadgerStore(cfg.Badger)
	default:
		return nil, fmt.Errorf("unsupported audit store type: %s", cfg.Type)
	}
}

// prepare fills in generated fields.
func prepare(e *Event) error {
	if e.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate event id: %w", err)
		}
		e.ID = id.String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return nil
}

// NopStore discards events.
type NopStore struct{}

func (NopStore) Record(context.Context, Event) error           { return nil }
func (NopStore) List(context.Context, Filter) ([]Event, error) { return nil, nil }
func (NopStore) Healthcheck(context.Context) error             { return nil }
func (NopStore) Close() error                                  { return nil }

var _ Store = NopStore{}
