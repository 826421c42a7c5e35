package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/marmos91/sandboxd/internal/logger"
)

// Key layout: "e:<uuidv7>" -> Event (JSON). UUIDv7 strings sort by creation
// time, so a reverse prefix scan yields newest first.
const prefixEvent = "e:"

func keyEvent(id string) []byte {
	return []byte(prefixEvent + id)
}

// BadgerStore implements Store on an embedded BadgerDB.
type BadgerStore struct {
	db     *badgerdb.DB
	closed atomic.Bool
}

// NewBadgerStore opens (or creates) the database directory in cfg.Path.
func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create badger directory: %w", err)
	}

	opts := badgerdb.DefaultOptions(cfg.Path).
		WithLogger(badgerLogger{}).
		WithLoggingLevel(badgerdb.WARNING).
		WithCompression(options.None).
		WithBlockCacheSize(16 << 20).
		WithIndexCacheSize(8 << 20)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.Path, err)
	}
	return &BadgerStore{db: db}, nil
}

// Record stores e under a time-ordered key.
func (s *BadgerStore) Record(ctx context.Context, e Event) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := prepare(&e); err != nil {
		return err
	}

	data, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	err = s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(keyEvent(e.ID), data)
	})
	if err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	return nil
}

// List scans events newest first and applies f.
func (s *BadgerStore) List(ctx context.Context, f Filter) ([]Event, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	limit := f.limit()
	var events []Event

	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(prefixEvent)

		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts at the last key not greater than the seek key.
		seek := append([]byte(prefixEvent), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(opts.Prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var e Event
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("decode audit event %s: %w", it.Item().Key(), err)
			}

			if !f.matches(&e) {
				continue
			}
			events = append(events, e)
			if len(events) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}

// Healthcheck verifies a read transaction can be opened.
func (s *BadgerStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}
	if err := s.db.View(func(*badgerdb.Txn) error { return nil }); err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}
	return nil
}

// Close closes the database. Safe to call more than once.
func (s *BadgerStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

var _ Store = (*BadgerStore)(nil)

// badgerLogger routes badger's internal logging through the server logger.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	logger.Error("badger: " + strings.TrimRight(fmt.Sprintf(format, args...), "\r\n"))
}

func (badgerLogger) Warningf(format string, args ...any) {
	logger.Warn("badger: " + strings.TrimRight(fmt.Sprintf(format, args...), "\r\n"))
}

func (badgerLogger) Infof(format string, args ...any) {
	logger.Debug("badger: " + strings.TrimRight(fmt.Sprintf(format, args...), "\r\n"))
}

func (badgerLogger) Debugf(format string, args ...any) {
	logger.Debug("badger: " + strings.TrimRight(fmt.Sprintf(format, args...), "\r\n"))
}
