package audit

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreConformance exercises the Store contract against one backend.
func runStoreConformance(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("record fills id and timestamp", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Record(ctx, Event{SessionID: "s1", Kind: KindAuth, Outcome: "ok"}))

		events, err := s.List(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.NotEmpty(t, events[0].ID)
		assert.False(t, events[0].CreatedAt.IsZero())
		assert.Equal(t, KindAuth, events[0].Kind)
		assert.Equal(t, "ok", events[0].Outcome)
	})

	t.Run("list is newest first", func(t *testing.T) {
		s := newStore(t)
		base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		for i := 0; i < 3; i++ {
			require.NoError(t, s.Record(ctx, Event{
				SessionID: "s1",
				Kind:      KindCommand,
				Verb:      "READ",
				Argument:  fmt.Sprintf("f%d", i),
				Outcome:   "ok",
				CreatedAt: base.Add(time.Duration(i) * time.Second),
			}))
		}

		events, err := s.List(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, "f2", events[0].Argument)
		assert.Equal(t, "f1", events[1].Argument)
		assert.Equal(t, "f0", events[2].Argument)
	})

	t.Run("filters", func(t *testing.T) {
		s := newStore(t)
		base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		records := []Event{
			{SessionID: "a", Kind: KindAuth, Outcome: "ok", CreatedAt: base},
			{SessionID: "a", Kind: KindCommand, Verb: "LIST", Outcome: "ok", CreatedAt: base.Add(time.Second)},
			{SessionID: "b", Kind: KindAuth, Outcome: "failed", CreatedAt: base.Add(2 * time.Second)},
			{SessionID: "a", Kind: KindSession, Outcome: "closed", CreatedAt: base.Add(3 * time.Second)},
		}
		for _, e := range records {
			require.NoError(t, s.Record(ctx, e))
		}

		bySession, err := s.List(ctx, Filter{SessionID: "a"})
		require.NoError(t, err)
		assert.Len(t, bySession, 3)

		byKind, err := s.List(ctx, Filter{Kind: KindAuth})
		require.NoError(t, err)
		require.Len(t, byKind, 2)
		assert.Equal(t, "b", byKind[0].SessionID)

		since, err := s.List(ctx, Filter{Since: base.Add(2 * time.Second)})
		require.NoError(t, err)
		assert.Len(t, since, 2)

		limited, err := s.List(ctx, Filter{Limit: 1})
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.Equal(t, KindSession, limited[0].Kind)
	})

	t.Run("concurrent records", func(t *testing.T) {
		s := newStore(t)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, s.Record(ctx, Event{
					SessionID: fmt.Sprintf("s%d", i),
					Kind:      KindCommand,
					Verb:      "TIME",
					Outcome:   "ok",
				}))
			}(i)
		}
		wg.Wait()

		events, err := s.List(ctx, Filter{Limit: 100})
		require.NoError(t, err)
		assert.Len(t, events, 20)
	})

	t.Run("healthcheck", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Healthcheck(ctx))
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreConformance(t, func(t *testing.T) Store {
		s, err := New(&Config{
			Enabled: true,
			Type:    StoreTypeSQLite,
			SQLite:  SQLiteConfig{Path: filepath.Join(t.TempDir(), "audit.db")},
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestBadgerStore(t *testing.T) {
	runStoreConformance(t, func(t *testing.T) Store {
		s, err := New(&Config{
			Enabled: true,
			Type:    StoreTypeBadger,
			Badger:  BadgerConfig{Path: filepath.Join(t.TempDir(), "audit")},
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestBadgerStore_Closed(t *testing.T) {
	s, err := NewBadgerStore(BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Record(context.Background(), Event{SessionID: "x", Kind: KindAuth}), ErrClosed)
	_, err = s.List(context.Background(), Filter{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBadgerStore_Reopen(t *testing.T) {
	dir := t.TempDir()

	s, err := NewBadgerStore(BadgerConfig{Path: dir})
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), Event{SessionID: "x", Kind: KindAuth, Outcome: "ok"}))
	require.NoError(t, s.Close())

	s, err = NewBadgerStore(BadgerConfig{Path: dir})
	require.NoError(t, err)
	defer s.Close()

	events, err := s.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "x", events[0].SessionID)
}

func TestNew_Disabled(t *testing.T) {
	s, err := New(&Config{Enabled: false})
	require.NoError(t, err)
	assert.IsType(t, NopStore{}, s)

	s, err = New(nil)
	require.NoError(t, err)
	assert.IsType(t, NopStore{}, s)

	assert.NoError(t, s.Record(context.Background(), Event{}))
	events, err := s.List(context.Background(), Filter{})
	assert.NoError(t, err)
	assert.Empty(t, events)
}

func TestConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", "/data")
		cfg := &Config{}
		cfg.ApplyDefaults()

		assert.Equal(t, StoreTypeSQLite, cfg.Type)
		assert.Equal(t, "/data/sandboxd/audit.db", cfg.SQLite.Path)
		assert.Equal(t, "/data/sandboxd/audit", cfg.Badger.Path)
		assert.Equal(t, 5432, cfg.Postgres.Port)
		assert.Equal(t, "disable", cfg.Postgres.SSLMode)
		assert.Equal(t, "/data/sandboxd", cfg.WritablePath())
	})

	t.Run("postgres requires host", func(t *testing.T) {
		cfg := &Config{Enabled: true, Type: StoreTypePostgres}
		cfg.ApplyDefaults()
		assert.ErrorContains(t, cfg.Validate(), "host")
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := New(&Config{Enabled: true, Type: "mongo"})
		assert.ErrorContains(t, err, "unsupported")
	})

	t.Run("dsn", func(t *testing.T) {
		pg := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "audit", SSLMode: "require"}
		assert.Equal(t, "host=db port=5432 user=u password=p dbname=audit sslmode=require", pg.DSN())
	})
}
