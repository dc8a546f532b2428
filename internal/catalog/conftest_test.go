package catalog

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kailas-cloud/searchsync/internal/domain/search/index"
	"github.com/kailas-cloud/searchsync/internal/usecase/indexing"
)

// openDB returns a migrated in-memory database private to the test.
func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   logger.Discard,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := AutoMigrate(db); err != nil {
		t.Fatal(err)
	}
	return db
}

func newRegistry(t *testing.T) *index.Registry {
	t.Helper()
	reg := index.NewRegistry(nil)
	if err := Register(reg); err != nil {
		t.Fatal(err)
	}
	return reg
}

type dispatch struct {
	op   string // "update" or "remove"
	obj  any
	opts int
}

// mockDispatcher records forwarded changes.
type mockDispatcher struct {
	calls []dispatch
}

func (m *mockDispatcher) InsertOrUpdate(_ context.Context, instance any, opts ...indexing.CallOption) {
	m.calls = append(m.calls, dispatch{op: "update", obj: instance, opts: len(opts)})
}

func (m *mockDispatcher) Remove(_ context.Context, instance any) {
	m.calls = append(m.calls, dispatch{op: "remove", obj: instance})
}

func (m *mockDispatcher) reset() { m.calls = nil }
