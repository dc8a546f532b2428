package redisearch

import (
	"context"
	"testing"

	"github.com/kailas-cloud/searchsync/internal/db"
	"github.com/kailas-cloud/searchsync/internal/domain/search/field"
	"github.com/kailas-cloud/searchsync/internal/domain/search/index"
	"github.com/kailas-cloud/searchsync/internal/domain/search/mapping"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	pingFn         func(ctx context.Context) error
	jsonSetFn      func(ctx context.Context, key, path string, data []byte) error
	jsonSetMultiFn func(ctx context.Context, items []db.JSONSetItem) error
	delFn          func(ctx context.Context, key string) error
	createIndexFn  func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn    func(ctx context.Context, name string, deleteDocs bool) error
	indexExistsFn  func(ctx context.Context, name string) (bool, error)
	searchTextFn   func(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)

	indexChecks int
}

func (m *mockStore) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func (m *mockStore) JSONSet(ctx context.Context, key, path string, data []byte) error {
	if m.jsonSetFn != nil {
		return m.jsonSetFn(ctx, key, path, data)
	}
	return nil
}

func (m *mockStore) JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error {
	if m.jsonSetMultiFn != nil {
		return m.jsonSetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string, deleteDocs bool) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name, deleteDocs)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	m.indexChecks++
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return true, nil
}

func (m *mockStore) SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if m.searchTextFn != nil {
		return m.searchTextFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

// --- Models ---

type Variant struct {
	ID        uint
	ProductID uint
	Name      string
}

type Product struct {
	ID       uint
	Title    string
	SKU      string
	Price    int
	Variants []Variant `gorm:"foreignKey:ProductID"`
}

func (Product) SearchFields() []field.Descriptor {
	return []field.Descriptor{
		field.Search("title", field.Boost(2)),
		field.Filter("sku"),
		field.Filter("price"),
		field.Related("variants", field.Search("name")),
	}
}

type DigitalProduct struct {
	Product
	Format string
}

func (DigitalProduct) SearchFields() []field.Descriptor {
	return append(Product{}.SearchFields(), field.Filter("format"))
}

func newTestBackend(t *testing.T) (*Backend, *mockStore, *index.Registry) {
	t.Helper()
	reg := index.NewRegistry(nil)
	reg.MustRegister(&Product{}, index.Namespace("shop"))
	reg.MustRegister(&DigitalProduct{}, index.Namespace("shop"))
	ms := &mockStore{}
	return New(ms, reg, "", nil), ms, reg
}

func mappingOf(t *testing.T, b *Backend, obj any) *mapping.Mapping {
	t.Helper()
	mp, err := mapping.For(b.reg, obj)
	if err != nil {
		t.Fatalf("mapping for %T: %v", obj, err)
	}
	return mp
}
