package bleveidx

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/kailas-cloud/searchsync/internal/domain/search/field"
	"github.com/kailas-cloud/searchsync/internal/domain/search/index"
	"github.com/kailas-cloud/searchsync/internal/domain/search/mapping"
	"github.com/kailas-cloud/searchsync/internal/usecase/indexing"
)

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
		field.Search("title", field.Boost(2), field.PartialMatch()),
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
	return append(Product{}.SearchFields(), field.Search("format"))
}

func newRegistry(t *testing.T) *index.Registry {
	t.Helper()
	reg := index.NewRegistry(nil)
	reg.MustRegister(&Product{}, index.Namespace("shop"))
	reg.MustRegister(&DigitalProduct{}, index.Namespace("shop"))
	return reg
}

func model(t *testing.T, reg *index.Registry, v any) *index.Model {
	t.Helper()
	m, err := reg.ModelOf(v)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func mappingFor(t *testing.T, b *Backend, obj any) *mapping.Mapping {
	t.Helper()
	mp, err := mapping.For(b.reg, obj)
	if err != nil {
		t.Fatal(err)
	}
	return mp
}

func ids(hits []indexing.Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	sort.Strings(out)
	return out
}

func TestBackend_AddSearchDelete(t *testing.T) {
	reg := newRegistry(t)
	b := New("", "", reg, nil)
	t.Cleanup(func() { _ = b.Close() })
	ctx := context.Background()

	mug := &Product{ID: 1, Title: "Coffee Mug", SKU: "ZX-99", Variants: []Variant{{Name: "Crimson"}}}
	ebook := &DigitalProduct{Product: Product{ID: 2, Title: "Coffee Handbook"}, Format: "epub"}
	for _, obj := range []any{mug, ebook} {
		if err := b.Add(ctx, obj); err != nil {
			t.Fatalf("Add(%T): %v", obj, err)
		}
	}

	product := model(t, reg, &Product{})
	digital := model(t, reg, &DigitalProduct{})

	tests := []struct {
		name  string
		m     *index.Model
		query string
		want  []string
	}{
		{"root sees subtypes", product, "coffee", []string{"shop_digitalproduct:2", "shop_product:1"}},
		{"subtype only", digital, "coffee", []string{"shop_digitalproduct:2"}},
		{"subtype column", digital, "epub", []string{"shop_digitalproduct:2"}},
		{"related column", product, "crimson", []string{"shop_product:1"}},
		{"partial match", product, "hand", []string{"shop_digitalproduct:2"}},
		{"empty lists all", product, "", []string{"shop_digitalproduct:2", "shop_product:1"}},
		{"filters are not searched", product, "zx", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := b.Search(ctx, tt.m, tt.query, 10)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			got := ids(hits)
			if len(got) != len(tt.want) {
				t.Fatalf("hits = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("hits = %v, want %v", got, tt.want)
				}
			}
		})
	}

	if err := b.Delete(ctx, ebook); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	hits, err := b.Search(ctx, product, "coffee", 10)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(hits); len(got) != 1 || got[0] != "shop_product:1" {
		t.Errorf("after delete hits = %v", got)
	}
}

func TestBackend_AddBulk(t *testing.T) {
	reg := newRegistry(t)
	b := New("", "", reg, nil)
	t.Cleanup(func() { _ = b.Close() })
	ctx := context.Background()
	product := model(t, reg, &Product{})

	objs := []any{
		&Product{ID: 1, Title: "Red Pen"},
		&Product{ID: 2, Title: "Blue Pen"},
		&Product{ID: 3, Title: "Notebook"},
	}
	if err := b.AddBulk(ctx, product, objs); err != nil {
		t.Fatalf("AddBulk: %v", err)
	}

	hits, err := b.Search(ctx, product, "pen", 10)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(hits); len(got) != 2 || got[0] != "shop_product:1" || got[1] != "shop_product:2" {
		t.Errorf("hits = %v", got)
	}

	if err := b.AddBulk(ctx, product, []any{&Product{}}); err == nil {
		t.Error("expected error for missing primary key")
	}
}

func TestBackend_PersistsToDisk(t *testing.T) {
	reg := newRegistry(t)
	dir := t.TempDir()
	ctx := context.Background()
	product := model(t, reg, &Product{})

	b := New(dir, "search:", reg, nil)
	if got := b.IndexForModel(product); got != "search:shop_product" {
		t.Errorf("IndexForModel() = %q", got)
	}
	if err := b.Add(ctx, &Product{ID: 5, Title: "Lamp"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "search_shop_product.bleve")); err != nil {
		t.Fatalf("index directory missing: %v", err)
	}

	reopened := New(dir, "search:", reg, nil)
	t.Cleanup(func() { _ = reopened.Close() })
	hits, err := reopened.Search(ctx, product, "lamp", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "shop_product:5" {
		t.Errorf("hits = %+v", hits)
	}
}

func TestBackend_UnregisteredObject(t *testing.T) {
	b := New("", "", newRegistry(t), nil)
	t.Cleanup(func() { _ = b.Close() })

	if err := b.Add(context.Background(), &Variant{ID: 1}); err == nil {
		t.Error("expected error for unregistered type")
	}
	if err := b.Delete(context.Background(), &Variant{ID: 1}); err == nil {
		t.Error("expected error for unregistered type")
	}
}

func TestBuildMapping(t *testing.T) {
	reg := newRegistry(t)
	b := New("", "", reg, nil)
	im := BuildMapping(mappingFor(t, b, &Product{}))

	if im.DefaultMapping.Dynamic {
		t.Error("document mapping should be static")
	}
	props := im.DefaultMapping.Properties
	for _, name := range []string{"title", "sku_filter", "price_filter", "variants", "shop_digitalproduct__format", "content_type"} {
		if _, ok := props[name]; !ok {
			t.Errorf("missing property %q in %v", name, props)
		}
	}
	if fm := props["price_filter"].Fields[0]; fm.Type != "number" {
		t.Errorf("price type = %q, want number", fm.Type)
	}
	if fm := props["content_type"].Fields[0]; fm.Analyzer != "keyword" {
		t.Errorf("content_type analyzer = %q", fm.Analyzer)
	}
	if _, ok := props["variants"].Properties["name"]; !ok {
		t.Error("related column should map its children")
	}
}

func TestBackend_SubtypeSharesKeyWithRoot(t *testing.T) {
	reg := newRegistry(t)
	b := New("", "", reg, nil)
	t.Cleanup(func() { _ = b.Close() })
	ctx := context.Background()
	product := model(t, reg, &Product{})

	mug := &Product{ID: 1, Title: "Coffee Mug"}
	ebook := &DigitalProduct{Product: Product{ID: 1, Title: "Coffee Handbook"}, Format: "epub"}
	for _, obj := range []any{mug, ebook} {
		if err := b.Add(ctx, obj); err != nil {
			t.Fatalf("Add(%T): %v", obj, err)
		}
	}

	hits, err := b.Search(ctx, product, "coffee", 10)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(hits); len(got) != 2 {
		t.Fatalf("hits = %v, want both rows", got)
	}

	if err := b.Delete(ctx, ebook); err != nil {
		t.Fatal(err)
	}
	hits, err = b.Search(ctx, product, "mug", 10)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(hits); len(got) != 1 || got[0] != "shop_product:1" {
		t.Errorf("deleting the subtype row removed the root document: %v", got)
	}
}

func TestBackend_Reset(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()
	product := model(t, reg, &Product{})
	digital := model(t, reg, &DigitalProduct{})

	for _, dir := range []string{"", t.TempDir()} {
		b := New(dir, "", reg, nil)
		if err := b.Add(ctx, &Product{ID: 1, Title: "Lamp"}); err != nil {
			t.Fatal(err)
		}
		if err := b.Reset(ctx, digital); err != nil {
			t.Fatalf("Reset(dir=%q): %v", dir, err)
		}
		hits, err := b.Search(ctx, product, "", 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(hits) != 0 {
			t.Errorf("dir=%q: hits after reset = %v", dir, ids(hits))
		}
		if err := b.Add(ctx, &Product{ID: 2, Title: "Desk"}); err != nil {
			t.Fatalf("Add after reset: %v", err)
		}
		_ = b.Close()
	}
}
