package catalog

import (
	"context"
	"sort"
	"testing"

	"gorm.io/gorm"

	"github.com/kailas-cloud/searchsync/internal/backend/bleveidx"
	"github.com/kailas-cloud/searchsync/internal/usecase/indexing"
)

func TestInstallSignals_Forwarding(t *testing.T) {
	db := openDB(t)
	d := &mockDispatcher{}
	if err := InstallSignals(db, d); err != nil {
		t.Fatalf("InstallSignals: %v", err)
	}

	cat := &Category{Name: "Kitchen", Slug: "kitchen"}
	if err := db.Create(cat).Error; err != nil {
		t.Fatal(err)
	}
	if len(d.calls) != 1 || d.calls[0].op != "update" || d.calls[0].obj != any(cat) {
		t.Fatalf("create: calls = %+v", d.calls)
	}

	d.reset()
	products := []Product{{Title: "Mug", Status: StatusPublished}, {Title: "Cup", Status: StatusDraft}}
	if err := db.Create(&products).Error; err != nil {
		t.Fatal(err)
	}
	if len(d.calls) != 2 {
		t.Fatalf("batch create: calls = %+v", d.calls)
	}
	if p, ok := d.calls[1].obj.(*Product); !ok || p.Title != "Cup" || p.ID == 0 {
		t.Errorf("batch create: second object = %#v", d.calls[1].obj)
	}

	d.reset()
	mug := &products[0]
	if err := db.Model(mug).Update("title", "Big Mug").Error; err != nil {
		t.Fatal(err)
	}
	if len(d.calls) != 1 || d.calls[0].obj.(*Product).Title != "Big Mug" {
		t.Fatalf("update: calls = %+v", d.calls)
	}

	d.reset()
	if err := db.Delete(mug).Error; err != nil {
		t.Fatal(err)
	}
	if len(d.calls) != 1 || d.calls[0].op != "remove" {
		t.Fatalf("delete: calls = %+v", d.calls)
	}

	d.reset()
	if err := db.Where("status = ?", StatusDraft).Delete(&Product{}).Error; err != nil {
		t.Fatal(err)
	}
	if len(d.calls) != 0 {
		t.Errorf("conditional delete without instance: calls = %+v", d.calls)
	}

	d.reset()
	if err := db.Create(&Category{Name: "Dup", Slug: "kitchen"}).Error; err == nil {
		t.Fatal("expected unique constraint error")
	}
	if len(d.calls) != 0 {
		t.Errorf("failed create: calls = %+v", d.calls)
	}
}

func TestInstallSignals_CreateOptions(t *testing.T) {
	db := openDB(t)
	d := &mockDispatcher{}
	if err := InstallSignals(db, d); err != nil {
		t.Fatal(err)
	}

	if err := db.Create(&Order{Number: "A-1"}).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&Product{Title: "Lamp", Status: StatusPublished}).Error; err != nil {
		t.Fatal(err)
	}
	if len(d.calls) != 2 || d.calls[0].opts != 1 || d.calls[1].opts != 1 {
		t.Fatalf("calls = %+v", d.calls)
	}
}

// syncedIndex wires gorm writes on db through the dispatch service into an
// in-memory bleve index and returns a product search over it.
func syncedIndex(t *testing.T) (*gorm.DB, func(q string) []string) {
	t.Helper()
	db := openDB(t)
	reg := newRegistry(t)

	idx := bleveidx.New("", "", reg, nil)
	t.Cleanup(func() { _ = idx.Close() })
	backends, err := indexing.NewBackends(indexing.Named{Name: "local", Backend: idx})
	if err != nil {
		t.Fatal(err)
	}
	if err := InstallSignals(db, indexing.New(reg, db, backends, nil)); err != nil {
		t.Fatal(err)
	}

	product, err := reg.ModelOf(&Product{})
	if err != nil {
		t.Fatal(err)
	}
	return db, func(q string) []string {
		t.Helper()
		hits, err := idx.Search(context.Background(), product, q, 10)
		if err != nil {
			t.Fatalf("Search(%q): %v", q, err)
		}
		ids := make([]string, len(hits))
		for i, h := range hits {
			ids[i] = h.ID
		}
		sort.Strings(ids)
		return ids
	}
}

func TestEndToEnd(t *testing.T) {
	db, search := syncedIndex(t)

	kitchen := &Category{Name: "Kitchen", Slug: "kitchen"}
	if err := db.Create(kitchen).Error; err != nil {
		t.Fatal(err)
	}
	mug := &Product{
		Title:    "Coffee Mug",
		Status:   StatusPublished,
		Category: kitchen,
		Variants: []ProductVariant{{Name: "Crimson", Color: "red"}},
	}
	if err := db.Create(mug).Error; err != nil {
		t.Fatal(err)
	}
	draft := &Product{Title: "Coffee Grinder", Status: StatusDraft}
	if err := db.Create(draft).Error; err != nil {
		t.Fatal(err)
	}

	if got := search("coffee"); len(got) != 1 || got[0] != "shop_product:1" {
		t.Fatalf("after create hits = %v", got)
	}
	if got := search("crimson"); len(got) != 1 {
		t.Errorf("variant text not indexed: %v", got)
	}
	if got := search("kitchen"); len(got) != 1 {
		t.Errorf("category text not indexed: %v", got)
	}

	draft.Status = StatusPublished
	if err := db.Save(draft).Error; err != nil {
		t.Fatal(err)
	}
	if got := search("grinder"); len(got) != 1 || got[0] != "shop_product:2" {
		t.Errorf("published draft hits = %v", got)
	}

	if err := db.Delete(mug).Error; err != nil {
		t.Fatal(err)
	}
	if got := search("mug"); len(got) != 0 {
		t.Errorf("deleted product still indexed: %v", got)
	}

	ebook := &DigitalProduct{Product: Product{Title: "Coffee Handbook", Status: StatusPublished}, Format: "epub"}
	if err := db.Create(ebook).Error; err != nil {
		t.Fatal(err)
	}
	if got := search("epub"); len(got) != 1 || got[0] != "shop_digitalproduct:1" {
		t.Errorf("digital product not in product index: %v", got)
	}
}

func TestEndToEnd_SubtypeAndRootShareKey(t *testing.T) {
	db, search := syncedIndex(t)

	mug := &Product{Title: "Coffee Mug", Status: StatusPublished}
	ebook := &DigitalProduct{Product: Product{Title: "Coffee Handbook", Status: StatusPublished}, Format: "epub"}
	if err := db.Create(mug).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(ebook).Error; err != nil {
		t.Fatal(err)
	}
	if mug.ID != ebook.ID {
		t.Fatalf("expected both tables to start at the same key, got %d and %d", mug.ID, ebook.ID)
	}

	if got := search("coffee"); len(got) != 2 {
		t.Fatalf("hits = %v, want the mug and the ebook", got)
	}
	if got := search("mug"); len(got) != 1 || got[0] != "shop_product:1" {
		t.Errorf("mug overwritten by the ebook: %v", got)
	}

	if err := db.Delete(ebook).Error; err != nil {
		t.Fatal(err)
	}
	if got := search("coffee"); len(got) != 1 || got[0] != "shop_product:1" {
		t.Errorf("after deleting the ebook hits = %v", got)
	}
}
