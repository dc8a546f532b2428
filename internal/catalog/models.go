// Package catalog is the storefront host: the entities kept in sync with the
// search backends and the gorm wiring that dispatches their changes.
package catalog

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kailas-cloud/searchsync/internal/domain/search/field"
	"github.com/kailas-cloud/searchsync/internal/domain/search/index"
)

// Namespace is the content type namespace of catalog entities.
const Namespace = "shop"

// Product statuses.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Category groups products.
type Category struct {
	ID   uint
	Name string
	Slug string `gorm:"uniqueIndex"`
}

func (Category) SearchFields() []field.Descriptor {
	return []field.Descriptor{
		field.Search("name", field.PartialMatch()),
		field.Filter("slug"),
	}
}

// Product is the root of the product hierarchy. Drafts are not indexed.
type Product struct {
	ID          uint
	Title       string
	Description string
	SKU         string
	Price       int
	Status      string
	CategoryID  *uint
	Category    *Category
	Variants    []ProductVariant `gorm:"foreignKey:ProductID"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Product) SearchFields() []field.Descriptor {
	return []field.Descriptor{
		field.Search("title", field.Boost(2), field.PartialMatch()),
		field.Search("description"),
		field.Filter("sku"),
		field.Filter("price"),
		field.Filter("status"),
		field.Related("category", field.Search("name"), field.Filter("slug")),
		field.Related("variants", field.Search("name"), field.Filter("color")),
	}
}

func (Product) IndexedScope(db *gorm.DB) *gorm.DB {
	return db.Where("status <> ?", StatusDraft)
}

func (p *Product) String() string { return fmt.Sprintf("product %d %q", p.ID, p.Title) }

// DigitalProduct is a downloadable product. It shares the product index.
type DigitalProduct struct {
	Product
	Format   string
	FileSize int
}

func (DigitalProduct) SearchFields() []field.Descriptor {
	return append(Product{}.SearchFields(),
		field.Search("format"),
		field.Filter("file_size", field.Type("int")),
	)
}

// ProductVariant is a purchasable option of a product. Variants are indexed
// as part of their product.
type ProductVariant struct {
	ID        uint
	ProductID uint
	Name      string
	Color     string
}

// Order is indexed separately from products.
type Order struct {
	ID            uint
	Number        string `gorm:"uniqueIndex"`
	CustomerEmail string
	Total         int
	Status        string
	CreatedAt     time.Time
}

func (Order) SearchFields() []field.Descriptor {
	return []field.Descriptor{
		field.Search("number", field.PartialMatch()),
		field.Search("customer_email"),
		field.Filter("status"),
		field.Filter("total"),
	}
}

// Register adds the catalog entities to reg.
func Register(reg *index.Registry) error {
	for _, m := range []any{&Category{}, &Product{}, &DigitalProduct{}, &ProductVariant{}, &Order{}} {
		if _, err := reg.Register(m, index.Namespace(Namespace)); err != nil {
			return fmt.Errorf("register %T: %w", m, err)
		}
	}
	return nil
}

// AutoMigrate creates the catalog tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Category{}, &Product{}, &ProductVariant{}, &DigitalProduct{}, &Order{}); err != nil {
		return fmt.Errorf("migrate catalog: %w", err)
	}
	return nil
}
