package index

import (
	"reflect"

	"gorm.io/gorm"

	"github.com/kailas-cloud/searchsync/internal/domain/search/field"
)

// Indexed is implemented by entity types that take part in search indexing.
// SearchFields is called on a zero value and must not depend on instance state.
type Indexed interface {
	SearchFields() []field.Descriptor
}

// IndexedInstancer lets an entity name the instance that represents it in the
// index. Returning nil opts the entity out.
type IndexedInstancer interface {
	IndexedInstance() any
}

// Scoper narrows the set of rows considered indexable, e.g. to exclude
// soft-deleted or unpublished entities.
type Scoper interface {
	IndexedScope(db *gorm.DB) *gorm.DB
}

var indexedType = reflect.TypeOf((*Indexed)(nil)).Elem()

func implementsIndexed(t reflect.Type) bool {
	return t.Implements(indexedType) || reflect.PointerTo(t).Implements(indexedType)
}

func zero(t reflect.Type) any {
	return reflect.New(t).Interface()
}

func indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
