package field

import (
	"reflect"

	"gorm.io/gorm/schema"
)

// Model is the entity metadata descriptors resolve against.
type Model interface {
	Schema() *schema.Schema
	// Lineage lists the concrete indexed types of the model, most specific first.
	Lineage() []reflect.Type
}

// SearchableContenter is implemented by column values that expose
// a dedicated text representation for indexing.
type SearchableContenter interface {
	SearchableContent() []string
}

type schemaModel struct {
	s *schema.Schema
}

// ForSchema wraps a parsed schema that is not part of any indexed hierarchy,
// such as the target of a relation.
func ForSchema(s *schema.Schema) Model {
	return schemaModel{s: s}
}

func (m schemaModel) Schema() *schema.Schema { return m.s }

func (m schemaModel) Lineage() []reflect.Type {
	if m.s == nil {
		return nil
	}
	return []reflect.Type{m.s.ModelType}
}
