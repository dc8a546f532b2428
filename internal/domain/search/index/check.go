package index

import (
	"fmt"

	"github.com/kailas-cloud/searchsync/internal/domain/search/field"
)

// WarnMissingField is the check ID for declarations naming no attribute.
const WarnMissingField = "search.W004"

// Warning is a non-fatal structural problem in a model's field declarations.
type Warning struct {
	ID      string
	Model   string
	Field   string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: (%s) %s", w.Model, w.ID, w.Message)
}

// Check validates the declarations of every registered indexed model.
func (r *Registry) Check() []Warning {
	var out []Warning
	for _, m := range r.Models() {
		out = append(out, r.checkModel(m)...)
	}
	return out
}

func (r *Registry) checkModel(m *Model) []Warning {
	if m.abstract || !m.Indexed() {
		return nil
	}
	var out []Warning
	for _, d := range r.SearchFields(m) {
		out = append(out, checkField(m.ContentType(), m, d)...)
	}
	return out
}

func checkField(owner string, m field.Model, d field.Descriptor) []Warning {
	if d.DefinitionOwner(m) == nil {
		return []Warning{{
			ID:      WarnMissingField,
			Model:   owner,
			Field:   d.Name(),
			Message: fmt.Sprintf("%s search fields contain non-existent field '%s'", owner, d.Name()),
		}}
	}
	if d.Kind() != field.KindRelated {
		return nil
	}
	rel := d.Relation(m)
	if rel == nil || rel.FieldSchema == nil {
		return nil
	}
	var out []Warning
	target := field.ForSchema(rel.FieldSchema)
	for _, child := range d.Children() {
		for _, w := range checkField(owner, target, child) {
			w.Field = d.Name() + "." + w.Field
			out = append(out, w)
		}
	}
	return out
}
