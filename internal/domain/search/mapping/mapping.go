package mapping

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"gorm.io/gorm/schema"

	"github.com/kailas-cloud/searchsync/internal/domain/search/field"
	"github.com/kailas-cloud/searchsync/internal/domain/search/index"
)

// Reserved document columns.
const (
	ContentTypeColumn = "content_type"
	FilterSuffix      = "_filter"
	IDSeparator       = ":"
)

// Mapping errors.
var (
	ErrNoPrimaryKey  = errors.New("instance has no primary key value")
	ErrModelMismatch = errors.New("instance does not belong to the mapped model")
)

// Column describes one document column.
type Column struct {
	Name         string
	Kind         field.Kind
	Type         string
	Boost        float64
	PartialMatch bool
	// Many is set on related columns holding a list of nested documents.
	Many     bool
	Children []Column
}

// Mapping translates one model into backend documents.
type Mapping struct {
	reg   *index.Registry
	model *index.Model
}

// New creates a mapping for m.
func New(reg *index.Registry, m *index.Model) *Mapping {
	return &Mapping{reg: reg, model: m}
}

// For returns the mapping of the registered model of instance.
func For(reg *index.Registry, instance any) (*Mapping, error) {
	m, err := reg.ModelOf(instance)
	if err != nil {
		return nil, err
	}
	return New(reg, m), nil
}

// Model returns the mapped model.
func (mp *Mapping) Model() *index.Model { return mp.model }

// DocumentType identifies the document schema; models sharing a root share it.
func (mp *Mapping) DocumentType() string {
	return mp.model.ToplevelContentType()
}

// IndexName returns the physical index name for the given prefix.
func (mp *Mapping) IndexName(prefix string) string {
	return prefix + mp.DocumentType()
}

// ContentType returns the "namespace.TypeName" identity of the model.
func (mp *Mapping) ContentType() string {
	return mp.model.ContentType()
}

// AllContentTypes lists the content types of the model and its indexed
// ancestors, most specific first.
func (mp *Mapping) AllContentTypes() []string {
	chain := mp.model.Ancestry()
	out := make([]string, len(chain))
	for i, m := range chain {
		out[i] = m.ContentType()
	}
	return out
}

// FieldColumnName returns the document column of d. Fields declared below the
// root of the hierarchy get a "{namespace}_{typename}__" prefix.
func (mp *Mapping) FieldColumnName(d field.Descriptor) string {
	return mp.columnName(d, mp.ownerOf(d))
}

func (mp *Mapping) ownerOf(d field.Descriptor) reflect.Type {
	for _, b := range mp.reg.Bindings(mp.model) {
		if b.Field.Key() == d.Key() {
			return b.Owner
		}
	}
	return d.DefinitionOwner(mp.model)
}

func (mp *Mapping) columnName(d field.Descriptor, owner reflect.Type) string {
	name := d.AttributeName(mp.model)
	if d.Kind() == field.KindFilter {
		name += FilterSuffix
	}
	if owner == nil || owner == mp.model.Toplevel().Type() {
		return name
	}
	ns, typeName := mp.model.Namespace(), owner.Name()
	if om, ok := mp.reg.Lookup(owner); ok {
		ns, typeName = om.Namespace(), om.Name()
	}
	return strings.ToLower(ns+"_"+typeName) + "__" + name
}

// DocumentID returns "{token}:{pk}" for instance. Subtypes keep their own
// tables and key sequences, so the token of the exact type keeps documents
// of one hierarchy apart inside the shared index.
func (mp *Mapping) DocumentID(ctx context.Context, instance any) (string, error) {
	rv, err := mp.value(instance)
	if err != nil {
		return "", err
	}
	s := mp.model.Schema()
	if s == nil || s.PrioritizedPrimaryField == nil {
		return "", fmt.Errorf("%s: %w", mp.model, ErrNoPrimaryKey)
	}
	v, isZero := s.PrioritizedPrimaryField.ValueOf(ctx, rv)
	if isZero {
		return "", fmt.Errorf("%s: %w", mp.model, ErrNoPrimaryKey)
	}
	return mp.model.ContentTypeToken() + IDSeparator + fmt.Sprint(v), nil
}

// SplitDocumentID returns the content type token and primary key of a
// document id.
func SplitDocumentID(id string) (token, pk string, ok bool) {
	return strings.Cut(id, IDSeparator)
}

// Document builds the flat document of instance. Fields without a declaring
// type are skipped. Related fields nest their children under the relation column.
func (mp *Mapping) Document(ctx context.Context, instance any) (map[string]any, error) {
	if _, err := mp.value(instance); err != nil {
		return nil, err
	}
	doc := make(map[string]any)
	for _, b := range mp.reg.Bindings(mp.model) {
		if b.Owner == nil {
			continue
		}
		col := mp.columnName(b.Field, b.Owner)
		v := b.Field.Value(ctx, mp.model, instance)
		if b.Field.Kind() == field.KindRelated {
			doc[col] = mp.nested(ctx, b.Field, mp.model, v)
			continue
		}
		doc[col] = v
	}
	doc[ContentTypeColumn] = mp.AllContentTypes()
	return doc, nil
}

func (mp *Mapping) value(instance any) (reflect.Value, error) {
	rv := reflect.Indirect(reflect.ValueOf(instance))
	if !rv.IsValid() || rv.Type() != mp.model.Type() {
		return reflect.Value{}, fmt.Errorf("%T for %s: %w", instance, mp.model, ErrModelMismatch)
	}
	return rv, nil
}

func (mp *Mapping) nested(ctx context.Context, d field.Descriptor, owner field.Model, v any) any {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	target := mp.relatedModel(d, owner, rv.Type())

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]map[string]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if item := mp.child(ctx, d, target, rv.Index(i).Interface()); item != nil {
				out = append(out, item)
			}
		}
		return out
	case reflect.Struct:
		return mp.child(ctx, d, target, rv.Interface())
	default:
		return v
	}
}

func (mp *Mapping) child(ctx context.Context, d field.Descriptor, target field.Model, obj any) map[string]any {
	rv := reflect.Indirect(reflect.ValueOf(obj))
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return nil
	}
	doc := make(map[string]any)
	for _, c := range d.Children() {
		col := childColumn(c, target)
		v := c.Value(ctx, target, rv.Interface())
		if c.Kind() == field.KindRelated {
			doc[col] = mp.nested(ctx, c, target, v)
			continue
		}
		doc[col] = v
	}
	return doc
}

// relatedModel resolves the metadata of a relation target: the registered
// model when there is one, the relation schema otherwise.
func (mp *Mapping) relatedModel(d field.Descriptor, owner field.Model, t reflect.Type) field.Model {
	for t.Kind() == reflect.Slice || t.Kind() == reflect.Array || t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if m, ok := mp.reg.Lookup(t); ok && m.Schema() != nil {
		return m
	}
	if rel := d.Relation(owner); rel != nil && rel.FieldSchema != nil {
		return field.ForSchema(rel.FieldSchema)
	}
	return field.ForSchema(nil)
}

func childColumn(d field.Descriptor, target field.Model) string {
	name := d.AttributeName(target)
	if d.Kind() == field.KindFilter {
		name += FilterSuffix
	}
	return name
}

// Columns lists every column a document of this type may carry: the union of
// the columns of all registered models sharing the document type.
func (mp *Mapping) Columns() []Column {
	var out []Column
	seen := make(map[string]bool)
	for _, m := range mp.reg.AllIndexedModels() {
		if m.ToplevelContentType() != mp.DocumentType() {
			continue
		}
		sub := New(mp.reg, m)
		for _, b := range mp.reg.Bindings(m) {
			if b.Owner == nil {
				continue
			}
			c := sub.column(b.Field, m, sub.columnName(b.Field, b.Owner))
			if seen[c.Name] {
				continue
			}
			seen[c.Name] = true
			out = append(out, c)
		}
	}
	return out
}

func (mp *Mapping) column(d field.Descriptor, m field.Model, name string) Column {
	c := Column{
		Name:         name,
		Kind:         d.Kind(),
		Type:         d.DeclaredType(m),
		Boost:        d.Boost(),
		PartialMatch: d.PartialMatch(),
	}
	if d.Kind() != field.KindRelated {
		return c
	}
	target := field.ForSchema(nil)
	if rel := d.Relation(m); rel != nil {
		c.Many = rel.Type == schema.HasMany || rel.Type == schema.Many2Many
		if rel.FieldSchema != nil {
			target = field.ForSchema(rel.FieldSchema)
		}
	}
	for _, child := range d.Children() {
		c.Children = append(c.Children, mp.column(child, target, childColumn(child, target)))
	}
	return c
}
