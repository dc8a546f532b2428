package field

import (
	"context"
	"reflect"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

var naming = schema.NamingStrategy{}

// matchName reports whether a Go identifier answers to a declared field name,
// either verbatim or through its default column spelling.
func matchName(goName, name string) bool {
	return goName == name || naming.ColumnName("", goName) == name
}

// ResolveField returns the schema field backing the descriptor, or nil when
// the name refers to a computed attribute.
func (d Descriptor) ResolveField(m Model) *schema.Field {
	s := m.Schema()
	if s == nil || d.name == "" {
		return nil
	}
	if f := s.LookUpField(d.name); f != nil && persisted(s, f) {
		return f
	}
	var best *schema.Field
	for _, f := range s.Fields {
		if !matchName(f.Name, d.name) || !persisted(s, f) {
			continue
		}
		if best == nil || len(f.BindNames) < len(best.BindNames) {
			best = f
		}
	}
	return best
}

// AttributeName returns the storage attribute name, falling back to the declared name.
func (d Descriptor) AttributeName(m Model) string {
	if f := d.ResolveField(m); f != nil && f.DBName != "" {
		return f.DBName
	}
	return d.name
}

// DeclaredType returns the explicit type override, the column data type,
// or "string".
func (d Descriptor) DeclaredType(m Model) string {
	if d.declaredType != "" {
		return d.declaredType
	}
	if f := d.ResolveField(m); f != nil && f.DataType != "" {
		return string(f.DataType)
	}
	return "string"
}

// DefinitionOwner returns the type in the model lineage that declares the field.
// Schema fields are placed by their bind path; plain struct fields by their
// promotion path. Methods belong to the root-most lineage type whose method set
// has them. Returns nil when nothing declares the name.
func (d Descriptor) DefinitionOwner(m Model) reflect.Type {
	lineage := m.Lineage()
	if len(lineage) == 0 {
		return nil
	}
	if f := d.ResolveField(m); f != nil && len(f.BindNames) > 0 {
		return ownerOf(lineage, f.BindNames)
	}
	if path := fieldPath(lineage[0], d.name); path != nil {
		return ownerOf(lineage, path)
	}
	for i := len(lineage) - 1; i >= 0; i-- {
		if hasMethod(reflect.PointerTo(lineage[i]), d.name) {
			return lineage[i]
		}
	}
	return nil
}

// Value extracts the indexable value of the field from instance. Missing
// attributes yield nil.
func (d Descriptor) Value(ctx context.Context, m Model, instance any) (v any) {
	defer func() {
		if recover() != nil {
			v = nil
		}
	}()

	rv := reflect.Indirect(reflect.ValueOf(instance))
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return nil
	}
	s := m.Schema()
	if f := d.ResolveField(m); f != nil && f.ValueOf != nil && s != nil && rv.Type() == s.ModelType {
		val, _ := f.ValueOf(ctx, rv)
		if sc, ok := val.(SearchableContenter); ok {
			return sc.SearchableContent()
		}
		return val
	}
	return attribute(rv, d.name)
}

// Relation resolves the relationship a related field traverses.
func (d Descriptor) Relation(m Model) *schema.Relationship {
	s := m.Schema()
	if d.kind != KindRelated || s == nil {
		return nil
	}
	f := d.ResolveField(m)
	if f == nil {
		return nil
	}
	s.Relationships.Mux.RLock()
	defer s.Relationships.Mux.RUnlock()
	return s.Relationships.Relations[f.Name]
}

// Prefetch applies the eager-loading strategy for a related field: joins for
// single-valued relations, batched preloads for multi-valued ones. Unresolvable
// relations leave db unchanged.
func (d Descriptor) Prefetch(db *gorm.DB, m Model) *gorm.DB {
	rel := d.Relation(m)
	if rel == nil {
		return db
	}
	switch rel.Type {
	case schema.BelongsTo, schema.HasOne:
		return db.Joins(rel.Name)
	case schema.HasMany, schema.Many2Many:
		return db.Preload(rel.Name)
	default:
		return db
	}
}

// persisted reports whether f is a stored column or a relation, as opposed
// to a field gorm ignores.
func persisted(s *schema.Schema, f *schema.Field) bool {
	if f.DBName != "" {
		return true
	}
	s.Relationships.Mux.RLock()
	defer s.Relationships.Mux.RUnlock()
	_, ok := s.Relationships.Relations[f.Name]
	return ok
}

func ownerOf(lineage []reflect.Type, names []string) reflect.Type {
	owner := lineage[0]
	cur := lineage[0]
	for _, n := range names[:len(names)-1] {
		sf, ok := cur.FieldByName(n)
		if !ok {
			break
		}
		cur = indirectType(sf.Type)
		for _, t := range lineage {
			if t == cur {
				owner = cur
				break
			}
		}
	}
	return owner
}

// fieldPath returns the Go names leading to the shallowest exported struct
// field matching name.
func fieldPath(t reflect.Type, name string) []string {
	t = indirectType(t)
	if t.Kind() != reflect.Struct {
		return nil
	}
	var best []int
	for _, sf := range reflect.VisibleFields(t) {
		if !sf.IsExported() || !matchName(sf.Name, name) {
			continue
		}
		if best == nil || len(sf.Index) < len(best) {
			best = sf.Index
		}
	}
	if best == nil {
		return nil
	}
	path := make([]string, 0, len(best))
	cur := t
	for _, i := range best {
		sf := cur.Field(i)
		path = append(path, sf.Name)
		cur = indirectType(sf.Type)
	}
	return path
}

func attribute(rv reflect.Value, name string) any {
	if path := fieldPath(rv.Type(), name); path != nil {
		fv := rv
		for _, n := range path {
			if fv.Kind() == reflect.Pointer {
				if fv.IsNil() {
					return nil
				}
				fv = fv.Elem()
			}
			fv = fv.FieldByName(n)
		}
		return settle(fv)
	}
	if !rv.CanAddr() {
		cp := reflect.New(rv.Type()).Elem()
		cp.Set(rv)
		rv = cp
	}
	pv := rv.Addr()
	for i := 0; i < pv.Type().NumMethod(); i++ {
		if matchName(pv.Type().Method(i).Name, name) {
			return call(pv.Method(i))
		}
	}
	return nil
}

func settle(fv reflect.Value) any {
	if !fv.IsValid() || !fv.CanInterface() {
		return nil
	}
	if fv.Kind() == reflect.Func {
		if fv.IsNil() {
			return nil
		}
		return call(fv)
	}
	return fv.Interface()
}

func call(fn reflect.Value) any {
	if fn.Type().NumIn() != 0 || fn.Type().NumOut() == 0 {
		return nil
	}
	return fn.Call(nil)[0].Interface()
}

func hasMethod(t reflect.Type, name string) bool {
	for i := 0; i < t.NumMethod(); i++ {
		if matchName(t.Method(i).Name, name) {
			return true
		}
	}
	return false
}

func indirectType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
