package index

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/kailas-cloud/searchsync/internal/domain/search/field"
)

// Binding pairs a search field with the type that declares it.
type Binding struct {
	Field field.Descriptor
	Owner reflect.Type
}

// Registry holds every entity type known to the indexing layer.
// It is populated at startup and read concurrently afterwards.
type Registry struct {
	mu       sync.RWMutex
	namer    schema.Namer
	cache    *sync.Map
	models   map[reflect.Type]*Model
	order    []*Model
	bindings map[reflect.Type][]Binding
	logger   *zap.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithNamer parses schemas with the naming strategy of the host database.
func WithNamer(n schema.Namer) RegistryOption {
	return func(r *Registry) { r.namer = n }
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		namer:    schema.NamingStrategy{},
		cache:    &sync.Map{},
		models:   make(map[reflect.Type]*Model),
		bindings: make(map[reflect.Type][]Binding),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds an entity type. model is a value or pointer of the struct type.
// Field declarations that do not resolve are logged as warnings.
func (r *Registry) Register(model any, opts ...Option) (*Model, error) {
	t := indirect(reflect.TypeOf(model))
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("register %T: %w", model, ErrNotStruct)
	}

	m := &Model{reg: r, typ: t, name: t.Name(), namespace: defaultNamespace(t)}
	for _, opt := range opts {
		opt(m)
	}

	s, err := schema.Parse(zero(t), r.cache, r.namer)
	if err != nil && !m.abstract {
		return nil, fmt.Errorf("register %s: %w: %w", t, ErrSchemaUnresolved, err)
	}
	if err == nil {
		m.schema = s
	}

	r.mu.Lock()
	if _, ok := r.models[t]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("register %s: %w", t, ErrDuplicateModel)
	}
	r.models[t] = m
	r.order = append(r.order, m)
	// Hierarchies may be registered in any order; ownership is recomputed lazily.
	r.bindings = make(map[reflect.Type][]Binding)
	r.mu.Unlock()

	for _, w := range r.checkModel(m) {
		r.logger.Warn("search field check failed",
			zap.String("id", w.ID),
			zap.String("model", w.Model),
			zap.String("field", w.Field),
			zap.String("message", w.Message),
		)
	}
	return m, nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(model any, opts ...Option) *Model {
	m, err := r.Register(model, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Lookup returns the registered model for t.
func (r *Registry) Lookup(t reflect.Type) (*Model, bool) {
	t = indirect(t)
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[t]
	return m, ok
}

// ModelOf returns the registered model of an instance.
func (r *Registry) ModelOf(instance any) (*Model, error) {
	t := indirect(reflect.TypeOf(instance))
	if t == nil {
		return nil, ErrModelNotFound
	}
	m, ok := r.Lookup(t)
	if !ok {
		return nil, fmt.Errorf("%s: %w", t, ErrModelNotFound)
	}
	return m, nil
}

// SearchFields returns the declared fields of m, deduplicated by kind and
// name. A later declaration replaces an earlier one in its original position.
func (r *Registry) SearchFields(m *Model) []field.Descriptor {
	idx, ok := zero(m.typ).(Indexed)
	if !ok {
		return nil
	}
	declared := idx.SearchFields()

	out := make([]field.Descriptor, 0, len(declared))
	pos := make(map[field.Key]int, len(declared))
	for _, d := range declared {
		if i, ok := pos[d.Key()]; ok {
			out[i] = d
			continue
		}
		pos[d.Key()] = len(out)
		out = append(out, d)
	}
	return out
}

// SearchableFields returns the full-text fields of m.
func (r *Registry) SearchableFields(m *Model) []field.Descriptor {
	return r.fieldsOfKind(m, field.KindSearch)
}

// FilterableFields returns the exact-match fields of m.
func (r *Registry) FilterableFields(m *Model) []field.Descriptor {
	return r.fieldsOfKind(m, field.KindFilter)
}

func (r *Registry) fieldsOfKind(m *Model, kind field.Kind) []field.Descriptor {
	var out []field.Descriptor
	for _, d := range r.SearchFields(m) {
		if d.Kind() == kind {
			out = append(out, d)
		}
	}
	return out
}

// ParentIndexedModel scans the direct embedded types of m for the first one
// carrying the Indexed capability. With requireConcrete only registered,
// non-abstract types qualify.
func (r *Registry) ParentIndexedModel(m *Model, requireConcrete bool) *Model {
	for i := 0; i < m.typ.NumField(); i++ {
		sf := m.typ.Field(i)
		if !sf.Anonymous {
			continue
		}
		ft := indirect(sf.Type)
		if ft.Kind() != reflect.Struct || ft == m.typ || !implementsIndexed(ft) {
			continue
		}
		parent, registered := r.Lookup(ft)
		if requireConcrete {
			if registered && !parent.abstract {
				return parent
			}
			continue
		}
		if !registered {
			parent = &Model{reg: r, typ: ft, name: ft.Name(), namespace: defaultNamespace(ft), abstract: true}
		}
		return parent
	}
	return nil
}

// AllIndexedModels lists every concrete indexed model in registration order.
func (r *Registry) AllIndexedModels() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Model
	for _, m := range r.order {
		if !m.abstract && m.Indexed() {
			out = append(out, m)
		}
	}
	return out
}

// ClassIsIndexable reports whether t is a registered concrete indexed type.
func (r *Registry) ClassIsIndexable(t reflect.Type) bool {
	m, ok := r.Lookup(t)
	return ok && !m.abstract && m.Indexed()
}

// IndexableQuery returns the query yielding every indexable row of m with
// related fields eagerly loaded.
func (r *Registry) IndexableQuery(db *gorm.DB, m *Model) *gorm.DB {
	q := r.Scope(db, m)
	for _, d := range r.SearchFields(m) {
		if d.Kind() == field.KindRelated {
			q = d.Prefetch(q, m)
		}
	}
	return q
}

// Scope returns the model query narrowed by the model's Scoper, without
// eager loading.
func (r *Registry) Scope(db *gorm.DB, m *Model) *gorm.DB {
	q := db.Model(m.New())
	if sc, ok := m.New().(Scoper); ok {
		q = sc.IndexedScope(q)
	}
	return q
}

// Bindings returns the search fields of m paired with their declaring types.
// The result is computed once per model.
func (r *Registry) Bindings(m *Model) []Binding {
	r.mu.RLock()
	cached, ok := r.bindings[m.typ]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	fields := r.SearchFields(m)
	out := make([]Binding, 0, len(fields))
	for _, d := range fields {
		out = append(out, Binding{Field: d, Owner: d.DefinitionOwner(m)})
	}

	r.mu.Lock()
	r.bindings[m.typ] = out
	r.mu.Unlock()
	return out
}

// Models returns every registered model, abstract ones included.
func (r *Registry) Models() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Model, len(r.order))
	copy(out, r.order)
	return out
}
