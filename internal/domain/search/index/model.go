package index

import (
	"path"
	"reflect"
	"strings"

	"gorm.io/gorm/schema"
)

// Model is the registered metadata of one entity type.
type Model struct {
	reg       *Registry
	typ       reflect.Type
	namespace string
	name      string
	abstract  bool
	schema    *schema.Schema
}

// Option configures a model registration.
type Option func(*Model)

// Namespace sets the application label used in content types.
// Defaults to the last element of the type's package path.
func Namespace(ns string) Option {
	return func(m *Model) { m.namespace = ns }
}

// Abstract marks the type as a mixin that is never indexed on its own.
func Abstract() Option {
	return func(m *Model) { m.abstract = true }
}

// Type returns the struct type of the model.
func (m *Model) Type() reflect.Type { return m.typ }

// Namespace returns the application label.
func (m *Model) Namespace() string { return m.namespace }

// Name returns the type name.
func (m *Model) Name() string { return m.name }

// Abstract reports whether the model is a mixin.
func (m *Model) Abstract() bool { return m.abstract }

// Schema returns the parsed gorm schema, nil for abstract mixins gorm cannot parse.
func (m *Model) Schema() *schema.Schema { return m.schema }

// Indexed reports whether the type carries the Indexed capability.
func (m *Model) Indexed() bool { return implementsIndexed(m.typ) }

// New returns a pointer to a zero value of the model type.
func (m *Model) New() any { return zero(m.typ) }

// ContentType returns the "namespace.TypeName" identity of the exact type.
func (m *Model) ContentType() string {
	return m.namespace + "." + m.name
}

// ContentTypeToken returns the lower-cased "namespace_typename" token.
func (m *Model) ContentTypeToken() string {
	return strings.ToLower(m.namespace + "_" + m.name)
}

// Parent returns the nearest concrete indexed ancestor, or nil.
func (m *Model) Parent() *Model {
	if m.reg == nil {
		return nil
	}
	return m.reg.ParentIndexedModel(m, true)
}

// Ancestry returns the model followed by its concrete indexed ancestors,
// most specific first.
func (m *Model) Ancestry() []*Model {
	chain := []*Model{m}
	seen := map[reflect.Type]bool{m.typ: true}
	for p := m.Parent(); p != nil && !seen[p.typ]; p = p.Parent() {
		seen[p.typ] = true
		chain = append(chain, p)
	}
	return chain
}

// Lineage returns the types of Ancestry.
func (m *Model) Lineage() []reflect.Type {
	chain := m.Ancestry()
	out := make([]reflect.Type, len(chain))
	for i, a := range chain {
		out[i] = a.typ
	}
	return out
}

// Toplevel returns the root-most indexed ancestor, or m itself.
func (m *Model) Toplevel() *Model {
	chain := m.Ancestry()
	return chain[len(chain)-1]
}

// IndexedContentType joins the tokens of the hierarchy from the root down.
func (m *Model) IndexedContentType() string {
	chain := m.Ancestry()
	tokens := make([]string, len(chain))
	for i, a := range chain {
		tokens[len(chain)-1-i] = a.ContentTypeToken()
	}
	return strings.Join(tokens, "_")
}

// ToplevelContentType returns the token of the root-most indexed ancestor.
func (m *Model) ToplevelContentType() string {
	return m.Toplevel().ContentTypeToken()
}

func (m *Model) String() string { return m.ContentType() }

func defaultNamespace(t reflect.Type) string {
	if p := t.PkgPath(); p != "" {
		return path.Base(p)
	}
	return "main"
}
