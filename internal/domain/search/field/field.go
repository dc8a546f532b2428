package field

import "fmt"

// Kind tags the descriptor variant.
type Kind int

// Descriptor kinds.
const (
	KindSearch Kind = iota + 1
	KindFilter
	KindRelated
)

func (k Kind) String() string {
	switch k {
	case KindSearch:
		return "search"
	case KindFilter:
		return "filter"
	case KindRelated:
		return "related"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Key identifies a descriptor within a model's field list.
type Key struct {
	Kind Kind
	Name string
}

// Descriptor is an immutable value object declaring one indexed field.
type Descriptor struct {
	kind         Kind
	name         string
	boost        float64
	partialMatch bool
	declaredType string
	extra        map[string]any
	children     []Descriptor
}

// Option configures a descriptor at declaration time.
type Option func(*Descriptor)

// Boost sets the relevance weight of a search field.
func Boost(b float64) Option {
	return func(d *Descriptor) { d.boost = b }
}

// PartialMatch enables prefix matching for a search field.
func PartialMatch() Option {
	return func(d *Descriptor) { d.partialMatch = true }
}

// Type overrides the declared type reported for the field.
func Type(t string) Option {
	return func(d *Descriptor) { d.declaredType = t }
}

// Extra attaches a backend-specific setting.
func Extra(key string, value any) Option {
	return func(d *Descriptor) {
		if d.extra == nil {
			d.extra = make(map[string]any)
		}
		d.extra[key] = value
	}
}

// Search declares a full-text field.
func Search(name string, opts ...Option) Descriptor {
	return build(KindSearch, name, opts)
}

// Filter declares an exact-match field.
func Filter(name string, opts ...Option) Descriptor {
	return build(KindFilter, name, opts)
}

// Related declares fields read from a related entity.
func Related(name string, children ...Descriptor) Descriptor {
	d := Descriptor{kind: KindRelated, name: name}
	if len(children) > 0 {
		d.children = append([]Descriptor(nil), children...)
	}
	return d
}

func build(kind Kind, name string, opts []Option) Descriptor {
	d := Descriptor{kind: kind, name: name}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// Kind returns the descriptor variant.
func (d Descriptor) Kind() Kind { return d.kind }

// Name returns the declared field name.
func (d Descriptor) Name() string { return d.name }

// Key returns the deduplication key.
func (d Descriptor) Key() Key { return Key{Kind: d.kind, Name: d.name} }

// Boost returns the relevance weight, zero when unset.
func (d Descriptor) Boost() float64 { return d.boost }

// PartialMatch reports whether prefix matching was requested.
func (d Descriptor) PartialMatch() bool { return d.partialMatch }

// Extra returns a backend-specific setting.
func (d Descriptor) Extra(key string) (any, bool) {
	v, ok := d.extra[key]
	return v, ok
}

// Children returns the nested descriptors of a related field.
func (d Descriptor) Children() []Descriptor {
	if len(d.children) == 0 {
		return nil
	}
	out := make([]Descriptor, len(d.children))
	copy(out, d.children)
	return out
}

func (d Descriptor) String() string {
	return d.kind.String() + ":" + d.name
}
