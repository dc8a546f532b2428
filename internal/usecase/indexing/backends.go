package indexing

import "fmt"

// Named is a configured backend.
type Named struct {
	Name    string
	Backend Backend
	// Manual backends are only written by explicit reindexing.
	Manual bool
}

// Backends is the ordered set of configured backends. It is built once at
// startup and never modified.
type Backends struct {
	entries []Named
	byName  map[string]int
}

// NewBackends validates names and keeps declaration order.
func NewBackends(entries ...Named) (*Backends, error) {
	b := &Backends{byName: make(map[string]int, len(entries))}
	for _, e := range entries {
		if e.Name == "" {
			return nil, ErrNoBackendName
		}
		if _, ok := b.byName[e.Name]; ok {
			return nil, fmt.Errorf("%s: %w", e.Name, ErrDuplicateBackend)
		}
		b.byName[e.Name] = len(b.entries)
		b.entries = append(b.entries, e)
	}
	return b, nil
}

// Names returns backend names in declaration order.
func (b *Backends) Names() []string {
	out := make([]string, len(b.entries))
	for i, e := range b.entries {
		out[i] = e.Name
	}
	return out
}

// All returns every backend.
func (b *Backends) All() []Named {
	out := make([]Named, len(b.entries))
	copy(out, b.entries)
	return out
}

// AutoUpdate returns the backends kept in sync with entity changes.
func (b *Backends) AutoUpdate() []Named {
	var out []Named
	for _, e := range b.entries {
		if !e.Manual {
			out = append(out, e)
		}
	}
	return out
}

// Get returns a backend by name.
func (b *Backends) Get(name string) (Backend, error) {
	i, ok := b.byName[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownBackend)
	}
	return b.entries[i].Backend, nil
}

// Select returns the named backend, or all of them for an empty name.
func (b *Backends) Select(name string) ([]Named, error) {
	if name == "" {
		return b.All(), nil
	}
	i, ok := b.byName[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownBackend)
	}
	return []Named{b.entries[i]}, nil
}
