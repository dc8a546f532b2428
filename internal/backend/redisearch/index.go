package redisearch

import (
	"fmt"

	"github.com/kailas-cloud/searchsync/internal/db"
	"github.com/kailas-cloud/searchsync/internal/domain/search/field"
	"github.com/kailas-cloud/searchsync/internal/domain/search/mapping"
)

// numericTypes are declared types indexed as NUMERIC filters.
var numericTypes = map[string]bool{
	"int":     true,
	"uint":    true,
	"float":   true,
	"integer": true,
	"number":  true,
}

// BuildIndex creates the FT index definition of a document type from the
// columns of every model sharing it.
func BuildIndex(mp *mapping.Mapping, prefix string) (*db.IndexDefinition, error) {
	name := mp.IndexName(prefix)
	b := db.NewIndex(name).OnJSON().Prefix(name + ":")

	for _, c := range mp.Columns() {
		addColumn(b, "$", "", c)
	}
	b.TagWithOpts("$."+mapping.ContentTypeColumn+"[*]", mapping.ContentTypeColumn, "|", true)

	def, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build index %s: %w", name, err)
	}
	return def, nil
}

// addColumn appends the schema fields of c. Nested columns get a path below
// their relation and an alias joined with "__".
func addColumn(b *db.IndexBuilder, parentPath, parentAlias string, c mapping.Column) {
	path := parentPath + "." + c.Name
	alias := c.Name
	if parentAlias != "" {
		alias = parentAlias + "__" + c.Name
	}

	switch c.Kind {
	case field.KindSearch:
		b.TextWeighted(path, alias, c.Boost)
	case field.KindFilter:
		if numericTypes[c.Type] {
			b.Numeric(path, alias)
		} else {
			b.Tag(path, alias)
		}
	case field.KindRelated:
		if c.Many {
			path += "[*]"
		}
		for _, child := range c.Children {
			addColumn(b, path, alias, child)
		}
	}
}
