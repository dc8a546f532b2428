package bleveidx

import (
	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/analysis/analyzer/keyword"
	blevemapping "github.com/blevesearch/bleve/mapping"

	"github.com/kailas-cloud/searchsync/internal/domain/search/field"
	"github.com/kailas-cloud/searchsync/internal/domain/search/mapping"
)

// BuildMapping creates an explicit bleve mapping for the document type of mp.
// Unknown fields are not indexed.
func BuildMapping(mp *mapping.Mapping) *blevemapping.IndexMappingImpl {
	doc := bleve.NewDocumentStaticMapping()
	for _, c := range mp.Columns() {
		addColumn(doc, c)
	}
	doc.AddFieldMappingsAt(mapping.ContentTypeColumn, keywordField())

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	return im
}

func addColumn(doc *blevemapping.DocumentMapping, c mapping.Column) {
	switch c.Kind {
	case field.KindSearch:
		doc.AddFieldMappingsAt(c.Name, bleve.NewTextFieldMapping())
	case field.KindFilter:
		doc.AddFieldMappingsAt(c.Name, filterField(c.Type))
	case field.KindRelated:
		sub := bleve.NewDocumentStaticMapping()
		for _, child := range c.Children {
			addColumn(sub, child)
		}
		doc.AddSubDocumentMapping(c.Name, sub)
	}
}

func filterField(declared string) *blevemapping.FieldMapping {
	switch declared {
	case "int", "uint", "float", "integer", "number":
		return bleve.NewNumericFieldMapping()
	case "bool":
		return bleve.NewBooleanFieldMapping()
	case "time":
		return bleve.NewDateTimeFieldMapping()
	default:
		return keywordField()
	}
}

func keywordField() *blevemapping.FieldMapping {
	fm := bleve.NewTextFieldMapping()
	fm.Analyzer = keyword.Name
	return fm
}
