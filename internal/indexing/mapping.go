// Package indexing turns revision records into bleve documents and facet
// categories and writes them through an IndexWriterSession.
package indexing

import (
	"maps"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/datetime/flexible"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/sha1n/relic-history/internal/domain"
)

const (
	// IndexSuffix is the suffix for index directories
	IndexSuffix = ".bleve"

	// TaxonomySuffix is the suffix for taxonomy directories
	TaxonomySuffix = ".taxonomy"

	// FacetFieldPrefix is the sub-document holding facet category edges.
	// A category A/B/C is stored as $facets.A=B and $facets.A/B=C.
	FacetFieldPrefix = "$facets"

	// NoDateTimeParser rejects every value, so dynamic strings such as
	// date-shaped facet labels stay keywords.
	NoDateTimeParser = "relic_no_datetime"
)

var (
	analyzersOnce  sync.Once
	fieldAnalyzers map[string]string

	mappingOnce  sync.Once
	indexMapping *mapping.IndexMappingImpl
)

// FieldAnalyzers returns the analyzer used for each non-numeric field.
// The table is built once and the returned map is a copy.
func FieldAnalyzers() map[string]string {
	analyzersOnce.Do(func() {
		fieldAnalyzers = make(map[string]string)
		for _, name := range domain.StoredFields {
			switch domain.TypeOf(name) {
			case domain.FieldKeyword:
				fieldAnalyzers[name] = keyword.Name
			case domain.FieldText:
				fieldAnalyzers[name] = standard.Name
			}
		}
	})
	return maps.Clone(fieldAnalyzers)
}

// AnalyzerFor returns the analyzer name for field, defaulting to the standard analyzer.
func AnalyzerFor(field string) string {
	if a, ok := FieldAnalyzers()[field]; ok {
		return a
	}
	return standard.Name
}

// FacetField returns the index field holding the children of a category path.
func FacetField(parent domain.CategoryPath) string {
	return FacetFieldPrefix + "." + parent.String()
}

// IndexMapping returns the shared, immutable index mapping for revision documents.
func IndexMapping() mapping.IndexMapping {
	mappingOnce.Do(func() {
		indexMapping = buildIndexMapping()
	})
	return indexMapping
}

func buildIndexMapping() *mapping.IndexMappingImpl {
	docMapping := bleve.NewDocumentMapping()
	analyzers := FieldAnalyzers()

	for _, name := range domain.StoredFields {
		var fm *mapping.FieldMapping
		if domain.TypeOf(name) == domain.FieldNumeric {
			fm = bleve.NewNumericFieldMapping()
		} else {
			fm = bleve.NewTextFieldMapping()
			fm.Analyzer = analyzers[name]
		}
		fm.Store = true
		fm.IncludeInAll = false
		docMapping.AddFieldMappingsAt(name, fm)
	}

	// Facet edges are exact labels with doc values for term facets
	facetMapping := bleve.NewDocumentMapping()
	facetMapping.DefaultAnalyzer = keyword.Name
	docMapping.AddSubDocumentMapping(FacetFieldPrefix, facetMapping)

	im := bleve.NewIndexMapping()
	err := im.AddCustomDateTimeParser(NoDateTimeParser, map[string]interface{}{
		"type":    flexible.Name,
		"layouts": []interface{}{},
	})
	if err != nil {
		panic(err)
	}
	im.DefaultDateTimeParser = NoDateTimeParser
	im.DefaultMapping = docMapping
	im.DefaultAnalyzer = standard.Name
	im.DefaultField = domain.DefaultQueryField
	im.StoreDynamic = false
	im.DocValuesDynamic = true
	return im
}
