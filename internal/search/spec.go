package search

import (
	"fmt"
	"slices"
	"strings"

	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/sha1n/relic-history/internal/domain"
	"github.com/sha1n/relic-history/internal/indexing"
)

const (
	// DefaultHitLimit is the number of hits collected when no limit is given.
	DefaultHitLimit = 100

	// DefaultFacetResults is the number of children reported per facet when none is given.
	DefaultFacetResults = 10

	// ScoreField sorts by relevance.
	ScoreField = "_score"
)

// Sort orders hits by one stored field or by relevance.
type Sort struct {
	Field      string
	Descending bool
}

var (
	// DefaultSort orders hits by revision number, newest first.
	DefaultSort = Sort{Field: domain.FieldRevisionNumber, Descending: true}

	// RelevanceSort orders hits by score, best first.
	RelevanceSort = Sort{Field: ScoreField, Descending: true}
)

// String renders the sort in bleve's notation, "-" marking descending order.
func (s Sort) String() string {
	if s.Descending {
		return "-" + s.Field
	}
	return s.Field
}

// ParseSort parses "Field", "-Field" or "_score". An empty string yields DefaultSort.
func ParseSort(s string) (Sort, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultSort, nil
	}

	desc := strings.HasPrefix(s, "-")
	field := strings.TrimPrefix(s, "-")
	if field == ScoreField {
		return RelevanceSort, nil
	}
	if _, ok := domain.FieldTypes[field]; !ok {
		return Sort{}, fmt.Errorf("%w: unknown sort field %q", domain.ErrConfiguration, field)
	}
	return Sort{Field: field, Descending: desc}, nil
}

// FacetRequest asks for the top children of a category path.
type FacetRequest struct {
	Path       domain.CategoryPath
	MaxResults int
}

// NewFacetRequest creates a request for a "/"-separated path.
func NewFacetRequest(path string, maxResults int) FacetRequest {
	return FacetRequest{Path: domain.ParseCategoryPath(path), MaxResults: maxResults}
}

// Name identifies the request within a search.
func (r FacetRequest) Name() string {
	return r.Path.String()
}

// SpecOption configures a SearchSpec.
type SpecOption func(*SearchSpec)

// WithSort sets the hit order.
func WithSort(sort Sort) SpecOption {
	return func(s *SearchSpec) {
		s.sort = sort
	}
}

// WithFacets requests facet counts.
func WithFacets(requests ...FacetRequest) SpecOption {
	return func(s *SearchSpec) {
		for _, r := range requests {
			s.AddFacet(r)
		}
	}
}

// WithFacetMap requests facet counts from path to maximum results.
// Paths are added in lexical order.
func WithFacetMap(facets map[string]int) SpecOption {
	return func(s *SearchSpec) {
		paths := make([]string, 0, len(facets))
		for p := range facets {
			paths = append(paths, p)
		}
		slices.Sort(paths)
		for _, p := range paths {
			s.AddFacetPath(p, facets[p])
		}
	}
}

// SearchSpec describes one search: its query, sort and facet requests.
//
// The hit and facet collectors are created on first request and reused for
// the lifetime of the SearchSpec. A limit passed to HitCollectorWithLimit after the
// collector exists is ignored, as are facets added after FacetsCollector was
// first called; create a new SearchSpec to change either.
type SearchSpec struct {
	query    Query
	compiled query.Query
	sort     Sort
	facets   []FacetRequest

	hits        *TopHitsCollector
	facetsCache *FacetsCollector
}

// NewSearchSpec creates a spec for a parsed query.
func NewSearchSpec(q Query, opts ...SpecOption) (*SearchSpec, error) {
	if q == nil {
		return nil, fmt.Errorf("%w: query is required", domain.ErrQueryParse)
	}
	compiled, err := ToBleve(q)
	if err != nil {
		return nil, err
	}

	s := &SearchSpec{query: q, compiled: compiled, sort: DefaultSort}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewSearchSpecFromString parses raw with the default compiler and creates a spec.
func NewSearchSpecFromString(raw string, opts ...SpecOption) (*SearchSpec, error) {
	q, err := ParseQuery(raw)
	if err != nil {
		return nil, err
	}
	return NewSearchSpec(q, opts...)
}

// Query returns the parsed query.
func (s *SearchSpec) Query() Query {
	return s.query
}

// Sort returns the hit order.
func (s *SearchSpec) Sort() Sort {
	return s.sort
}

// Facets returns the facet requests.
func (s *SearchSpec) Facets() []FacetRequest {
	return slices.Clone(s.facets)
}

// HasFacets reports whether any facet was requested.
func (s *SearchSpec) HasFacets() bool {
	return len(s.facets) > 0
}

// AddFacet adds a facet request. Requests for the root path are ignored and a
// repeated path replaces the earlier request.
func (s *SearchSpec) AddFacet(r FacetRequest) {
	if r.Path.IsRoot() {
		return
	}
	if r.MaxResults <= 0 {
		r.MaxResults = DefaultFacetResults
	}
	for i := range s.facets {
		if s.facets[i].Name() == r.Name() {
			s.facets[i] = r
			return
		}
	}
	s.facets = append(s.facets, r)
}

// AddFacetPath adds a facet request for a "/"-separated path.
func (s *SearchSpec) AddFacetPath(path string, maxResults int) {
	s.AddFacet(NewFacetRequest(path, maxResults))
}

// HitCollector returns the SearchSpec's hit collector, creating it with DefaultHitLimit.
func (s *SearchSpec) HitCollector() *TopHitsCollector {
	return s.HitCollectorWithLimit(DefaultHitLimit)
}

// HitCollectorWithLimit returns the SearchSpec's hit collector, creating it with limit.
// When the collector already exists limit is ignored.
func (s *SearchSpec) HitCollectorWithLimit(limit int) *TopHitsCollector {
	if s.hits == nil {
		s.hits = NewTopHitsCollector(limit, s.sort)
	}
	return s.hits
}

// FacetsCollector returns the SearchSpec's facet collector, creating it over taxonomy.
// It returns nil when no facet was requested.
func (s *SearchSpec) FacetsCollector(taxonomy *indexing.TaxonomyReader) *FacetsCollector {
	if !s.HasFacets() {
		return nil
	}
	if s.facetsCache == nil {
		s.facetsCache = NewFacetsCollector(taxonomy, s.Facets())
	}
	return s.facetsCache
}
