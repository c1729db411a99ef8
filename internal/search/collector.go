package search

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/sha1n/relic-history/internal/domain"
	"github.com/sha1n/relic-history/internal/indexing"
)

// Collector shapes a search request and consumes its result.
// Every collector passed to one search sees the same request and result.
type Collector interface {
	Prepare(req *bleve.SearchRequest) error
	Collect(res *bleve.SearchResult) error
}

// TopHitsCollector keeps the best ranked hits under a sort.
type TopHitsCollector struct {
	limit int
	sort  Sort

	total    uint64
	maxScore float64
	hits     []Hit
}

// NewTopHitsCollector creates a collector keeping at most limit hits.
// A negative limit is treated as zero.
func NewTopHitsCollector(limit int, sort Sort) *TopHitsCollector {
	if limit < 0 {
		limit = 0
	}
	return &TopHitsCollector{limit: limit, sort: sort}
}

// Limit returns the maximum number of hits kept.
func (c *TopHitsCollector) Limit() int {
	return c.limit
}

func (c *TopHitsCollector) Prepare(req *bleve.SearchRequest) error {
	req.Size = c.limit
	req.From = 0
	req.SortBy([]string{c.sort.String()})
	req.Fields = domain.StoredFields
	return nil
}

func (c *TopHitsCollector) Collect(res *bleve.SearchResult) error {
	c.total = res.Total
	c.maxScore = res.MaxScore
	c.hits = make([]Hit, 0, len(res.Hits))
	for _, dm := range res.Hits {
		c.hits = append(c.hits, newHit(dm.ID, dm.Score, dm.Fields))
	}
	return nil
}

// TotalHits returns the number of matching documents, collected or not.
func (c *TopHitsCollector) TotalHits() uint64 {
	return c.total
}

// Hits returns the collected hits in sort order.
func (c *TopHitsCollector) Hits() []Hit {
	return c.hits
}

// FacetsCollector counts the children of requested category paths.
// Paths unknown to the taxonomy produce no result.
type FacetsCollector struct {
	taxonomy *indexing.TaxonomyReader
	requests []FacetRequest

	known   map[string]bool
	results []FacetResult
}

// NewFacetsCollector creates a collector for requests over taxonomy.
// A nil taxonomy is treated as empty.
func NewFacetsCollector(taxonomy *indexing.TaxonomyReader, requests []FacetRequest) *FacetsCollector {
	return &FacetsCollector{taxonomy: taxonomy, requests: requests}
}

func (c *FacetsCollector) Prepare(req *bleve.SearchRequest) error {
	c.known = make(map[string]bool, len(c.requests))
	if c.taxonomy == nil {
		return nil
	}

	for _, r := range c.requests {
		_, ok, err := c.taxonomy.Ordinal(r.Path)
		if err != nil {
			return fmt.Errorf("facet %s: %w", r.Name(), err)
		}
		if !ok {
			continue
		}
		c.known[r.Name()] = true
		req.AddFacet(r.Name(), bleve.NewFacetRequest(indexing.FacetField(r.Path), r.MaxResults))
	}
	return nil
}

func (c *FacetsCollector) Collect(res *bleve.SearchResult) error {
	c.results = make([]FacetResult, 0, len(c.requests))
	for _, r := range c.requests {
		if !c.known[r.Name()] {
			continue
		}

		fr := FacetResult{Path: r.Path, Children: []LabelCount{}}
		if f, ok := res.Facets[r.Name()]; ok && f != nil {
			fr.Value = f.Total
			if f.Terms != nil {
				for _, t := range f.Terms.Terms() {
					fr.Children = append(fr.Children, LabelCount{Label: t.Term, Count: t.Count})
				}
			}
		}
		c.results = append(c.results, fr)
	}
	return nil
}

// Results returns one result per requested path known to the taxonomy, in request order.
func (c *FacetsCollector) Results() []FacetResult {
	return c.results
}

// MultiCollector feeds one request and result to several collectors.
type MultiCollector struct {
	collectors []Collector
}

// NewMultiCollector combines collectors, skipping nil ones.
func NewMultiCollector(collectors ...Collector) *MultiCollector {
	m := &MultiCollector{}
	for _, c := range collectors {
		if c != nil {
			m.collectors = append(m.collectors, c)
		}
	}
	return m
}

func (m *MultiCollector) Prepare(req *bleve.SearchRequest) error {
	for _, c := range m.collectors {
		if err := c.Prepare(req); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiCollector) Collect(res *bleve.SearchResult) error {
	for _, c := range m.collectors {
		if err := c.Collect(res); err != nil {
			return err
		}
	}
	return nil
}
