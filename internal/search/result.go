package search

import (
	"time"

	"github.com/sha1n/relic-history/internal/domain"
)

// Hit is one ranked document with its stored fields.
type Hit struct {
	ID     string
	Score  float64
	Fields map[string]any
}

func newHit(id string, score float64, fields map[string]interface{}) Hit {
	if fields == nil {
		fields = map[string]any{}
	}
	return Hit{ID: id, Score: score, Fields: fields}
}

// RevisionNumber returns the stored revision number, or 0 when absent.
func (h Hit) RevisionNumber() int64 {
	return h.number(domain.FieldRevisionNumber)
}

// Revision returns the stored revision identifier.
func (h Hit) Revision() string {
	return h.Text(domain.FieldRevision)
}

// Author returns the stored author, empty when the revision had none.
func (h Hit) Author() string {
	return h.Text(domain.FieldAuthor)
}

// Message returns the stored commit message.
func (h Hit) Message() string {
	return h.Text(domain.FieldMessage)
}

// Date returns the stored commit time in UTC and whether one was recorded.
func (h Hit) Date() (time.Time, bool) {
	if _, ok := h.Fields[domain.FieldDate]; !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(h.number(domain.FieldDate)).UTC(), true
}

// Paths returns the changed paths of the revision.
func (h Hit) Paths() []string {
	return h.Texts(domain.FieldPath)
}

// Changes returns the change type of each changed path.
func (h Hit) Changes() []string {
	return h.Texts(domain.FieldChange)
}

// Text returns the first value of a stored string field.
func (h Hit) Text(field string) string {
	if values := h.Texts(field); len(values) > 0 {
		return values[0]
	}
	return ""
}

// Texts returns every value of a stored string field.
func (h Hit) Texts(field string) []string {
	switch v := h.Fields[field].(type) {
	case string:
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	default:
		return nil
	}
}

func (h Hit) number(field string) int64 {
	switch v := h.Fields[field].(type) {
	case float64:
		return int64(v)
	case []interface{}:
		if len(v) > 0 {
			if f, ok := v[0].(float64); ok {
				return int64(f)
			}
		}
	}
	return 0
}

// LabelCount is one child of a facet with the number of matching documents under it.
type LabelCount struct {
	Label string
	Count int
}

// FacetResult holds the counted children of one requested category path.
type FacetResult struct {
	Path     domain.CategoryPath
	Value    int
	Children []LabelCount
}

// Result is the outcome of one search.
type Result struct {
	TotalHits uint64
	MaxScore  float64
	Hits      []Hit
	Facets    []FacetResult
}

// TopHit returns the first hit and whether there is one.
func (r *Result) TopHit() (Hit, bool) {
	if len(r.Hits) == 0 {
		return Hit{}, false
	}
	return r.Hits[0], true
}

// Facet returns the result for path and whether it was produced.
func (r *Result) Facet(path string) (FacetResult, bool) {
	want := domain.ParseCategoryPath(path).String()
	for _, f := range r.Facets {
		if f.Path.String() == want {
			return f, true
		}
	}
	return FacetResult{}, false
}

// Aggregate packages the collected hits and facet counts. Either collector may be nil.
func Aggregate(hits *TopHitsCollector, facets *FacetsCollector) *Result {
	r := &Result{Hits: []Hit{}, Facets: []FacetResult{}}
	if hits != nil {
		r.TotalHits = hits.total
		r.MaxScore = hits.maxScore
		if hits.hits != nil {
			r.Hits = hits.hits
		}
	}
	if facets != nil && facets.results != nil {
		r.Facets = facets.results
	}
	return r
}
