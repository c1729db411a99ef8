// Package history wires revision sources, the index writer and the searcher
// into the fetch, index and search use cases, keeps a repository's index in
// sync with its source and exposes search over MCP.
package history

import (
	"context"
	"fmt"
	"iter"

	"github.com/sha1n/relic-history/internal/domain"
	"github.com/sha1n/relic-history/internal/indexing"
	"github.com/sha1n/relic-history/internal/search"
	"github.com/sha1n/relic-history/internal/sourcecontrol"
)

// Action names reported by ActionError.
const (
	ActionFetch  = "fetch"
	ActionIndex  = "index"
	ActionSearch = "search"
)

// ActionError reports which use case failed.
type ActionError struct {
	Action string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Action, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ActionError) Unwrap() error {
	return e.Err
}

// FetchResult holds the revisions returned by a fetch, in ascending order.
type FetchResult struct {
	records []domain.RevisionRecord
}

// Len returns the number of fetched revisions.
func (r *FetchResult) Len() int {
	return len(r.records)
}

// Records returns the fetched revisions.
func (r *FetchResult) Records() []domain.RevisionRecord {
	return r.records
}

// All iterates over the fetched revisions.
func (r *FetchResult) All() iter.Seq[domain.RevisionRecord] {
	return func(yield func(domain.RevisionRecord) bool) {
		for _, rec := range r.records {
			if !yield(rec) {
				return
			}
		}
	}
}

// Last returns the newest fetched revision.
func (r *FetchResult) Last() (domain.RevisionRecord, bool) {
	if len(r.records) == 0 {
		return domain.RevisionRecord{}, false
	}
	return r.records[len(r.records)-1], true
}

// FetchRevisions reads revisions [begin, end] from src.
func FetchRevisions(ctx context.Context, src sourcecontrol.RevisionSource, begin, end int64) (*FetchResult, error) {
	records, err := src.FetchRange(ctx, begin, end)
	if err != nil {
		return nil, &ActionError{Action: ActionFetch, Err: err}
	}
	if records == nil {
		records = []domain.RevisionRecord{}
	}
	return &FetchResult{records: records}, nil
}

// IndexResult reports the index after an indexing run.
type IndexResult struct {
	// Added is the number of revisions written by the run.
	Added int

	// IndexDocuments is the number of documents in the index.
	IndexDocuments uint64

	// TaxonomySize is the number of facet categories, including the root.
	TaxonomySize int
}

// IndexRevisions writes records through ix and commits them. The indexer is
// left open; the caller closes it.
func IndexRevisions(ix *indexing.Indexer, records iter.Seq[domain.RevisionRecord]) (IndexResult, error) {
	var result IndexResult
	for rec := range records {
		if err := ix.IndexRevision(rec); err != nil {
			return result, &ActionError{Action: ActionIndex, Err: err}
		}
		result.Added++
	}

	stats, err := ix.Stats()
	if err != nil {
		return result, &ActionError{Action: ActionIndex, Err: err}
	}
	result.IndexDocuments = stats.Documents
	result.TaxonomySize = stats.TaxonomySize
	return result, nil
}

// SearchOptions describes one search run.
type SearchOptions struct {
	// Query in classic query syntax.
	Query string

	// Sort such as "-RevisionNumber" or "_score". Empty means the default sort.
	Sort string

	// Facets maps category paths to their maximum number of labels.
	Facets map[string]int

	// Limit caps the number of hits. Zero or less means search.DefaultHitLimit.
	Limit int

	// Collector replaces the default hit and facet collectors. The returned
	// result is then empty and the collector holds the outcome.
	Collector search.Collector
}

// RunSearch runs opts against s and aggregates hits and facet counts.
func RunSearch(s *search.Searcher, opts SearchOptions) (*search.Result, error) {
	sort, err := search.ParseSort(opts.Sort)
	if err != nil {
		return nil, &ActionError{Action: ActionSearch, Err: err}
	}

	specOpts := []search.SpecOption{search.WithSort(sort)}
	if len(opts.Facets) > 0 {
		specOpts = append(specOpts, search.WithFacetMap(opts.Facets))
	}
	if _, err := s.CreateSearchFromString(opts.Query, specOpts...); err != nil {
		return nil, &ActionError{Action: ActionSearch, Err: err}
	}

	if opts.Collector != nil {
		if err := s.SearchWith(opts.Collector); err != nil {
			return nil, &ActionError{Action: ActionSearch, Err: err}
		}
		return search.Aggregate(nil, nil), nil
	}

	var result *search.Result
	if opts.Limit > 0 {
		result, err = s.SearchWithLimit(opts.Limit)
	} else {
		result, err = s.Search()
	}
	if err != nil {
		return nil, &ActionError{Action: ActionSearch, Err: err}
	}
	return result, nil
}
