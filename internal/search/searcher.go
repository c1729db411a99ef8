package search

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/sha1n/relic-history/internal/domain"
	"github.com/sha1n/relic-history/internal/indexing"
)

// readOnlyConfig opens the index without taking the writer's lock and bounds
// the wait for the root store.
var readOnlyConfig = map[string]interface{}{
	"read_only":    true,
	"bolt_timeout": "1s",
}

// Searcher runs searches against one index and its taxonomy.
//
// Several searchers may be open on the same location at once. The last spec
// created with CreateSearch or CreateSearchFromString is the current one and
// is used by Search, SearchWithLimit and SearchWith.
type Searcher struct {
	indexDir    string
	taxonomyDir string

	mu       sync.Mutex
	index    bleve.Index
	taxonomy *indexing.TaxonomyReader
	current  *SearchSpec
	compiler *QueryCompiler
}

// ErrNoSearch is returned when searching before a search was created.
var ErrNoSearch = errors.New("no search created")

// NewSearcher creates an unopened searcher.
func NewSearcher(indexDir, taxonomyDir string) (*Searcher, error) {
	if indexDir == "" || taxonomyDir == "" {
		return nil, fmt.Errorf("%w: index and taxonomy locations are required", domain.ErrConfiguration)
	}
	if filepath.Clean(indexDir) == filepath.Clean(taxonomyDir) {
		return nil, fmt.Errorf("%w: index and taxonomy must use different locations", domain.ErrConfiguration)
	}
	return &Searcher{
		indexDir:    indexDir,
		taxonomyDir: taxonomyDir,
		compiler:    NewQueryCompiler(),
	}, nil
}

// Open opens index and taxonomy for reading. Opening an open searcher is a no-op.
func (s *Searcher) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked()
}

func (s *Searcher) openLocked() error {
	if s.index != nil {
		return nil
	}

	index, err := bleve.OpenUsing(s.indexDir, readOnlyConfig)
	if err != nil {
		return fmt.Errorf("%w: open index %s: %w", domain.ErrStorage, s.indexDir, err)
	}

	taxonomy, err := indexing.OpenTaxonomyReader(s.taxonomyDir)
	if err != nil {
		_ = index.Close()
		return err
	}

	s.index = index
	s.taxonomy = taxonomy
	slog.Debug("Searcher opened", "index", s.indexDir, "taxonomy", s.taxonomyDir)
	return nil
}

// CreateSearch makes a spec for q the current search.
func (s *Searcher) CreateSearch(q Query, opts ...SpecOption) (*SearchSpec, error) {
	spec, err := NewSearchSpec(q, opts...)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.current = spec
	s.mu.Unlock()
	return spec, nil
}

// CreateSearchFromString parses raw and makes it the current search.
func (s *Searcher) CreateSearchFromString(raw string, opts ...SpecOption) (*SearchSpec, error) {
	q, err := s.compiler.Parse(raw)
	if err != nil {
		return nil, err
	}
	return s.CreateSearch(q, opts...)
}

// Search runs the current search with the default hit limit.
func (s *Searcher) Search() (*Result, error) {
	return s.SearchWithLimit(DefaultHitLimit)
}

// SearchWithLimit runs the current search. Hits and facets are gathered in
// one pass over the index. The limit only applies the first time the current
// spec collects hits.
func (s *Searcher) SearchWithLimit(limit int) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	spec, err := s.prepareLocked()
	if err != nil {
		return nil, err
	}

	hits := spec.HitCollectorWithLimit(limit)
	facets := spec.FacetsCollector(s.taxonomy)

	var collector Collector = hits
	if facets != nil {
		collector = NewMultiCollector(hits, facets)
	}
	if err := s.execute(spec, collector); err != nil {
		return nil, err
	}
	return Aggregate(hits, facets), nil
}

// SearchWith runs the current search into collector alone. The SearchSpec's own
// hit and facet collectors are not used.
func (s *Searcher) SearchWith(collector Collector) error {
	if collector == nil {
		return fmt.Errorf("%w: collector is required", domain.ErrConfiguration)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	spec, err := s.prepareLocked()
	if err != nil {
		return err
	}
	return s.execute(spec, collector)
}

func (s *Searcher) prepareLocked() (*SearchSpec, error) {
	if s.current == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, ErrNoSearch)
	}
	if err := s.openLocked(); err != nil {
		return nil, err
	}
	return s.current, nil
}

func (s *Searcher) execute(spec *SearchSpec, collector Collector) error {
	req := bleve.NewSearchRequest(spec.compiled)
	if err := collector.Prepare(req); err != nil {
		return err
	}

	res, err := s.index.Search(req)
	if err != nil {
		return fmt.Errorf("%w: search %q: %w", domain.ErrStorage, spec.Query().String(), err)
	}

	slog.Debug("Search executed", "query", spec.Query().String(), "total", res.Total, "took", res.Took)
	return collector.Collect(res)
}

// Document returns the stored fields of the document with id.
func (s *Searcher) Document(id string) (Hit, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.openLocked(); err != nil {
		return Hit{}, false, err
	}

	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{id}))
	req.Size = 1
	req.Fields = domain.StoredFields
	res, err := s.index.Search(req)
	if err != nil {
		return Hit{}, false, fmt.Errorf("%w: load document %s: %w", domain.ErrStorage, id, err)
	}
	if len(res.Hits) == 0 {
		return Hit{}, false, nil
	}
	dm := res.Hits[0]
	return newHit(dm.ID, dm.Score, dm.Fields), true, nil
}

// Revision returns a document indexed for revision number n.
func (s *Searcher) Revision(n int64) (Hit, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.openLocked(); err != nil {
		return Hit{}, false, err
	}

	q, err := ToBleve(typedTerm(domain.FieldRevisionNumber, fmt.Sprint(n)))
	if err != nil {
		return Hit{}, false, err
	}
	req := bleve.NewSearchRequest(q)
	req.Size = 1
	req.Fields = domain.StoredFields
	res, err := s.index.Search(req)
	if err != nil {
		return Hit{}, false, fmt.Errorf("%w: load revision %d: %w", domain.ErrStorage, n, err)
	}
	if len(res.Hits) == 0 {
		return Hit{}, false, nil
	}
	dm := res.Hits[0]
	return newHit(dm.ID, dm.Score, dm.Fields), true, nil
}

// DocCount returns the number of documents visible to this searcher.
func (s *Searcher) DocCount() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.openLocked(); err != nil {
		return 0, err
	}
	n, err := s.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("%w: doc count: %w", domain.ErrStorage, err)
	}
	return n, nil
}

// Dispose closes index and taxonomy. The searcher may be opened again.
func (s *Searcher) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.index != nil {
		if err := s.index.Close(); err != nil {
			errs = append(errs, err)
		}
		s.index = nil
	}
	if s.taxonomy != nil {
		if err := s.taxonomy.Close(); err != nil {
			errs = append(errs, err)
		}
		s.taxonomy = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: close searcher: %w", domain.ErrStorage, errors.Join(errs...))
	}
	return nil
}
