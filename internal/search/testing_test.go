package search

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sha1n/relic-history/internal/domain"
	"github.com/sha1n/relic-history/internal/indexing"
)

var testDate = time.Date(2007, 1, 1, 13, 5, 0, 0, time.UTC)

func testRevision(rev int64, author string) domain.RevisionRecord {
	return domain.RevisionRecord{
		Revision: rev,
		Author:   author,
		Date:     testDate,
		Message:  "stuff",
		ChangedPaths: []domain.ChangedPath{
			domain.NewChangedPath("/trunk/README", "M"),
			domain.NewCopiedPath("/branches/b1", "A", "/trunk", rev-1),
		},
	}
}

// buildIndex writes records to a fresh index and returns its locations.
func buildIndex(t *testing.T, records ...domain.RevisionRecord) (indexDir, taxonomyDir string) {
	t.Helper()
	base := t.TempDir()
	indexDir = filepath.Join(base, "repo"+indexing.IndexSuffix)
	taxonomyDir = filepath.Join(base, "repo"+indexing.TaxonomySuffix)

	session, err := indexing.NewIndexWriterSession(indexDir, taxonomyDir, indexing.ModeCreate)
	if err != nil {
		t.Fatalf("NewIndexWriterSession failed: %v", err)
	}
	if err := session.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	ix := indexing.NewIndexer(session)
	if _, err := ix.IndexRevisions(records); err != nil {
		t.Fatalf("IndexRevisions failed: %v", err)
	}
	if err := ix.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return indexDir, taxonomyDir
}

// openSearcher builds an index from records and opens a searcher on it.
func openSearcher(t *testing.T, records ...domain.RevisionRecord) *Searcher {
	t.Helper()
	indexDir, taxonomyDir := buildIndex(t, records...)

	s, err := NewSearcher(indexDir, taxonomyDir)
	if err != nil {
		t.Fatalf("NewSearcher failed: %v", err)
	}
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Dispose(); err != nil {
			t.Errorf("Dispose failed: %v", err)
		}
	})
	return s
}

func search(t *testing.T, s *Searcher, raw string, opts ...SpecOption) *Result {
	t.Helper()
	if _, err := s.CreateSearchFromString(raw, opts...); err != nil {
		t.Fatalf("CreateSearchFromString(%q) failed: %v", raw, err)
	}
	res, err := s.Search()
	if err != nil {
		t.Fatalf("Search(%q) failed: %v", raw, err)
	}
	return res
}
