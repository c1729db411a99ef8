package indexing

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sha1n/relic-history/internal/domain"
)

// testLocations returns sibling index and taxonomy locations under a temp dir.
func testLocations(t *testing.T) (indexDir, taxonomyDir string) {
	t.Helper()
	base := t.TempDir()
	return filepath.Join(base, "repo"+IndexSuffix), filepath.Join(base, "repo"+TaxonomySuffix)
}

func testRevision(rev int64, author string) domain.RevisionRecord {
	return domain.RevisionRecord{
		Revision: rev,
		Author:   author,
		Date:     time.Date(2007, 1, 1, 13, 5, 0, 0, time.UTC),
		Message:  "stuff",
		ChangedPaths: []domain.ChangedPath{
			domain.NewChangedPath("/trunk/README", "M"),
		},
	}
}

func openSession(t *testing.T, indexDir, taxonomyDir string, mode OpenMode) *IndexWriterSession {
	t.Helper()
	s, err := NewIndexWriterSession(indexDir, taxonomyDir, mode)
	if err != nil {
		t.Fatalf("NewIndexWriterSession failed: %v", err)
	}
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func disposeSession(t *testing.T, s *IndexWriterSession) {
	t.Helper()
	if err := s.Dispose(); err != nil {
		t.Errorf("Dispose failed: %v", err)
	}
}
