package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sha1n/relic-history/internal/config"
	"github.com/sha1n/relic-history/internal/domain"
	"github.com/sha1n/relic-history/internal/indexing"
	"github.com/sha1n/relic-history/internal/metrics"
	"github.com/sha1n/relic-history/internal/sourcecontrol"
)

var testDate = time.Date(2007, 1, 1, 13, 5, 0, 0, time.UTC)

func testRevision(rev int64, author, message string) domain.RevisionRecord {
	return domain.RevisionRecord{
		Revision: rev,
		Author:   author,
		Date:     testDate,
		Message:  message,
		ChangedPaths: []domain.ChangedPath{
			domain.NewChangedPath("/trunk/README", "M"),
		},
	}
}

func testHistory() []domain.RevisionRecord {
	return []domain.RevisionRecord{
		testRevision(1, "alice", "initial import"),
		testRevision(2, "bob", "fix parser bug\n\nlonger description"),
		testRevision(3, "alice", "add feature"),
	}
}

// testSettings returns valid settings for a memory source under a temp base dir.
func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	return &config.Settings{
		Transport: "stdio",
		Index: config.IndexSettings{
			BaseDir:  t.TempDir(),
			OpenMode: indexing.ModeCreateOrAppend.String(),
		},
		Source: config.SourceSettings{
			Provider: string(sourcecontrol.ProviderMemory),
			Timeout:  10 * time.Second,
		},
		Search: config.SearchSettings{
			MaxResults: 100,
			Sort:       "-" + domain.FieldRevisionNumber,
		},
		Sync: config.SyncSettings{
			OnStart:     true,
			LockTimeout: 5 * time.Second,
		},
	}
}

func newTestService(t *testing.T, settings *config.Settings, src sourcecontrol.RevisionSource) (*Service, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	svc, err := NewService(settings, src, m)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	t.Cleanup(func() {
		if err := svc.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return svc, m
}

// newTestIndexer opens an indexer on a fresh location.
func newTestIndexer(t *testing.T) (ix *indexing.Indexer, indexDir, taxonomyDir string) {
	t.Helper()
	base := t.TempDir()
	indexDir = filepath.Join(base, "repo"+indexing.IndexSuffix)
	taxonomyDir = filepath.Join(base, "repo"+indexing.TaxonomySuffix)

	session, err := indexing.NewIndexWriterSession(indexDir, taxonomyDir, indexing.ModeCreate)
	if err != nil {
		t.Fatalf("NewIndexWriterSession failed: %v", err)
	}
	return indexing.NewIndexer(session), indexDir, taxonomyDir
}
