package indexing

import (
	"fmt"

	"github.com/sha1n/relic-history/internal/domain"
)

// IndexStats reports the size of an index after a run.
type IndexStats struct {
	Documents    uint64
	TaxonomySize int
}

// Indexer maps revision records to documents and facets and writes them to a session.
type Indexer struct {
	session *IndexWriterSession
}

// NewIndexer creates an indexer writing to session.
func NewIndexer(session *IndexWriterSession) *Indexer {
	return &Indexer{session: session}
}

// IndexRevision indexes a single revision. The session is opened on first use.
func (ix *Indexer) IndexRevision(rec domain.RevisionRecord) error {
	if err := ix.ensureOpen(); err != nil {
		return err
	}
	if err := ix.session.AddDocument(MapRevision(rec), BuildFacets(rec)); err != nil {
		return fmt.Errorf("index revision %d: %w", rec.Revision, err)
	}
	return nil
}

// IndexRevisions indexes records in order and returns how many were added.
// It stops at the first failure.
func (ix *Indexer) IndexRevisions(records []domain.RevisionRecord) (int, error) {
	for i, rec := range records {
		if err := ix.IndexRevision(rec); err != nil {
			return i, err
		}
	}
	return len(records), nil
}

// Stats commits pending work and reports document count and taxonomy size.
func (ix *Indexer) Stats() (IndexStats, error) {
	if err := ix.ensureOpen(); err != nil {
		return IndexStats{}, err
	}
	if err := ix.session.Commit(); err != nil {
		return IndexStats{}, err
	}

	docs, err := ix.session.DocCount()
	if err != nil {
		return IndexStats{}, err
	}
	return IndexStats{Documents: docs, TaxonomySize: ix.session.TaxonomySize()}, nil
}

func (ix *Indexer) ensureOpen() error {
	if ix.session.state != stateUnopened {
		return nil
	}
	return ix.session.Open()
}

// Close disposes the underlying session.
func (ix *Indexer) Close() error {
	return ix.session.Dispose()
}
