package indexing

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/google/uuid"
	"github.com/sha1n/relic-history/internal/domain"
)

const (
	// MaxBatchSize is the maximum number of documents per batch
	MaxBatchSize = 100

	// MaxBatchBytes is the maximum message bytes per batch (10MB)
	MaxBatchBytes = 10 * 1024 * 1024
)

// OpenMode selects how a session treats existing index data.
type OpenMode int

const (
	// ModeCreate discards any existing index and taxonomy.
	ModeCreate OpenMode = iota
	// ModeCreateOrAppend appends to existing data or creates it when missing.
	ModeCreateOrAppend
	// ModeAppendOnly appends to existing data and fails when it is missing.
	ModeAppendOnly
)

func (m OpenMode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeCreateOrAppend:
		return "create_or_append"
	case ModeAppendOnly:
		return "append"
	default:
		return fmt.Sprintf("OpenMode(%d)", int(m))
	}
}

// ParseOpenMode resolves a configured open mode name.
func ParseOpenMode(s string) (OpenMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "create":
		return ModeCreate, nil
	case "create_or_append", "":
		return ModeCreateOrAppend, nil
	case "append":
		return ModeAppendOnly, nil
	default:
		return 0, fmt.Errorf("%w: unknown open mode %q", domain.ErrConfiguration, s)
	}
}

type sessionState int

const (
	stateUnopened sessionState = iota
	stateOpened
	stateDisposed
)

// IndexWriterSession owns the writable index and taxonomy of one location.
//
// A session moves from unopened to opened (explicitly or on the first
// AddDocument) and finally to disposed. Dispose commits pending work. At most
// one session may be open on a location at a time; a second one fails to open.
// A session is not safe for concurrent use.
type IndexWriterSession struct {
	indexDir    string
	taxonomyDir string
	mode        OpenMode

	state    sessionState
	lock     *FileLock
	index    bleve.Index
	taxonomy *TaxonomyWriter

	batch      *bleve.Batch
	batchSize  int
	batchBytes int

	newID func() string
}

// NewIndexWriterSession creates an unopened session.
func NewIndexWriterSession(indexDir, taxonomyDir string, mode OpenMode) (*IndexWriterSession, error) {
	if indexDir == "" || taxonomyDir == "" {
		return nil, fmt.Errorf("%w: index and taxonomy locations are required", domain.ErrConfiguration)
	}
	if filepath.Clean(indexDir) == filepath.Clean(taxonomyDir) {
		return nil, fmt.Errorf("%w: index and taxonomy must use different locations", domain.ErrConfiguration)
	}

	return &IndexWriterSession{
		indexDir:    indexDir,
		taxonomyDir: taxonomyDir,
		mode:        mode,
		newID:       uuid.NewString,
	}, nil
}

// LockPath returns the writer lock file guarding indexDir.
func LockPath(indexDir string) string {
	return filepath.Clean(indexDir) + ".lock"
}

// Open acquires the writer lock and opens index and taxonomy.
// Opening an opened session is a no-op.
func (s *IndexWriterSession) Open() error {
	switch s.state {
	case stateOpened:
		return nil
	case stateDisposed:
		return fmt.Errorf("%w: session already disposed", domain.ErrConfiguration)
	}

	lock := NewFileLock(LockPath(s.indexDir))
	acquired, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("%w: lock %s: %w", domain.ErrStorage, s.indexDir, err)
	}
	if !acquired {
		return fmt.Errorf("%w: %s: %w", domain.ErrStorage, s.indexDir, ErrLockHeld)
	}

	index, err := s.openIndex()
	if err != nil {
		_ = lock.Unlock()
		return err
	}

	taxonomy, err := OpenTaxonomyWriter(s.taxonomyDir, s.mode)
	if err != nil {
		_ = index.Close()
		_ = lock.Unlock()
		return err
	}

	s.lock = lock
	s.index = index
	s.taxonomy = taxonomy
	s.batch = index.NewBatch()
	s.state = stateOpened

	slog.Debug("Index writer opened", "index", s.indexDir, "taxonomy", s.taxonomyDir, "mode", s.mode)
	return nil
}

func (s *IndexWriterSession) openIndex() (bleve.Index, error) {
	switch s.mode {
	case ModeCreate:
		if err := os.RemoveAll(s.indexDir); err != nil {
			return nil, fmt.Errorf("%w: remove index %s: %w", domain.ErrStorage, s.indexDir, err)
		}
		return s.createIndex()

	case ModeAppendOnly:
		index, err := bleve.Open(s.indexDir)
		if err != nil {
			return nil, fmt.Errorf("%w: open index %s: %w", domain.ErrStorage, s.indexDir, err)
		}
		return index, nil

	default:
		index, err := bleve.Open(s.indexDir)
		if err == nil {
			return index, nil
		}
		if !errors.Is(err, bleve.ErrorIndexPathDoesNotExist) && !errors.Is(err, bleve.ErrorIndexMetaMissing) {
			return nil, fmt.Errorf("%w: open index %s: %w", domain.ErrStorage, s.indexDir, err)
		}
		return s.createIndex()
	}
}

func (s *IndexWriterSession) createIndex() (bleve.Index, error) {
	if err := os.MkdirAll(filepath.Dir(s.indexDir), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create index parent %s: %w", domain.ErrStorage, s.indexDir, err)
	}
	index, err := bleve.New(s.indexDir, IndexMapping())
	if err != nil {
		return nil, fmt.Errorf("%w: create index %s: %w", domain.ErrStorage, s.indexDir, err)
	}
	return index, nil
}

// AddDocument buffers the document and registers its categories in the taxonomy.
func (s *IndexWriterSession) AddDocument(fields []domain.IndexedField, categories []domain.CategoryPath) error {
	switch s.state {
	case stateUnopened:
		return fmt.Errorf("%w: add document before open", domain.ErrIndexWrite)
	case stateDisposed:
		return fmt.Errorf("%w: add document after dispose", domain.ErrIndexWrite)
	}

	doc := NewDocument(fields, categories)
	if err := s.batch.Index(s.newID(), doc); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndexWrite, err)
	}
	// only categories of buffered documents reach the taxonomy
	for _, c := range categories {
		s.taxonomy.AddCategory(c)
	}
	s.batchSize++
	s.batchBytes += documentBytes(fields)

	if s.batchSize >= MaxBatchSize || s.batchBytes >= MaxBatchBytes {
		return s.flush()
	}
	return nil
}

// Commit makes all buffered documents and categories durable and visible to new readers.
func (s *IndexWriterSession) Commit() error {
	if s.state == stateDisposed {
		return fmt.Errorf("%w: commit after dispose", domain.ErrIndexWrite)
	}
	if s.state != stateOpened {
		return fmt.Errorf("%w: commit on a session that is not open", domain.ErrConfiguration)
	}
	return s.flush()
}

// flush commits the taxonomy before the batch so documents never reference unknown categories.
func (s *IndexWriterSession) flush() error {
	if err := s.taxonomy.Commit(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndexWrite, err)
	}

	if s.batchSize == 0 {
		return nil
	}

	if err := s.index.Batch(s.batch); err != nil {
		s.resetBatch()
		return fmt.Errorf("%w: batch index failed: %w", domain.ErrIndexWrite, err)
	}

	slog.Debug("Index batch committed", "index", s.indexDir, "documents", s.batchSize)
	s.resetBatch()
	return nil
}

func (s *IndexWriterSession) resetBatch() {
	s.batch = s.index.NewBatch()
	s.batchSize = 0
	s.batchBytes = 0
}

// DocCount returns the number of committed documents.
func (s *IndexWriterSession) DocCount() (uint64, error) {
	if s.state != stateOpened {
		return 0, fmt.Errorf("%w: session is not open", domain.ErrConfiguration)
	}
	n, err := s.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("%w: doc count: %w", domain.ErrStorage, err)
	}
	return n, nil
}

// TaxonomySize returns the number of categories including the root.
func (s *IndexWriterSession) TaxonomySize() int {
	if s.taxonomy == nil {
		return 0
	}
	return s.taxonomy.Size()
}

// Dispose commits pending work and releases index, taxonomy and lock.
// Disposing a never-opened session is a configuration error; disposing twice is a no-op.
func (s *IndexWriterSession) Dispose() (err error) {
	switch s.state {
	case stateUnopened:
		return fmt.Errorf("%w: dispose on a session that was never opened", domain.ErrConfiguration)
	case stateDisposed:
		return nil
	}

	s.state = stateDisposed
	defer func() {
		if uerr := s.lock.Unlock(); uerr != nil && err == nil {
			err = fmt.Errorf("%w: release lock: %w", domain.ErrStorage, uerr)
		}
	}()

	err = s.flush()
	if cerr := s.index.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("%w: close index: %w", domain.ErrStorage, cerr)
	}
	return err
}

func documentBytes(fields []domain.IndexedField) int {
	n := 0
	for _, f := range fields {
		if s, ok := f.Value.(string); ok {
			n += len(s)
		}
	}
	return n
}
